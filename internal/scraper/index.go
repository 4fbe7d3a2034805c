package scraper

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"
)

// IndexError means the listing index could not be built at all.
type IndexError struct {
	Message string
	Cause   error
}

func (e *IndexError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("index build failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("index build failed: %s", e.Message)
}

func (e *IndexError) Unwrap() error {
	return e.Cause
}

var postIDPattern = regexp.MustCompile(`/adv/(\d+)_`)

// ExtractPostID returns the numeric advertisement id embedded in a listing URL.
func ExtractPostID(link string) (int64, error) {
	m := postIDPattern.FindStringSubmatch(link)
	if m == nil {
		return 0, fmt.Errorf("no advertisement id in %q", link)
	}
	return strconv.ParseInt(m[1], 10, 64)
}

// IndexBuilder walks the paginated category index.
type IndexBuilder struct {
	fetcher     Fetcher
	pageURL     func(page int) string
	baseURL     *url.URL
	concurrency int
}

// NewIndexBuilder creates a builder. pageURL maps a 1-based page number to
// its URL; concurrency <= 0 fetches all pages at once.
func NewIndexBuilder(fetcher Fetcher, baseURL string, pageURL func(page int) string, concurrency int) (*IndexBuilder, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	return &IndexBuilder{
		fetcher:     fetcher,
		pageURL:     pageURL,
		baseURL:     base,
		concurrency: concurrency,
	}, nil
}

// BuildIndex returns every listing link currently in the category, unique
// by post id. Pages other than the first that fail contribute no links.
func (b *IndexBuilder) BuildIndex(ctx context.Context) ([]models.ListingLink, error) {
	firstURL := b.pageURL(1)
	body, err := b.fetcher.Fetch(ctx, firstURL)
	if err != nil {
		return nil, &IndexError{Message: "first page unavailable", Cause: err}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &IndexError{Message: "first page unparseable", Cause: err}
	}

	// No listings on page 1 is fatal even when pagination is present.
	firstLinks := b.parseIndexPage(doc, firstURL)
	if len(firstLinks) == 0 {
		return nil, &IndexError{Message: "no listings on first page"}
	}
	pageCount, ok := lastPageNumber(doc)
	if !ok {
		pageCount = 1
	}
	logging.Infof("[IndexBuilder] %d index pages", pageCount)

	pages := make([][]models.ListingLink, pageCount)
	pages[0] = firstLinks

	g, gctx := errgroup.WithContext(ctx)
	if b.concurrency > 0 {
		g.SetLimit(b.concurrency)
	}
	for page := 2; page <= pageCount; page++ {
		g.Go(func() error {
			pageURL := b.pageURL(page)
			body, err := b.fetcher.Fetch(gctx, pageURL)
			if err != nil {
				logging.Errorf("[IndexBuilder] page %d/%d skipped: %v", page, pageCount, err)
				return nil
			}
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
			if err != nil {
				logging.Errorf("[IndexBuilder] page %d/%d unparseable: %v", page, pageCount, err)
				return nil
			}
			pages[page-1] = b.parseIndexPage(doc, pageURL)
			logging.Debugf("[IndexBuilder] completed page %d/%d", page, pageCount)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, &IndexError{Message: "cancelled", Cause: err}
	}

	seen := make(map[int64]bool)
	var links []models.ListingLink
	for _, pageLinks := range pages {
		for _, link := range pageLinks {
			if seen[link.PostID] {
				continue
			}
			seen[link.PostID] = true
			links = append(links, link)
		}
	}

	logging.Infof("[IndexBuilder] found %d unique listings across %d pages", len(links), pageCount)
	return links, nil
}

// ParseIndexPage extracts listing links from one index page.
func (b *IndexBuilder) ParseIndexPage(html []byte, pageURL string) ([]models.ListingLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, err
	}
	return b.parseIndexPage(doc, pageURL), nil
}

func (b *IndexBuilder) parseIndexPage(doc *goquery.Document, pageURL string) []models.ListingLink {
	var links []models.ListingLink
	doc.Find(".js-item-listing").Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			logging.Warnf("[IndexBuilder] bad href %q on %s", href, pageURL)
			return
		}
		abs := b.baseURL.ResolveReference(ref).String()
		id, err := ExtractPostID(abs)
		if err != nil {
			logging.Warnf("[IndexBuilder] %v on %s", err, pageURL)
			return
		}
		links = append(links, models.ListingLink{URL: abs, PostID: id})
	})
	return links
}

func lastPageNumber(doc *goquery.Document) (int, bool) {
	last := 0
	doc.Find("a.page-number").Each(func(_ int, a *goquery.Selection) {
		if n, err := strconv.Atoi(strings.TrimSpace(a.Text())); err == nil && n > last {
			last = n
		}
	})
	return last, last > 0
}
