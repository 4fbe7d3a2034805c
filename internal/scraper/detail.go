package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"car-market-tracker/internal/models"
	"car-market-tracker/internal/normalize"

	"github.com/PuerkitoBio/goquery"
)

// MinCarAttributes is the attribute count below which a page is not a car.
const MinCarAttributes = 9

// ResultKind classifies the outcome for one link.
type ResultKind string

const (
	ResultRecord       ResultKind = "record"
	ResultNotACar      ResultKind = "not_a_car"
	ResultParseFailure ResultKind = "parse_failure"
	ResultFetchFailure ResultKind = "fetch_failure"
)

// DetailResult is the immutable outcome of processing one listing link.
// Listing is set only for ResultRecord; Sold marks a record whose page
// carries the sold badge.
type DetailResult struct {
	Link    models.ListingLink
	Kind    ResultKind
	Listing *models.Listing
	Sold    bool
	Err     error
}

// IsNormalizationDefect reports whether the failure came from a value that
// could not be normalized rather than from page structure.
func (r DetailResult) IsNormalizationDefect() bool {
	return r.Kind == ResultParseFailure && errors.Is(r.Err, normalize.ErrEngineVolume)
}

// ParseError names the page element that could not be read.
type ParseError struct {
	URL   string
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.URL, e.Field, e.Cause)
	}
	return fmt.Sprintf("parse %s: %s missing", e.URL, e.Field)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Attribute panel labels.
const (
	labelBody         = "Кузов"
	labelYear         = "Год выпуска"
	labelColor        = "Цвет"
	labelDrivetrain   = "Привод"
	labelEngineVolume = "Объем двигателя"
	labelCondition    = "Состояние"
	labelFuel         = "Вид топлива"
	labelCustoms      = "Растаможен в РТ"
	labelTransmission = "Коробка передач"
)

// ParseDetail reads a detail page. now resolves relative publication dates.
func ParseDetail(raw []byte, link models.ListingLink, now time.Time) DetailResult {
	result := DetailResult{Link: link}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		result.Kind = ResultParseFailure
		result.Err = &ParseError{URL: link.URL, Field: "document", Cause: err}
		return result
	}

	attrs := readAttributes(doc)
	if len(attrs) < MinCarAttributes {
		result.Kind = ResultNotACar
		return result
	}

	listing, err := buildListing(doc, attrs, link, now)
	if err != nil {
		result.Kind = ResultParseFailure
		result.Err = err
		return result
	}

	result.Kind = ResultRecord
	result.Listing = listing
	result.Sold = doc.Find(".phone-author--sold").Length() > 0
	return result
}

type attribute struct {
	label string
	value string
}

func readAttributes(doc *goquery.Document) []attribute {
	keys := doc.Find(".key-chars")
	values := doc.Find(".value-chars")

	attrs := make([]attribute, 0, values.Length())
	values.Each(func(i int, v *goquery.Selection) {
		label := ""
		if i < keys.Length() {
			label = strings.TrimSpace(strings.ReplaceAll(keys.Eq(i).Text(), ":", ""))
		}
		attrs = append(attrs, attribute{label: label, value: normalize.Text(v.Text())})
	})
	return attrs
}

func buildListing(doc *goquery.Document, attrs []attribute, link models.ListingLink, now time.Time) (*models.Listing, error) {
	missing := func(field string) error {
		return &ParseError{URL: link.URL, Field: field}
	}

	l := &models.Listing{URL: link.URL}

	for _, a := range attrs {
		switch a.label {
		case labelBody:
			l.BodyType = a.value
		case labelYear:
			if year, ok := normalize.FirstInt(a.value); ok {
				l.YearBuilt = year
			}
		case labelColor:
			l.Color = a.value
		case labelDrivetrain:
			l.Drivetrain = a.value
		case labelEngineVolume:
			v, err := normalize.EngineVolume(a.value)
			if err != nil {
				return nil, &ParseError{URL: link.URL, Field: "engine volume", Cause: err}
			}
			l.EngineVolume = models.Liters(v)
		case labelCondition:
			l.Condition = a.value
		case labelFuel:
			l.FuelType = a.value
		case labelCustoms:
			l.CustomsCleared = a.value
		case labelTransmission:
			l.Transmission = a.value
		}
	}

	title := doc.Find(".title-announcement").First()
	if title.Length() == 0 {
		return nil, missing("title")
	}
	l.Name = normalize.Name(title.Text())
	if l.Name == "" {
		return nil, missing("title")
	}
	l.Brand, l.Model = normalize.SplitName(l.Name)

	number := doc.Find(".number-announcement").First()
	if number.Length() == 0 {
		return nil, missing("post id")
	}
	idText := number.Text()
	if i := strings.LastIndex(idText, ":"); i >= 0 {
		idText = idText[i+1:]
	}
	postID, err := strconv.ParseInt(strings.TrimSpace(idText), 10, 64)
	if err != nil {
		return nil, &ParseError{URL: link.URL, Field: "post id", Cause: err}
	}
	l.PostID = postID

	priceSel := doc.Find(".announcement-price__cost").First()
	if priceSel.Length() == 0 {
		return nil, missing("price")
	}
	price, err := normalize.Price(priceSel.Text())
	if err != nil {
		return nil, &ParseError{URL: link.URL, Field: "price", Cause: err}
	}
	l.Price = price

	dateSel := doc.Find(".date-meta").First()
	if dateSel.Length() == 0 {
		return nil, missing("publication date")
	}
	published, err := normalize.PublishedAt(dateSel.Text(), now)
	if err != nil {
		return nil, &ParseError{URL: link.URL, Field: "publication date", Cause: err}
	}
	l.DatePublished = published

	author := doc.Find(".author-name.js-online-user").First()
	if author.Length() == 0 {
		return nil, missing("author")
	}
	l.AuthorName = strings.TrimSpace(author.Text())

	city := doc.Find(".announcement__location").First()
	if city.Length() == 0 {
		return nil, missing("city")
	}
	l.City = normalize.Text(city.Text())

	if href, ok := doc.Find(".other-announcement-author").First().Attr("href"); ok {
		l.AuthorID = lastPathSegment(href)
	}
	if views, ok := normalize.FirstInt(doc.Find(".counter-views").First().Text()); ok {
		l.ViewCount = views
	}
	l.Description = strings.TrimSpace(strings.ReplaceAll(doc.Find(".js-description").First().Text(), "\n", " "))
	l.WhatsApp = whatsAppNumber(doc)

	return l, nil
}

func lastPathSegment(href string) string {
	parts := strings.Split(strings.Trim(href, "/"), "/")
	return parts[len(parts)-1]
}

func whatsAppNumber(doc *goquery.Document) string {
	href, ok := doc.Find("._whatsapp.js-messenger").First().Attr("href")
	if !ok {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return u.Query().Get("phone")
}
