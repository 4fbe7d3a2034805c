package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"

	"github.com/meilisearch/meilisearch-go"
)

const (
	primaryKey   = "post_id"
	documentPage = 1000
)

// Client mirrors the Active table into a Meilisearch index.
type Client struct {
	client *meilisearch.Client
	index  string
}

func NewClient(host, apiKey, index string) *Client {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &Client{
		client: client,
		index:  index,
	}
}

// Name identifies the sink in logs.
func (c *Client) Name() string {
	return "meilisearch"
}

// InitIndex creates the index and configures its attributes
func (c *Client) InitIndex() error {
	_, err := c.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        c.index,
		PrimaryKey: primaryKey,
	})
	if err != nil && !strings.Contains(err.Error(), "index_already_exists") && err.Error() != "index already exists" {
		return err
	}

	idx := c.client.Index(c.index)
	if _, err := idx.UpdateSearchableAttributes(&[]string{
		"name",
		"brand",
		"model",
		"description",
		"city",
	}); err != nil {
		return err
	}

	filterable := []string{"post_id", "price", "year_built"}
	filterable = append(filterable, categoricalFields...)
	if _, err := idx.UpdateFilterableAttributes(&filterable); err != nil {
		return err
	}

	if _, err := idx.UpdateSortableAttributes(&[]string{
		"price",
		"year_built",
		"view_count",
		"date_published",
	}); err != nil {
		return err
	}

	return nil
}

// Sync removes sold post ids from the index and upserts every active listing.
func (c *Client) Sync(ctx context.Context, t dataset.Tables) error {
	idx := c.client.Index(c.index)

	ids := make([]string, 0, len(t.Sold))
	for _, s := range t.Sold {
		ids = append(ids, strconv.FormatInt(s.PostID, 10))
	}
	for start := 0; start < len(ids); start += documentPage {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+documentPage, len(ids))
		if _, err := idx.DeleteDocuments(ids[start:end]); err != nil {
			return fmt.Errorf("delete sold documents: %w", err)
		}
	}

	for start := 0; start < len(t.Active); start += documentPage {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+documentPage, len(t.Active))
		if _, err := idx.AddDocuments(t.Active[start:end], primaryKey); err != nil {
			return fmt.Errorf("add active documents: %w", err)
		}
	}

	logging.Infof("[Search] queued %d active documents and %d deletions on %s", len(t.Active), len(ids), c.index)
	return nil
}

// Result is one page of search hits.
type Result struct {
	Hits           []models.Listing       `json:"hits"`
	TotalHits      int64                  `json:"total_hits"`
	Facets         map[string]interface{} `json:"facets,omitempty"`
	ProcessingTime int64                  `json:"processing_time_ms"`
}

// FilterSearch runs a full-text query narrowed by the listing filter.
func (c *Client) FilterSearch(params FilterParams) (*Result, error) {
	if params.Limit == 0 {
		params.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  params.Limit,
		Offset: params.Offset,
	}
	if filter := BuildFilter(params.Filter); filter != "" {
		searchReq.Filter = filter
	}
	if params.SortBy != "" {
		searchReq.Sort = []string{params.SortBy}
	}
	if len(params.Facets) > 0 {
		searchReq.Facets = params.Facets
	}

	searchRes, err := c.client.Index(c.index).Search(params.Query, searchReq)
	if err != nil {
		return nil, err
	}

	listings := make([]models.Listing, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		l, err := listingFromHit(hit)
		if err != nil {
			logging.Warnf("[Search] skipping undecodable hit: %v", err)
			continue
		}
		listings = append(listings, l)
	}

	var facets map[string]interface{}
	if searchRes.FacetDistribution != nil {
		facets, _ = searchRes.FacetDistribution.(map[string]interface{})
	}

	return &Result{
		Hits:           listings,
		TotalHits:      searchRes.EstimatedTotalHits,
		Facets:         facets,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// listingFromHit converts a search hit to a Listing
func listingFromHit(hit interface{}) (models.Listing, error) {
	var l models.Listing
	raw, err := json.Marshal(hit)
	if err != nil {
		return l, err
	}
	err = json.Unmarshal(raw, &l)
	return l, err
}
