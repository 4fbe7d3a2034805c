package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"car-market-tracker/internal/search"

	"github.com/gin-gonic/gin"
)

// Searcher runs filtered full-text queries over active listings.
type Searcher interface {
	FilterSearch(params search.FilterParams) (*search.Result, error)
}

type SearchHandler struct {
	searcher Searcher
}

func NewSearchHandler(searcher Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// Search handles GET /api/search?q=...&brand=...&min_price=...
func (h *SearchHandler) Search(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)

	var facets []string
	if f := c.Query("facets"); f != "" {
		facets = strings.Split(f, ",")
	}

	result, err := h.searcher.FilterSearch(search.FilterParams{
		Query:  c.Query("q"),
		Filter: filter,
		Facets: facets,
		SortBy: c.Query("sort"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
