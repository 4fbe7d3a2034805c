package search

import (
	"fmt"
	"sort"
	"strings"

	"car-market-tracker/internal/models"
)

// categoricalFields are the listing attributes exposed as dashboard filters.
var categoricalFields = []string{
	"brand",
	"model",
	"city",
	"body_type",
	"fuel_type",
	"drivetrain",
	"transmission",
	"color",
	"customs_cleared",
	"condition",
}

type FilterParams struct {
	Query  string
	Filter models.ListingFilter
	Facets []string
	SortBy string
	Limit  int64
	Offset int64
}

// BuildFilter renders f as a Meilisearch filter expression.
// Values of one field are OR-ed, fields are AND-ed.
func BuildFilter(f models.ListingFilter) string {
	var filters []string

	if f.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %d", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %d", *f.MaxPrice))
	}
	if f.MinYear != nil {
		filters = append(filters, fmt.Sprintf("year_built >= %d", *f.MinYear))
	}
	if f.MaxYear != nil {
		filters = append(filters, fmt.Sprintf("year_built <= %d", *f.MaxYear))
	}

	fields := f.Fields()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := fields[name]
		if len(values) == 0 {
			continue
		}
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%s = '%s'", name, quote(v))
		}
		if len(parts) == 1 {
			filters = append(filters, parts[0])
			continue
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(parts, " OR ")))
	}

	return strings.Join(filters, " AND ")
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `'`, `\'`)
}
