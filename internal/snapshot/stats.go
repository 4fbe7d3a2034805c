package snapshot

import (
	"math"
	"sort"
	"strconv"

	"car-market-tracker/internal/models"
)

// TopN bounds every ranked list in Stats.
const TopN = 30

// Count is one bucket of a ranked breakdown.
type Count struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent,omitempty"`
}

// Stats summarizes a snapshot for the dashboard.
type Stats struct {
	Date                string  `json:"date"`
	ActiveCount         int     `json:"active_count"`
	SoldCount           int     `json:"sold_count"`
	AveragePrice        int     `json:"average_price"`
	Brands              int     `json:"brands"`
	Models              int     `json:"models"`
	AvgSellingTimeHours float64 `json:"avg_selling_time_hours"`

	TopModels          []Count `json:"top_models"`
	TopBrands          []Count `json:"top_brands"`
	TopModelsByViews   []Count `json:"top_models_by_views"`
	TopBrandsByViews   []Count `json:"top_brands_by_views"`
	TopAuthors         []Count `json:"top_authors"`
	TopSoldModels      []Count `json:"top_sold_models"`
	PublicationsPerDay []Count `json:"publications_per_day"`
	SalesPerDay        []Count `json:"sales_per_day"`
	FuelTypes          []Count `json:"fuel_types"`
	BodyTypes          []Count `json:"body_types"`
	Transmissions      []Count `json:"transmissions"`
	Colors             []Count `json:"colors"`
	Cities             []Count `json:"cities"`
}

// Summarize computes Stats over the rows of s that match f.
func Summarize(s *Snapshot, f models.ListingFilter) Stats {
	var active []models.Listing
	for _, l := range s.Active {
		if f.Match(l) {
			active = append(active, l)
		}
	}
	var sold []models.SoldListing
	for _, l := range s.Sold {
		if f.Match(l.Listing) {
			sold = append(sold, l)
		}
	}

	stats := Stats{
		Date:        s.Info.DateKey(),
		ActiveCount: len(active),
		SoldCount:   len(sold),
	}

	if len(active) > 0 {
		total := 0
		brands := map[string]struct{}{}
		modelSet := map[string]struct{}{}
		for _, l := range active {
			total += l.Price
			brands[l.Brand] = struct{}{}
			modelSet[l.Model] = struct{}{}
		}
		stats.AveragePrice = total / len(active)
		stats.Brands = len(brands)
		stats.Models = len(modelSet)
	}

	if len(sold) > 0 {
		var hours float64
		for _, l := range sold {
			hours += l.SellingTimeHours
		}
		stats.AvgSellingTimeHours = math.Round(hours/float64(len(sold))*10) / 10
	}

	stats.TopModels = countBy(active, func(l models.Listing) (string, int) { return l.Model, 1 }, false)
	stats.TopBrands = countBy(active, func(l models.Listing) (string, int) { return l.Brand, 1 }, false)
	stats.TopModelsByViews = countBy(active, func(l models.Listing) (string, int) { return l.Model, l.ViewCount }, false)
	stats.TopBrandsByViews = countBy(active, func(l models.Listing) (string, int) { return l.Brand, l.ViewCount }, false)
	stats.TopAuthors = countBy(active, func(l models.Listing) (string, int) { return l.AuthorID, 1 }, false)
	stats.PublicationsPerDay = countBy(active, func(l models.Listing) (string, int) {
		return l.DatePublished.Format(dateLayout), 1
	}, false)
	stats.FuelTypes = countBy(active, func(l models.Listing) (string, int) { return l.FuelType, 1 }, true)
	stats.BodyTypes = countBy(active, func(l models.Listing) (string, int) { return l.BodyType, 1 }, true)
	stats.Transmissions = countBy(active, func(l models.Listing) (string, int) { return l.Transmission, 1 }, true)
	stats.Colors = countBy(active, func(l models.Listing) (string, int) { return l.Color, 1 }, true)
	stats.Cities = countBy(active, func(l models.Listing) (string, int) { return l.City, 1 }, true)

	stats.TopSoldModels = countBy(sold, func(l models.SoldListing) (string, int) { return l.Model, 1 }, false)
	stats.SalesPerDay = countBy(sold, func(l models.SoldListing) (string, int) {
		return l.SoldDate.Format(dateLayout), 1
	}, false)

	return stats
}

// countBy sums weights per key, sorted by weight descending then key, capped at TopN.
func countBy[T any](rows []T, key func(T) (string, int), withPercent bool) []Count {
	totals := map[string]int{}
	sum := 0
	for _, r := range rows {
		k, w := key(r)
		if k == "" {
			continue
		}
		totals[k] += w
		sum += w
	}

	out := make([]Count, 0, len(totals))
	for k, n := range totals {
		c := Count{Key: k, Count: n}
		if withPercent && sum > 0 {
			c.Percent = math.Round(float64(n)/float64(sum)*1000) / 10
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}

// AveragePriceByYear returns the mean active price per production year.
func AveragePriceByYear(s *Snapshot, f models.ListingFilter) []Count {
	sums := map[int]int{}
	counts := map[int]int{}
	for _, l := range s.Active {
		if l.YearBuilt == 0 || !f.Match(l) {
			continue
		}
		sums[l.YearBuilt] += l.Price
		counts[l.YearBuilt]++
	}

	years := make([]int, 0, len(sums))
	for y := range sums {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make([]Count, 0, len(years))
	for _, y := range years {
		out = append(out, Count{Key: strconv.Itoa(y), Count: sums[y] / counts[y]})
	}
	return out
}
