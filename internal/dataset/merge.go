// Package dataset folds a run's results into the accumulating Active and
// Sold tables. A post id lives in at most one of the two tables, and a sold
// row is never changed once written.
package dataset

import (
	"time"

	"car-market-tracker/internal/logging"
	"car-market-tracker/internal/models"
	"car-market-tracker/internal/normalize"
	"car-market-tracker/internal/reconcile"
)

// Tables is the persisted state of the tracker.
type Tables struct {
	Active []models.Listing
	Sold   []models.SoldListing
}

// Delta is what one run (or one outer batch of a run) contributes.
type Delta struct {
	// SoldIDs disappeared from the index since the previous run.
	SoldIDs map[int64]struct{}
	// NewRecords were parsed from new links without a sold badge.
	NewRecords []models.Listing
	// BadgeSold were parsed from new links whose page carries the sold badge.
	BadgeSold []models.Listing
	// RunAt stamps soldDate on every row moved to Sold.
	RunAt time.Time
}

// MergeStats counts what Merge did.
type MergeStats struct {
	MovedToSold          int
	AddedActive          int
	ReplacedActive       int
	AddedSold            int
	SkippedArchived      int
	SignalOverlap        int
	NormalizationDefects int
}

// Merge applies d to t and returns the new tables. The inputs are not modified.
func Merge(t Tables, d Delta) (Tables, MergeStats) {
	var stats MergeStats

	soldIndex := make(map[int64]struct{}, len(t.Sold)+len(d.SoldIDs))
	sold := make([]models.SoldListing, 0, len(t.Sold)+len(d.SoldIDs)+len(d.BadgeSold))
	for _, s := range t.Sold {
		if _, dup := soldIndex[s.PostID]; dup {
			continue
		}
		soldIndex[s.PostID] = struct{}{}
		sold = append(sold, s)
	}

	activeIndex := make(map[int64]int, len(t.Active)+len(d.NewRecords))
	active := make([]models.Listing, 0, len(t.Active)+len(d.NewRecords))
	for _, a := range t.Active {
		if _, dup := activeIndex[a.PostID]; dup {
			continue
		}
		if _, archived := soldIndex[a.PostID]; archived {
			continue
		}
		if _, gone := d.SoldIDs[a.PostID]; gone {
			sold = append(sold, toSold(a, d.RunAt))
			soldIndex[a.PostID] = struct{}{}
			stats.MovedToSold++
			continue
		}
		activeIndex[a.PostID] = len(active)
		active = append(active, a)
	}

	for _, b := range d.BadgeSold {
		if _, both := d.SoldIDs[b.PostID]; both {
			stats.SignalOverlap++
		}
		if _, archived := soldIndex[b.PostID]; archived {
			stats.SkippedArchived++
			continue
		}
		if i, ok := activeIndex[b.PostID]; ok {
			active = append(active[:i], active[i+1:]...)
			activeIndex = reindex(active)
		}
		sold = append(sold, toSold(b, d.RunAt))
		soldIndex[b.PostID] = struct{}{}
		stats.AddedSold++
	}

	for _, n := range d.NewRecords {
		if _, archived := soldIndex[n.PostID]; archived {
			stats.SkippedArchived++
			continue
		}
		if i, ok := activeIndex[n.PostID]; ok {
			active[i] = n
			stats.ReplacedActive++
			continue
		}
		activeIndex[n.PostID] = len(active)
		active = append(active, n)
		stats.AddedActive++
	}

	out := Tables{Active: active, Sold: sold}
	stats.NormalizationDefects = DeriveFields(&out)
	if stats.SignalOverlap > 0 {
		logging.Warnf("[Merge] %d listings flagged sold by both badge and index absence", stats.SignalOverlap)
	}
	return out, stats
}

func toSold(l models.Listing, at time.Time) models.SoldListing {
	return models.SoldListing{
		Listing:          l,
		SoldDate:         at,
		SellingTimeHours: normalize.SellingTimeHours(l.DatePublished, at),
	}
}

func reindex(active []models.Listing) map[int64]int {
	idx := make(map[int64]int, len(active))
	for i, a := range active {
		idx[a.PostID] = i
	}
	return idx
}

// DeriveFields recomputes brand and model from the name and re-applies
// engine volume normalization on both tables. It returns how many rows still
// hold an engine volume that cannot be normalized; those keep their raw text.
func DeriveFields(t *Tables) int {
	defects := 0
	derive := func(l *models.Listing) {
		l.Brand, l.Model = normalize.SplitName(l.Name)
		l.EngineVolume = l.EngineVolume.Renormalize()
		if !l.EngineVolume.Valid && l.EngineVolume.Raw != "" {
			defects++
			logging.Warnf("[Normalize] post %d: engine volume %q cannot be normalized", l.PostID, l.EngineVolume.Raw)
		}
	}
	for i := range t.Active {
		derive(&t.Active[i])
	}
	for i := range t.Sold {
		derive(&t.Sold[i].Listing)
	}
	return defects
}

// DropDuplicates removes rows identical across all fields, keeping the first.
func DropDuplicates(t Tables) Tables {
	return Tables{
		Active: dedupe(t.Active, models.Listing.Fingerprint),
		Sold:   dedupe(t.Sold, models.SoldListing.Fingerprint),
	}
}

func dedupe[T any](rows []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// ActiveIDs returns the set of active post ids.
func (t Tables) ActiveIDs() map[int64]struct{} {
	return reconcile.IDSet(t.Active, func(l models.Listing) int64 { return l.PostID })
}

// SoldIDs returns the set of sold post ids.
func (t Tables) SoldIDs() map[int64]struct{} {
	return reconcile.IDSet(t.Sold, func(s models.SoldListing) int64 { return s.PostID })
}
