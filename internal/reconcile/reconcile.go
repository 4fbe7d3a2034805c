// Package reconcile diffs the current listing index against the ids that
// were active after the previous run.
package reconcile

import "car-market-tracker/internal/models"

// Result is the delta between two runs.
type Result struct {
	// SoldIDs were active before and are missing from the index now.
	SoldIDs map[int64]struct{}
	// NewLinks are in the index now and were not active before.
	NewLinks []models.ListingLink
	// Unchanged counts ids present in both sets.
	Unchanged int
}

// Reconcile computes soldIDs = previous − current and newLinks = current − previous.
// Duplicate links in current are reported once.
func Reconcile(current []models.ListingLink, previousActiveIDs map[int64]struct{}) Result {
	currentIDs := make(map[int64]struct{}, len(current))
	res := Result{SoldIDs: make(map[int64]struct{})}

	for _, link := range current {
		if _, dup := currentIDs[link.PostID]; dup {
			continue
		}
		currentIDs[link.PostID] = struct{}{}

		if _, known := previousActiveIDs[link.PostID]; known {
			res.Unchanged++
			continue
		}
		res.NewLinks = append(res.NewLinks, link)
	}

	for id := range previousActiveIDs {
		if _, stillListed := currentIDs[id]; !stillListed {
			res.SoldIDs[id] = struct{}{}
		}
	}

	return res
}

// IDSet builds a lookup set from listing ids.
func IDSet[T any](rows []T, id func(T) int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(rows))
	for _, r := range rows {
		set[id(r)] = struct{}{}
	}
	return set
}
