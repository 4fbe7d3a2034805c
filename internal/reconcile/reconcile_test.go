package reconcile

import (
	"sort"
	"testing"

	"car-market-tracker/internal/models"

	"github.com/stretchr/testify/assert"
)

func links(ids ...int64) []models.ListingLink {
	out := make([]models.ListingLink, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.ListingLink{PostID: id, URL: "https://somon.tj/adv/x"})
	}
	return out
}

func set(ids ...int64) map[int64]struct{} {
	s := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func linkIDs(ls []models.ListingLink) []int64 {
	ids := make([]int64, 0, len(ls))
	for _, l := range ls {
		ids = append(ids, l.PostID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestReconcile_SetDifferences(t *testing.T) {
	res := Reconcile(links(2, 3, 4, 5), set(1, 2, 3))

	assert.Equal(t, set(1), res.SoldIDs)
	assert.Equal(t, []int64{4, 5}, linkIDs(res.NewLinks))
	assert.Equal(t, 2, res.Unchanged)
}

func TestReconcile_FirstRunEverythingIsNew(t *testing.T) {
	res := Reconcile(links(7, 8), set())

	assert.Empty(t, res.SoldIDs)
	assert.Equal(t, []int64{7, 8}, linkIDs(res.NewLinks))
}

func TestReconcile_EmptyIndexMarksAllSold(t *testing.T) {
	res := Reconcile(nil, set(1, 2))

	assert.Equal(t, set(1, 2), res.SoldIDs)
	assert.Empty(t, res.NewLinks)
}

func TestReconcile_NewAndSoldAreDisjoint(t *testing.T) {
	res := Reconcile(links(1, 1, 5, 6, 6), set(1, 2, 3))

	assert.Equal(t, []int64{5, 6}, linkIDs(res.NewLinks))
	for _, l := range res.NewLinks {
		_, sold := res.SoldIDs[l.PostID]
		assert.False(t, sold, "post %d is both new and sold", l.PostID)
	}
}

func TestIDSet(t *testing.T) {
	rows := []models.Listing{{PostID: 10}, {PostID: 11}}
	assert.Equal(t, set(10, 11), IDSet(rows, func(l models.Listing) int64 { return l.PostID }))
}
