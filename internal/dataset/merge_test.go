package dataset

import (
	"testing"
	"time"

	"car-market-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	published = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	runAt     = time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)
)

func listing(id int64, name string) models.Listing {
	return models.Listing{
		PostID:        id,
		Name:          name,
		DatePublished: published,
		EngineVolume:  models.Liters(2.0),
		Price:         100000,
	}
}

func ids(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func assertPartition(t *testing.T, tables Tables) {
	t.Helper()
	active := tables.ActiveIDs()
	assert.Len(t, active, len(tables.Active), "duplicate active ids")
	sold := tables.SoldIDs()
	assert.Len(t, sold, len(tables.Sold), "duplicate sold ids")
	for id := range active {
		_, both := sold[id]
		assert.False(t, both, "post %d is in both tables", id)
	}
}

func TestMerge_MovesSoldAndStampsSellingTime(t *testing.T) {
	before := Tables{Active: []models.Listing{listing(1, "Toyota Camry"), listing(2, "Lada Niva")}}

	after, stats := Merge(before, Delta{
		SoldIDs: map[int64]struct{}{1: {}},
		RunAt:   runAt,
	})

	require.Len(t, after.Active, 1)
	assert.Equal(t, int64(2), after.Active[0].PostID)
	require.Len(t, after.Sold, 1)
	assert.Equal(t, int64(1), after.Sold[0].PostID)
	assert.Equal(t, runAt, after.Sold[0].SoldDate)
	assert.Equal(t, 48.0, after.Sold[0].SellingTimeHours)
	assert.Equal(t, 1, stats.MovedToSold)
	assertPartition(t, after)

	assert.Len(t, before.Active, 2, "input must not change")
}

func TestMerge_AppendsNewAndBadgeSold(t *testing.T) {
	before := Tables{Active: []models.Listing{listing(1, "Toyota Camry")}}

	after, stats := Merge(before, Delta{
		NewRecords: []models.Listing{listing(5, "Lexus RX 350, white")},
		BadgeSold:  []models.Listing{listing(6, "Kia K5")},
		RunAt:      runAt,
	})

	assert.Equal(t, 1, stats.AddedActive)
	assert.Equal(t, 1, stats.AddedSold)
	assert.Zero(t, stats.SignalOverlap)
	require.Len(t, after.Active, 2)
	assert.Equal(t, "Lexus", after.Active[1].Brand)
	assert.Equal(t, "RX 350", after.Active[1].Model)
	require.Len(t, after.Sold, 1)
	assert.Equal(t, int64(6), after.Sold[0].PostID)
	assertPartition(t, after)
}

func TestMerge_SoldGrowsMonotonically(t *testing.T) {
	tables := Tables{Active: []models.Listing{listing(1, "A a"), listing(2, "B b"), listing(3, "C c")}}

	previousSold := map[int64]models.SoldListing{}
	for _, gone := range []int64{1, 2, 3} {
		next, _ := Merge(tables, Delta{SoldIDs: map[int64]struct{}{gone: {}}, RunAt: runAt.Add(time.Duration(gone) * time.Hour)})
		for id, row := range previousSold {
			found := false
			for _, s := range next.Sold {
				if s.PostID == id {
					found = true
					assert.Equal(t, row.SoldDate, s.SoldDate, "sold row %d changed", id)
				}
			}
			assert.True(t, found, "sold row %d disappeared", id)
		}
		for _, s := range next.Sold {
			previousSold[s.PostID] = s
		}
		assert.GreaterOrEqual(t, len(next.Sold), len(tables.Sold))
		tables = next
	}
	assert.Len(t, tables.Sold, 3)
	assert.Empty(t, tables.Active)
}

func TestMerge_IdempotentForSameDelta(t *testing.T) {
	before := Tables{Active: []models.Listing{listing(1, "A a"), listing(2, "B b")}}
	delta := Delta{
		SoldIDs:    map[int64]struct{}{1: {}},
		NewRecords: []models.Listing{listing(3, "C c")},
		BadgeSold:  []models.Listing{listing(4, "D d")},
		RunAt:      runAt,
	}

	once, _ := Merge(before, delta)
	twice, stats := Merge(once, delta)

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, stats.SkippedArchived)
	assert.Equal(t, 1, stats.ReplacedActive)
}

func TestMerge_ArchivedIDsNeverReturnToActive(t *testing.T) {
	before := Tables{Sold: []models.SoldListing{{Listing: listing(9, "Opel Astra"), SoldDate: runAt}}}

	after, stats := Merge(before, Delta{NewRecords: []models.Listing{listing(9, "Opel Astra")}, RunAt: runAt})

	assert.Empty(t, after.Active)
	assert.Len(t, after.Sold, 1)
	assert.Equal(t, 1, stats.SkippedArchived)
}

func TestMerge_FlagsBothSignals(t *testing.T) {
	before := Tables{Active: []models.Listing{listing(1, "A a")}}

	after, stats := Merge(before, Delta{
		SoldIDs:   map[int64]struct{}{1: {}},
		BadgeSold: []models.Listing{listing(1, "A a")},
		RunAt:     runAt,
	})

	assert.Equal(t, 1, stats.SignalOverlap)
	assert.Len(t, after.Sold, 1)
	assertPartition(t, after)
}

func TestDeriveFields_RenormalizesLegacyVolumes(t *testing.T) {
	legacy := listing(1, "Toyota Prius")
	legacy.EngineVolume = models.EngineVolume{Raw: "Электрический"}
	broken := listing(2, "Tesla Model 3")
	broken.EngineVolume = models.EngineVolume{Raw: "неизвестно"}

	tables := Tables{Active: []models.Listing{legacy, broken}}
	defects := DeriveFields(&tables)

	assert.Equal(t, 1, defects)
	assert.Equal(t, models.Liters(0), tables.Active[0].EngineVolume)
	assert.False(t, tables.Active[1].EngineVolume.Valid)
	assert.Equal(t, "неизвестно", tables.Active[1].EngineVolume.Raw)
	assert.Equal(t, "Model 3", tables.Active[1].Model)
}

func TestDropDuplicates(t *testing.T) {
	a := listing(1, "A a")
	b := listing(2, "B b")
	changed := a
	changed.ViewCount = 99

	out := DropDuplicates(Tables{Active: []models.Listing{a, b, a, changed}})
	assert.Len(t, out.Active, 3)
}

func TestTables_IDSets(t *testing.T) {
	tables := Tables{
		Active: []models.Listing{listing(1, "A a")},
		Sold:   []models.SoldListing{{Listing: listing(2, "B b")}},
	}
	assert.ElementsMatch(t, []int64{1}, ids(tables.ActiveIDs()))
	assert.ElementsMatch(t, []int64{2}, ids(tables.SoldIDs()))
}
