package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)

func listing(id int64, name string, price int) models.Listing {
	return models.Listing{
		PostID:        id,
		Name:          name,
		URL:           "https://somon.tj/adv/1_x/",
		AuthorID:      "author-1",
		DatePublished: time.Date(2024, 3, 8, 9, 0, 0, 0, time.UTC),
		Price:         price,
		City:          "Душанбе",
		FuelType:      "Бензин",
		YearBuilt:     2015,
		EngineVolume:  models.Liters(2),
		ViewCount:     10,
	}
}

func tables() dataset.Tables {
	sold := models.SoldListing{
		Listing:          listing(3, "Kia K5", 90000),
		SoldDate:         day,
		SellingTimeHours: 48,
	}
	return dataset.Tables{
		Active: []models.Listing{
			listing(1, "Toyota Camry", 100000),
			listing(1, "Toyota Camry", 100000),
			listing(2, "Toyota Prius", 50000),
		},
		Sold: []models.SoldListing{sold},
	}
}

func TestExport_WritesDatedPairAndDedupes(t *testing.T) {
	svc := NewService(t.TempDir())

	info, err := svc.Export(day, tables())
	require.NoError(t, err)

	assert.Equal(t, "2024-03-10", info.DateKey())
	assert.Equal(t, filepath.Join(svc.Dir(), "active_2024-03-10.csv"), info.ActivePath)
	assert.Equal(t, filepath.Join(svc.Dir(), "sold_2024-03-10.csv"), info.SoldPath)
	assert.Equal(t, 2, info.ActiveCount)
	assert.Equal(t, 1, info.SoldCount)

	snap, err := svc.Load(day)
	require.NoError(t, err)
	require.Len(t, snap.Active, 2)
	assert.Equal(t, "Toyota", snap.Active[0].Brand)
	assert.Equal(t, "Camry", snap.Active[0].Model)
}

func TestExport_SameDayOverwrites(t *testing.T) {
	svc := NewService(t.TempDir())

	_, err := svc.Export(day, tables())
	require.NoError(t, err)

	smaller := dataset.Tables{Active: []models.Listing{listing(9, "Lada Niva", 30000)}}
	_, err = svc.Export(day.Add(time.Hour), smaller)
	require.NoError(t, err)

	snap, err := svc.Load(day)
	require.NoError(t, err)
	require.Len(t, snap.Active, 1)
	assert.Equal(t, int64(9), snap.Active[0].PostID)
	assert.Empty(t, snap.Sold)
}

func TestLoadLatest_FallsBackWithinLookback(t *testing.T) {
	svc := NewService(t.TempDir())
	_, err := svc.Export(day.AddDate(0, 0, -2), tables())
	require.NoError(t, err)

	snap, err := svc.LoadLatest(day, 7)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-08", snap.Info.DateKey())
	assert.Len(t, snap.Active, 2)
}

func TestLoadLatest_NothingInWindow(t *testing.T) {
	svc := NewService(t.TempDir())
	_, err := svc.Export(day.AddDate(0, 0, -10), tables())
	require.NoError(t, err)

	_, err = svc.LoadLatest(day, 7)
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestLoadLatest_IgnoresIncompletePair(t *testing.T) {
	svc := NewService(t.TempDir())
	_, err := svc.Export(day.AddDate(0, 0, -1), tables())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(svc.Dir(), "active_2024-03-10.csv"), []byte("post_id\n"), 0644))

	snap, err := svc.LoadLatest(day, 7)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", snap.Info.DateKey())
}

func TestList_NewestFirst(t *testing.T) {
	svc := NewService(t.TempDir())
	for _, offset := range []int{-3, 0, -1} {
		_, err := svc.Export(day.AddDate(0, 0, offset), tables())
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(svc.Dir(), "notes.txt"), []byte("x"), 0644))

	infos, err := svc.List()
	require.NoError(t, err)
	require.Len(t, infos, 3)
	assert.Equal(t, "2024-03-10", infos[0].DateKey())
	assert.Equal(t, "2024-03-09", infos[1].DateKey())
	assert.Equal(t, "2024-03-07", infos[2].DateKey())
}

func TestList_MissingDir(t *testing.T) {
	svc := NewService(filepath.Join(t.TempDir(), "absent"))
	infos, err := svc.List()
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestSummarize(t *testing.T) {
	svc := NewService(t.TempDir())
	_, err := svc.Export(day, tables())
	require.NoError(t, err)
	snap, err := svc.Load(day)
	require.NoError(t, err)

	stats := Summarize(snap, models.ListingFilter{})
	assert.Equal(t, 2, stats.ActiveCount)
	assert.Equal(t, 1, stats.SoldCount)
	assert.Equal(t, 75000, stats.AveragePrice)
	assert.Equal(t, 1, stats.Brands)
	assert.Equal(t, 2, stats.Models)
	assert.Equal(t, 48.0, stats.AvgSellingTimeHours)
	require.Len(t, stats.TopBrands, 1)
	assert.Equal(t, Count{Key: "Toyota", Count: 2}, stats.TopBrands[0])
	assert.Equal(t, Count{Key: "Toyota", Count: 20}, stats.TopBrandsByViews[0])
	assert.Equal(t, Count{Key: "Бензин", Count: 2, Percent: 100}, stats.FuelTypes[0])
	assert.Equal(t, Count{Key: "2024-03-08", Count: 2}, stats.PublicationsPerDay[0])
	assert.Equal(t, Count{Key: "K5", Count: 1}, stats.TopSoldModels[0])
}

func TestSummarize_Filtered(t *testing.T) {
	snap := &Snapshot{
		Info:   models.SnapshotInfo{Date: day},
		Active: tables().Active,
	}
	for i := range snap.Active {
		snap.Active[i].Brand = "Toyota"
	}
	snap.Active[2].Model = "Prius"

	maxPrice := 60000
	stats := Summarize(snap, models.ListingFilter{MaxPrice: &maxPrice})
	assert.Equal(t, 1, stats.ActiveCount)
	assert.Equal(t, 50000, stats.AveragePrice)

	byYear := AveragePriceByYear(snap, models.ListingFilter{Models: []string{"Prius"}})
	assert.Equal(t, []Count{{Key: "2015", Count: 50000}}, byYear)
}
