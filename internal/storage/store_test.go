package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"car-market-tracker/internal/dataset"
	"car-market-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTables() dataset.Tables {
	published := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	active := models.Listing{
		PostID:        1,
		Name:          "Toyota Camry",
		Brand:         "Toyota",
		Model:         "Camry",
		URL:           "https://somon.tj/adv/1_toyota-camry/",
		DatePublished: published,
		Description:   "Отличное состояние, \"без ДТП\"",
		Price:         150000,
		City:          "Душанбе",
		YearBuilt:     2015,
		EngineVolume:  models.Liters(2.5),
		ViewCount:     10,
	}
	sold := models.SoldListing{
		Listing:          active,
		SoldDate:         published.Add(48 * time.Hour),
		SellingTimeHours: 48,
	}
	sold.PostID = 2
	sold.EngineVolume = models.EngineVolume{Raw: "Гибрид"}
	return dataset.Tables{Active: []models.Listing{active}, Sold: []models.SoldListing{sold}}
}

func TestTableStore_LoadMissingIsEmpty(t *testing.T) {
	store := NewTableStore(filepath.Join(t.TempDir(), "data"))

	tables, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tables.Active)
	assert.Empty(t, tables.Sold)
}

func TestTableStore_SaveAndLoad(t *testing.T) {
	store := NewTableStore(filepath.Join(t.TempDir(), "data"))
	want := sampleTables()

	require.NoError(t, store.Save(want))
	got, err := store.Load()
	require.NoError(t, err)

	require.Len(t, got.Active, 1)
	require.Len(t, got.Sold, 1)
	assert.Equal(t, want.Active[0].Fingerprint(), got.Active[0].Fingerprint())
	assert.Equal(t, want.Sold[0].Fingerprint(), got.Sold[0].Fingerprint())
	assert.False(t, got.Sold[0].EngineVolume.Valid)
	assert.Equal(t, "Гибрид", got.Sold[0].EngineVolume.Raw)
}

func TestTableStore_EmptyTablesKeepHeader(t *testing.T) {
	dir := t.TempDir()
	store := NewTableStore(dir)

	require.NoError(t, store.Save(dataset.Tables{}))
	data, err := os.ReadFile(filepath.Join(dir, "active.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "post_id,name,brand,model")

	tables, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, tables.Active)
}

func TestTableStore_Links(t *testing.T) {
	store := NewTableStore(t.TempDir())
	links := []models.ListingLink{
		{URL: "https://somon.tj/adv/1_a/", PostID: 1},
		{URL: "https://somon.tj/adv/2_b/", PostID: 2},
	}

	require.NoError(t, store.SaveLinks(links))
	require.NoError(t, store.SaveLinks(links[:1]))

	got, err := store.LoadLinks()
	require.NoError(t, err)
	assert.Equal(t, links[:1], got)
}

func TestReadTable_LegacyEngineVolumeText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "active.csv")
	content := "post_id,name,engine_volume,date_published\n7,Kia K5,2.0 л,2024-01-01T10:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rows, err := ReadTable[models.Listing](path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.Liters(2.0), rows[0].EngineVolume)
}
