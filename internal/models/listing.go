package models

import (
	"fmt"
	"strings"
	"time"
)

// Listing is one parsed car advertisement.
type Listing struct {
	PostID         int64        `csv:"post_id" gorm:"column:post_id;primaryKey;autoIncrement:false" json:"post_id"`
	Name           string       `csv:"name" gorm:"type:varchar(255);not null" json:"name"`
	Brand          string       `csv:"brand" gorm:"type:varchar(100);index" json:"brand"`
	Model          string       `csv:"model" gorm:"type:varchar(150);index" json:"model"`
	URL            string       `csv:"url" gorm:"type:varchar(500)" json:"url"`
	AuthorName     string       `csv:"author_name" gorm:"type:varchar(255)" json:"author_name"`
	AuthorID       string       `csv:"author_id" gorm:"type:varchar(64)" json:"author_id"`
	WhatsApp       string       `csv:"whatsapp" gorm:"type:varchar(32)" json:"whatsapp,omitempty"`
	DatePublished  time.Time    `csv:"date_published" gorm:"type:datetime;index" json:"date_published"`
	Description    string       `csv:"description" gorm:"type:text" json:"description"`
	Price          int          `csv:"price" gorm:"type:int;index" json:"price"`
	City           string       `csv:"city" gorm:"type:varchar(100);index" json:"city"`
	BodyType       string       `csv:"body_type" gorm:"type:varchar(64)" json:"body_type"`
	YearBuilt      int          `csv:"year_built" gorm:"type:int;index" json:"year_built"`
	Color          string       `csv:"color" gorm:"type:varchar(64)" json:"color"`
	Drivetrain     string       `csv:"drivetrain" gorm:"type:varchar(64)" json:"drivetrain"`
	EngineVolume   EngineVolume `csv:"engine_volume" gorm:"type:decimal(6,2)" json:"engine_volume"`
	Condition      string       `csv:"condition" gorm:"type:varchar(64)" json:"condition"`
	FuelType       string       `csv:"fuel_type" gorm:"type:varchar(64)" json:"fuel_type"`
	CustomsCleared string       `csv:"customs_cleared" gorm:"type:varchar(64)" json:"customs_cleared"`
	Transmission   string       `csv:"transmission" gorm:"type:varchar(64)" json:"transmission"`
	ViewCount      int          `csv:"view_count" gorm:"type:int" json:"view_count"`
}

// TableName specifies the table name
func (Listing) TableName() string {
	return "active_listings"
}

// Fingerprint identifies a row by all of its fields.
func (l Listing) Fingerprint() string {
	return strings.Join([]string{
		fmt.Sprint(l.PostID), l.Name, l.Brand, l.Model, l.URL, l.AuthorName, l.AuthorID,
		l.WhatsApp, l.DatePublished.UTC().Format(time.RFC3339Nano), l.Description,
		fmt.Sprint(l.Price), l.City, l.BodyType, fmt.Sprint(l.YearBuilt), l.Color,
		l.Drivetrain, l.EngineVolume.String(), fmt.Sprint(l.EngineVolume.Valid),
		l.Condition, l.FuelType, l.CustomsCleared, l.Transmission, fmt.Sprint(l.ViewCount),
	}, "\x1f")
}

// SoldListing is a listing that left the active set.
type SoldListing struct {
	Listing          `gorm:"embedded"`
	SoldDate         time.Time `csv:"sold_date" gorm:"type:datetime;index" json:"sold_date"`
	SellingTimeHours float64   `csv:"selling_time_hours" gorm:"type:decimal(10,2)" json:"selling_time_hours"`
}

func (SoldListing) TableName() string {
	return "sold_listings"
}

// Fingerprint identifies a row by all of its fields.
func (s SoldListing) Fingerprint() string {
	return strings.Join([]string{
		s.Listing.Fingerprint(),
		s.SoldDate.UTC().Format(time.RFC3339Nano),
		fmt.Sprint(s.SellingTimeHours),
	}, "\x1f")
}

// ListingLink is an index entry for a single advertisement.
type ListingLink struct {
	URL    string `csv:"url" json:"url"`
	PostID int64  `csv:"post_id" json:"post_id"`
}
