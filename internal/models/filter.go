package models

// ListingFilter selects listings by categorical values and numeric ranges.
// An empty value list matches everything for that field.
type ListingFilter struct {
	Brands         []string `form:"brand" json:"brands,omitempty"`
	Models         []string `form:"model" json:"models,omitempty"`
	Cities         []string `form:"city" json:"cities,omitempty"`
	BodyTypes      []string `form:"body_type" json:"body_types,omitempty"`
	FuelTypes      []string `form:"fuel_type" json:"fuel_types,omitempty"`
	Drivetrains    []string `form:"drivetrain" json:"drivetrains,omitempty"`
	Transmissions  []string `form:"transmission" json:"transmissions,omitempty"`
	Colors         []string `form:"color" json:"colors,omitempty"`
	CustomsCleared []string `form:"customs_cleared" json:"customs_cleared,omitempty"`
	Conditions     []string `form:"condition" json:"conditions,omitempty"`
	MinPrice       *int     `form:"min_price" json:"min_price,omitempty"`
	MaxPrice       *int     `form:"max_price" json:"max_price,omitempty"`
	MinYear        *int     `form:"min_year" json:"min_year,omitempty"`
	MaxYear        *int     `form:"max_year" json:"max_year,omitempty"`
}

// Match reports whether l passes every set criterion.
func (f ListingFilter) Match(l Listing) bool {
	return in(f.Brands, l.Brand) &&
		in(f.Models, l.Model) &&
		in(f.Cities, l.City) &&
		in(f.BodyTypes, l.BodyType) &&
		in(f.FuelTypes, l.FuelType) &&
		in(f.Drivetrains, l.Drivetrain) &&
		in(f.Transmissions, l.Transmission) &&
		in(f.Colors, l.Color) &&
		in(f.CustomsCleared, l.CustomsCleared) &&
		in(f.Conditions, l.Condition) &&
		(f.MinPrice == nil || l.Price >= *f.MinPrice) &&
		(f.MaxPrice == nil || l.Price <= *f.MaxPrice) &&
		(f.MinYear == nil || l.YearBuilt >= *f.MinYear) &&
		(f.MaxYear == nil || l.YearBuilt <= *f.MaxYear)
}

// Fields returns the categorical criteria keyed by document attribute name.
func (f ListingFilter) Fields() map[string][]string {
	return map[string][]string{
		"brand":           f.Brands,
		"model":           f.Models,
		"city":            f.Cities,
		"body_type":       f.BodyTypes,
		"fuel_type":       f.FuelTypes,
		"drivetrain":      f.Drivetrains,
		"transmission":    f.Transmissions,
		"color":           f.Colors,
		"customs_cleared": f.CustomsCleared,
		"condition":       f.Conditions,
	}
}

func in(values []string, v string) bool {
	if len(values) == 0 {
		return true
	}
	for _, want := range values {
		if want == v {
			return true
		}
	}
	return false
}
