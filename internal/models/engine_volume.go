package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"

	"car-market-tracker/internal/normalize"
)

// EngineVolume is an engine size in liters. A value that could not be
// normalized keeps its original text in Raw and has Valid == false.
type EngineVolume struct {
	Liters float64
	Raw    string
	Valid  bool
}

// Liters builds a normalized EngineVolume.
func Liters(v float64) EngineVolume {
	return EngineVolume{Liters: v, Valid: true}
}

// ParseEngineVolume normalizes raw and never fails; check Valid.
func ParseEngineVolume(raw string) EngineVolume {
	v, err := normalize.EngineVolume(raw)
	if err != nil {
		return EngineVolume{Raw: raw}
	}
	return Liters(v)
}

// Renormalize re-applies normalization to an unnormalized value.
func (v EngineVolume) Renormalize() EngineVolume {
	if v.Valid {
		return v
	}
	return ParseEngineVolume(v.Raw)
}

func (v EngineVolume) String() string {
	if !v.Valid {
		return v.Raw
	}
	return strconv.FormatFloat(v.Liters, 'f', -1, 64)
}

// MarshalText is used by the CSV tables.
func (v EngineVolume) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText normalizes legacy text cells on load.
func (v *EngineVolume) UnmarshalText(data []byte) error {
	*v = ParseEngineVolume(string(data))
	return nil
}

func (v EngineVolume) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return json.Marshal(nil)
	}
	return json.Marshal(v.Liters)
}

func (v *EngineVolume) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = EngineVolume{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = Liters(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("engine volume: %w", err)
	}
	*v = ParseEngineVolume(s)
	return nil
}

// Value stores unnormalized volumes as NULL.
func (v EngineVolume) Value() (driver.Value, error) {
	if !v.Valid {
		return nil, nil
	}
	return v.Liters, nil
}

func (v *EngineVolume) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*v = EngineVolume{}
	case float64:
		*v = Liters(s)
	case []byte:
		*v = ParseEngineVolume(string(s))
	case string:
		*v = ParseEngineVolume(s)
	default:
		return fmt.Errorf("unsupported engine volume type %T", src)
	}
	return nil
}
