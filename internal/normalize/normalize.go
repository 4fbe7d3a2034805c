// Package normalize turns raw listing page text into typed values.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrEngineVolume marks an engine volume string that matches none of the known forms.
var ErrEngineVolume = errors.New("unrecognized engine volume")

// ErrPrice marks a price cell without leading digits.
var ErrPrice = errors.New("price has no digits")

const electricMarker = "электрический"

// EngineVolume converts the displayed engine size to liters.
//
// Accepted forms: a bare number ("1.6", "0"), the electric marker
// ("Электрический") which maps to 0, and "<number> <unit>" ("2.0 л").
func EngineVolume(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty value", ErrEngineVolume)
	}
	if v, err := parseDecimal(s); err == nil {
		return v, nil
	}
	if strings.EqualFold(s, electricMarker) || strings.EqualFold(s, "electric") {
		return 0, nil
	}
	fields := strings.Fields(s)
	if len(fields) >= 2 {
		if v, err := parseDecimal(fields[0]); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrEngineVolume, raw)
}

func parseDecimal(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("out of range: %s", s)
	}
	return v, nil
}

// Price keeps the leading digits of a price cell after removing separators.
// "150 000 c." yields 150000.
func Price(raw string) (int, error) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f', '\t', '\n':
			return -1
		}
		return r
	}, raw)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrPrice, raw)
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrPrice, raw)
	}
	return n, nil
}

var firstNumber = regexp.MustCompile(`\d+`)

// FirstInt returns the first run of digits in s.
func FirstInt(s string) (int, bool) {
	m := firstNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Name trims a listing title and cuts it at the first comma.
func Name(raw string) string {
	s := strings.ReplaceAll(raw, "\n", " ")
	if i := strings.Index(s, ","); i >= 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}

// SplitName returns the brand (first token) and model (the rest) of a title.
func SplitName(raw string) (brand, model string) {
	fields := strings.Fields(Name(raw))
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// Text collapses whitespace, including newlines, to single spaces.
func Text(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

const (
	publishedPrefix = "Опубликовано:"
	todayMarker     = "Сегодня"
	yesterdayMarker = "Вчера"
)

var publishedLayouts = []string{
	"02.01.2006 15:04",
	"02.01.2006",
}

// PublishedAt parses the publication line of a detail page.
// Relative day words are resolved against now, in now's location.
func PublishedAt(raw string, now time.Time) (time.Time, error) {
	s := strings.TrimSpace(strings.Replace(raw, publishedPrefix, "", 1))
	switch {
	case strings.Contains(s, todayMarker):
		s = strings.Replace(s, todayMarker, now.Format("02.01.2006"), 1)
	case strings.Contains(s, yesterdayMarker):
		s = strings.Replace(s, yesterdayMarker, now.AddDate(0, 0, -1).Format("02.01.2006"), 1)
	}
	s = Text(strings.ReplaceAll(s, ",", " "))

	for _, layout := range publishedLayouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized publication date %q", raw)
}

// SellingTimeHours is the time between publication and sale, in hours,
// rounded to two decimals. Unknown publication dates and clock skew yield 0.
func SellingTimeHours(published, sold time.Time) float64 {
	if published.IsZero() || sold.Before(published) {
		return 0
	}
	h := sold.Sub(published).Hours()
	return math.Round(h*100) / 100
}
