package resolver

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Compact counter notation: an optional decimal number followed by an
// optional magnitude suffix in Latin or Cyrillic abbreviation.
var counterRe = regexp.MustCompile(`(?i)^([0-9]+(?:[.,][0-9]+)*)\s*(k|m|b|тыс|млн|млрд)?\.?$`)

var suffixMultipliers = map[string]float64{
	"k":    1e3,
	"m":    1e6,
	"b":    1e9,
	"тыс":  1e3,
	"млн":  1e6,
	"млрд": 1e9,
}

// ParseCounter converts a human-formatted follower-style counter ("1.2k",
// "1,2 тыс.", "3,456") into an integer. Unparseable input yields nil,
// never zero.
func ParseCounter(raw string) *int64 {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ToLower(s)
	if s == "" {
		return nil
	}

	m := counterRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	number, suffix := m[1], m[2]

	if suffix == "" {
		// Bare numbers may carry thousands separators.
		digits := strings.NewReplacer(",", "", ".", "", " ", "").Replace(number)
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil
		}
		return &v
	}

	// With a suffix the separator is a decimal mark in either locale.
	f, err := strconv.ParseFloat(strings.ReplaceAll(number, ",", "."), 64)
	if err != nil {
		return nil
	}
	v := int64(math.Round(f * suffixMultipliers[suffix]))
	return &v
}
