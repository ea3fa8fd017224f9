// Package normalize converts localized catalog text (Russian units, decimal
// commas, free-form durations) into plain numbers.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	numberRe = regexp.MustCompile(`[-+]?\d+(?:[.,]\d+)?`)

	// Go's \b is ASCII-only, so the trailing boundary is spelled out to work
	// with Cyrillic unit names.
	massRe  = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(кг|гр|г|мл|л)(?:[^\p{L}\p{N}_]|$)`)
	pieceRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])шт(?:[^\p{L}\p{N}_]|$)`)
)

// unitToGrams maps a mass or volume unit to its gram multiplier. Liquids are
// treated as water density.
var unitToGrams = map[string]float64{
	"кг": 1000,
	"л":  1000,
	"г":  1,
	"гр": 1,
	"мл": 1,
}

type timeUnit struct {
	stem string
	days float64
}

// timeToDays is scanned in order; the first stem found in the text wins.
var timeToDays = []timeUnit{
	{"час", 1.0 / 24.0},
	{"сут", 1},
	{"дн", 1},
	{"недел", 7},
	{"мес", 30},
	{"месяц", 30},
	{"год", 365},
}

// CleanSpace collapses every run of Unicode whitespace (non-breaking spaces
// included) into a single space and trims the result.
func CleanSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Number returns the first signed decimal in s. Both ',' and '.' are accepted
// as the decimal separator. It returns nil when s holds no number.
func Number(s string) *float64 {
	if s == "" {
		return nil
	}
	m := numberRe.FindString(plainSpace(s))
	if m == "" {
		return nil
	}
	return parse(m)
}

// Grams converts a mass or volume label such as "0,25 кг" or "500 мл" into
// grams. Items sold by the piece ("2 шт") have no meaningful mass and yield
// nil. Anything else falls back to the first number in the text.
func Grams(s string) *float64 {
	if s == "" {
		return nil
	}
	norm := strings.ReplaceAll(strings.ToLower(plainSpace(s)), ",", ".")

	if m := massRe.FindStringSubmatch(norm); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			mult, ok := unitToGrams[m[2]]
			if !ok {
				mult = 1
			}
			return ptr(v * mult)
		}
	}

	if pieceRe.MatchString(norm) {
		return nil
	}

	return Number(norm)
}

// ShelfLifeDays converts a shelf-life phrase ("5 суток", "2 недели",
// "3 часа") into days. A number with no recognised unit is returned as is.
func ShelfLifeDays(s string) *float64 {
	if s == "" {
		return nil
	}
	low := strings.ToLower(s)
	v := Number(low)
	if v == nil {
		return nil
	}
	for _, u := range timeToDays {
		if strings.Contains(low, u.stem) {
			return ptr(*v * u.days)
		}
	}
	return v
}

// TemperatureRange returns the first two signed numbers in a storage
// condition phrase. With a single number only min is set.
func TemperatureRange(s string) (min, max *float64) {
	if s == "" {
		return nil, nil
	}
	found := numberRe.FindAllString(s, -1)
	var vals []float64
	for _, f := range found {
		if v := parse(f); v != nil {
			vals = append(vals, *v)
		}
	}
	switch {
	case len(vals) >= 2:
		return ptr(vals[0]), ptr(vals[1])
	case len(vals) == 1:
		return ptr(vals[0]), nil
	default:
		return nil, nil
	}
}

// plainSpace turns every Unicode space (NBSP, thin space) into an ASCII
// space, since RE2's \s only matches ASCII whitespace.
func plainSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, s)
}

func parse(raw string) *float64 {
	v, err := strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil {
		return nil
	}
	return &v
}

func ptr(v float64) *float64 {
	return &v
}
