package quality

// coerce.go provides the explicit parsers used by operators and type inference.
//
// Type inference tries, in order, and the first match wins:
//
//	boolean -> integer -> decimal -> date/time -> email -> absolute URL -> string
//
// Parsers accept the messy forms that show up in exported spreadsheets:
//   - Surrounding whitespace
//   - Thousands separators in decimals ("1,234.50")
//   - US, ISO and long-form dates, with or without a time part
//
// Booleans are strictly "true"/"false" (any case); "yes" or "1" are not booleans here
// because "1" must infer as an integer.

import (
	"math"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// decimalRegex matches plain or thousands-grouped decimals without exponent.
	decimalRegex = regexp.MustCompile(`^[+-]?(\d{1,3}(,\d{3})+(\.\d*)?|\d+(\.\d*)?|\.\d+)$`)

	emailRegex = regexp.MustCompile(`(?i)^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRegex = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are moved
// back one century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		time.RFC3339Nano, time.RFC3339,
		"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04",
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM", "1/2/2006 3:04 PM", "1/2/2006 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		time.RFC1123, time.RFC1123Z,
	}
)

// parseBool accepts "true" or "false" in any case.
func parseBool(s string) (bool, bool) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	}
	return false, false
}

// parseInt accepts a signed 32-bit integer.
func parseInt(s string) (int64, bool) {
	i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, false
	}
	return i, true
}

// parseDecimal parses s as an exact decimal.
func parseDecimal(s string) (*big.Rat, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !decimalRegex.MatchString(s) {
		return nil, false
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSuffix(s, ".")
	if unsigned := strings.TrimLeft(s, "+-"); strings.HasPrefix(unsigned, ".") {
		s = s[:len(s)-len(unsigned)] + "0" + unsigned
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, false
	}
	return r, true
}

// parseFloat parses s as a decimal and converts it to float64 for statistics.
func parseFloat(s string) (float64, bool) {
	r, ok := parseDecimal(s)
	if !ok {
		return 0, false
	}
	f, _ := r.Float64()
	if math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseTime parses s as a date or date-time.
// Supports multiple date formats and handles 2-digit years with pivot.
func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	// Try 4-digit year layouts first (unambiguous)
	for _, layout := range fourDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// valueTime returns v as a timestamp, parsing its string form when needed.
func valueTime(v Value) (time.Time, bool) {
	switch v.kind {
	case KindTime:
		return v.t, true
	case KindNull:
		return time.Time{}, false
	}
	return parseTime(v.String())
}

func isEmail(s string) bool {
	return emailRegex.MatchString(s)
}

func isPhoneNumber(s string) bool {
	return phoneRegex.MatchString(s)
}

// isAbsoluteURL reports whether s parses as an absolute URI: a scheme plus
// either an authority or an opaque part, with no embedded whitespace.
func isAbsoluteURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return false
	}
	return u.Host != "" || u.Opaque != "" || u.Path != ""
}

// InferType classifies a single sample value using the documented parse order.
// Null samples are strings.
func InferType(v Value) DataType {
	switch v.kind {
	case KindNull:
		return TypeString
	case KindTime:
		return TypeDateTime
	}

	s := v.String()
	if _, ok := parseBool(s); ok {
		return TypeBoolean
	}
	if _, ok := parseInt(s); ok {
		return TypeInteger
	}
	if _, ok := parseDecimal(s); ok {
		return TypeDecimal
	}
	if _, ok := parseTime(s); ok {
		return TypeDateTime
	}
	if isEmail(s) {
		return TypeEmail
	}
	if isAbsoluteURL(s) {
		return TypeURL
	}
	return TypeString
}
