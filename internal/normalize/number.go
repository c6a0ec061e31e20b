package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// numberStart finds where the first number of a free-text value begins
var numberStart = regexp.MustCompile(`[-+]?\d`)

// fraction matches a trailing "1/2" or "½" after a whole number, as in "4 1/2" or "3½"
var fraction = regexp.MustCompile(`^[ \x{00A0}\x{202F}]?(?:(\d)/(\d)\b|([½¼¾]))`)

var unicodeFractions = map[string]decimal.Decimal{
	"½": decimal.NewFromFloat(0.5),
	"¼": decimal.NewFromFloat(0.25),
	"¾": decimal.NewFromFloat(0.75),
}

// ParseNumber handles flexible number parsing from LLM output.
// Supports: numbers, json.Number, strings with currency symbols, unit suffixes,
// space/comma thousands separators, comma decimals and half rooms
// (e.g., "247 200$", "353,2 m²", "$1,234.50", "4 1/2").
// A space only groups thousands when exactly three digits follow, so separate
// numbers ("247 200\n2023") are never joined.
func ParseNumber(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case json.Number:
		d, err := decimal.NewFromString(string(val))
		if err != nil {
			return 0, false
		}
		f, _ := d.Float64()
		return finite(f)
	case string:
		return parseNumberString(val)
	default:
		return 0, false
	}
}

// ParseInt parses like ParseNumber and truncates to a whole number ("4 1/2" pieces
// counts 4). Values outside the int range are rejected.
func ParseInt(v interface{}) (int, bool) {
	n, ok := ParseNumber(v)
	if !ok {
		return 0, false
	}
	n = math.Trunc(n)
	if n >= float64(math.MaxInt) || n < float64(math.MinInt) {
		return 0, false
	}
	return int(n), true
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseNumberString(s string) (float64, bool) {
	loc := numberStart.FindStringIndex(s)
	if loc == nil {
		return 0, false
	}
	token, rest := scanNumber(s[loc[0]:])

	// "2023/05" or "1/2" on its own is a date or ratio, not an amount
	if len(rest) > 1 && rest[0] == '/' && rest[1] >= '0' && rest[1] <= '9' {
		return 0, false
	}

	cleaned := strings.Map(func(r rune) rune {
		if isGroupSpace(r) {
			return -1
		}
		return r
	}, token)
	cleaned = strings.TrimPrefix(cleaned, "+")
	cleaned = resolveSeparators(cleaned)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}
	if !strings.ContainsAny(token, ".,") {
		if frac, ok := parseFraction(rest); ok {
			if d.IsNegative() {
				frac = frac.Neg()
			}
			d = d.Add(frac)
		}
	}
	f, _ := d.Float64()
	return finite(f)
}

func isGroupSpace(r rune) bool {
	switch r {
	case ' ', '\u00a0', '\u202f', '\'':
		return true
	}
	return false
}

func skipDigits(rs []rune, i int) int {
	for i < len(rs) && rs[i] >= '0' && rs[i] <= '9' {
		i++
	}
	return i
}

// scanNumber reads one number from the front of s: digit runs joined by '.' or ','
// and by space-like separators followed by exactly three digits. It returns the
// token and the unread remainder.
func scanNumber(s string) (token, rest string) {
	rs := []rune(s)
	i := 0
	if rs[i] == '-' || rs[i] == '+' {
		i++
	}
	i = skipDigits(rs, i)

scan:
	for i < len(rs) {
		switch r := rs[i]; {
		case r == '.' || r == ',':
			j := skipDigits(rs, i+1)
			if j == i+1 {
				break scan
			}
			i = j
		case isGroupSpace(r):
			j := skipDigits(rs, i+1)
			if j-(i+1) != 3 {
				break scan
			}
			i = j
		default:
			break scan
		}
	}
	return string(rs[:i]), string(rs[i:])
}

// parseFraction reads a proper fraction at the start of rest
func parseFraction(rest string) (decimal.Decimal, bool) {
	m := fraction.FindStringSubmatch(rest)
	if m == nil {
		return decimal.Zero, false
	}
	if m[3] != "" {
		return unicodeFractions[m[3]], true
	}
	num, den := int64(m[1][0]-'0'), int64(m[2][0]-'0')
	if den == 0 || num >= den {
		return decimal.Zero, false
	}
	return decimal.NewFromInt(num).Div(decimal.NewFromInt(den)), true
}

// resolveSeparators rewrites a number so '.' is the only (decimal) separator.
// When both ',' and '.' appear the last one is the decimal mark. A lone ',' followed by
// exactly three digits is read as a thousands separator ("247,200"), otherwise as a
// decimal comma ("353,2").
func resolveSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 || len(s)-lastComma-1 == 3 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// IsBareNumber reports whether v is already a plain numeric value.
func IsBareNumber(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int64:
		return true
	}
	return false
}
