package model

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// CoerceFloat converts loosely typed numeric inputs (CRM feeds deliver
// numbers as strings, ints, or floats) to a float64. A nil or unparseable
// value returns (0, false); callers decide whether 0 is acceptable.
func CoerceFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// NormalizeName lowercases and collapses whitespace for cache keys and
// case-insensitive matching.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// TitleName renders an RM display name in title case.
func TitleName(name string) string {
	return titleCaser.String(strings.Join(strings.Fields(name), " "))
}

// NameVariants returns progressively truncated forms of an RM name, used by
/// the AUM lookup fallback chain: first two tokens, all but the last token,
// and the first token alone. Duplicates and the original are omitted.
func NameVariants(name string) []string {
	tokens := strings.Fields(name)
	if len(tokens) < 2 {
		return nil
	}
	seen := map[string]bool{strings.Join(tokens, " "): true}
	var variants []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			variants = append(variants, v)
		}
	}
	add(strings.Join(tokens[:2], " "))
	add(strings.Join(tokens[:len(tokens)-1], " "))
	add(tokens[0])
	return variants
}
