// Package sanitize holds the stateless field cleaners behind the ingestion
// field diet. Anything a cleaner cannot reduce to its coarse, privacy-safe
// form is dropped by the caller.
package sanitize

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount parses a connector money value into a non-negative float.
// Currency symbols, grouping commas and surrounding whitespace are
// tolerated; non-finite and negative values are rejected.
func Amount(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	s = strings.TrimLeft(s, "$€£ ")
	s = strings.ReplaceAll(s, ",", "")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("unparsable amount %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite amount %q", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative amount %q", raw)
	}
	return v, nil
}

// City reduces a city value to a lower-cased alphanumeric slug.
// "St. John's" becomes "stjohns". Empty input stays empty.
func City(raw string) string {
	return alnumLower(raw, 0)
}

// PostalPrefix keeps only the first three alphanumerics of a postal code,
// lower-cased. Full postal codes never survive normalization.
func PostalPrefix(raw string) string {
	return alnumLower(raw, 3)
}

// Status lower-cases and slugs a raw status value for alias lookup,
// mapping separators to underscores ("In Progress" -> "in_progress").
func Status(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ', r == '-', r == '_', r == '.':
			if b.Len() > 0 && !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// JobType canonicalizes a raw job-type value; empty maps to "unknown".
func JobType(raw string) string {
	s := Status(raw)
	if s == "" {
		return "unknown"
	}
	return s
}

func alnumLower(raw string, limit int) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if limit > 0 && b.Len() >= limit {
				break
			}
		}
	}
	return b.String()
}
