package assets

import (
	"sort"
	"strings"
)

// NaturalLess orders strings so that runs of digits compare by numeric value
// ("img2" < "img10"). Text runs compare case-insensitively, with the raw
// strings as the final tie break.
func NaturalLess(a, b string) bool {
	if c := naturalCompare(a, b); c != 0 {
		return c < 0
	}
	return a < b
}

// SortNatural sorts names in place using NaturalLess
func SortNatural(names []string) {
	sortStable(names, NaturalLess)
}

func sortStable(s []string, less func(a, b string) bool) {
	sort.SliceStable(s, func(i, j int) bool {
		return less(s[i], s[j])
	})
}

func naturalCompare(a, b string) int {
	for a != "" && b != "" {
		aChunk, aDigits := nextChunk(a)
		bChunk, bDigits := nextChunk(b)
		a, b = a[len(aChunk):], b[len(bChunk):]

		var c int
		switch {
		case aDigits && bDigits:
			c = compareNumeric(aChunk, bChunk)
		case aDigits != bDigits:
			// digits sort before letters, as in most file browsers
			if aDigits {
				return -1
			}
			return 1
		default:
			c = strings.Compare(strings.ToLower(aChunk), strings.ToLower(bChunk))
		}
		if c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

// nextChunk returns the leading run of digits or non-digits of s
func nextChunk(s string) (string, bool) {
	digits := isDigit(s[0])
	i := 1
	for i < len(s) && isDigit(s[i]) == digits {
		i++
	}
	return s[:i], digits
}

// compareNumeric compares digit strings of any length by value; with equal
// values fewer leading zeros sort first
func compareNumeric(a, b string) int {
	ta, tb := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
	if len(ta) != len(tb) {
		return len(ta) - len(tb)
	}
	if c := strings.Compare(ta, tb); c != 0 {
		return c
	}
	return len(a) - len(b)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
