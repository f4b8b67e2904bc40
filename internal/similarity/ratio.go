// Package similarity scores how closely two strings align.
package similarity

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Ratio returns 2*M/T, where M is the number of runes in the matching blocks
// of an optimal alignment of a and b, and T is the total rune count of both.
// Identical strings, including two empty strings, score 1.0.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1.0
	}
	return 2 * float64(Matching(a, b)) / float64(total)
}

// Matching returns the number of runes a and b share in an optimal alignment.
func Matching(a, b string) int {
	dmp := diffmatchpatch.New()
	// A zero timeout disables the half-match shortcut, keeping the diff minimal
	// and therefore symmetric in its matched length.
	dmp.DiffTimeout = 0

	matched := 0
	for _, d := range dmp.DiffMain(a, b, false) {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += utf8.RuneCountInString(d.Text)
		}
	}
	return matched
}
