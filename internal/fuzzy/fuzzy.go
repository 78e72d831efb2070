// Package fuzzy decides whether a transcript contains a phrase under approximate matching.
//
// The score is a partial ratio: the similarity (0-100) between the shorter string and
// the best-aligned window of the longer one, computed with a difflib SequenceMatcher.
// The automatic junk heuristic is off: it drops every frequent character from strings of
// 200 or more runes, which makes a phrase unfindable in any transcript of realistic length.
package fuzzy

import (
	"math"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the minimum partial ratio for a phrase to count as found.
const DefaultThreshold = 80

// PartialRatio scores how well the shorter of s1 and s2 appears inside the longer one.
// Identical strings score 100, and an empty string against a non-empty one scores 0.
func PartialRatio(s1, s2 string) int {
	if s1 == s2 {
		return 100
	}
	if s1 == "" || s2 == "" {
		return 0
	}

	shorter, longer := runes(s1), runes(s2)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	blocks := newMatcher(shorter, longer).GetMatchingBlocks()
	best := 0.0
	for _, block := range blocks {
		start := block.B - block.A
		if start < 0 {
			start = 0
		}
		end := start + len(shorter)
		if end > len(longer) {
			end = len(longer)
		}

		r := newMatcher(shorter, longer[start:end]).Ratio()
		if r > 0.995 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return int(math.RoundToEven(100 * best))
}

// Matches reports whether any phrase scores at least threshold against text.
// Comparison is case-insensitive. An empty phrase set never matches.
func Matches(text string, phrases []string, threshold int) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range phrases {
		if PartialRatio(strings.ToLower(phrase), lowered) >= threshold {
			return true
		}
	}
	return false
}

func newMatcher(a, b []string) *difflib.SequenceMatcher {
	return difflib.NewMatcherWithJunk(a, b, false, nil)
}

// runes splits s into single-rune elements so that SequenceMatcher compares characters.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
