package search

import (
	"strings"
	"unicode/utf8"

	"github.com/sahilm/fuzzy"
)

const (
	// noMatch is the score of a field that shares nothing with the query.
	noMatch = 1.0

	// subsequenceScore is assigned when the query runes appear in order
	// within a compact span of the field, e.g. "sqlinj" in "sql injection".
	subsequenceScore = 0.35

	// minSubsequenceRunes keeps very short queries from matching
	// everything as a scattered subsequence.
	minSubsequenceRunes = 3
)

// scoreValue rates how well the folded query q matches the folded value v.
// 0 is a perfect match and 1 means no match. Position within v never
// affects the result and neither does the length of v.
func scoreValue(q, v string) float64 {
	if v == "" || q == "" {
		return noMatch
	}
	if strings.Contains(v, q) {
		return 0
	}
	best := editScore([]rune(q), v)
	if best > subsequenceScore && subsequence(q, v) {
		best = subsequenceScore
	}
	return best
}

// editScore is the fewest edits that turn q into some substring of v,
// normalized by the rune length of q. The substring may start and end
// anywhere in v at no cost, so word boundaries play no part.
func editScore(q []rune, v string) float64 {
	m := len(q)
	prev := make([]int, m+1)
	cur := make([]int, m+1)
	for i := range prev {
		prev[i] = i
	}
	best := m
	for _, c := range v {
		cur[0] = 0
		for i := 1; i <= m; i++ {
			d := prev[i-1]
			if q[i-1] != c {
				d++
			}
			cur[i] = min(d, prev[i]+1, cur[i-1]+1)
		}
		best = min(best, cur[m])
		if best == 0 {
			break
		}
		prev, cur = cur, prev
	}
	return float64(best) / float64(m)
}

func subsequence(q, v string) bool {
	if utf8.RuneCountInString(q) < minSubsequenceRunes {
		return false
	}
	matches := fuzzy.Find(q, []string{v})
	if len(matches) == 0 {
		return false
	}
	idx := matches[0].MatchedIndexes
	if len(idx) == 0 {
		return false
	}
	span := idx[len(idx)-1] - idx[0] + 1
	return span <= 2*len(q)
}
