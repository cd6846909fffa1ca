package consensus

import "strings"

// maxTokens bounds the quadratic LCS table for pathological inputs.
const maxTokens = 2000

// similarity scores two fix texts in [0,1]. It is symmetric, returns 1.0
// for identical strings, and normalizes whitespace and case before
// comparing, so formatting differences don't split clusters.
func similarity(a, b string) float64 {
	ta := tokenize(a)
	tb := tokenize(b)

	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	lcs := lcsLength(ta, tb)
	return 2.0 * float64(lcs) / float64(len(ta)+len(tb))
}

// tokenize lowercases and splits on whitespace.
func tokenize(s string) []string {
	tokens := strings.Fields(strings.ToLower(s))
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	return tokens
}

// lcsLength computes the longest common subsequence length over token
// slices with a two-row table.
func lcsLength(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
