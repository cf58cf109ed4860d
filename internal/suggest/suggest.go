// Package suggest provides fuzzy matching for note lookups using
// Levenshtein distance.
package suggest

import "strings"

// levenshtein calculates the edit distance between two strings
func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	matrix := make([][]int, len(a)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(b)+1)
		matrix[i][0] = i
	}
	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)
		}
	}

	return matrix[len(a)][len(b)]
}

// Titles finds titles similar to input, best first, at most three. Matching
// is case-insensitive, and a title containing the input as a substring
// always qualifies.
func Titles(input string, titles []string) []string {
	input = strings.ToLower(input)

	type scored struct {
		title string
		score int
	}
	var candidates []scored

	for _, title := range titles {
		normalized := strings.ToLower(title)

		if strings.Contains(normalized, input) {
			candidates = append(candidates, scored{title, 0})
			continue
		}

		dist := levenshtein(input, normalized)
		// Only suggest if reasonably close (within 3 edits or 50% of length)
		maxDist := max(3, len(input)/2)
		if dist <= maxDist {
			candidates = append(candidates, scored{title, dist})
		}
	}

	for i := 0; i < len(candidates)-1; i++ {
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].score < candidates[i].score {
				candidates[i], candidates[j] = candidates[j], candidates[i]
			}
		}
	}

	var result []string
	for i := 0; i < len(candidates) && i < 3; i++ {
		result = append(result, candidates[i].title)
	}
	return result
}
