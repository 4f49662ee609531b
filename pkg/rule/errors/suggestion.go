package errors

import (
	"fmt"
	"strings"
)

var keywords = []string{"AND", "OR", "NOT"}

// SuggestKeyword suggests the logical operator closest to word, for typos
// such as ANDD or NTO. It returns "" when nothing is close.
func SuggestKeyword(word string) string {
	upper := strings.ToUpper(word)
	best, dist := closest(upper, keywords)
	if best != "" && dist > 0 && dist <= 2 && dist < len(upper) {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	return ""
}

// SuggestComparator suggests a comparator for an unknown operator token.
func SuggestComparator(token string) string {
	switch token {
	case "=":
		return "Did you mean '=='?"
	case "!", "<>":
		return "Did you mean '!='?"
	case "=>":
		return "Did you mean '>='?"
	case "=<":
		return "Did you mean '<='?"
	case "&", "&&":
		return "Use 'AND' to combine conditions"
	case "|", "||":
		return "Use 'OR' to combine conditions"
	}
	return "Valid comparators: >, <, >=, <=, ==, !="
}

// SuggestFieldName suggests the closest known field for an unknown one.
func SuggestFieldName(unknown string, validFields []string) string {
	if len(validFields) == 0 {
		return ""
	}

	best, dist := closest(unknown, validFields)
	if dist < 3 && dist < len(unknown) {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}

	if len(validFields) > 5 {
		return fmt.Sprintf("Available fields include: %s, ...", strings.Join(validFields[:5], ", "))
	}
	return fmt.Sprintf("Available fields: %s", strings.Join(validFields, ", "))
}

// SuggestRuleName suggests the closest defined rule for an unknown reference.
func SuggestRuleName(unknown string, defined []string) string {
	best, dist := closest(unknown, defined)
	if best != "" && dist < 4 {
		return fmt.Sprintf("Did you mean '%s'?", best)
	}
	return ""
}

func closest(word string, candidates []string) (string, int) {
	minDistance := 1000
	var bestMatch string
	for _, c := range candidates {
		if d := levenshteinDistance(word, c); d < minDistance {
			minDistance = d
			bestMatch = c
		}
	}
	return bestMatch, minDistance
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	// Rolling rows of the distance matrix
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
