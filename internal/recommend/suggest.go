package recommend

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

// suggestThreshold filters out candidates too far from the requested name.
const suggestThreshold = 0.4

// Suggest returns up to max catalog names closest to the requested name,
// best first. It backs the "graph not found, did you mean" flow and plays no
// part in recommendation scoring.
func Suggest(name string, candidates []string, max int) []string {
	if name == "" || len(candidates) == 0 || max <= 0 {
		return nil
	}

	type scored struct {
		name  string
		score float64
	}

	needle := strings.ToLower(name)
	var matches []scored
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		score := nameSimilarity(needle, strings.ToLower(candidate))
		if score >= suggestThreshold {
			matches = append(matches, scored{name: candidate, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].name < matches[j].name
	})

	if len(matches) > max {
		matches = matches[:max]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}

// nameSimilarity scores two lowercased names in [0,1]. Substring containment
// outranks anything edit distance can produce.
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if strings.Contains(b, a) || strings.Contains(a, b) {
		return 0.9
	}

	dist := levenshtein.Distance(a, b, nil)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	score := 1.0 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}
