// Package similarity computes bounded match confidence between canonical keys.
package similarity

import "horse.fit/convene/internal/normalize"

const (
	// winklerPrefixLength bounds the common-prefix bonus window.
	winklerPrefixLength = 4
	winklerScaling      = 0.1
)

// Scorer computes entity-type aware match confidence in [0,1].
type Scorer struct {
	// DomainOverride forces company pairs with an identical known domain to
	// score 1.0 regardless of name distance.
	DomainOverride bool
}

// Pair carries the comparable facets of one candidate entity.
type Pair struct {
	Key    string
	Domain string
}

func NewScorer(domainOverride bool) *Scorer {
	return &Scorer{DomainOverride: domainOverride}
}

// Score returns the match confidence for two candidates of the same kind.
// It is symmetric and reflexive for non-empty keys; malformed or empty keys
// score 0.0 rather than failing.
func (s *Scorer) Score(kind normalize.Kind, a, b Pair) float64 {
	if a.Key == "" || b.Key == "" {
		return 0
	}

	if kind == normalize.KindCompany && s != nil && s.DomainOverride {
		if a.Domain != "" && a.Domain == b.Domain {
			return 1
		}
	}

	return JaroWinkler(a.Key, b.Key)
}

// JaroWinkler returns the Jaro-Winkler similarity of two strings with the
// standard length-4 common-prefix bonus. Empty inputs score 0.
func JaroWinkler(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	jaro := jaroSimilarity([]rune(a), []rune(b))
	if jaro == 0 {
		return 0
	}

	prefix := commonPrefixLength(a, b, winklerPrefixLength)
	return jaro + float64(prefix)*winklerScaling*(1-jaro)
}

func jaroSimilarity(a, b []rune) float64 {
	lenA, lenB := len(a), len(b)
	window := max(lenA, lenB)/2 - 1
	if window < 0 {
		window = 0
	}

	matchedA := make([]bool, lenA)
	matchedB := make([]bool, lenB)

	matches := 0
	for i := range a {
		low := max(0, i-window)
		high := min(lenB-1, i+window)
		for j := low; j <= high; j++ {
			if matchedB[j] || a[i] != b[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	j := 0
	for i := range a {
		if !matchedA[i] {
			continue
		}
		for !matchedB[j] {
			j++
		}
		if a[i] != b[j] {
			transpositions++
		}
		j++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(lenA) + m/float64(lenB) + (m-t)/m) / 3
}

func commonPrefixLength(a, b string, limit int) int {
	runesA := []rune(a)
	runesB := []rune(b)
	n := min(limit, min(len(runesA), len(runesB)))
	count := 0
	for i := 0; i < n; i++ {
		if runesA[i] != runesB[i] {
			break
		}
		count++
	}
	return count
}
