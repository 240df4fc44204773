// Package normalize turns raw entity names into canonical comparison keys.
package normalize

import (
	"errors"
	"strings"
	"unicode"
)

// Kind selects the rule table applied while normalizing a name.
type Kind string

const (
	KindSpeaker Kind = "speaker"
	KindCompany Kind = "company"
	KindTopic   Kind = "topic"
)

// ErrEmptyKey is returned when a name normalizes to nothing. Callers treat it
// as an input error, never as a silent pass-through.
var ErrEmptyKey = errors.New("name normalizes to empty key")

var honorificPrefixes = map[string]struct{}{
	"dr":        {},
	"mr":        {},
	"mrs":       {},
	"ms":        {},
	"mx":        {},
	"prof":      {},
	"professor": {},
	"sir":       {},
	"dame":      {},
	"rev":       {},
	"hon":       {},
}

var legalSuffixes = map[string]struct{}{
	"inc":          {},
	"incorporated": {},
	"llc":          {},
	"llp":          {},
	"ltd":          {},
	"limited":      {},
	"corp":         {},
	"co":           {},
	"company":      {},
	"plc":          {},
	"gmbh":         {},
	"ag":           {},
	"sa":           {},
	"bv":           {},
	"group":        {},
	"holdings":     {},
	"ventures":     {},
}

var companySynonyms = map[string]string{
	"technologies": "tech",
	"technology":   "tech",
	"corporation":  "corp",
	"laboratories": "labs",
	"laboratory":   "lab",
}

// Key canonicalizes a raw name for comparison and uniqueness. The result is
// deterministic and idempotent: Key(Key(x)) == Key(x).
func Key(raw string, kind Kind) (string, error) {
	tokens := tokenize(raw)
	if len(tokens) == 0 {
		return "", ErrEmptyKey
	}

	switch kind {
	case KindSpeaker:
		tokens = stripHonorifics(tokens)
	case KindCompany:
		tokens = applySynonyms(tokens)
		tokens = stripLegalSuffixes(tokens)
	}

	if len(tokens) == 0 {
		return "", ErrEmptyKey
	}
	return strings.Join(tokens, " "), nil
}

// BlockingKey returns the cheap bucket key used to limit pairwise comparison:
// the first n runes of the canonical key.
func BlockingKey(key string, n int) string {
	if n <= 0 {
		return key
	}
	runes := []rune(key)
	if len(runes) <= n {
		return key
	}
	return string(runes[:n])
}

// Domain canonicalizes a company domain for exact-identity comparison.
func Domain(raw string) string {
	domain := strings.ToLower(strings.TrimSpace(raw))
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	if slash := strings.IndexByte(domain, '/'); slash >= 0 {
		domain = domain[:slash]
	}
	return domain
}

func tokenize(raw string) []string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if lowered == "" {
		return nil
	}

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-' || r == '\'':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	return strings.Fields(b.String())
}

func stripHonorifics(tokens []string) []string {
	for len(tokens) > 1 {
		if _, ok := honorificPrefixes[tokens[0]]; !ok {
			break
		}
		tokens = tokens[1:]
	}
	if len(tokens) == 1 {
		if _, ok := honorificPrefixes[tokens[0]]; ok {
			return nil
		}
	}
	return tokens
}

func stripLegalSuffixes(tokens []string) []string {
	for len(tokens) > 1 {
		if _, ok := legalSuffixes[tokens[len(tokens)-1]]; !ok {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 1 {
		if _, ok := legalSuffixes[tokens[0]]; ok {
			return nil
		}
	}
	return tokens
}

func applySynonyms(tokens []string) []string {
	mapped := make([]string, len(tokens))
	for i, token := range tokens {
		if replacement, ok := companySynonyms[token]; ok {
			mapped[i] = replacement
			continue
		}
		mapped[i] = token
	}
	return mapped
}
