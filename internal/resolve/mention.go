// Package resolve deduplicates extracted entity mentions against the
// canonical entity tables: score, cluster, then merge, queue for review, or
// keep separate.
package resolve

import (
	"strings"

	"horse.fit/convene/internal/normalize"
	extractschema "horse.fit/convene/schema"
)

// Mention is one extracted entity reference, canonicalized and ready for
// matching.
type Mention struct {
	Kind           normalize.Kind
	DisplayName    string
	NormalizedName string
	Domain         string
	Title          *string
	Affiliation    *string
	Industry       *string
	Category       *string
	Confidence     float64
}

// MentionsFromPayload canonicalizes every entity reference in an extraction
// payload. Mentions below the confidence floor and names that normalize to
// nothing are dropped; duplicate keys within the payload collapse into one
// mention keeping the stronger attributes.
func MentionsFromPayload(payload *extractschema.Payload, confidenceFloor float64) []Mention {
	if payload == nil {
		return nil
	}

	var mentions []Mention
	for _, speaker := range payload.Speakers {
		mention, ok := buildMention(normalize.KindSpeaker, speaker.Name, confidence(speaker.Confidence), confidenceFloor)
		if !ok {
			continue
		}
		mention.Title = cleanOptional(speaker.Title)
		mention.Affiliation = cleanOptional(speaker.Company)
		mentions = append(mentions, mention)
	}
	for _, company := range payload.Companies {
		mention, ok := buildMention(normalize.KindCompany, company.Name, confidence(company.Confidence), confidenceFloor)
		if !ok {
			continue
		}
		if domain := cleanOptional(company.Domain); domain != nil {
			mention.Domain = normalize.Domain(*domain)
		}
		mention.Industry = cleanOptional(company.Industry)
		mentions = append(mentions, mention)
	}
	for _, topic := range payload.Topics {
		mention, ok := buildMention(normalize.KindTopic, topic.Name, confidence(topic.Confidence), confidenceFloor)
		if !ok {
			continue
		}
		mention.Category = cleanOptional(topic.Category)
		mentions = append(mentions, mention)
	}

	return collapseDuplicates(mentions)
}

func buildMention(kind normalize.Kind, name string, conf, floor float64) (Mention, bool) {
	if conf < floor {
		return Mention{}, false
	}
	key, err := normalize.Key(name, kind)
	if err != nil {
		return Mention{}, false
	}
	return Mention{
		Kind:           kind,
		DisplayName:    strings.TrimSpace(name),
		NormalizedName: key,
		Confidence:     conf,
	}, true
}

// Unstated confidence counts as certain: the extractor omits the field when
// it has no doubt.
func confidence(value *float64) float64 {
	if value == nil {
		return 1
	}
	return *value
}

func cleanOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// collapseDuplicates folds mentions sharing a kind and normalized key,
// keeping insertion order of first appearance.
func collapseDuplicates(mentions []Mention) []Mention {
	type dedupeKey struct {
		kind normalize.Kind
		key  string
	}

	index := make(map[dedupeKey]int, len(mentions))
	collapsed := make([]Mention, 0, len(mentions))
	for _, mention := range mentions {
		k := dedupeKey{mention.Kind, mention.NormalizedName}
		at, seen := index[k]
		if !seen {
			index[k] = len(collapsed)
			collapsed = append(collapsed, mention)
			continue
		}
		collapsed[at] = foldMention(collapsed[at], mention)
	}
	return collapsed
}

// foldMention combines two mentions of the same entity: missing attributes
// fill in, conflicting ones resolve toward the higher-confidence mention.
func foldMention(a, b Mention) Mention {
	winner, loser := a, b
	if b.Confidence > a.Confidence {
		winner, loser = b, a
	}

	winner.Title = pickString(winner.Title, loser.Title)
	winner.Affiliation = pickString(winner.Affiliation, loser.Affiliation)
	winner.Industry = pickString(winner.Industry, loser.Industry)
	winner.Category = pickString(winner.Category, loser.Category)
	if winner.Domain == "" {
		winner.Domain = loser.Domain
	}
	return winner
}

func pickString(preferred, fallback *string) *string {
	if preferred != nil {
		return preferred
	}
	return fallback
}
