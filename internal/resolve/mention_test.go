package resolve

import (
	"testing"

	"horse.fit/convene/internal/normalize"
	extractschema "horse.fit/convene/schema"
)

func ptr[T any](v T) *T { return &v }

func TestMentionsFromPayloadNormalizesAndFilters(t *testing.T) {
	t.Parallel()

	payload := &extractschema.Payload{
		Speakers: []extractschema.Speaker{
			{Name: "Dr. John Smith", Title: ptr("CTO"), Confidence: ptr(0.9)},
			{Name: "Jane Low", Confidence: ptr(0.3)}, // below the floor
			{Name: "  ", Confidence: ptr(0.9)},       // normalizes to nothing
		},
		Companies: []extractschema.Company{
			{Name: "Acme Inc.", Domain: ptr("https://www.acme.example/about"), Confidence: ptr(0.8)},
		},
		Topics: []extractschema.Topic{
			{Name: "Machine Learning"},
		},
	}

	mentions := MentionsFromPayload(payload, 0.7)
	if len(mentions) != 3 {
		t.Fatalf("expected 3 mentions, got %d: %+v", len(mentions), mentions)
	}

	speaker := mentions[0]
	if speaker.Kind != normalize.KindSpeaker || speaker.NormalizedName != "john smith" {
		t.Fatalf("honorific must strip: %+v", speaker)
	}
	if speaker.Title == nil || *speaker.Title != "CTO" {
		t.Fatalf("speaker title must carry through: %+v", speaker)
	}

	company := mentions[1]
	if company.NormalizedName != "acme" {
		t.Fatalf("legal suffix must strip: %q", company.NormalizedName)
	}
	if company.Domain != "acme.example" {
		t.Fatalf("domain must canonicalize: %q", company.Domain)
	}

	topic := mentions[2]
	if topic.Kind != normalize.KindTopic || topic.NormalizedName != "machine learning" {
		t.Fatalf("wrong topic mention: %+v", topic)
	}
	if topic.Confidence != 1 {
		t.Fatalf("unstated confidence counts as certain, got %v", topic.Confidence)
	}
}

func TestMentionsFromPayloadCollapsesDuplicateKeys(t *testing.T) {
	t.Parallel()

	payload := &extractschema.Payload{
		Companies: []extractschema.Company{
			{Name: "Acme Inc", Confidence: ptr(0.8)},
			{Name: "Acme Incorporated", Domain: ptr("acme.example"), Confidence: ptr(0.95)},
		},
	}

	mentions := MentionsFromPayload(payload, 0.7)
	if len(mentions) != 1 {
		t.Fatalf("same canonical key must collapse, got %d mentions", len(mentions))
	}

	merged := mentions[0]
	if merged.DisplayName != "Acme Incorporated" {
		t.Fatalf("higher-confidence display name must win: %q", merged.DisplayName)
	}
	if merged.Domain != "acme.example" {
		t.Fatalf("attributes must fold in: %q", merged.Domain)
	}
	if merged.Confidence != 0.95 {
		t.Fatalf("confidence keeps the stronger mention, got %v", merged.Confidence)
	}
}

func TestMentionsFromPayloadNilPayload(t *testing.T) {
	t.Parallel()

	if got := MentionsFromPayload(nil, 0.7); got != nil {
		t.Fatalf("nil payload yields no mentions, got %+v", got)
	}
}
