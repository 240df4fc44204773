package pipeline

import (
	"math"
	"testing"

	extractschema "horse.fit/convene/schema"
)

func ptr[T any](v T) *T { return &v }

func TestQualityScoreWeights(t *testing.T) {
	t.Parallel()

	full := &extractschema.Payload{
		Title:       ptr("DevOps Summit"),
		Description: ptr("Two days of talks"),
		Date:        ptr("2026-09-12"),
		Location:    ptr("Berlin"),
		Speakers:    []extractschema.Speaker{{Name: "Ada"}},
		Companies:   []extractschema.Company{{Name: "Acme"}},
		Topics:      []extractschema.Topic{{Name: "CI/CD"}},
	}
	if got := QualityScore(full); got != 100 {
		t.Fatalf("full payload scores 100, got %d", got)
	}

	tests := []struct {
		name    string
		payload *extractschema.Payload
		want    int
	}{
		{"nil payload", nil, 0},
		{"empty payload", &extractschema.Payload{}, 0},
		{"title only", &extractschema.Payload{Title: ptr("Summit")}, 25},
		{"blank title ignored", &extractschema.Payload{Title: ptr("   ")}, 0},
		{"date and location", &extractschema.Payload{Date: ptr("2026-01-01"), Location: ptr("Oslo")}, 30},
		{"entities only", &extractschema.Payload{
			Speakers:  []extractschema.Speaker{{Name: "Ada"}},
			Companies: []extractschema.Company{{Name: "Acme"}},
			Topics:    []extractschema.Topic{{Name: "Go"}},
		}, 30},
	}
	for _, tt := range tests {
		if got := QualityScore(tt.payload); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestExtractionConfidenceAveragesEntities(t *testing.T) {
	t.Parallel()

	payload := &extractschema.Payload{
		Speakers:  []extractschema.Speaker{{Name: "Ada", Confidence: ptr(0.8)}},
		Companies: []extractschema.Company{{Name: "Acme", Confidence: ptr(0.6)}},
		Topics:    []extractschema.Topic{{Name: "Go"}}, // unstated counts as 1.0
	}

	got := ExtractionConfidence(payload)
	if got == nil {
		t.Fatalf("expected a confidence value")
	}
	if math.Abs(*got-0.8) > 1e-9 {
		t.Fatalf("expected mean 0.8, got %v", *got)
	}
}

func TestExtractionConfidenceNilWithoutEntities(t *testing.T) {
	t.Parallel()

	if got := ExtractionConfidence(&extractschema.Payload{Title: ptr("Summit")}); got != nil {
		t.Fatalf("no entities means no confidence, got %v", *got)
	}
	if got := ExtractionConfidence(nil); got != nil {
		t.Fatalf("nil payload means no confidence")
	}
}
