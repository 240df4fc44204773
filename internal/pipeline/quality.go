// Package pipeline drives processing jobs through extraction, resolution,
// scoring, and persistence.
package pipeline

import (
	"strings"

	extractschema "horse.fit/convene/schema"
)

// Quality weights per filled facet. They sum to 100: a fully populated
// extraction scores the maximum.
const (
	weightTitle       = 25
	weightDescription = 15
	weightDate        = 20
	weightLocation    = 10
	weightSpeakers    = 10
	weightCompanies   = 10
	weightTopics      = 10
)

// QualityScore rates how complete one extraction is, 0 to 100.
func QualityScore(payload *extractschema.Payload) int {
	if payload == nil {
		return 0
	}

	score := 0
	if filled(payload.Title) {
		score += weightTitle
	}
	if filled(payload.Description) {
		score += weightDescription
	}
	if filled(payload.Date) {
		score += weightDate
	}
	if filled(payload.Location) {
		score += weightLocation
	}
	if len(payload.Speakers) > 0 {
		score += weightSpeakers
	}
	if len(payload.Companies) > 0 {
		score += weightCompanies
	}
	if len(payload.Topics) > 0 {
		score += weightTopics
	}
	return score
}

// ExtractionConfidence averages the entity confidences across the payload.
// Entities without a stated confidence count as certain. Returns nil when the
// payload names no entities at all.
func ExtractionConfidence(payload *extractschema.Payload) *float64 {
	if payload == nil {
		return nil
	}

	sum := 0.0
	count := 0
	add := func(confidence *float64) {
		if confidence == nil {
			sum++
		} else {
			sum += *confidence
		}
		count++
	}

	for _, speaker := range payload.Speakers {
		add(speaker.Confidence)
	}
	for _, company := range payload.Companies {
		add(company.Confidence)
	}
	for _, topic := range payload.Topics {
		add(topic.Confidence)
	}

	if count == 0 {
		return nil
	}
	mean := sum / float64(count)
	return &mean
}

func filled(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}
