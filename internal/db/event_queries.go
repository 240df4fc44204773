package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventRecord is the pipeline's working view of one event row.
type EventRecord struct {
	EventID              int64
	EventUUID            string
	SourceURL            string
	RawDocument          string
	Fingerprint          []byte
	Language             string
	ScrapedAt            time.Time
	ExtractedPayload     json.RawMessage
	ExtractionConfidence *float64
	QualityScore         *int
	ProcessedAt          *time.Time
}

// InsertEvent stores a newly acquired raw document and returns its identifiers.
func (p *Pool) InsertEvent(ctx context.Context, sourceURL, rawDocument string, scrapedAt time.Time) (int64, string, error) {
	const q = `
INSERT INTO convene.events (source_url, raw_document, scraped_at, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING event_id, event_uuid::text
`

	var eventID int64
	var eventUUID string
	if err := p.QueryRow(ctx, q, sourceURL, rawDocument, scrapedAt.UTC()).Scan(&eventID, &eventUUID); err != nil {
		return 0, "", fmt.Errorf("insert event: %w", err)
	}
	return eventID, eventUUID, nil
}

// GetEventByUUID loads one event row by its public identifier.
func (p *Pool) GetEventByUUID(ctx context.Context, eventUUID string) (EventRecord, error) {
	const q = `
SELECT event_id, event_uuid::text, source_url, raw_document, fingerprint, language,
       scraped_at, extracted_payload, extraction_confidence, quality_score, processed_at
FROM convene.events
WHERE event_uuid = $1::uuid
`

	return scanEventRecord(p.QueryRow(ctx, q, eventUUID))
}

// GetEventByID loads one event row by its internal identifier.
func (p *Pool) GetEventByID(ctx context.Context, eventID int64) (EventRecord, error) {
	const q = `
SELECT event_id, event_uuid::text, source_url, raw_document, fingerprint, language,
       scraped_at, extracted_payload, extraction_confidence, quality_score, processed_at
FROM convene.events
WHERE event_id = $1
`

	return scanEventRecord(p.QueryRow(ctx, q, eventID))
}

// UpdateEventDocumentMeta records the preprocessing outcome for an event.
func (p *Pool) UpdateEventDocumentMeta(ctx context.Context, eventID int64, fingerprint []byte, language string) error {
	const q = `
UPDATE convene.events
SET fingerprint = $2,
    language = $3,
    updated_at = now()
WHERE event_id = $1
`

	tag, err := p.Exec(ctx, q, eventID, fingerprint, language)
	if err != nil {
		return fmt.Errorf("update event document meta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

// PersistEventOutcome stores the extraction result on the event row inside
// the caller's transaction, marking the event processed.
func PersistEventOutcome(ctx context.Context, q Querier, eventID int64, payload json.RawMessage, confidence *float64, qualityScore int) error {
	const query = `
UPDATE convene.events
SET extracted_payload = $2,
    extraction_confidence = $3,
    quality_score = $4,
    processed_at = now(),
    updated_at = now()
WHERE event_id = $1
`

	tag, err := q.Exec(ctx, query, eventID, payload, confidence, qualityScore)
	if err != nil {
		return fmt.Errorf("persist event %d outcome: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoRows
	}
	return nil
}

func scanEventRecord(row *Row) (EventRecord, error) {
	var rec EventRecord
	err := row.Scan(
		&rec.EventID,
		&rec.EventUUID,
		&rec.SourceURL,
		&rec.RawDocument,
		&rec.Fingerprint,
		&rec.Language,
		&rec.ScrapedAt,
		&rec.ExtractedPayload,
		&rec.ExtractionConfidence,
		&rec.QualityScore,
		&rec.ProcessedAt,
	)
	if err != nil {
		return EventRecord{}, err
	}
	return rec, nil
}
