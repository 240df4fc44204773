package db

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EntityRecord is the kind-agnostic view of one canonical entity row. The
// optional columns only apply to their kind: Title/Affiliation to speakers,
// Domain/Industry to companies, Category to topics.
type EntityRecord struct {
	EntityID       int64
	EntityUUID     string
	Kind           string
	DisplayName    string
	NormalizedName string
	Title          *string
	Affiliation    *string
	Domain         *string
	Industry       *string
	Category       *string
	Confidence     float64
	SupersededByID *int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const (
	EntityKindSpeaker = "speaker"
	EntityKindCompany = "company"
	EntityKindTopic   = "topic"
)

type entityTableSpec struct {
	table    string
	idColumn string
	uuidCol  string
	extraCol [2]string
}

var entityTables = map[string]entityTableSpec{
	EntityKindSpeaker: {"convene.speakers", "speaker_id", "speaker_uuid", [2]string{"title", "affiliation"}},
	EntityKindCompany: {"convene.companies", "company_id", "company_uuid", [2]string{"domain", "industry"}},
	EntityKindTopic:   {"convene.topics", "topic_id", "topic_uuid", [2]string{"category", ""}},
}

func entitySpec(kind string) (entityTableSpec, error) {
	spec, ok := entityTables[kind]
	if !ok {
		return entityTableSpec{}, fmt.Errorf("unknown entity kind %q", kind)
	}
	return spec, nil
}

func (e *EntityRecord) extraValues(kind string) (first, second *string) {
	switch kind {
	case EntityKindSpeaker:
		return e.Title, e.Affiliation
	case EntityKindCompany:
		return e.Domain, e.Industry
	default:
		return e.Category, nil
	}
}

func (e *EntityRecord) setExtraValues(kind string, first, second *string) {
	switch kind {
	case EntityKindSpeaker:
		e.Title, e.Affiliation = first, second
	case EntityKindCompany:
		e.Domain, e.Industry = first, second
	default:
		e.Category = first
	}
}

func secondColumn(spec entityTableSpec) string {
	if spec.extraCol[1] == "" {
		return "NULL::text"
	}
	return spec.extraCol[1]
}

// ListEntityCandidates returns live entities in the same blocking bucket:
// normalized names sharing the prefix, plus (for companies) an exact domain
// match regardless of name.
func ListEntityCandidates(ctx context.Context, q Querier, kind, prefix string, domain *string) ([]EntityRecord, error) {
	spec, err := entitySpec(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT %s, %s::text, display_name, normalized_name, %s, %s,
       confidence, superseded_by_id, created_at, updated_at
FROM %s
WHERE superseded_by_id IS NULL
  AND deleted_at IS NULL
  AND (normalized_name LIKE $1 || '%%' OR ($2::text IS NOT NULL AND %s = $2))
ORDER BY %s
`, spec.idColumn, spec.uuidCol, spec.extraCol[0], secondColumn(spec), spec.table, domainPredicateColumn(kind), spec.idColumn)

	rows, err := q.Query(ctx, query, prefix, domain)
	if err != nil {
		return nil, fmt.Errorf("query %s candidates: %w", kind, err)
	}
	defer rows.Close()

	var records []EntityRecord
	for rows.Next() {
		record, err := scanEntityRecord(rows, kind)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s candidates: %w", kind, err)
	}
	return records, nil
}

// Companies can match on domain even when names differ. Other kinds never
// match the domain arm, so compare against a column that cannot equal it.
func domainPredicateColumn(kind string) string {
	if kind == EntityKindCompany {
		return "domain"
	}
	return "NULL::text"
}

// GetLiveEntityByKey loads the single live entity holding a normalized name.
// Returns false when no live row owns the key.
func GetLiveEntityByKey(ctx context.Context, q Querier, kind, normalizedName string) (EntityRecord, bool, error) {
	spec, err := entitySpec(kind)
	if err != nil {
		return EntityRecord{}, false, err
	}

	query := fmt.Sprintf(`
SELECT %s, %s::text, display_name, normalized_name, %s, %s,
       confidence, superseded_by_id, created_at, updated_at
FROM %s
WHERE normalized_name = $1 AND superseded_by_id IS NULL AND deleted_at IS NULL
`, spec.idColumn, spec.uuidCol, spec.extraCol[0], secondColumn(spec), spec.table)

	record, err := scanEntityRecord(q.QueryRow(ctx, query, normalizedName), kind)
	if errors.Is(err, ErrNoRows) {
		return EntityRecord{}, false, nil
	}
	if err != nil {
		return EntityRecord{}, false, err
	}
	return record, true, nil
}

// GetEntityByID loads one entity row, live or superseded.
func GetEntityByID(ctx context.Context, q Querier, kind string, entityID int64) (EntityRecord, error) {
	spec, err := entitySpec(kind)
	if err != nil {
		return EntityRecord{}, err
	}

	query := fmt.Sprintf(`
SELECT %s, %s::text, display_name, normalized_name, %s, %s,
       confidence, superseded_by_id, created_at, updated_at
FROM %s
WHERE %s = $1
`, spec.idColumn, spec.uuidCol, spec.extraCol[0], secondColumn(spec), spec.table, spec.idColumn)

	row := q.QueryRow(ctx, query, entityID)
	return scanEntityRecord(row, kind)
}

// InsertEntity creates a live entity row. The partial unique index on
// normalized_name is the concurrency guard; losing the race returns false
// without aborting the enclosing transaction, and the caller resolves against
// the winner instead.
func InsertEntity(ctx context.Context, q Querier, record EntityRecord) (EntityRecord, bool, error) {
	spec, err := entitySpec(record.Kind)
	if err != nil {
		return EntityRecord{}, false, err
	}

	first, second := record.extraValues(record.Kind)

	const arbiter = `ON CONFLICT (normalized_name) WHERE superseded_by_id IS NULL AND deleted_at IS NULL DO NOTHING`

	var query string
	var args []any
	if spec.extraCol[1] != "" {
		query = fmt.Sprintf(`
INSERT INTO %s (display_name, normalized_name, %s, %s, confidence)
VALUES ($1, $2, $3, $4, $5)
%s
RETURNING %s, %s::text, created_at, updated_at
`, spec.table, spec.extraCol[0], spec.extraCol[1], arbiter, spec.idColumn, spec.uuidCol)
		args = []any{record.DisplayName, record.NormalizedName, first, second, record.Confidence}
	} else {
		query = fmt.Sprintf(`
INSERT INTO %s (display_name, normalized_name, %s, confidence)
VALUES ($1, $2, $3, $4)
%s
RETURNING %s, %s::text, created_at, updated_at
`, spec.table, spec.extraCol[0], arbiter, spec.idColumn, spec.uuidCol)
		args = []any{record.DisplayName, record.NormalizedName, first, record.Confidence}
	}

	err = q.QueryRow(ctx, query, args...).Scan(
		&record.EntityID,
		&record.EntityUUID,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, ErrNoRows) {
		return EntityRecord{}, false, nil
	}
	if err != nil {
		return EntityRecord{}, false, fmt.Errorf("insert %s: %w", record.Kind, err)
	}
	return record, true, nil
}

// UpdateEntityProfile overwrites the merged attributes of a surviving entity.
func UpdateEntityProfile(ctx context.Context, q Querier, record EntityRecord) error {
	spec, err := entitySpec(record.Kind)
	if err != nil {
		return err
	}

	first, second := record.extraValues(record.Kind)

	var query string
	var args []any
	if spec.extraCol[1] != "" {
		query = fmt.Sprintf(`
UPDATE %s
SET display_name = $2, %s = $3, %s = $4, confidence = $5, updated_at = now()
WHERE %s = $1
`, spec.table, spec.extraCol[0], spec.extraCol[1], spec.idColumn)
		args = []any{record.EntityID, record.DisplayName, first, second, record.Confidence}
	} else {
		query = fmt.Sprintf(`
UPDATE %s
SET display_name = $2, %s = $3, confidence = $4, updated_at = now()
WHERE %s = $1
`, spec.table, spec.extraCol[0], spec.idColumn)
		args = []any{record.EntityID, record.DisplayName, first, record.Confidence}
	}

	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s profile: %w", record.Kind, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update %s profile: entity %d not found", record.Kind, record.EntityID)
	}
	return nil
}

// SupersedeEntity marks the losing entity as merged into the winner. Only a
// live row can lose; a second merge of the same row is a no-op.
func SupersedeEntity(ctx context.Context, q Querier, kind string, loserID, winnerID int64) (bool, error) {
	spec, err := entitySpec(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET superseded_by_id = $2, updated_at = now()
WHERE %s = $1 AND superseded_by_id IS NULL AND deleted_at IS NULL
`, spec.table, spec.idColumn)

	tag, err := q.Exec(ctx, query, loserID, winnerID)
	if err != nil {
		return false, fmt.Errorf("supersede %s %d: %w", kind, loserID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// RepointEventLinks moves event associations from a superseded entity to its
// winner, keeping the stronger confidence when both rows already exist.
func RepointEventLinks(ctx context.Context, q Querier, kind string, fromID, toID int64) error {
	var insert, remove string
	switch kind {
	case EntityKindSpeaker:
		insert = `
INSERT INTO convene.event_speakers (event_id, speaker_id, role, confidence)
SELECT event_id, $2, role, confidence
FROM convene.event_speakers
WHERE speaker_id = $1
ON CONFLICT (event_id, speaker_id, role)
DO UPDATE SET confidence = GREATEST(convene.event_speakers.confidence, EXCLUDED.confidence)
`
		remove = `DELETE FROM convene.event_speakers WHERE speaker_id = $1`
	case EntityKindCompany:
		insert = `
INSERT INTO convene.event_companies (event_id, company_id, role, confidence)
SELECT event_id, $2, role, confidence
FROM convene.event_companies
WHERE company_id = $1
ON CONFLICT (event_id, company_id, role)
DO UPDATE SET confidence = GREATEST(convene.event_companies.confidence, EXCLUDED.confidence)
`
		remove = `DELETE FROM convene.event_companies WHERE company_id = $1`
	case EntityKindTopic:
		insert = `
INSERT INTO convene.event_topics (event_id, topic_id, relevance)
SELECT event_id, $2, relevance
FROM convene.event_topics
WHERE topic_id = $1
ON CONFLICT (event_id, topic_id)
DO UPDATE SET relevance = GREATEST(convene.event_topics.relevance, EXCLUDED.relevance)
`
		remove = `DELETE FROM convene.event_topics WHERE topic_id = $1`
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}

	if _, err := q.Exec(ctx, insert, fromID, toID); err != nil {
		return fmt.Errorf("repoint %s links: %w", kind, err)
	}
	if _, err := q.Exec(ctx, remove, fromID); err != nil {
		return fmt.Errorf("drop superseded %s links: %w", kind, err)
	}
	return nil
}

// LinkEventEntity associates an event with an entity. Re-linking an existing
// pair keeps the stronger confidence.
func LinkEventEntity(ctx context.Context, q Querier, kind string, eventID, entityID int64, role string, confidence float64) error {
	var query string
	var args []any
	switch kind {
	case EntityKindSpeaker:
		query = `
INSERT INTO convene.event_speakers (event_id, speaker_id, role, confidence)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id, speaker_id, role)
DO UPDATE SET confidence = GREATEST(convene.event_speakers.confidence, EXCLUDED.confidence)
`
		args = []any{eventID, entityID, role, confidence}
	case EntityKindCompany:
		query = `
INSERT INTO convene.event_companies (event_id, company_id, role, confidence)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id, company_id, role)
DO UPDATE SET confidence = GREATEST(convene.event_companies.confidence, EXCLUDED.confidence)
`
		args = []any{eventID, entityID, role, confidence}
	case EntityKindTopic:
		query = `
INSERT INTO convene.event_topics (event_id, topic_id, relevance)
VALUES ($1, $2, $3)
ON CONFLICT (event_id, topic_id)
DO UPDATE SET relevance = GREATEST(convene.event_topics.relevance, EXCLUDED.relevance)
`
		args = []any{eventID, entityID, confidence}
	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}

	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("link event %d to %s %d: %w", eventID, kind, entityID, err)
	}
	return nil
}

// InsertReviewItem queues a pending review for an unordered entity pair.
// Returns false when an open review for the pair already exists.
func InsertReviewItem(ctx context.Context, q Querier, kind string, leftID, rightID int64, similarity float64) (string, bool, error) {
	const query = `
INSERT INTO convene.review_items (entity_kind, left_entity_id, right_entity_id, similarity)
VALUES ($1, LEAST($2::bigint, $3::bigint), GREATEST($2::bigint, $3::bigint), $4)
ON CONFLICT DO NOTHING
RETURNING review_item_uuid::text
`

	var reviewUUID string
	err := q.QueryRow(ctx, query, kind, leftID, rightID, similarity).Scan(&reviewUUID)
	if errors.Is(err, ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("insert review item: %w", err)
	}
	return reviewUUID, true, nil
}

// ResolveReviewItem transitions a pending review to approved or rejected.
// Returns false when the review is missing or already resolved.
func ResolveReviewItem(ctx context.Context, q Querier, reviewUUID, state string) (ReviewItemRecord, bool, error) {
	const query = `
UPDATE convene.review_items
SET state = $2::convene.review_state, resolved_at = now()
WHERE review_item_uuid = $1::uuid AND state = 'pending'
RETURNING review_item_id, review_item_uuid::text, entity_kind, left_entity_id,
          right_entity_id, similarity, state::text, created_at, resolved_at
`

	var item ReviewItemRecord
	err := q.QueryRow(ctx, query, reviewUUID, state).Scan(
		&item.ReviewItemID,
		&item.ReviewItemUUID,
		&item.EntityKind,
		&item.LeftEntityID,
		&item.RightEntityID,
		&item.Similarity,
		&item.State,
		&item.CreatedAt,
		&item.ResolvedAt,
	)
	if errors.Is(err, ErrNoRows) {
		return ReviewItemRecord{}, false, nil
	}
	if err != nil {
		return ReviewItemRecord{}, false, fmt.Errorf("resolve review item %s: %w", reviewUUID, err)
	}
	return item, true, nil
}

// InsertResolutionEvent appends one decision to the resolution ledger.
func InsertResolutionEvent(ctx context.Context, q Querier, kind, disposition string, clusterSize int, confidence float64, canonicalID *int64) error {
	const query = `
INSERT INTO convene.resolution_events (entity_kind, disposition, cluster_size, confidence, canonical_entity_id)
VALUES ($1, $2::convene.disposition, $3, $4, $5)
`

	if _, err := q.Exec(ctx, query, kind, disposition, clusterSize, confidence, canonicalID); err != nil {
		return fmt.Errorf("insert resolution event: %w", err)
	}
	return nil
}

type entityScanner interface {
	Scan(dest ...any) error
}

func scanEntityRecord(scanner entityScanner, kind string) (EntityRecord, error) {
	var record EntityRecord
	var first, second *string

	err := scanner.Scan(
		&record.EntityID,
		&record.EntityUUID,
		&record.DisplayName,
		&record.NormalizedName,
		&first,
		&second,
		&record.Confidence,
		&record.SupersededByID,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return EntityRecord{}, fmt.Errorf("scan %s row: %w", kind, err)
	}

	record.Kind = kind
	record.setExtraValues(kind, first, second)
	return record, nil
}
