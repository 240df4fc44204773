package db

import (
	"context"
	"fmt"
	"time"
)

// ReviewItemRecord is the review workflow's view of one pending merge decision.
type ReviewItemRecord struct {
	ReviewItemID   int64      `json:"-"`
	ReviewItemUUID string     `json:"review_item_uuid"`
	EntityKind     string     `json:"entity_kind"`
	LeftEntityID   int64      `json:"left_entity_id"`
	RightEntityID  int64      `json:"right_entity_id"`
	Similarity     float64    `json:"similarity"`
	State          string     `json:"state"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// ListReviewItems lists review items filtered by state, newest first.
func (p *Pool) ListReviewItems(ctx context.Context, state string, limit int) ([]ReviewItemRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT review_item_id, review_item_uuid::text, entity_kind, left_entity_id,
       right_entity_id, similarity, state::text, created_at, resolved_at
FROM convene.review_items
WHERE ($1 = '' OR state = $1::convene.review_state)
ORDER BY created_at DESC, review_item_id DESC
LIMIT $2
`

	rows, err := p.Query(ctx, q, state, limit)
	if err != nil {
		return nil, fmt.Errorf("query review items: %w", err)
	}
	defer rows.Close()

	items := make([]ReviewItemRecord, 0, limit)
	for rows.Next() {
		var item ReviewItemRecord
		if err := rows.Scan(
			&item.ReviewItemID,
			&item.ReviewItemUUID,
			&item.EntityKind,
			&item.LeftEntityID,
			&item.RightEntityID,
			&item.Similarity,
			&item.State,
			&item.CreatedAt,
			&item.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review item rows: %w", err)
	}

	return items, nil
}

// GetReviewItemByUUID loads one review item by its public identifier.
func (p *Pool) GetReviewItemByUUID(ctx context.Context, reviewUUID string) (ReviewItemRecord, error) {
	const q = `
SELECT review_item_id, review_item_uuid::text, entity_kind, left_entity_id,
       right_entity_id, similarity, state::text, created_at, resolved_at
FROM convene.review_items
WHERE review_item_uuid = $1::uuid
`

	var item ReviewItemRecord
	err := p.QueryRow(ctx, q, reviewUUID).Scan(
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
	if err != nil {
		return ReviewItemRecord{}, err
	}
	return item, nil
}
