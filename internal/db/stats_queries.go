package db

import (
	"context"
	"fmt"
	"time"
)

// Stats summarizes pipeline progress for the stats endpoint and CLI.
type Stats struct {
	Events          int64            `json:"events"`
	ProcessedEvents int64            `json:"processed_events"`
	Speakers        int64            `json:"speakers"`
	Companies       int64            `json:"companies"`
	Topics          int64            `json:"topics"`
	PendingReviews  int64            `json:"pending_reviews"`
	JobStates       map[string]int64 `json:"job_states"`
	Dispositions    map[string]int64 `json:"dispositions"`
	LastProcessedAt *time.Time       `json:"last_processed_at,omitempty"`
}

// QueryStats collects row counts across the persisted pipeline state.
func (p *Pool) QueryStats(ctx context.Context) (Stats, error) {
	const q = `
SELECT
	(SELECT count(*) FROM convene.events),
	(SELECT count(*) FROM convene.events WHERE processed_at IS NOT NULL),
	(SELECT count(*) FROM convene.speakers WHERE superseded_by_id IS NULL AND deleted_at IS NULL),
	(SELECT count(*) FROM convene.companies WHERE superseded_by_id IS NULL AND deleted_at IS NULL),
	(SELECT count(*) FROM convene.topics WHERE superseded_by_id IS NULL AND deleted_at IS NULL),
	(SELECT count(*) FROM convene.review_items WHERE state = 'pending'),
	(SELECT max(processed_at) FROM convene.events)
`

	var stats Stats
	err := p.QueryRow(ctx, q).Scan(
		&stats.Events,
		&stats.ProcessedEvents,
		&stats.Speakers,
		&stats.Companies,
		&stats.Topics,
		&stats.PendingReviews,
		&stats.LastProcessedAt,
	)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}

	stats.JobStates, err = p.queryGroupedCounts(ctx, `
SELECT state::text, count(*) FROM convene.processing_jobs GROUP BY state
`)
	if err != nil {
		return Stats{}, fmt.Errorf("query job state counts: %w", err)
	}

	stats.Dispositions, err = p.queryGroupedCounts(ctx, `
SELECT disposition::text, count(*) FROM convene.resolution_events GROUP BY disposition
`)
	if err != nil {
		return Stats{}, fmt.Errorf("query disposition counts: %w", err)
	}

	return stats, nil
}

func (p *Pool) queryGroupedCounts(ctx context.Context, q string) (map[string]int64, error) {
	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, err
		}
		counts[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
