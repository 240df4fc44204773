package resolve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"horse.fit/convene/internal/db"
	"horse.fit/convene/internal/faults"
	"horse.fit/convene/internal/normalize"
	"horse.fit/convene/internal/similarity"
	extractschema "horse.fit/convene/schema"
)

const (
	roleSpeaker = "speaker"
	roleSponsor = "sponsor"
)

// Resolver applies dedup decisions against the canonical entity tables. All
// writes go through the caller's transaction so one failing mention rolls
// back the whole event.
type Resolver struct {
	scorer            *similarity.Scorer
	thresholds        Thresholds
	blockingKeyLength int
	logger            zerolog.Logger
}

func NewResolver(scorer *similarity.Scorer, thresholds Thresholds, blockingKeyLength int, logger zerolog.Logger) *Resolver {
	return &Resolver{
		scorer:            scorer,
		thresholds:        thresholds,
		blockingKeyLength: blockingKeyLength,
		logger:            logger.With().Str("component", "resolver").Logger(),
	}
}

// EntityOutcome records the resolution of one mention.
type EntityOutcome struct {
	EntityID    int64
	Kind        normalize.Kind
	Disposition string
	Confidence  float64
}

// Outcome summarizes one payload's resolution.
type Outcome struct {
	Entities     []EntityOutcome
	AutoMerged   int
	NeedsReview  int
	KeptSeparate int
}

// ResolvePayload deduplicates every mention in the payload and links the
// surviving entities to the event.
func (r *Resolver) ResolvePayload(ctx context.Context, q db.Querier, eventID int64, payload *extractschema.Payload, confidenceFloor float64) (Outcome, error) {
	var outcome Outcome
	for _, mention := range MentionsFromPayload(payload, confidenceFloor) {
		entityOutcome, err := r.resolveMention(ctx, q, mention)
		if err != nil {
			return Outcome{}, fmt.Errorf("resolve %s %q: %w", mention.Kind, mention.DisplayName, err)
		}

		if err := r.linkEvent(ctx, q, eventID, mention, entityOutcome.EntityID); err != nil {
			return Outcome{}, err
		}

		outcome.Entities = append(outcome.Entities, entityOutcome)
		switch entityOutcome.Disposition {
		case DispositionAutoMerged:
			outcome.AutoMerged++
		case DispositionNeedsReview:
			outcome.NeedsReview++
		default:
			outcome.KeptSeparate++
		}
	}
	return outcome, nil
}

func (r *Resolver) resolveMention(ctx context.Context, q db.Querier, mention Mention) (EntityOutcome, error) {
	kind := string(mention.Kind)
	blocking := normalize.BlockingKey(mention.NormalizedName, r.blockingKeyLength)

	var domain *string
	if mention.Kind == normalize.KindCompany && mention.Domain != "" {
		domain = &mention.Domain
	}

	candidates, err := db.ListEntityCandidates(ctx, q, kind, blocking, domain)
	if err != nil {
		return EntityOutcome{}, err
	}

	decision := decide(r.scorer, r.thresholds, mention, candidates)

	if decision.Disposition == DispositionAutoMerged {
		return r.applyAutoMerge(ctx, q, mention, decision)
	}

	entity, mergedIntoWinner, err := r.upsertEntity(ctx, q, mention)
	if err != nil {
		return EntityOutcome{}, err
	}
	if mergedIntoWinner {
		// Lost the insert race: a concurrent transaction created the same
		// canonical key, so this mention merged into that winner.
		return EntityOutcome{
			EntityID:    entity.EntityID,
			Kind:        mention.Kind,
			Disposition: DispositionAutoMerged,
			Confidence:  1,
		}, nil
	}

	outcome := EntityOutcome{
		EntityID:    entity.EntityID,
		Kind:        mention.Kind,
		Disposition: decision.Disposition,
		Confidence:  decision.Confidence,
	}

	for _, review := range decision.Review {
		reviewUUID, created, err := db.InsertReviewItem(ctx, q, kind, review.Candidate.EntityID, entity.EntityID, review.Score)
		if err != nil {
			return EntityOutcome{}, err
		}
		if created {
			r.logger.Info().
				Str("entity_kind", kind).
				Str("review_uuid", reviewUUID).
				Float64("similarity", review.Score).
				Msg("queued merge for review")
		}
	}

	if err := db.InsertResolutionEvent(ctx, q, kind, decision.Disposition, 1, decision.Confidence, &entity.EntityID); err != nil {
		return EntityOutcome{}, err
	}
	return outcome, nil
}

// applyAutoMerge folds the mention and every candidate in its
// high-confidence component into the oldest candidate.
func (r *Resolver) applyAutoMerge(ctx context.Context, q db.Querier, mention Mention, decision Decision) (EntityOutcome, error) {
	kind := string(mention.Kind)
	winner := *decision.AutoMerge[0]

	merged := mergeProfiles(winner, mention)
	for _, loser := range decision.AutoMerge[1:] {
		merged = mergeEntities(merged, *loser)

		superseded, err := db.SupersedeEntity(ctx, q, kind, loser.EntityID, winner.EntityID)
		if err != nil {
			return EntityOutcome{}, err
		}
		if !superseded {
			continue
		}
		if err := db.RepointEventLinks(ctx, q, kind, loser.EntityID, winner.EntityID); err != nil {
			return EntityOutcome{}, err
		}
	}

	if err := db.UpdateEntityProfile(ctx, q, merged); err != nil {
		return EntityOutcome{}, err
	}

	for _, review := range decision.Review {
		if _, _, err := db.InsertReviewItem(ctx, q, kind, review.Candidate.EntityID, winner.EntityID, review.Score); err != nil {
			return EntityOutcome{}, err
		}
	}

	clusterSize := len(decision.AutoMerge) + 1
	if err := db.InsertResolutionEvent(ctx, q, kind, DispositionAutoMerged, clusterSize, decision.Confidence, &winner.EntityID); err != nil {
		return EntityOutcome{}, err
	}

	r.logger.Info().
		Str("entity_kind", kind).
		Int64("entity_id", winner.EntityID).
		Int("cluster_size", clusterSize).
		Float64("confidence", decision.Confidence).
		Msg("auto-merged mention")

	return EntityOutcome{
		EntityID:    winner.EntityID,
		Kind:        mention.Kind,
		Disposition: DispositionAutoMerged,
		Confidence:  decision.Confidence,
	}, nil
}

// upsertEntity creates the entity row for a mention. Losing the insert race
// resolves against the concurrent winner instead; the second return reports
// that case.
func (r *Resolver) upsertEntity(ctx context.Context, q db.Querier, mention Mention) (db.EntityRecord, bool, error) {
	record := entityFromMention(mention)

	for attempt := 0; attempt < 2; attempt++ {
		inserted, ok, err := db.InsertEntity(ctx, q, record)
		if err != nil {
			return db.EntityRecord{}, false, err
		}
		if ok {
			return inserted, false, nil
		}

		existing, found, err := db.GetLiveEntityByKey(ctx, q, record.Kind, record.NormalizedName)
		if err != nil {
			return db.EntityRecord{}, false, err
		}
		if found {
			merged := mergeProfiles(existing, mention)
			if err := db.UpdateEntityProfile(ctx, q, merged); err != nil {
				return db.EntityRecord{}, false, err
			}
			return merged, true, nil
		}
		// The winner vanished between the conflict and the lookup. One more
		// insert attempt before giving up.
	}

	return db.EntityRecord{}, false, faults.WithClass(faults.ClassConflict,
		fmt.Errorf("lost %s insert race for key %q twice", mention.Kind, mention.NormalizedName))
}

func (r *Resolver) linkEvent(ctx context.Context, q db.Querier, eventID int64, mention Mention, entityID int64) error {
	role := ""
	switch mention.Kind {
	case normalize.KindSpeaker:
		role = roleSpeaker
	case normalize.KindCompany:
		role = roleSponsor
	}
	return db.LinkEventEntity(ctx, q, string(mention.Kind), eventID, entityID, role, mention.Confidence)
}

func entityFromMention(mention Mention) db.EntityRecord {
	record := db.EntityRecord{
		Kind:           string(mention.Kind),
		DisplayName:    mention.DisplayName,
		NormalizedName: mention.NormalizedName,
		Title:          mention.Title,
		Affiliation:    mention.Affiliation,
		Industry:       mention.Industry,
		Category:       mention.Category,
		Confidence:     mention.Confidence,
	}
	if mention.Domain != "" {
		domain := mention.Domain
		record.Domain = &domain
	}
	return record
}
