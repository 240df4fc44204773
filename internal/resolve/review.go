package resolve

import (
	"context"
	"errors"
	"fmt"

	"horse.fit/convene/internal/db"
	"horse.fit/convene/internal/faults"
)

// ErrReviewNotFound reports an unknown review identifier.
var ErrReviewNotFound = errors.New("review item not found")

const supersededChainLimit = 32

// ApproveReview merges the reviewed pair. Both sides are chased to their live
// roots first: either may have been merged away since the review was queued.
func (r *Resolver) ApproveReview(ctx context.Context, pool *db.Pool, reviewUUID string) (db.ReviewItemRecord, error) {
	tx, err := pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return db.ReviewItemRecord{}, fmt.Errorf("begin review transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	item, ok, err := db.ResolveReviewItem(ctx, tx, reviewUUID, "approved")
	if err != nil {
		return db.ReviewItemRecord{}, err
	}
	if !ok {
		return db.ReviewItemRecord{}, r.classifyUnresolvable(ctx, pool, reviewUUID)
	}

	left, err := liveRoot(ctx, tx, item.EntityKind, item.LeftEntityID)
	if err != nil {
		return db.ReviewItemRecord{}, err
	}
	right, err := liveRoot(ctx, tx, item.EntityKind, item.RightEntityID)
	if err != nil {
		return db.ReviewItemRecord{}, err
	}

	if left.EntityID != right.EntityID {
		winner, loser := mergeDirection(left, right)
		merged := mergeEntities(winner, loser)
		superseded, err := db.SupersedeEntity(ctx, tx, item.EntityKind, loser.EntityID, winner.EntityID)
		if err != nil {
			return db.ReviewItemRecord{}, err
		}
		if superseded {
			if err := db.RepointEventLinks(ctx, tx, item.EntityKind, loser.EntityID, winner.EntityID); err != nil {
				return db.ReviewItemRecord{}, err
			}
		}
		if err := db.UpdateEntityProfile(ctx, tx, merged); err != nil {
			return db.ReviewItemRecord{}, err
		}

		r.logger.Info().
			Str("entity_kind", item.EntityKind).
			Str("review_uuid", item.ReviewItemUUID).
			Int64("winner_id", winner.EntityID).
			Int64("loser_id", loser.EntityID).
			Msg("review approved, entities merged")
	}

	if err := tx.Commit(ctx); err != nil {
		return db.ReviewItemRecord{}, fmt.Errorf("commit review transaction: %w", err)
	}
	return item, nil
}

// RejectReview closes the review leaving both entities separate.
func (r *Resolver) RejectReview(ctx context.Context, pool *db.Pool, reviewUUID string) (db.ReviewItemRecord, error) {
	item, ok, err := db.ResolveReviewItem(ctx, pool, reviewUUID, "rejected")
	if err != nil {
		return db.ReviewItemRecord{}, err
	}
	if !ok {
		return db.ReviewItemRecord{}, r.classifyUnresolvable(ctx, pool, reviewUUID)
	}

	r.logger.Info().
		Str("entity_kind", item.EntityKind).
		Str("review_uuid", item.ReviewItemUUID).
		Msg("review rejected, entities kept separate")
	return item, nil
}

func (r *Resolver) classifyUnresolvable(ctx context.Context, pool *db.Pool, reviewUUID string) error {
	if _, err := pool.GetReviewItemByUUID(ctx, reviewUUID); err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return faults.WithClass(faults.ClassInput, fmt.Errorf("%w: %s", ErrReviewNotFound, reviewUUID))
		}
		return err
	}
	return faults.WithClass(faults.ClassConflict, fmt.Errorf("review %s is already resolved", reviewUUID))
}

// mergeDirection picks the surviving side of an approved pair: the older
// entity (lower id) wins, matching the auto-merge winner rule.
func mergeDirection(left, right db.EntityRecord) (winner, loser db.EntityRecord) {
	if right.EntityID < left.EntityID {
		return right, left
	}
	return left, right
}

// liveRoot follows superseded_by links until it reaches the surviving entity.
func liveRoot(ctx context.Context, q db.Querier, kind string, entityID int64) (db.EntityRecord, error) {
	return chaseLive(func(id int64) (db.EntityRecord, error) {
		return db.GetEntityByID(ctx, q, kind, id)
	}, kind, entityID)
}

// chaseLive walks the superseded chain through fetch, bounded so a corrupt
// cycle cannot spin forever.
func chaseLive(fetch func(int64) (db.EntityRecord, error), kind string, entityID int64) (db.EntityRecord, error) {
	id := entityID
	for i := 0; i < supersededChainLimit; i++ {
		record, err := fetch(id)
		if err != nil {
			return db.EntityRecord{}, fmt.Errorf("load %s %d: %w", kind, id, err)
		}
		if record.SupersededByID == nil {
			return record, nil
		}
		id = *record.SupersededByID
	}
	return db.EntityRecord{}, fmt.Errorf("superseded chain for %s %d exceeds %d links", kind, entityID, supersededChainLimit)
}
