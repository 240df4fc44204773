package resolve

import (
	"fmt"
	"testing"

	"horse.fit/convene/internal/db"
)

func chainEntity(id int64, supersededBy *int64) db.EntityRecord {
	return db.EntityRecord{
		EntityID:       id,
		Kind:           db.EntityKindSpeaker,
		NormalizedName: fmt.Sprintf("entity %d", id),
		SupersededByID: supersededBy,
	}
}

func mapFetch(entities map[int64]db.EntityRecord) func(int64) (db.EntityRecord, error) {
	return func(id int64) (db.EntityRecord, error) {
		record, ok := entities[id]
		if !ok {
			return db.EntityRecord{}, db.ErrNoRows
		}
		return record, nil
	}
}

func TestChaseLiveFollowsSupersededChain(t *testing.T) {
	t.Parallel()

	two, three := int64(2), int64(3)
	entities := map[int64]db.EntityRecord{
		1: chainEntity(1, &two),
		2: chainEntity(2, &three),
		3: chainEntity(3, nil),
	}

	root, err := chaseLive(mapFetch(entities), "speaker", 1)
	if err != nil {
		t.Fatalf("chase: %v", err)
	}
	if root.EntityID != 3 {
		t.Fatalf("expected the live root 3, got %d", root.EntityID)
	}
}

func TestChaseLiveReturnsLiveEntityDirectly(t *testing.T) {
	t.Parallel()

	entities := map[int64]db.EntityRecord{5: chainEntity(5, nil)}

	root, err := chaseLive(mapFetch(entities), "speaker", 5)
	if err != nil {
		t.Fatalf("chase: %v", err)
	}
	if root.EntityID != 5 {
		t.Fatalf("a live entity is its own root, got %d", root.EntityID)
	}
}

func TestChaseLiveBoundsCorruptCycles(t *testing.T) {
	t.Parallel()

	one, two := int64(1), int64(2)
	entities := map[int64]db.EntityRecord{
		1: chainEntity(1, &two),
		2: chainEntity(2, &one),
	}

	if _, err := chaseLive(mapFetch(entities), "speaker", 1); err == nil {
		t.Fatalf("a supersede cycle must error instead of spinning")
	}
}

func TestChaseLiveSurfacesMissingEntities(t *testing.T) {
	t.Parallel()

	if _, err := chaseLive(mapFetch(nil), "speaker", 42); err == nil {
		t.Fatalf("missing entity must error")
	}
}

func TestMergeDirectionOlderEntityWins(t *testing.T) {
	t.Parallel()

	older := chainEntity(10, nil)
	newer := chainEntity(30, nil)

	winner, loser := mergeDirection(older, newer)
	if winner.EntityID != 10 || loser.EntityID != 30 {
		t.Fatalf("lower id must survive: winner %d, loser %d", winner.EntityID, loser.EntityID)
	}

	winner, loser = mergeDirection(newer, older)
	if winner.EntityID != 10 || loser.EntityID != 30 {
		t.Fatalf("direction must not depend on argument order: winner %d, loser %d", winner.EntityID, loser.EntityID)
	}
}

func TestApprovedPairMergesAttributesIntoWinner(t *testing.T) {
	t.Parallel()

	title := "VP Engineering"
	left := db.EntityRecord{EntityID: 4, Kind: db.EntityKindSpeaker, DisplayName: "Ada Lovelace", Title: &title, Confidence: 0.9}
	right := db.EntityRecord{EntityID: 2, Kind: db.EntityKindSpeaker, DisplayName: "A. Lovelace", Confidence: 0.6}

	winner, loser := mergeDirection(left, right)
	merged := mergeEntities(winner, loser)

	if merged.EntityID != 2 {
		t.Fatalf("merged profile must keep the winner's identity, got %d", merged.EntityID)
	}
	if merged.Title == nil || *merged.Title != "VP Engineering" {
		t.Fatalf("loser's attributes must fill in, got %v", merged.Title)
	}
	if merged.Confidence != 0.9 {
		t.Fatalf("confidence must ratchet up, got %v", merged.Confidence)
	}
}
