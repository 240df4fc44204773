package similarity

import (
	"math"
	"testing"

	"horse.fit/convene/internal/normalize"
)

func TestJaroWinklerSymmetricReflexive(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"john smith", "jon smith"},
		{"acme", "acme tech"},
		{"martha", "marhta"},
		{"kubernetes", "observability"},
	}
	for _, pair := range pairs {
		ab := JaroWinkler(pair[0], pair[1])
		ba := JaroWinkler(pair[1], pair[0])
		if math.Abs(ab-ba) > 1e-12 {
			t.Fatalf("score is not symmetric for %q/%q: %v != %v", pair[0], pair[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("score out of bounds for %q/%q: %v", pair[0], pair[1], ab)
		}
	}

	if got := JaroWinkler("john smith", "john smith"); got != 1 {
		t.Fatalf("identical keys must score 1.0, got %v", got)
	}
	if got := JaroWinkler("", "john smith"); got != 0 {
		t.Fatalf("empty key must score 0.0, got %v", got)
	}
	if got := JaroWinkler("", ""); got != 0 {
		t.Fatalf("two empty keys must score 0.0, got %v", got)
	}
}

func TestJaroWinklerKnownValues(t *testing.T) {
	t.Parallel()

	// Classic reference pair: MARTHA/MARHTA scores 0.961.
	got := JaroWinkler("martha", "marhta")
	if math.Abs(got-0.9611111111) > 1e-6 {
		t.Fatalf("unexpected martha/marhta score: %v", got)
	}

	near := JaroWinkler("john smith", "jon smith")
	far := JaroWinkler("john smith", "acme corp")
	if near <= far {
		t.Fatalf("near-duplicate must outscore unrelated: %v <= %v", near, far)
	}
	if near < 0.85 {
		t.Fatalf("near-duplicate name must clear the auto-merge band, got %v", near)
	}
}

func TestScorerDomainOverride(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(true)

	a := Pair{Key: "acme", Domain: "acme.com"}
	b := Pair{Key: "completely different name", Domain: "acme.com"}
	if got := scorer.Score(normalize.KindCompany, a, b); got != 1 {
		t.Fatalf("matching domains must force score 1.0, got %v", got)
	}

	b.Domain = "other.com"
	if got := scorer.Score(normalize.KindCompany, a, b); got == 1 {
		t.Fatalf("differing domains must not force a match")
	}

	// The override is company-only; speakers never get identity from domains.
	if got := scorer.Score(normalize.KindSpeaker, a, b); got == 1 {
		t.Fatalf("speaker scoring must ignore domains")
	}

	disabled := NewScorer(false)
	b.Domain = "acme.com"
	if got := disabled.Score(normalize.KindCompany, a, b); got == 1 {
		t.Fatalf("disabled override must fall back to name distance")
	}
}

func TestScorerEmptyKeys(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(true)
	if got := scorer.Score(normalize.KindCompany, Pair{}, Pair{Key: "acme"}); got != 0 {
		t.Fatalf("empty key must score 0.0, got %v", got)
	}
}
