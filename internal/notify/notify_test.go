package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"horse.fit/convene/internal/globaltime"
)

func TestStampFillsMissingTimestamp(t *testing.T) {
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	globaltime.SetMockTime(now)
	defer globaltime.ResetTime()

	stamped := Stamp(JobEvent{JobUUID: "a", State: "queued"})
	if !stamped.OccurredAt.Equal(now) {
		t.Fatalf("expected %s, got %s", now, stamped.OccurredAt)
	}

	explicit := now.Add(-time.Hour)
	kept := Stamp(JobEvent{JobUUID: "a", OccurredAt: explicit})
	if !kept.OccurredAt.Equal(explicit) {
		t.Fatalf("explicit timestamp must be kept, got %s", kept.OccurredAt)
	}
}

func TestJobEventPayloadShape(t *testing.T) {
	t.Parallel()

	event := JobEvent{
		JobUUID:    "7b0d8f0e-0000-0000-0000-000000000001",
		EventUUID:  "7b0d8f0e-0000-0000-0000-000000000002",
		State:      "failed",
		ErrorClass: "transient",
		LastError:  "extractor timeout",
		OccurredAt: time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"job_uuid", "event_uuid", "state", "error_class", "last_error", "occurred_at"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("payload missing %q: %s", key, payload)
		}
	}

	// Success payloads omit the error fields entirely.
	clean, err := json.Marshal(JobEvent{JobUUID: "a", State: "persisted", OccurredAt: event.OccurredAt})
	if err != nil {
		t.Fatalf("marshal clean event: %v", err)
	}
	var cleanDecoded map[string]any
	if err := json.Unmarshal(clean, &cleanDecoded); err != nil {
		t.Fatalf("unmarshal clean event: %v", err)
	}
	if _, ok := cleanDecoded["error_class"]; ok {
		t.Fatalf("error_class must be omitted on success: %s", clean)
	}
	if _, ok := cleanDecoded["last_error"]; ok {
		t.Fatalf("last_error must be omitted on success: %s", clean)
	}
}

func TestRecorderCapturesTransitions(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder()
	ctx := context.Background()

	_ = recorder.JobStarted(ctx, JobEvent{JobUUID: "a", State: "extracting"})
	_ = recorder.JobCompleted(ctx, JobEvent{JobUUID: "a", State: "persisted"})
	_ = recorder.JobFailed(ctx, JobEvent{JobUUID: "b", State: "failed", ErrorClass: "input"})

	started, completed, failed := recorder.Snapshot()
	if len(started) != 1 || started[0].State != "extracting" {
		t.Fatalf("unexpected started events: %+v", started)
	}
	if len(completed) != 1 || completed[0].JobUUID != "a" {
		t.Fatalf("unexpected completed events: %+v", completed)
	}
	if len(failed) != 1 || failed[0].ErrorClass != "input" {
		t.Fatalf("unexpected failed events: %+v", failed)
	}
}
