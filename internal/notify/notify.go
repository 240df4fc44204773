// Package notify publishes job lifecycle events to downstream consumers.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/convene/internal/globaltime"
)

// JobEvent is the payload published on every lifecycle transition.
type JobEvent struct {
	JobUUID    string    `json:"job_uuid"`
	EventUUID  string    `json:"event_uuid"`
	State      string    `json:"state"`
	ErrorClass string    `json:"error_class,omitempty"`
	LastError  string    `json:"last_error,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notifier fans job lifecycle events out to interested consumers. Publishing
// is best-effort: the pipeline never fails a job over a notification.
type Notifier interface {
	JobStarted(ctx context.Context, event JobEvent) error
	JobCompleted(ctx context.Context, event JobEvent) error
	JobFailed(ctx context.Context, event JobEvent) error
	Close() error
}

// LogNotifier writes lifecycle events to the structured log. It is the
// default when no broker is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) JobStarted(_ context.Context, event JobEvent) error {
	n.log("job started", event)
	return nil
}

func (n *LogNotifier) JobCompleted(_ context.Context, event JobEvent) error {
	n.log("job completed", event)
	return nil
}

func (n *LogNotifier) JobFailed(_ context.Context, event JobEvent) error {
	n.log("job failed", event)
	return nil
}

func (n *LogNotifier) Close() error { return nil }

func (n *LogNotifier) log(message string, event JobEvent) {
	entry := n.logger.Info().
		Str("job_uuid", event.JobUUID).
		Str("event_uuid", event.EventUUID).
		Str("state", event.State)
	if event.ErrorClass != "" {
		entry = entry.Str("error_class", event.ErrorClass)
	}
	entry.Msg(message)
}

// Recorder captures events in memory for tests.
type Recorder struct {
	mu        sync.Mutex
	Started   []JobEvent
	Completed []JobEvent
	Failed    []JobEvent
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) JobStarted(_ context.Context, event JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Started = append(r.Started, event)
	return nil
}

func (r *Recorder) JobCompleted(_ context.Context, event JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = append(r.Completed, event)
	return nil
}

func (r *Recorder) JobFailed(_ context.Context, event JobEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failed = append(r.Failed, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Snapshot returns copies of the captured event lists.
func (r *Recorder) Snapshot() (started, completed, failed []JobEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]JobEvent(nil), r.Started...),
		append([]JobEvent(nil), r.Completed...),
		append([]JobEvent(nil), r.Failed...)
}

// Stamp fills the event timestamp when the caller left it zero.
func Stamp(event JobEvent) JobEvent {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = globaltime.UTC()
	}
	return event
}
