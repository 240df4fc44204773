package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/convene/internal/db"
	"horse.fit/convene/internal/extract"
	"horse.fit/convene/internal/faults"
	"horse.fit/convene/internal/langdetect"
	"horse.fit/convene/internal/notify"
	"horse.fit/convene/internal/resolve"
	extractschema "horse.fit/convene/schema"
)

// Job states, mirroring the convene.job_state enum.
const (
	StateQueued     = "queued"
	StateExtracting = "extracting"
	StateResolving  = "resolving"
	StateScoring    = "scoring"
	StatePersisted  = "persisted"
	StateFailed     = "failed"
	StateCancelled  = "cancelled"
)

const dispatchInterval = 500 * time.Millisecond

// DocumentExtractor resolves a preprocessed document to a validated payload.
// In production this is the single-flight cache over the resilient client.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, doc extract.Document) (*extractschema.Payload, error)
}

// Options carries the tunables the service needs from configuration.
type Options struct {
	ConfidenceFloor float64
	JobTimeout      time.Duration
	WorkerCount     int
	QueueDepth      int
}

// Service owns the processing job state machine: claim queued jobs, run them
// through extraction, resolution, and scoring, and persist the outcome.
type Service struct {
	pool      *db.Pool
	extractor DocumentExtractor
	resolver  *resolve.Resolver
	notifier  notify.Notifier
	logger    zerolog.Logger
	opts      Options
}

func NewService(pool *db.Pool, extractor DocumentExtractor, resolver *resolve.Resolver, notifier notify.Notifier, opts Options, logger zerolog.Logger) *Service {
	if opts.WorkerCount < 1 {
		opts.WorkerCount = 1
	}
	if opts.QueueDepth < 1 {
		opts.QueueDepth = 1
	}
	return &Service{
		pool:      pool,
		extractor: extractor,
		resolver:  resolver,
		notifier:  notifier,
		logger:    logger.With().Str("component", "pipeline").Logger(),
		opts:      opts,
	}
}

// SubmitDocument stores a raw document as a new event and queues its
// processing job.
func (s *Service) SubmitDocument(ctx context.Context, sourceURL, rawDocument string, scrapedAt time.Time) (db.JobRecord, string, error) {
	if rawDocument == "" {
		return db.JobRecord{}, "", faults.WithClass(faults.ClassInput, fmt.Errorf("raw document is empty"))
	}
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	eventID, eventUUID, err := s.pool.InsertEvent(ctx, sourceURL, rawDocument, scrapedAt)
	if err != nil {
		return db.JobRecord{}, "", err
	}

	job, _, err := s.enqueue(ctx, eventID)
	if err != nil {
		return db.JobRecord{}, "", err
	}
	return job, eventUUID, nil
}

// EnqueueEvent queues a processing job for an existing event. A second
// enqueue while a job is still active coalesces into the running job.
func (s *Service) EnqueueEvent(ctx context.Context, eventUUID string) (db.JobRecord, bool, error) {
	event, err := s.pool.GetEventByUUID(ctx, eventUUID)
	if err != nil {
		if db.IsNoRows(err) {
			return db.JobRecord{}, false, faults.WithClass(faults.ClassInput, fmt.Errorf("event %s not found", eventUUID))
		}
		return db.JobRecord{}, false, err
	}
	return s.enqueue(ctx, event.EventID)
}

// jobQueue is the slice of the store the enqueue path needs.
type jobQueue interface {
	GetActiveJobForEvent(ctx context.Context, eventID int64) (db.JobRecord, bool, error)
	InsertJob(ctx context.Context, eventID int64) (db.JobRecord, error)
}

func (s *Service) enqueue(ctx context.Context, eventID int64) (db.JobRecord, bool, error) {
	return enqueueJob(ctx, s.pool, eventID)
}

// enqueueJob creates the job, deferring to an already active one. The partial
// unique index on active jobs closes the insert race: a concurrent insert
// fails with a unique violation and coalesces into the winner.
func enqueueJob(ctx context.Context, q jobQueue, eventID int64) (db.JobRecord, bool, error) {
	if job, active, err := q.GetActiveJobForEvent(ctx, eventID); err != nil {
		return db.JobRecord{}, false, err
	} else if active {
		return job, true, nil
	}

	job, err := q.InsertJob(ctx, eventID)
	if err == nil {
		return job, false, nil
	}
	if !db.IsUniqueViolation(err) {
		return db.JobRecord{}, false, err
	}

	job, active, err := q.GetActiveJobForEvent(ctx, eventID)
	if err != nil {
		return db.JobRecord{}, false, err
	}
	if !active {
		return db.JobRecord{}, false, faults.WithClass(faults.ClassConflict,
			fmt.Errorf("lost enqueue race for event %d", eventID))
	}
	return job, true, nil
}

// Run claims queued jobs and processes them on a bounded worker pool until
// the context ends.
func (s *Service) Run(ctx context.Context) error {
	jobs := make(chan db.JobRecord, s.opts.QueueDepth)

	done := make(chan struct{})
	for i := 0; i < s.opts.WorkerCount; i++ {
		go func(worker int) {
			defer func() { done <- struct{}{} }()
			for job := range jobs {
				s.handleJob(ctx, job, worker)
			}
		}(i)
	}

	s.logger.Info().
		Int("workers", s.opts.WorkerCount).
		Int("queue_depth", s.opts.QueueDepth).
		Msg("pipeline started")

	ticker := time.NewTicker(dispatchInterval)
	defer ticker.Stop()

dispatch:
	for {
		select {
		case <-ctx.Done():
			break dispatch
		case <-ticker.C:
		}

		capacity := s.opts.QueueDepth - len(jobs)
		if capacity <= 0 {
			continue
		}

		claimed, err := s.pool.ClaimQueuedJobs(ctx, capacity)
		if err != nil {
			if ctx.Err() != nil {
				break dispatch
			}
			s.logger.Error().Err(err).Msg("failed to claim queued jobs")
			continue
		}

		if leftover := dispatchClaimed(ctx, jobs, claimed); len(leftover) > 0 {
			// ClaimQueuedJobs already moved the whole batch to extracting;
			// anything not handed to a worker must go back to queued or it is
			// stranded in a non-terminal state forever.
			for _, job := range leftover {
				s.requeue(job.JobID)
			}
			break dispatch
		}
	}

	close(jobs)
	for i := 0; i < s.opts.WorkerCount; i++ {
		<-done
	}
	s.logger.Info().Msg("pipeline stopped")
	return ctx.Err()
}

// dispatchClaimed hands claimed jobs to the workers, returning every job not
// handed out before the context ended.
func dispatchClaimed(ctx context.Context, jobs chan<- db.JobRecord, claimed []db.JobRecord) []db.JobRecord {
	for i, job := range claimed {
		select {
		case jobs <- job:
		case <-ctx.Done():
			return claimed[i:]
		}
	}
	return nil
}

// handleJob wraps one job execution with attempt accounting, a per-job
// deadline, and panic containment. A panicking job is requeued once, then
// failed.
func (s *Service) handleJob(ctx context.Context, job db.JobRecord, worker int) {
	jobCtx, cancel := context.WithTimeout(ctx, s.opts.JobTimeout)
	defer cancel()

	attempts, err := s.pool.IncrementJobAttempt(jobCtx, job.JobID)
	if err != nil {
		s.logger.Error().Err(err).Int64("job_id", job.JobID).Msg("failed to count attempt")
		attempts = job.AttemptCount + 1
	}

	defer func() {
		if r := recover(); r == nil {
			return
		} else if attempts <= 1 {
			s.logger.Error().
				Int64("job_id", job.JobID).
				Any("panic", r).
				Msg("job panicked, requeueing once")
			s.requeue(job.JobID)
		} else {
			s.logger.Error().
				Int64("job_id", job.JobID).
				Any("panic", r).
				Msg("job panicked twice, failing")
			s.fail(job, fmt.Sprintf("panic: %v", r), "internal")
		}
	}()

	event, err := s.pool.GetEventByID(jobCtx, job.EventID)
	if err != nil {
		s.fail(job, fmt.Sprintf("load event %d: %v", job.EventID, err), string(faults.ClassInput))
		return
	}

	_ = s.notifier.JobStarted(jobCtx, notify.Stamp(notify.JobEvent{
		JobUUID:   job.JobUUID,
		EventUUID: event.EventUUID,
		State:     StateExtracting,
	}))

	s.logger.Info().
		Int("worker", worker).
		Str("job_uuid", job.JobUUID).
		Str("event_uuid", event.EventUUID).
		Int("attempt", attempts).
		Msg("processing job")

	if err := s.runJob(jobCtx, job, event); err != nil {
		class := faults.ClassOf(err)
		if class == faults.ClassNone {
			class = faults.ClassTransient
		}
		s.fail(job, err.Error(), string(class))

		_ = s.notifier.JobFailed(context.WithoutCancel(jobCtx), notify.Stamp(notify.JobEvent{
			JobUUID:    job.JobUUID,
			EventUUID:  event.EventUUID,
			State:      StateFailed,
			ErrorClass: string(class),
			LastError:  err.Error(),
		}))
		return
	}

	if err := s.pool.MarkJobPersisted(jobCtx, job.JobID); err != nil {
		s.logger.Error().Err(err).Int64("job_id", job.JobID).Msg("failed to mark job persisted")
		return
	}

	_ = s.notifier.JobCompleted(jobCtx, notify.Stamp(notify.JobEvent{
		JobUUID:   job.JobUUID,
		EventUUID: event.EventUUID,
		State:     StatePersisted,
	}))
}

// runJob is the state machine body: extracting, resolving, scoring. The
// resolution and persistence writes share one transaction so a failing
// mention rolls the whole event back.
func (s *Service) runJob(ctx context.Context, job db.JobRecord, event db.EventRecord) error {
	doc, err := extract.Preprocess(event.RawDocument, event.SourceURL)
	if err != nil {
		return faults.WithClass(faults.ClassInput, fmt.Errorf("preprocess document: %w", err))
	}

	language := langdetect.Detect(doc.Text)
	if err := s.pool.UpdateEventDocumentMeta(ctx, event.EventID, doc.Fingerprint, language); err != nil {
		return fmt.Errorf("record document meta: %w", err)
	}

	payload, err := s.extractor.ExtractDocument(ctx, doc)
	if err != nil {
		return err
	}

	if err := s.pool.AdvanceJobState(ctx, job.JobID, StateResolving); err != nil {
		return err
	}

	tx, err := s.pool.BeginTx(ctx, db.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin resolution transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	outcome, err := s.resolver.ResolvePayload(ctx, tx, event.EventID, payload, s.opts.ConfidenceFloor)
	if err != nil {
		return err
	}

	if err := s.pool.AdvanceJobState(ctx, job.JobID, StateScoring); err != nil {
		return err
	}

	qualityScore := QualityScore(payload)
	confidence := ExtractionConfidence(payload)

	rawPayload, err := json.Marshal(payload)
	if err != nil {
		return faults.WithClass(faults.ClassDecode, fmt.Errorf("marshal extracted payload: %w", err))
	}
	if err := db.PersistEventOutcome(ctx, tx, event.EventID, rawPayload, confidence, qualityScore); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit resolution transaction: %w", err)
	}

	s.logger.Info().
		Str("job_uuid", job.JobUUID).
		Int("quality_score", qualityScore).
		Int("auto_merged", outcome.AutoMerged).
		Int("needs_review", outcome.NeedsReview).
		Int("kept_separate", outcome.KeptSeparate).
		Msg("job resolved")
	return nil
}

func (s *Service) fail(job db.JobRecord, message, class string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.pool.MarkJobFailed(ctx, job.JobID, class, message); err != nil {
		s.logger.Error().Err(err).Int64("job_id", job.JobID).Msg("failed to mark job failed")
	}
}

func (s *Service) requeue(jobID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.pool.RequeueJob(ctx, jobID); err != nil {
		s.logger.Error().Err(err).Int64("job_id", jobID).Msg("failed to requeue job")
	}
}
