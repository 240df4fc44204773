package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"horse.fit/convene/internal/db"
	"horse.fit/convene/internal/faults"
)

// fakeJobQueue scripts the store responses for the enqueue path.
type fakeJobQueue struct {
	active    []db.JobRecord
	activeOK  []bool
	insertJob db.JobRecord
	insertErr error

	getCalls    int
	insertCalls int
}

func (f *fakeJobQueue) GetActiveJobForEvent(_ context.Context, _ int64) (db.JobRecord, bool, error) {
	i := f.getCalls
	f.getCalls++
	if i >= len(f.active) {
		return db.JobRecord{}, false, nil
	}
	return f.active[i], f.activeOK[i], nil
}

func (f *fakeJobQueue) InsertJob(_ context.Context, eventID int64) (db.JobRecord, error) {
	f.insertCalls++
	if f.insertErr != nil {
		return db.JobRecord{}, f.insertErr
	}
	job := f.insertJob
	job.EventID = eventID
	return job, nil
}

func TestEnqueueCoalescesIntoActiveJob(t *testing.T) {
	t.Parallel()

	running := db.JobRecord{JobID: 7, JobUUID: "uuid-7", EventID: 3, State: StateResolving}
	queue := &fakeJobQueue{active: []db.JobRecord{running}, activeOK: []bool{true}}

	job, coalesced, err := enqueueJob(context.Background(), queue, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !coalesced {
		t.Fatalf("second enqueue must coalesce into the running job")
	}
	if job.JobID != 7 {
		t.Fatalf("expected the active job back, got %+v", job)
	}
	if queue.insertCalls != 0 {
		t.Fatalf("no insert while a job is active, got %d", queue.insertCalls)
	}
}

func TestEnqueueCreatesJobWhenNoneActive(t *testing.T) {
	t.Parallel()

	queue := &fakeJobQueue{
		active:    []db.JobRecord{{}},
		activeOK:  []bool{false},
		insertJob: db.JobRecord{JobID: 12, JobUUID: "uuid-12", State: StateQueued},
	}

	job, coalesced, err := enqueueJob(context.Background(), queue, 5)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if coalesced {
		t.Fatalf("fresh enqueue must not coalesce")
	}
	if job.JobID != 12 || job.EventID != 5 {
		t.Fatalf("wrong job: %+v", job)
	}
}

func TestEnqueueLostRaceCoalescesIntoWinner(t *testing.T) {
	t.Parallel()

	winner := db.JobRecord{JobID: 20, JobUUID: "uuid-20", EventID: 9, State: StateQueued}
	queue := &fakeJobQueue{
		active:    []db.JobRecord{{}, winner},
		activeOK:  []bool{false, true},
		insertErr: errors.New(`ERROR: duplicate key value violates unique constraint "uq_processing_jobs_active" (SQLSTATE 23505)`),
	}

	job, coalesced, err := enqueueJob(context.Background(), queue, 9)
	if err != nil {
		t.Fatalf("lost race must resolve to the winner: %v", err)
	}
	if !coalesced || job.JobID != 20 {
		t.Fatalf("expected coalesce into job 20, got %+v (coalesced %v)", job, coalesced)
	}
}

func TestEnqueueLostRaceWithoutWinnerIsConflict(t *testing.T) {
	t.Parallel()

	queue := &fakeJobQueue{
		active:    []db.JobRecord{{}, {}},
		activeOK:  []bool{false, false},
		insertErr: errors.New("duplicate key value violates unique constraint"),
	}

	_, _, err := enqueueJob(context.Background(), queue, 9)
	if err == nil {
		t.Fatalf("expected a conflict error")
	}
	if faults.ClassOf(err) != faults.ClassConflict {
		t.Fatalf("expected conflict class, got %q (%v)", faults.ClassOf(err), err)
	}
}

func TestEnqueueSurfacesUnrelatedInsertErrors(t *testing.T) {
	t.Parallel()

	queue := &fakeJobQueue{
		active:    []db.JobRecord{{}},
		activeOK:  []bool{false},
		insertErr: errors.New("connection reset by peer"),
	}

	_, _, err := enqueueJob(context.Background(), queue, 2)
	if err == nil || faults.ClassOf(err) == faults.ClassConflict {
		t.Fatalf("non-unique insert errors pass through unchanged, got %v", err)
	}
}

func TestDispatchClaimedReturnsUndeliveredJobs(t *testing.T) {
	t.Parallel()

	claimed := []db.JobRecord{{JobID: 1}, {JobID: 2}, {JobID: 3}}
	jobs := make(chan db.JobRecord, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	leftover := dispatchClaimed(ctx, jobs, claimed)
	if len(leftover) != 2 {
		t.Fatalf("jobs not handed to a worker must come back for requeue, got %+v", leftover)
	}
	if leftover[0].JobID != 2 || leftover[1].JobID != 3 {
		t.Fatalf("wrong leftover jobs: %+v", leftover)
	}
	if delivered := <-jobs; delivered.JobID != 1 {
		t.Fatalf("first job must have been delivered, got %+v", delivered)
	}
}

func TestDispatchClaimedDeliversEverythingWithCapacity(t *testing.T) {
	t.Parallel()

	claimed := []db.JobRecord{{JobID: 1}, {JobID: 2}}
	jobs := make(chan db.JobRecord, 2)

	if leftover := dispatchClaimed(context.Background(), jobs, claimed); leftover != nil {
		t.Fatalf("nothing to requeue when the channel has room, got %+v", leftover)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected both jobs delivered, got %d", len(jobs))
	}
}
