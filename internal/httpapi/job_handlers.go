package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/convene/internal/db"
	"horse.fit/convene/internal/faults"
)

type submitJobRequest struct {
	SourceURL   string     `json:"source_url"`
	RawDocument string     `json:"raw_document"`
	ScrapedAt   *time.Time `json:"scraped_at"`
	EventUUID   string     `json:"event_uuid"`
}

type jobResponse struct {
	JobUUID      string     `json:"job_uuid"`
	EventUUID    string     `json:"event_uuid"`
	State        string     `json:"state"`
	AttemptCount int        `json:"attempt_count"`
	ErrorClass   *string    `json:"error_class,omitempty"`
	LastError    *string    `json:"last_error,omitempty"`
	QueuedAt     time.Time  `json:"queued_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Coalesced    bool       `json:"coalesced,omitempty"`
}

func jobResponseFrom(job db.JobRecord, eventUUID string, coalesced bool) jobResponse {
	return jobResponse{
		JobUUID:      job.JobUUID,
		EventUUID:    eventUUID,
		State:        job.State,
		AttemptCount: job.AttemptCount,
		ErrorClass:   job.ErrorClass,
		LastError:    job.LastError,
		QueuedAt:     job.QueuedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		Coalesced:    coalesced,
	}
}

// handleSubmitJob accepts either a raw document to ingest as a new event, or
// an existing event UUID to (re)process. A second submit for an event with an
// active job coalesces into that job.
func (s *Server) handleSubmitJob(c echo.Context) error {
	var req submitJobRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	req.EventUUID = strings.TrimSpace(req.EventUUID)
	hasDocument := strings.TrimSpace(req.RawDocument) != ""

	switch {
	case req.EventUUID != "" && hasDocument:
		return failValidation(c, map[string]string{"body": "provide either event_uuid or raw_document, not both"})
	case req.EventUUID != "":
		return s.enqueueExisting(c, req.EventUUID)
	case hasDocument:
		return s.submitDocument(c, req)
	default:
		return failValidation(c, map[string]string{"raw_document": "is required"})
	}
}

func (s *Server) submitDocument(c echo.Context, req submitJobRequest) error {
	scrapedAt := time.Time{}
	if req.ScrapedAt != nil {
		scrapedAt = *req.ScrapedAt
	}

	job, eventUUID, err := s.service.SubmitDocument(c.Request().Context(), strings.TrimSpace(req.SourceURL), req.RawDocument, scrapedAt)
	if err != nil {
		if faults.ClassOf(err) == faults.ClassInput {
			return failValidation(c, map[string]string{"raw_document": err.Error()})
		}
		s.logger.Error().Err(err).Msg("submit document failed")
		return internalError(c, "Failed to submit document")
	}

	return successWithStatus(c, http.StatusAccepted, jobResponseFrom(job, eventUUID, false))
}

func (s *Server) enqueueExisting(c echo.Context, eventUUID string) error {
	job, coalesced, err := s.service.EnqueueEvent(c.Request().Context(), eventUUID)
	if err != nil {
		switch faults.ClassOf(err) {
		case faults.ClassInput:
			return failNotFound(c, "Event not found")
		case faults.ClassConflict:
			return failConflict(c, "Event is already being processed")
		}
		s.logger.Error().Err(err).Str("event_uuid", eventUUID).Msg("enqueue event failed")
		return internalError(c, "Failed to enqueue event")
	}

	status := http.StatusAccepted
	if coalesced {
		status = http.StatusOK
	}
	return successWithStatus(c, status, jobResponseFrom(job, eventUUID, coalesced))
}

func (s *Server) handleJobDetail(c echo.Context) error {
	jobUUID := strings.TrimSpace(c.Param("job_uuid"))
	if jobUUID == "" {
		return failValidation(c, map[string]string{"job_uuid": "is required"})
	}

	job, err := s.pool.GetJobByUUID(c.Request().Context(), jobUUID)
	if err != nil {
		if errors.Is(err, db.ErrNoRows) {
			return failNotFound(c, "Job not found")
		}
		s.logger.Error().Err(err).Str("job_uuid", jobUUID).Msg("load job failed")
		return internalError(c, "Failed to load job")
	}

	event, err := s.pool.GetEventByID(c.Request().Context(), job.EventID)
	if err != nil {
		s.logger.Error().Err(err).Int64("event_id", job.EventID).Msg("load job event failed")
		return internalError(c, "Failed to load job")
	}

	return success(c, jobResponseFrom(job, event.EventUUID, false))
}

// handleCancelJob cancels a queued job. Jobs already claimed by a worker run
// to completion.
func (s *Server) handleCancelJob(c echo.Context) error {
	jobUUID := strings.TrimSpace(c.Param("job_uuid"))
	if jobUUID == "" {
		return failValidation(c, map[string]string{"job_uuid": "is required"})
	}

	cancelled, err := s.pool.CancelJob(c.Request().Context(), jobUUID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_uuid", jobUUID).Msg("cancel job failed")
		return internalError(c, "Failed to cancel job")
	}
	if !cancelled {
		job, err := s.pool.GetJobByUUID(c.Request().Context(), jobUUID)
		if err != nil {
			if errors.Is(err, db.ErrNoRows) {
				return failNotFound(c, "Job not found")
			}
			s.logger.Error().Err(err).Str("job_uuid", jobUUID).Msg("load job failed")
			return internalError(c, "Failed to cancel job")
		}
		return failConflict(c, "Job is no longer queued (state: "+job.State+")")
	}

	return success(c, map[string]any{
		"job_uuid": jobUUID,
		"state":    "cancelled",
	})
}
