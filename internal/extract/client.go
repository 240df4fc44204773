package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"horse.fit/convene/internal/faults"
	extractschema "horse.fit/convene/schema"
)

const maxResponseBytes = 4 << 20

// Client talks to the external extraction service. Errors are classified so
// the resilient caller knows what to retry.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

type extractionRequest struct {
	Content string `json:"content"`
}

func NewClient(endpoint string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "extract_client").Logger(),
	}
}

// Extract posts the document text to the extraction service and returns the
// validated payload.
func (c *Client) Extract(ctx context.Context, text string) (*extractschema.Payload, error) {
	if strings.TrimSpace(text) == "" {
		return nil, faults.WithClass(faults.ClassInput, fmt.Errorf("extraction text is empty"))
	}

	body, err := json.Marshal(extractionRequest{Content: text})
	if err != nil {
		return nil, faults.WithClass(faults.ClassInput, fmt.Errorf("marshal extraction request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, faults.WithClass(faults.ClassInput, fmt.Errorf("build extraction request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	correlationID := uuid.NewString()
	req.Header.Set("X-Correlation-ID", correlationID)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, faults.WithClass(faults.ClassTransient, fmt.Errorf("read extraction response: %w", err))
	}

	c.logger.Debug().
		Str("correlation_id", correlationID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("extraction request completed")

	if err := classifyStatus(resp.StatusCode, raw); err != nil {
		return nil, err
	}

	payload, err := extractschema.ValidateExtractionPayload(raw)
	if err != nil {
		return nil, faults.WithClass(faults.ClassDecode, fmt.Errorf("extraction response rejected: %w", err))
	}
	return payload, nil
}

// Cancellation and timeouts are transient: they say nothing about the
// document, and a job interrupted by shutdown must not be recorded as an
// input failure.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return faults.WithClass(faults.ClassTransient, fmt.Errorf("extraction request cancelled: %w", err))
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return faults.WithClass(faults.ClassTransient, fmt.Errorf("extraction request timed out: %w", err))
	}
	return faults.WithClass(faults.ClassTransient, fmt.Errorf("extraction request failed: %w", err))
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return faults.WithClass(faults.ClassInput, fmt.Errorf("extraction service rejected credentials: status %d", status))
	case status == http.StatusTooManyRequests:
		return faults.WithClass(faults.ClassTransient, fmt.Errorf("extraction service throttled: status %d", status))
	case status >= 400 && status < 500:
		return faults.WithClass(faults.ClassInput, fmt.Errorf("extraction service rejected request: status %d: %s", status, truncateBody(body)))
	default:
		return faults.WithClass(faults.ClassTransient, fmt.Errorf("extraction service unavailable: status %d", status))
	}
}

func truncateBody(body []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
