package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/convene/internal/faults"
)

type reviewDecisionRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleReviewList(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultReviewLimit, 1, maxReviewLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	state := strings.TrimSpace(strings.ToLower(c.QueryParam("state")))
	switch state {
	case "", "pending", "approved", "rejected":
	default:
		return failValidation(c, map[string]string{"state": "must be pending, approved, or rejected"})
	}

	items, err := s.pool.ListReviewItems(c.Request().Context(), state, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list review items failed")
		return internalError(c, "Failed to load reviews")
	}

	return success(c, map[string]any{
		"items": items,
		"state": state,
		"limit": limit,
	})
}

// handleReviewDecision applies an approve or reject decision to a pending
// review. Approval merges the pair; rejection keeps the entities separate.
func (s *Server) handleReviewDecision(c echo.Context) error {
	reviewUUID := strings.TrimSpace(c.Param("review_uuid"))
	if reviewUUID == "" {
		return failValidation(c, map[string]string{"review_uuid": "is required"})
	}

	var req reviewDecisionRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be valid JSON"})
	}

	decision := strings.TrimSpace(strings.ToLower(req.Decision))
	ctx := c.Request().Context()

	switch decision {
	case "approve":
		item, err := s.resolver.ApproveReview(ctx, s.pool, reviewUUID)
		if err != nil {
			return s.reviewError(c, reviewUUID, err)
		}
		return success(c, item)
	case "reject":
		item, err := s.resolver.RejectReview(ctx, s.pool, reviewUUID)
		if err != nil {
			return s.reviewError(c, reviewUUID, err)
		}
		return success(c, item)
	default:
		return failValidation(c, map[string]string{"decision": "must be approve or reject"})
	}
}

func (s *Server) reviewError(c echo.Context, reviewUUID string, err error) error {
	switch faults.ClassOf(err) {
	case faults.ClassInput:
		return failNotFound(c, "Review not found")
	case faults.ClassConflict:
		return failConflict(c, "Review is already resolved")
	}
	s.logger.Error().Err(err).Str("review_uuid", reviewUUID).Msg("apply review decision failed")
	return internalError(c, "Failed to apply review decision")
}
