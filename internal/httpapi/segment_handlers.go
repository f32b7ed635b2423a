package httpapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/verso/internal/db"
)

type segmentItem struct {
	SegmentUUID      string   `json:"segment_uuid"`
	SegmentIndex     int      `json:"segment_index"`
	UnitID           string   `json:"unit_id,omitempty"`
	UnitState        *string  `json:"unit_state,omitempty"`
	SourceText       string   `json:"source_text"`
	Translation      *string  `json:"translation,omitempty"`
	FinalTranslation *string  `json:"final_translation,omitempty"`
	Status           string   `json:"status"`
	ErrorMessage     *string  `json:"error_message,omitempty"`
	ModelName        *string  `json:"model_name,omitempty"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	ReviewScore      *float64 `json:"review_score,omitempty"`
	ModificationDeg  *float64 `json:"modification_degree,omitempty"`
}

type issueItem struct {
	IssueUUID   string  `json:"issue_uuid"`
	Ordinal     int     `json:"ordinal"`
	IssueType   string  `json:"issue_type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	StartOffset *int    `json:"start_offset,omitempty"`
	EndOffset   *int    `json:"end_offset,omitempty"`
	Suggestion  *string `json:"suggestion,omitempty"`
	Resolved    bool    `json:"resolved"`
}

func segmentToItem(seg db.Segment) segmentItem {
	return segmentItem{
		SegmentUUID:      seg.SegmentUUID,
		SegmentIndex:     seg.SegmentIndex,
		UnitID:           seg.UnitID,
		UnitState:        seg.UnitState,
		SourceText:       seg.SourceText,
		Translation:      seg.Translation,
		FinalTranslation: seg.FinalTranslation,
		Status:           string(seg.Status),
		ErrorMessage:     seg.ErrorMessage,
		ModelName:        seg.ModelName,
		PromptTokens:     seg.PromptTokens,
		CompletionTokens: seg.CompletionTokens,
		ReviewScore:      seg.ReviewScore,
		ModificationDeg:  seg.ModificationDeg,
	}
}

func issueToItem(issue db.SegmentIssue) issueItem {
	return issueItem{
		IssueUUID:   issue.IssueUUID,
		Ordinal:     issue.Ordinal,
		IssueType:   issue.IssueType,
		Severity:    issue.Severity,
		Description: issue.Description,
		StartOffset: issue.StartOffset,
		EndOffset:   issue.EndOffset,
		Suggestion:  issue.Suggestion,
		Resolved:    issue.Resolved,
	}
}

func (s *Server) handleSegmentDetail(c echo.Context) error {
	segmentUUID := strings.TrimSpace(c.Param("segment_uuid"))
	if segmentUUID == "" {
		return failValidation(c, map[string]string{"segment_uuid": "is required"})
	}

	seg, err := s.pool.GetSegmentByUUID(c.Request().Context(), segmentUUID)
	if err != nil {
		if errors.Is(err, db.ErrSegmentNotFound) {
			return failNotFound(c, "Segment not found")
		}
		s.logger.Error().Err(err).Str("segment_uuid", segmentUUID).Msg("load segment failed")
		return internalError(c, "Failed to load segment")
	}

	issues, err := s.pool.ListSegmentIssues(c.Request().Context(), seg.SegmentID)
	if err != nil {
		s.logger.Error().Err(err).Str("segment_uuid", segmentUUID).Msg("load segment issues failed")
		return internalError(c, "Failed to load segment")
	}

	issueItems := make([]issueItem, 0, len(issues))
	for _, issue := range issues {
		issueItems = append(issueItems, issueToItem(issue))
	}

	return success(c, map[string]any{
		"segment": segmentToItem(seg),
		"issues":  issueItems,
	})
}

type segmentFinalRequest struct {
	FinalTranslation string `json:"final_translation"`
}

// handleSegmentFinal records a human-finalized translation and moves the
// segment to its terminal status.
func (s *Server) handleSegmentFinal(c echo.Context) error {
	segmentUUID := strings.TrimSpace(c.Param("segment_uuid"))
	if segmentUUID == "" {
		return failValidation(c, map[string]string{"segment_uuid": "is required"})
	}

	var req segmentFinalRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}
	text := strings.TrimSpace(req.FinalTranslation)
	if text == "" {
		return failValidation(c, map[string]string{"final_translation": "is required"})
	}

	seg, err := s.pool.GetSegmentByUUID(c.Request().Context(), segmentUUID)
	if err != nil {
		if errors.Is(err, db.ErrSegmentNotFound) {
			return failNotFound(c, "Segment not found")
		}
		s.logger.Error().Err(err).Str("segment_uuid", segmentUUID).Msg("load segment failed")
		return internalError(c, "Failed to load segment")
	}

	if seg.Status != db.SegmentStatusCompleted && !db.CanTransition(seg.Status, db.SegmentStatusCompleted) {
		return failValidation(c, map[string]string{
			"status": fmt.Sprintf("segment in status %s cannot be finalized", seg.Status),
		})
	}

	if err := s.pool.SetSegmentFinalTranslation(c.Request().Context(), seg.SegmentID, text); err != nil {
		s.logger.Error().Err(err).Str("segment_uuid", segmentUUID).Msg("set final translation failed")
		return internalError(c, "Failed to finalize segment")
	}

	return success(c, map[string]any{
		"segment_uuid": segmentUUID,
		"status":       string(db.SegmentStatusCompleted),
	})
}

func (s *Server) handleIssueResolve(c echo.Context) error {
	issueUUID := strings.TrimSpace(c.Param("issue_uuid"))
	if issueUUID == "" {
		return failValidation(c, map[string]string{"issue_uuid": "is required"})
	}

	if err := s.pool.ResolveSegmentIssue(c.Request().Context(), issueUUID); err != nil {
		if errors.Is(err, db.ErrIssueNotFound) {
			return failNotFound(c, "Issue not found")
		}
		s.logger.Error().Err(err).Str("issue_uuid", issueUUID).Msg("resolve issue failed")
		return internalError(c, "Failed to resolve issue")
	}

	return success(c, map[string]any{
		"issue_uuid": issueUUID,
		"resolved":   true,
	})
}
