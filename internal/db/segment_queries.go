package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const segmentColumns = `
	s.segment_id,
	s.segment_uuid::text,
	s.file_id,
	s.segment_index,
	s.unit_id,
	s.unit_state,
	s.source_text,
	s.translation,
	s.final_translation,
	s.status,
	s.error_message,
	s.model_name,
	s.prompt_tokens,
	s.completion_tokens,
	s.review_score,
	s.modification_degree,
	s.created_at,
	s.updated_at`

func scanSegment(sc interface{ Scan(...any) error }) (Segment, error) {
	var row Segment
	err := sc.Scan(
		&row.SegmentID,
		&row.SegmentUUID,
		&row.FileID,
		&row.SegmentIndex,
		&row.UnitID,
		&row.UnitState,
		&row.SourceText,
		&row.Translation,
		&row.FinalTranslation,
		&row.Status,
		&row.ErrorMessage,
		&row.ModelName,
		&row.PromptTokens,
		&row.CompletionTokens,
		&row.ReviewScore,
		&row.ModificationDeg,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	return row, err
}

func (p *Pool) GetSegmentByUUID(ctx context.Context, segmentUUID string) (Segment, error) {
	q := `
SELECT` + segmentColumns + `
FROM trans.segments s
WHERE s.segment_uuid = $1::uuid
LIMIT 1
`

	row, err := scanSegment(p.QueryRow(ctx, q, strings.TrimSpace(segmentUUID)))
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return Segment{}, ErrSegmentNotFound
		}
		return Segment{}, fmt.Errorf("query segment: %w", err)
	}
	return row, nil
}

// ListSegmentsByFile returns every segment of a file in ascending index
// order. Index order is load-bearing: batch assembly and partial-failure
// attribution both depend on it.
func (p *Pool) ListSegmentsByFile(ctx context.Context, fileID int64) ([]Segment, error) {
	q := `
SELECT` + segmentColumns + `
FROM trans.segments s
WHERE s.file_id = $1
ORDER BY s.segment_index ASC
`

	return p.querySegments(ctx, q, fileID)
}

// ListSegmentsByStatus returns the file's segments whose status is in the
// given set, in ascending index order.
func (p *Pool) ListSegmentsByStatus(ctx context.Context, fileID int64, statuses ...SegmentStatus) ([]Segment, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	values := make([]string, 0, len(statuses))
	for _, s := range statuses {
		values = append(values, string(s))
	}

	q := `
SELECT` + segmentColumns + `
FROM trans.segments s
WHERE s.file_id = $1
  AND s.status = ANY($2)
ORDER BY s.segment_index ASC
`

	return p.querySegments(ctx, q, fileID, "{"+strings.Join(values, ",")+"}")
}

func (p *Pool) querySegments(ctx context.Context, q string, args ...any) ([]Segment, error) {
	rows, err := p.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	items := make([]Segment, 0, 64)
	for rows.Next() {
		row, err := scanSegment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}

	return items, nil
}

func (p *Pool) UpdateSegmentStatus(ctx context.Context, segmentID int64, status SegmentStatus) error {
	const q = `
UPDATE trans.segments
SET status = $2,
	updated_at = now()
WHERE segment_id = $1
`

	return p.execSegmentUpdate(ctx, q, segmentID, status)
}

// MarkSegmentTranslated stores one finished translation together with the
// model identity and usage counters, and clears any previous error.
func (p *Pool) MarkSegmentTranslated(ctx context.Context, segmentID int64, translation string, modelName *string, promptTokens, completionTokens int) error {
	const q = `
UPDATE trans.segments
SET status = 'translated',
	translation = $2,
	model_name = $3,
	prompt_tokens = $4,
	completion_tokens = $5,
	error_message = NULL,
	updated_at = now()
WHERE segment_id = $1
`

	return p.execSegmentUpdate(ctx, q, segmentID, translation, modelName, promptTokens, completionTokens)
}

func (p *Pool) MarkSegmentTranslationFailed(ctx context.Context, segmentID int64, errorMessage string) error {
	const q = `
UPDATE trans.segments
SET status = 'translation_failed',
	error_message = $2,
	updated_at = now()
WHERE segment_id = $1
`

	return p.execSegmentUpdate(ctx, q, segmentID, errorMessage)
}

func (p *Pool) MarkSegmentReviewCompleted(ctx context.Context, segmentID int64, score, modificationDegree *float64, modelName *string, promptTokens, completionTokens int) error {
	const q = `
UPDATE trans.segments
SET status = 'review_completed',
	review_score = $2,
	modification_degree = $3,
	model_name = $4,
	prompt_tokens = prompt_tokens + $5,
	completion_tokens = completion_tokens + $6,
	error_message = NULL,
	updated_at = now()
WHERE segment_id = $1
`

	return p.execSegmentUpdate(ctx, q, segmentID, score, modificationDegree, modelName, promptTokens, completionTokens)
}

func (p *Pool) MarkSegmentReviewFailed(ctx context.Context, segmentID int64, errorMessage string) error {
	const q = `
UPDATE trans.segments
SET status = 'review_failed',
	error_message = $2,
	updated_at = now()
WHERE segment_id = $1
`

	return p.execSegmentUpdate(ctx, q, segmentID, errorMessage)
}

// SetSegmentFinalTranslation records a human-finalized translation and
// moves the segment to its terminal status. Export prefers this value
// over the raw model output.
func (p *Pool) SetSegmentFinalTranslation(ctx context.Context, segmentID int64, text string) error {
	const q = `
UPDATE trans.segments
SET final_translation = $2,
	status = 'completed',
	updated_at = now()
WHERE segment_id = $1
`

	return p.execSegmentUpdate(ctx, q, segmentID, text)
}

func (p *Pool) execSegmentUpdate(ctx context.Context, q string, segmentID int64, args ...any) error {
	all := append([]any{segmentID}, args...)
	tag, err := p.Exec(ctx, q, all...)
	if err != nil {
		return fmt.Errorf("update segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSegmentNotFound
	}
	return nil
}

// AppendSegmentIssues appends review findings after the segment's current
// highest ordinal. Issue order is never rewritten.
func (p *Pool) AppendSegmentIssues(ctx context.Context, segmentID int64, issues []SegmentIssue) error {
	if len(issues) == 0 {
		return nil
	}
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}

	const nextOrdinalQuery = `
SELECT COALESCE(MAX(i.ordinal), -1) + 1
FROM trans.segment_issues i
WHERE i.segment_id = $1
`

	var next int
	if err := p.QueryRow(ctx, nextOrdinalQuery, segmentID).Scan(&next); err != nil {
		return fmt.Errorf("query next issue ordinal: %w", err)
	}

	for i := range issues {
		issues[i].SegmentID = segmentID
		issues[i].Ordinal = next + i
	}

	if err := p.gdb.WithContext(ctx).Create(issues).Error; err != nil {
		return fmt.Errorf("insert segment issues: %w", err)
	}
	return nil
}

func (p *Pool) ListSegmentIssues(ctx context.Context, segmentID int64) ([]SegmentIssue, error) {
	const q = `
SELECT
	i.issue_id,
	i.issue_uuid::text,
	i.segment_id,
	i.ordinal,
	i.issue_type,
	i.severity,
	i.description,
	i.start_offset,
	i.end_offset,
	i.suggestion,
	i.resolved,
	i.created_at
FROM trans.segment_issues i
WHERE i.segment_id = $1
ORDER BY i.ordinal ASC
`

	rows, err := p.Query(ctx, q, segmentID)
	if err != nil {
		return nil, fmt.Errorf("query segment issues: %w", err)
	}
	defer rows.Close()

	items := make([]SegmentIssue, 0, 8)
	for rows.Next() {
		var row SegmentIssue
		if err := rows.Scan(
			&row.IssueID,
			&row.IssueUUID,
			&row.SegmentID,
			&row.Ordinal,
			&row.IssueType,
			&row.Severity,
			&row.Description,
			&row.StartOffset,
			&row.EndOffset,
			&row.Suggestion,
			&row.Resolved,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan segment issue row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment issues: %w", err)
	}

	return items, nil
}

func (p *Pool) ResolveSegmentIssue(ctx context.Context, issueUUID string) error {
	const q = `
UPDATE trans.segment_issues
SET resolved = true
WHERE issue_uuid = $1::uuid
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(issueUUID))
	if err != nil {
		return fmt.Errorf("resolve segment issue: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIssueNotFound
	}
	return nil
}

// SegmentStatusCounts returns per-status segment counts for one file.
func (p *Pool) SegmentStatusCounts(ctx context.Context, fileID int64) (map[SegmentStatus]int, error) {
	const q = `
SELECT s.status, COUNT(*)
FROM trans.segments s
WHERE s.file_id = $1
GROUP BY s.status
`

	rows, err := p.Query(ctx, q, fileID)
	if err != nil {
		return nil, fmt.Errorf("query segment status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[SegmentStatus]int, 8)
	for rows.Next() {
		var (
			status SegmentStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count row: %w", err)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status counts: %w", err)
	}

	return counts, nil
}
