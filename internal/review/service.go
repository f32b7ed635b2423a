package review

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/verso/internal/ai"
	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/queue"
)

var (
	// ErrInvalidState means the segment's status does not admit review.
	// Invalid-state is a validation failure: rejected at once, never
	// retried.
	ErrInvalidState = errors.New("segment status does not allow review")
	// ErrMissingText means the segment has no source or no translation.
	ErrMissingText = errors.New("segment is missing source text or translation")
)

// Options configures the review pass.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	MaxAttempts     int
	// Concurrency caps in-flight segment reviews within one batch.
	Concurrency int
	// BatchSize chunks a fan-out into sequential groups.
	BatchSize int
}

// RunOptions controls one review execution.
type RunOptions struct {
	Provider string
}

// SegmentResult is the outcome of one segment review.
type SegmentResult struct {
	SegmentUUID        string    `json:"segment_uuid"`
	Score              *float64  `json:"score,omitempty"`
	ModificationDegree *float64  `json:"modification_degree,omitempty"`
	Findings           []Finding `json:"issues"`
}

// SegmentError pairs a failed segment with its error.
type SegmentError struct {
	SegmentUUID string `json:"segment_uuid"`
	Error       string `json:"error"`
}

// BatchResult aggregates a fan-out. Succeeded/Failed/Total plus the first
// error are always populated so callers can act on partial success.
type BatchResult struct {
	Total      int            `json:"total"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	FirstError string         `json:"first_error,omitempty"`
	Errors     []SegmentError `json:"errors,omitempty"`
}

// BatchOptions controls a review fan-out.
type BatchOptions struct {
	Provider    string
	Concurrency int
	BatchSize   int
	// StopOnError aborts not-yet-started work after the first failure.
	// In-flight reviews run to completion and their results are kept.
	StopOnError bool
}

// FileOptions selects which of a file's segments get reviewed.
type FileOptions struct {
	BatchOptions
	IncludeStatuses []db.SegmentStatus
	ExcludeStatuses []db.SegmentStatus
	// OnlyNew excludes segments already reviewed, approved, or failed.
	OnlyNew bool
}

// TextResult is the outcome of a stateless ad-hoc review.
type TextResult struct {
	Score              *float64  `json:"score,omitempty"`
	ModificationDegree *float64  `json:"modification_degree,omitempty"`
	Findings           []Finding `json:"issues"`
	PromptTokens       int       `json:"prompt_tokens"`
	CompletionTokens   int       `json:"completion_tokens"`
}

// Service runs the review jobs: single-segment review, bounded fan-out
// over segment lists, whole-file review, and stateless text review.
type Service struct {
	store    Store
	registry *ai.Registry
	gate     *queue.Gate
	logger   zerolog.Logger
	opts     Options

	// sleep is swapped in tests to avoid real backoff waits.
	sleep func(context.Context, time.Duration) error
}

func NewService(store Store, registry *ai.Registry, gate *queue.Gate, logger zerolog.Logger, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	return &Service{
		store:    store,
		registry: registry,
		gate:     gate,
		logger:   logger,
		opts:     opts,
	}
}

// ReviewSegment reviews one stored segment. The segment must have source
// text, a translation, and a status of translated or review_failed; any
// other status is rejected as invalid-state without consuming a retry.
func (s *Service) ReviewSegment(ctx context.Context, segmentUUID string, opts RunOptions) (SegmentResult, error) {
	if s == nil || s.store == nil {
		return SegmentResult{}, fmt.Errorf("review service is not initialized")
	}

	seg, err := s.store.GetSegmentByUUID(ctx, segmentUUID)
	if err != nil {
		return SegmentResult{}, err
	}

	if err := validateReviewable(seg); err != nil {
		return SegmentResult{}, err
	}

	provider, err := s.registry.Provider(opts.Provider)
	if err != nil {
		return SegmentResult{}, err
	}

	// A missing file row is not fatal; the prompt falls back to
	// unspecified languages.
	var sourceLang, targetLang string
	if file, fileErr := s.store.GetFileByID(ctx, seg.FileID); fileErr == nil {
		sourceLang = file.SourceLang
		targetLang = file.TargetLang
	}

	if err := s.store.UpdateSegmentStatus(ctx, seg.SegmentID, db.SegmentStatusReviewing); err != nil {
		return SegmentResult{}, err
	}

	translation := *seg.Translation
	assessment, usage, callErr := s.assess(ctx, provider, seg.SourceText, translation, sourceLang, targetLang)
	if callErr != nil {
		if markErr := s.store.MarkSegmentReviewFailed(ctx, seg.SegmentID, callErr.Error()); markErr != nil {
			s.logger.Error().Err(markErr).Str("segment_uuid", segmentUUID).Msg("mark review failed failed")
		}
		return SegmentResult{}, callErr
	}

	findings := ClampFindings(assessment.Findings, translation)
	if len(findings) > 0 {
		issues := make([]db.SegmentIssue, 0, len(findings))
		for _, f := range findings {
			issues = append(issues, db.SegmentIssue{
				IssueType:   db.NormalizeIssueType(strings.ToLower(strings.TrimSpace(f.Type))),
				Severity:    db.NormalizeIssueSeverity(strings.ToLower(strings.TrimSpace(f.Severity))),
				Description: f.Description,
				StartOffset: f.Start,
				EndOffset:   f.End,
				Suggestion:  f.Suggestion,
			})
		}
		if err := s.store.AppendSegmentIssues(ctx, seg.SegmentID, issues); err != nil {
			if markErr := s.store.MarkSegmentReviewFailed(ctx, seg.SegmentID, err.Error()); markErr != nil {
				s.logger.Error().Err(markErr).Str("segment_uuid", segmentUUID).Msg("mark review failed failed")
			}
			return SegmentResult{}, err
		}
	}

	modelName := s.modelName(provider)
	if err := s.store.MarkSegmentReviewCompleted(ctx, seg.SegmentID, assessment.Score, assessment.ModificationDegree, modelName, usage.PromptTokens, usage.CompletionTokens); err != nil {
		return SegmentResult{}, err
	}

	return SegmentResult{
		SegmentUUID:        seg.SegmentUUID,
		Score:              assessment.Score,
		ModificationDegree: assessment.ModificationDegree,
		Findings:           findings,
	}, nil
}

// ReviewBatch fans a list of segment ids out to ReviewSegment under a
// semaphore-style admission gate: at most Concurrency in flight, the
// next item admitted on each completion. With StopOnError, the first
// failure prevents not-yet-started items from launching.
func (s *Service) ReviewBatch(ctx context.Context, segmentUUIDs []string, opts BatchOptions, report func(queue.Progress)) (BatchResult, error) {
	if s == nil || s.store == nil {
		return BatchResult{}, fmt.Errorf("review service is not initialized")
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = s.opts.Concurrency
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = s.opts.BatchSize
	}

	result := BatchResult{Total: len(segmentUUIDs)}

	var (
		mu      sync.Mutex
		stopped bool
	)

	record := func(uuid string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, SegmentError{SegmentUUID: uuid, Error: err.Error()})
			if result.FirstError == "" {
				result.FirstError = err.Error()
			}
			if opts.StopOnError {
				stopped = true
			}
		} else {
			result.Succeeded++
		}
		if report != nil {
			report(queue.Progress{
				Processed:  result.Succeeded + result.Failed + result.Skipped,
				Total:      result.Total,
				Succeeded:  result.Succeeded,
				Failed:     result.Failed,
				FirstError: result.FirstError,
			})
		}
	}

	for start := 0; start < len(segmentUUIDs); start += batchSize {
		end := start + batchSize
		if end > len(segmentUUIDs) {
			end = len(segmentUUIDs)
		}
		chunk := segmentUUIDs[start:end]

		sem := make(chan struct{}, concurrency)
		var wg sync.WaitGroup

		for _, uuid := range chunk {
			mu.Lock()
			abort := stopped
			mu.Unlock()
			if abort || ctx.Err() != nil {
				mu.Lock()
				result.Skipped++
				mu.Unlock()
				continue
			}

			sem <- struct{}{}
			wg.Add(1)
			go func(uuid string) {
				defer wg.Done()
				defer func() { <-sem }()
				_, err := s.ReviewSegment(ctx, uuid, RunOptions{Provider: opts.Provider})
				record(uuid, err)
			}(uuid)
		}
		wg.Wait()

		mu.Lock()
		abort := stopped
		mu.Unlock()
		if abort {
			// Count the untouched remainder before bailing out.
			for i := end; i < len(segmentUUIDs); i++ {
				result.Skipped++
			}
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}
	if opts.StopOnError && result.FirstError != "" {
		return result, fmt.Errorf("review batch stopped on first error: %s", result.FirstError)
	}
	if result.Total > 0 && result.Succeeded == 0 && result.Failed > 0 {
		return result, fmt.Errorf("every segment review failed: %s", result.FirstError)
	}
	return result, nil
}

// ReviewFile reviews a file's eligible segments and finalizes the file
// status: completed when reviews ran, or the prior status restored when
// nothing was eligible.
func (s *Service) ReviewFile(ctx context.Context, fileUUID string, opts FileOptions, report func(queue.Progress)) (BatchResult, error) {
	if s == nil || s.store == nil {
		return BatchResult{}, fmt.Errorf("review service is not initialized")
	}

	file, err := s.store.GetFileByUUID(ctx, fileUUID)
	if err != nil {
		return BatchResult{}, err
	}
	priorStatus := file.Status

	segments, err := s.store.ListSegmentsByFile(ctx, file.FileID)
	if err != nil {
		return BatchResult{}, err
	}

	eligible := filterReviewable(segments, opts)
	if len(eligible) == 0 {
		s.logger.Info().Str("file_uuid", fileUUID).Msg("no segments eligible for review")
		if err := s.store.UpdateFileStatus(ctx, file.FileID, priorStatus, nil); err != nil {
			return BatchResult{}, err
		}
		return BatchResult{}, nil
	}

	if err := s.store.UpdateFileStatus(ctx, file.FileID, db.FileStatusReviewing, nil); err != nil {
		return BatchResult{}, err
	}

	uuids := make([]string, 0, len(eligible))
	for _, seg := range eligible {
		uuids = append(uuids, seg.SegmentUUID)
	}

	result, batchErr := s.ReviewBatch(ctx, uuids, opts.BatchOptions, report)

	finalStatus := db.FileStatusCompleted
	var fileErr *string
	if result.Succeeded == 0 && result.Failed > 0 {
		finalStatus = db.FileStatusFailed
		if result.FirstError != "" {
			msg := result.FirstError
			fileErr = &msg
		}
	}
	if err := s.store.UpdateFileStatus(ctx, file.FileID, finalStatus, fileErr); err != nil {
		return result, err
	}

	return result, batchErr
}

// ReviewText reviews an ad-hoc source/translation pair without touching
// the store.
func (s *Service) ReviewText(ctx context.Context, source, translation, sourceLang, targetLang string, opts RunOptions) (TextResult, error) {
	if strings.TrimSpace(source) == "" || strings.TrimSpace(translation) == "" {
		return TextResult{}, queue.Permanent(ErrMissingText)
	}

	provider, err := s.registry.Provider(opts.Provider)
	if err != nil {
		return TextResult{}, err
	}

	assessment, usage, err := s.assess(ctx, provider, source, translation, sourceLang, targetLang)
	if err != nil {
		return TextResult{}, err
	}

	return TextResult{
		Score:              assessment.Score,
		ModificationDegree: assessment.ModificationDegree,
		Findings:           ClampFindings(assessment.Findings, translation),
		PromptTokens:       usage.PromptTokens,
		CompletionTokens:   usage.CompletionTokens,
	}, nil
}

// assess performs the rate-limited, retried review call and parses the
// verdict. Retries cover operation-level failures only.
func (s *Service) assess(ctx context.Context, provider ai.Provider, source, translation, sourceLang, targetLang string) (*Assessment, ai.Usage, error) {
	var completion *ai.Completion
	callErr := queue.Retry(ctx, s.opts.MaxAttempts, s.sleep, func() error {
		if s.gate != nil {
			if err := s.gate.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		completion, err = provider.Complete(ctx, ai.CompletionRequest{
			SystemPrompt: SystemPrompt(sourceLang, targetLang),
			UserPrompt:   UserPrompt(source, translation),
			Model:        s.opts.Model,
			Temperature:  s.opts.Temperature,
			MaxTokens:    s.opts.MaxOutputTokens,
		})
		return err
	})
	if callErr != nil {
		return nil, ai.Usage{}, callErr
	}

	assessment, err := ParseAssessment(completion.Content)
	if err != nil {
		return nil, completion.Usage, err
	}
	return assessment, completion.Usage, nil
}

func (s *Service) modelName(provider ai.Provider) *string {
	model := s.opts.Model
	if model == "" {
		model = provider.ModelName()
	}
	if model == "" {
		return nil
	}
	return &model
}

func validateReviewable(seg db.Segment) error {
	if strings.TrimSpace(seg.SourceText) == "" {
		return queue.Permanent(fmt.Errorf("%w: empty source", ErrMissingText))
	}
	if seg.Translation == nil || strings.TrimSpace(*seg.Translation) == "" {
		return queue.Permanent(fmt.Errorf("%w: empty translation", ErrMissingText))
	}
	switch seg.Status {
	case db.SegmentStatusTranslated, db.SegmentStatusReviewFailed:
		return nil
	}
	return queue.Permanent(fmt.Errorf("%w: status %s", ErrInvalidState, seg.Status))
}

func filterReviewable(segments []db.Segment, opts FileOptions) []db.Segment {
	include := statusSet(opts.IncludeStatuses)
	exclude := statusSet(opts.ExcludeStatuses)

	out := make([]db.Segment, 0, len(segments))
	for _, seg := range segments {
		if seg.Translation == nil || strings.TrimSpace(*seg.Translation) == "" {
			continue
		}
		if opts.OnlyNew {
			switch seg.Status {
			case db.SegmentStatusReviewCompleted, db.SegmentStatusCompleted, db.SegmentStatusReviewFailed:
				continue
			}
		}
		if len(include) > 0 {
			if _, ok := include[seg.Status]; !ok {
				continue
			}
		}
		if _, ok := exclude[seg.Status]; ok {
			continue
		}
		out = append(out, seg)
	}
	return out
}

func statusSet(statuses []db.SegmentStatus) map[db.SegmentStatus]struct{} {
	if len(statuses) == 0 {
		return nil
	}
	set := make(map[db.SegmentStatus]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}
