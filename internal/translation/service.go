package translation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/verso/internal/ai"
	"horse.fit/verso/internal/batch"
	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/queue"
)

// Options configures the translation pass.
type Options struct {
	Model           string
	Temperature     float64
	MaxOutputTokens int
	MaxInputTokens  int
	MaxAttempts     int
}

// RunOptions controls one translation execution.
type RunOptions struct {
	// Provider selects a registered completion provider; empty uses the
	// registry default.
	Provider string
	// RequeueFailed moves translation_failed segments back to pending
	// before the run, re-entering them into the pipeline.
	RequeueFailed bool
}

// RunStats reports translation execution counters.
type RunStats struct {
	Total      int    `json:"total"`
	Translated int    `json:"translated"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	FirstError string `json:"first_error,omitempty"`
}

func (s *RunStats) recordError(err error) {
	if s.FirstError == "" && err != nil {
		s.FirstError = err.Error()
	}
}

// Service runs the file/project translation jobs: pending segments are
// packed into token-bounded batches, sent through a completion provider,
// and written back segment by segment.
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
	if opts.MaxInputTokens <= 0 {
		opts.MaxInputTokens = 3000
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	return &Service{
		store:    store,
		registry: registry,
		gate:     gate,
		logger:   logger,
		opts:     opts,
	}
}

// TranslateFile translates every pending segment of one file. Batches run
// in a fixed sequential order; a batch-level failure marks only that
// batch's segments failed and the run continues. Progress is recomputed
// after every batch.
func (s *Service) TranslateFile(ctx context.Context, fileUUID string, opts RunOptions, report func(queue.Progress)) (RunStats, error) {
	if s == nil || s.store == nil {
		return RunStats{}, fmt.Errorf("translation service is not initialized")
	}

	file, err := s.store.GetFileByUUID(ctx, fileUUID)
	if err != nil {
		return RunStats{}, err
	}
	return s.translateFile(ctx, file, opts, report)
}

// TranslateProject translates every file of a project in import order. No
// ordering guarantee exists across files; within one file, segments keep
// ascending index order.
func (s *Service) TranslateProject(ctx context.Context, project string, opts RunOptions, report func(queue.Progress)) (RunStats, error) {
	if s == nil || s.store == nil {
		return RunStats{}, fmt.Errorf("translation service is not initialized")
	}

	files, err := s.store.ListProjectFiles(ctx, project)
	if err != nil {
		return RunStats{}, err
	}

	total := RunStats{}
	progress := queue.Progress{}
	for _, file := range files {
		stats, err := s.translateFile(ctx, file, opts, func(p queue.Progress) {
			if report != nil {
				merged := progress
				merged.Processed += p.Processed
				merged.Total += p.Total
				merged.Succeeded += p.Succeeded
				merged.Failed += p.Failed
				if merged.FirstError == "" {
					merged.FirstError = p.FirstError
				}
				report(merged)
			}
		})
		total.Total += stats.Total
		total.Translated += stats.Translated
		total.Failed += stats.Failed
		total.Skipped += stats.Skipped
		if total.FirstError == "" {
			total.FirstError = stats.FirstError
		}
		if err != nil {
			return total, err
		}

		progress.Processed += stats.Total
		progress.Total += stats.Total
		progress.Succeeded += stats.Translated
		progress.Failed += stats.Failed + stats.Skipped
		if progress.FirstError == "" {
			progress.FirstError = stats.FirstError
		}
	}

	return total, nil
}

func (s *Service) translateFile(ctx context.Context, file db.TranslationFile, opts RunOptions, report func(queue.Progress)) (RunStats, error) {
	stats := RunStats{}

	if opts.RequeueFailed {
		failed, err := s.store.ListSegmentsByStatus(ctx, file.FileID, db.SegmentStatusTranslationFailed)
		if err != nil {
			return stats, err
		}
		for _, seg := range failed {
			if err := s.store.UpdateSegmentStatus(ctx, seg.SegmentID, db.SegmentStatusPending); err != nil {
				return stats, fmt.Errorf("requeue segment %d: %w", seg.SegmentIndex, err)
			}
		}
	}

	pending, err := s.store.ListSegmentsByStatus(ctx, file.FileID, db.SegmentStatusPending)
	if err != nil {
		return stats, err
	}
	if len(pending) == 0 {
		// Nothing eligible is a partial outcome, not a failure.
		s.logger.Info().Str("file_uuid", file.FileUUID).Msg("no pending segments to translate")
		return stats, nil
	}

	provider, err := s.registry.Provider(opts.Provider)
	if err != nil {
		return stats, err
	}
	modelName := s.modelName(provider)

	systemPrompt := batch.SystemPrompt(file.SourceLang, file.TargetLang)
	batches, skips, err := batch.Split(pending, batch.EstimateTokens(systemPrompt), s.opts.MaxInputTokens)
	if err != nil {
		return stats, err
	}

	stats.Total = len(pending)
	progress := queue.Progress{Total: len(pending)}

	for _, skip := range skips {
		s.logger.Warn().
			Str("file_uuid", file.FileUUID).
			Int("segment_index", skip.Segment.SegmentIndex).
			Str("reason", skip.Reason).
			Msg("segment excluded from translation")
		if err := s.store.MarkSegmentTranslationFailed(ctx, skip.Segment.SegmentID, skip.Reason); err != nil {
			return stats, fmt.Errorf("mark skipped segment %d: %w", skip.Segment.SegmentIndex, err)
		}
		stats.Skipped++
		progress.Processed++
		progress.Failed++
		stats.recordError(fmt.Errorf("%s", skip.Reason))
	}
	if progress.FirstError == "" {
		progress.FirstError = stats.FirstError
	}
	if report != nil {
		report(progress)
	}

	if err := s.store.UpdateFileStatus(ctx, file.FileID, db.FileStatusTranslating, nil); err != nil {
		return stats, err
	}

	for _, b := range batches {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		s.runBatch(ctx, file, provider, modelName, b, &stats, &progress)

		progress.FirstError = stats.FirstError
		if report != nil {
			report(progress)
		}
	}

	finalStatus := db.FileStatusTranslated
	var fileErr *string
	if stats.Translated == 0 {
		finalStatus = db.FileStatusFailed
		if stats.FirstError != "" {
			msg := stats.FirstError
			fileErr = &msg
		}
	}
	if err := s.store.UpdateFileStatus(ctx, file.FileID, finalStatus, fileErr); err != nil {
		return stats, err
	}

	return stats, nil
}

// runBatch executes one batch end to end. Every segment transition is
// persisted before the next step, so a crash leaves resumable state.
func (s *Service) runBatch(ctx context.Context, file db.TranslationFile, provider ai.Provider, modelName *string, b batch.Batch, stats *RunStats, progress *queue.Progress) {
	for _, seg := range b.Segments {
		if err := s.store.UpdateSegmentStatus(ctx, seg.SegmentID, db.SegmentStatusTranslating); err != nil {
			s.logger.Error().Err(err).Int("segment_index", seg.SegmentIndex).Msg("mark segment translating failed")
		}
	}

	var completion *ai.Completion
	callErr := queue.Retry(ctx, s.opts.MaxAttempts, s.sleep, func() error {
		if s.gate != nil {
			if err := s.gate.Wait(ctx); err != nil {
				return err
			}
		}
		var err error
		completion, err = provider.Complete(ctx, ai.CompletionRequest{
			SystemPrompt: batch.SystemPrompt(file.SourceLang, file.TargetLang),
			UserPrompt:   batch.RenderPrompt(b),
			Model:        s.opts.Model,
			Temperature:  s.opts.Temperature,
			MaxTokens:    s.opts.MaxOutputTokens,
		})
		return err
	})

	if callErr != nil {
		// Batch-level failure: every member fails, siblings in later
		// batches are unaffected.
		s.logger.Error().Err(callErr).Str("file_uuid", file.FileUUID).Int("batch_size", len(b.Segments)).Msg("translation batch failed")
		stats.recordError(callErr)
		for _, seg := range b.Segments {
			if err := s.store.MarkSegmentTranslationFailed(ctx, seg.SegmentID, callErr.Error()); err != nil {
				s.logger.Error().Err(err).Int("segment_index", seg.SegmentIndex).Msg("mark segment failed failed")
			}
			stats.Failed++
			progress.Processed++
			progress.Failed++
		}
		return
	}

	parsed := batch.ParseResponse(completion.Content)
	promptShare, completionShare := usageShare(completion.Usage, len(b.Segments))

	for _, seg := range b.Segments {
		text, ok := parsed[seg.SegmentIndex]
		if !ok {
			// Parse-miss fails only this segment; parsed siblings stay
			// successful.
			err := fmt.Errorf("segment %d missing from model response", seg.SegmentIndex)
			stats.recordError(err)
			if updateErr := s.store.MarkSegmentTranslationFailed(ctx, seg.SegmentID, err.Error()); updateErr != nil {
				s.logger.Error().Err(updateErr).Int("segment_index", seg.SegmentIndex).Msg("mark segment failed failed")
			}
			stats.Failed++
			progress.Processed++
			progress.Failed++
			continue
		}
		if err := s.store.MarkSegmentTranslated(ctx, seg.SegmentID, text, modelName, promptShare, completionShare); err != nil {
			stats.recordError(err)
			stats.Failed++
			progress.Processed++
			progress.Failed++
			continue
		}
		stats.Translated++
		progress.Processed++
		progress.Succeeded++
	}
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

// usageShare apportions batch usage counters across members.
func usageShare(usage ai.Usage, members int) (int, int) {
	if members <= 0 {
		return 0, 0
	}
	return usage.PromptTokens / members, usage.CompletionTokens / members
}
