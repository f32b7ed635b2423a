package review

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"horse.fit/verso/internal/ai"
	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/queue"
)

type stubStore struct {
	mu sync.Mutex

	file     db.TranslationFile
	segments []db.Segment
	issues   map[int64][]db.SegmentIssue

	fileStatuses []db.FileStatus
}

func newStubStore(segments ...db.Segment) *stubStore {
	return &stubStore{
		file: db.TranslationFile{
			FileID:     1,
			FileUUID:   "11111111-1111-1111-1111-111111111111",
			Name:       "doc.xlf",
			SourceLang: "en",
			TargetLang: "es",
			Status:     db.FileStatusTranslated,
		},
		segments: segments,
		issues:   make(map[int64][]db.SegmentIssue),
	}
}

func (s *stubStore) GetSegmentByUUID(_ context.Context, segmentUUID string) (db.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.segments {
		if seg.SegmentUUID == segmentUUID {
			return seg, nil
		}
	}
	return db.Segment{}, db.ErrSegmentNotFound
}

func (s *stubStore) GetFileByUUID(_ context.Context, fileUUID string) (db.TranslationFile, error) {
	if fileUUID != s.file.FileUUID {
		return db.TranslationFile{}, db.ErrFileNotFound
	}
	return s.file, nil
}

func (s *stubStore) GetFileByID(_ context.Context, fileID int64) (db.TranslationFile, error) {
	if fileID != s.file.FileID {
		return db.TranslationFile{}, db.ErrFileNotFound
	}
	return s.file, nil
}

func (s *stubStore) ListSegmentsByFile(_ context.Context, fileID int64) ([]db.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Segment
	for _, seg := range s.segments {
		if seg.FileID == fileID {
			out = append(out, seg)
		}
	}
	return out, nil
}

func (s *stubStore) UpdateSegmentStatus(_ context.Context, segmentID int64, status db.SegmentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.segments {
		if s.segments[i].SegmentID == segmentID {
			s.segments[i].Status = status
			return nil
		}
	}
	return db.ErrSegmentNotFound
}

func (s *stubStore) MarkSegmentReviewCompleted(_ context.Context, segmentID int64, score, modificationDegree *float64, modelName *string, promptTokens, completionTokens int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.segments {
		if s.segments[i].SegmentID == segmentID {
			s.segments[i].Status = db.SegmentStatusReviewCompleted
			s.segments[i].ReviewScore = score
			s.segments[i].ModificationDeg = modificationDegree
			s.segments[i].ModelName = modelName
			s.segments[i].PromptTokens = promptTokens
			s.segments[i].CompletionTokens = completionTokens
			return nil
		}
	}
	return db.ErrSegmentNotFound
}

func (s *stubStore) MarkSegmentReviewFailed(_ context.Context, segmentID int64, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.segments {
		if s.segments[i].SegmentID == segmentID {
			msg := errorMessage
			s.segments[i].Status = db.SegmentStatusReviewFailed
			s.segments[i].ErrorMessage = &msg
			return nil
		}
	}
	return db.ErrSegmentNotFound
}

func (s *stubStore) AppendSegmentIssues(_ context.Context, segmentID int64, issues []db.SegmentIssue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issues[segmentID] = append(s.issues[segmentID], issues...)
	return nil
}

func (s *stubStore) UpdateFileStatus(_ context.Context, fileID int64, status db.FileStatus, errorMessage *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fileID != s.file.FileID {
		return db.ErrFileNotFound
	}
	s.file.Status = status
	s.file.ErrorMessage = errorMessage
	s.fileStatuses = append(s.fileStatuses, status)
	return nil
}

func (s *stubStore) segment(segmentID int64) db.Segment {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, seg := range s.segments {
		if seg.SegmentID == segmentID {
			return seg
		}
	}
	return db.Segment{}
}

// stubProvider answers every call with the same scripted verdict, or fails
// the segments listed in failFor.
type stubProvider struct {
	mu      sync.Mutex
	calls   int
	verdict string
	failFor map[string]bool
}

func (p *stubProvider) Name() string      { return "stub" }
func (p *stubProvider) ModelName() string { return "stub-model" }

func (p *stubProvider) Complete(_ context.Context, req ai.CompletionRequest) (*ai.Completion, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	for marker := range p.failFor {
		if strings.Contains(req.UserPrompt, marker) {
			return nil, fmt.Errorf("backend rejected %s", marker)
		}
	}
	verdict := p.verdict
	if verdict == "" {
		verdict = `{"score": 92, "modification_degree": 0.1, "issues": []}`
	}
	return &ai.Completion{
		Content: verdict,
		Usage:   ai.Usage{PromptTokens: 40, CompletionTokens: 20},
	}, nil
}

func (p *stubProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestService(store Store, provider ai.Provider) *Service {
	registry := ai.NewRegistry("stub")
	_ = registry.Register(provider)
	svc := NewService(store, registry, nil, zerolog.Nop(), Options{MaxAttempts: 2})
	svc.sleep = func(_ context.Context, _ time.Duration) error { return nil }
	return svc
}

func translatedSegment(id int64, index int, source, translation string) db.Segment {
	text := translation
	return db.Segment{
		SegmentID:    id,
		SegmentUUID:  fmt.Sprintf("00000000-0000-0000-0000-%012d", id),
		FileID:       1,
		SegmentIndex: index,
		SourceText:   source,
		Translation:  &text,
		Status:       db.SegmentStatusTranslated,
	}
}

func TestReviewSegmentStoresVerdict(t *testing.T) {
	t.Parallel()

	seg := translatedSegment(1, 0, "Hello world", "Hola mundo")
	store := newStubStore(seg)
	provider := &stubProvider{verdict: `{"score": 85, "modification_degree": 0.3, "issues": [` +
		`{"type": "grammar", "severity": "low", "description": "minor slip", "start": 0, "end": 4, "suggestion": "Hola,"}]}`}
	svc := newTestService(store, provider)

	result, err := svc.ReviewSegment(context.Background(), seg.SegmentUUID, RunOptions{})
	if err != nil {
		t.Fatalf("ReviewSegment() error = %v", err)
	}

	if result.Score == nil || *result.Score != 85 {
		t.Fatalf("result.Score = %v, want 85", result.Score)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("len(result.Findings) = %d, want 1", len(result.Findings))
	}

	stored := store.segment(1)
	if stored.Status != db.SegmentStatusReviewCompleted {
		t.Fatalf("segment status = %s, want review_completed", stored.Status)
	}
	if stored.ReviewScore == nil || *stored.ReviewScore != 85 {
		t.Fatalf("stored score = %v, want 85", stored.ReviewScore)
	}
	if got := len(store.issues[1]); got != 1 {
		t.Fatalf("stored issues = %d, want 1", got)
	}
	if got := store.issues[1][0].IssueType; got != db.IssueTypeGrammar {
		t.Fatalf("issue type = %s, want grammar", got)
	}
}

func TestReviewSegmentRejectsPendingWithoutRetry(t *testing.T) {
	t.Parallel()

	seg := translatedSegment(1, 0, "Hello", "Hola")
	seg.Status = db.SegmentStatusPending
	store := newStubStore(seg)
	provider := &stubProvider{}
	svc := newTestService(store, provider)

	_, err := svc.ReviewSegment(context.Background(), seg.SegmentUUID, RunOptions{})
	if err == nil {
		t.Fatal("ReviewSegment() accepted a pending segment")
	}
	if !queue.IsPermanent(err) {
		t.Fatalf("ReviewSegment() error = %v, want a permanent invalid-state error", err)
	}
	if provider.callCount() != 0 {
		t.Fatalf("provider calls = %d, want 0: validation must precede the model call", provider.callCount())
	}
	if got := store.segment(1).Status; got != db.SegmentStatusPending {
		t.Fatalf("segment status = %s, want pending left untouched", got)
	}
}

func TestReviewSegmentAcceptsReviewFailed(t *testing.T) {
	t.Parallel()

	seg := translatedSegment(1, 0, "Hello", "Hola")
	seg.Status = db.SegmentStatusReviewFailed
	store := newStubStore(seg)
	svc := newTestService(store, &stubProvider{})

	if _, err := svc.ReviewSegment(context.Background(), seg.SegmentUUID, RunOptions{}); err != nil {
		t.Fatalf("ReviewSegment() error = %v: review_failed must be re-enterable", err)
	}
	if got := store.segment(1).Status; got != db.SegmentStatusReviewCompleted {
		t.Fatalf("segment status = %s, want review_completed", got)
	}
}

func TestReviewSegmentMarksFailureOnBackendError(t *testing.T) {
	t.Parallel()

	seg := translatedSegment(1, 0, "Hello", "Hola")
	store := newStubStore(seg)
	provider := &stubProvider{failFor: map[string]bool{"Hello": true}}
	svc := newTestService(store, provider)

	_, err := svc.ReviewSegment(context.Background(), seg.SegmentUUID, RunOptions{})
	if err == nil {
		t.Fatal("ReviewSegment() error = nil, want backend failure")
	}
	if provider.callCount() != 2 {
		t.Fatalf("provider calls = %d, want 2 (one retry)", provider.callCount())
	}
	stored := store.segment(1)
	if stored.Status != db.SegmentStatusReviewFailed {
		t.Fatalf("segment status = %s, want review_failed", stored.Status)
	}
	if stored.ErrorMessage == nil {
		t.Fatal("failed segment has no stored error")
	}
}

func TestReviewSegmentClampsOutOfRangeOffsets(t *testing.T) {
	t.Parallel()

	seg := translatedSegment(1, 0, "Hello", "Hola")
	store := newStubStore(seg)
	provider := &stubProvider{verdict: `{"score": 70, "issues": [` +
		`{"type": "accuracy", "severity": "high", "description": "offsets beyond the text", "start": 2, "end": 99}]}`}
	svc := newTestService(store, provider)

	result, err := svc.ReviewSegment(context.Background(), seg.SegmentUUID, RunOptions{})
	if err != nil {
		t.Fatalf("ReviewSegment() error = %v", err)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("len(result.Findings) = %d, want 1", len(result.Findings))
	}
	if result.Findings[0].Start != nil || result.Findings[0].End != nil {
		t.Fatalf("finding offsets = %v..%v, want nil after clamping", result.Findings[0].Start, result.Findings[0].End)
	}
}

func TestReviewBatchPartialFailure(t *testing.T) {
	t.Parallel()

	segments := make([]db.Segment, 0, 5)
	uuids := make([]string, 0, 5)
	for i := 1; i <= 5; i++ {
		seg := translatedSegment(int64(i), i-1, fmt.Sprintf("source-%d", i), fmt.Sprintf("target-%d", i))
		segments = append(segments, seg)
		uuids = append(uuids, seg.SegmentUUID)
	}
	store := newStubStore(segments...)
	provider := &stubProvider{failFor: map[string]bool{"source-3": true}}
	svc := newTestService(store, provider)

	result, err := svc.ReviewBatch(context.Background(), uuids, BatchOptions{Concurrency: 2}, nil)
	if err != nil {
		t.Fatalf("ReviewBatch() error = %v: partial failure is not a batch failure", err)
	}
	if got, want := result.Succeeded, 4; got != want {
		t.Fatalf("result.Succeeded = %d, want %d", got, want)
	}
	if got, want := result.Failed, 1; got != want {
		t.Fatalf("result.Failed = %d, want %d", got, want)
	}
	if len(result.Errors) != 1 || result.Errors[0].SegmentUUID != uuids[2] {
		t.Fatalf("result.Errors = %+v, want one entry for segment 3", result.Errors)
	}
	if got := store.segment(3).Status; got != db.SegmentStatusReviewFailed {
		t.Fatalf("failed segment status = %s, want review_failed", got)
	}
	if got := store.segment(2).Status; got != db.SegmentStatusReviewCompleted {
		t.Fatalf("sibling status = %s, want review_completed", got)
	}
}

func TestReviewBatchStopOnErrorSkipsRemainder(t *testing.T) {
	t.Parallel()

	segments := make([]db.Segment, 0, 6)
	uuids := make([]string, 0, 6)
	for i := 1; i <= 6; i++ {
		seg := translatedSegment(int64(i), i-1, fmt.Sprintf("source-%d", i), fmt.Sprintf("target-%d", i))
		segments = append(segments, seg)
		uuids = append(uuids, seg.SegmentUUID)
	}
	store := newStubStore(segments...)
	provider := &stubProvider{failFor: map[string]bool{"source-1": true}}
	svc := newTestService(store, provider)

	result, err := svc.ReviewBatch(context.Background(), uuids, BatchOptions{
		Concurrency: 1,
		BatchSize:   2,
		StopOnError: true,
	}, nil)
	if err == nil {
		t.Fatal("ReviewBatch() error = nil, want stop-on-error failure")
	}
	if got, want := result.Failed, 1; got != want {
		t.Fatalf("result.Failed = %d, want %d", got, want)
	}
	if result.Skipped == 0 {
		t.Fatal("result.Skipped = 0, want the untouched remainder counted")
	}
	if got := result.Succeeded + result.Failed + result.Skipped; got != result.Total {
		t.Fatalf("succeeded+failed+skipped = %d, want total %d", got, result.Total)
	}
	// Segments past the failing chunk were never started.
	if got := store.segment(5).Status; got != db.SegmentStatusTranslated {
		t.Fatalf("skipped segment status = %s, want translated left untouched", got)
	}
}

func TestReviewBatchAllFailedIsError(t *testing.T) {
	t.Parallel()

	seg := translatedSegment(1, 0, "source-1", "target-1")
	store := newStubStore(seg)
	provider := &stubProvider{failFor: map[string]bool{"source-1": true}}
	svc := newTestService(store, provider)

	result, err := svc.ReviewBatch(context.Background(), []string{seg.SegmentUUID}, BatchOptions{}, nil)
	if err == nil {
		t.Fatal("ReviewBatch() error = nil, want failure when every review failed")
	}
	if result.FirstError == "" {
		t.Fatal("result.FirstError is empty")
	}
}

func TestReviewFileCompletesAndReports(t *testing.T) {
	t.Parallel()

	store := newStubStore(
		translatedSegment(1, 0, "one", "uno"),
		translatedSegment(2, 1, "two", "dos"),
	)
	svc := newTestService(store, &stubProvider{})

	var last queue.Progress
	result, err := svc.ReviewFile(context.Background(), store.file.FileUUID, FileOptions{}, func(p queue.Progress) {
		last = p
	})
	if err != nil {
		t.Fatalf("ReviewFile() error = %v", err)
	}
	if got, want := result.Succeeded, 2; got != want {
		t.Fatalf("result.Succeeded = %d, want %d", got, want)
	}
	if last.Processed != 2 {
		t.Fatalf("final progress.Processed = %d, want 2", last.Processed)
	}
	if store.file.Status != db.FileStatusCompleted {
		t.Fatalf("file status = %s, want completed", store.file.Status)
	}
}

func TestReviewFileRestoresStatusWhenNothingEligible(t *testing.T) {
	t.Parallel()

	seg := translatedSegment(1, 0, "one", "uno")
	seg.Status = db.SegmentStatusReviewCompleted
	store := newStubStore(seg)
	svc := newTestService(store, &stubProvider{})

	result, err := svc.ReviewFile(context.Background(), store.file.FileUUID, FileOptions{OnlyNew: true}, nil)
	if err != nil {
		t.Fatalf("ReviewFile() error = %v", err)
	}
	if result.Total != 0 {
		t.Fatalf("result.Total = %d, want 0", result.Total)
	}
	if store.file.Status != db.FileStatusTranslated {
		t.Fatalf("file status = %s, want the prior status restored", store.file.Status)
	}
}

func TestReviewFileStatusFilters(t *testing.T) {
	t.Parallel()

	reviewFailed := translatedSegment(2, 1, "two", "dos")
	reviewFailed.Status = db.SegmentStatusReviewFailed
	store := newStubStore(
		translatedSegment(1, 0, "one", "uno"),
		reviewFailed,
	)
	svc := newTestService(store, &stubProvider{})

	result, err := svc.ReviewFile(context.Background(), store.file.FileUUID, FileOptions{
		IncludeStatuses: []db.SegmentStatus{db.SegmentStatusReviewFailed},
	}, nil)
	if err != nil {
		t.Fatalf("ReviewFile() error = %v", err)
	}
	if got, want := result.Total, 1; got != want {
		t.Fatalf("result.Total = %d, want %d", got, want)
	}
	if got := store.segment(1).Status; got != db.SegmentStatusTranslated {
		t.Fatalf("excluded segment status = %s, want translated left untouched", got)
	}
	if got := store.segment(2).Status; got != db.SegmentStatusReviewCompleted {
		t.Fatalf("included segment status = %s, want review_completed", got)
	}
}

func TestReviewTextRequiresBothSides(t *testing.T) {
	t.Parallel()

	svc := newTestService(newStubStore(), &stubProvider{})

	_, err := svc.ReviewText(context.Background(), "Hello", "   ", "en", "es", RunOptions{})
	if err == nil {
		t.Fatal("ReviewText() accepted an empty translation")
	}
	if !queue.IsPermanent(err) {
		t.Fatalf("ReviewText() error = %v, want permanent", err)
	}
}

func TestReviewTextReturnsVerdict(t *testing.T) {
	t.Parallel()

	provider := &stubProvider{verdict: "Here you go:\n```json\n" +
		`{"score": 88, "modification_degree": 0.2, "issues": []}` + "\n```"}
	svc := newTestService(newStubStore(), provider)

	result, err := svc.ReviewText(context.Background(), "Hello", "Hola", "en", "es", RunOptions{})
	if err != nil {
		t.Fatalf("ReviewText() error = %v", err)
	}
	if result.Score == nil || *result.Score != 88 {
		t.Fatalf("result.Score = %v, want 88", result.Score)
	}
	if result.PromptTokens != 40 || result.CompletionTokens != 20 {
		t.Fatalf("usage = %d/%d, want 40/20", result.PromptTokens, result.CompletionTokens)
	}
}
