package review

import (
	"context"

	"horse.fit/verso/internal/db"
)

// Store is the segment-store surface the review pass needs.
type Store interface {
	GetSegmentByUUID(ctx context.Context, segmentUUID string) (db.Segment, error)
	GetFileByUUID(ctx context.Context, fileUUID string) (db.TranslationFile, error)
	GetFileByID(ctx context.Context, fileID int64) (db.TranslationFile, error)
	ListSegmentsByFile(ctx context.Context, fileID int64) ([]db.Segment, error)
	UpdateSegmentStatus(ctx context.Context, segmentID int64, status db.SegmentStatus) error
	MarkSegmentReviewCompleted(ctx context.Context, segmentID int64, score, modificationDegree *float64, modelName *string, promptTokens, completionTokens int) error
	MarkSegmentReviewFailed(ctx context.Context, segmentID int64, errorMessage string) error
	AppendSegmentIssues(ctx context.Context, segmentID int64, issues []db.SegmentIssue) error
	UpdateFileStatus(ctx context.Context, fileID int64, status db.FileStatus, errorMessage *string) error
}

var _ Store = (*db.Pool)(nil)
