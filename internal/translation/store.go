package translation

import (
	"context"

	"horse.fit/verso/internal/db"
)

// Store is the segment-store surface the translation pass needs. Every
// mutation is a self-contained update scoped to one segment or file id;
// there are no cross-segment transactions, so a file's segments may be in
// mixed states mid-pipeline.
type Store interface {
	GetFileByUUID(ctx context.Context, fileUUID string) (db.TranslationFile, error)
	ListProjectFiles(ctx context.Context, project string) ([]db.TranslationFile, error)
	ListSegmentsByStatus(ctx context.Context, fileID int64, statuses ...db.SegmentStatus) ([]db.Segment, error)
	UpdateSegmentStatus(ctx context.Context, segmentID int64, status db.SegmentStatus) error
	MarkSegmentTranslated(ctx context.Context, segmentID int64, translation string, modelName *string, promptTokens, completionTokens int) error
	MarkSegmentTranslationFailed(ctx context.Context, segmentID int64, errorMessage string) error
	UpdateFileStatus(ctx context.Context, fileID int64, status db.FileStatus, errorMessage *string) error
}

var _ Store = (*db.Pool)(nil)
