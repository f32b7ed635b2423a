package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrSegmentNotFound = errors.New("segment not found")
	ErrIssueNotFound   = errors.New("issue not found")
)

// CreateFileWithSegments inserts one imported file and its extracted
// segments in a single transaction.
func (p *Pool) CreateFileWithSegments(ctx context.Context, file *TranslationFile, segments []Segment) error {
	if p == nil || p.gdb == nil {
		return fmt.Errorf("database pool is not initialized")
	}
	if file == nil {
		return fmt.Errorf("file is nil")
	}

	tx := p.gdb.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("begin import transaction: %w", tx.Error)
	}

	file.SegmentCount = len(segments)
	if err := tx.Create(file).Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("insert file: %w", err)
	}

	for i := range segments {
		segments[i].FileID = file.FileID
	}
	if len(segments) > 0 {
		if err := tx.CreateInBatches(segments, 200).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("insert segments: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit import transaction: %w", err)
	}
	return nil
}

func (p *Pool) GetFileByUUID(ctx context.Context, fileUUID string) (TranslationFile, error) {
	const q = `
SELECT
	f.file_id,
	f.file_uuid::text,
	f.project,
	f.name,
	f.format,
	f.dialect,
	f.source_lang,
	f.target_lang,
	f.status,
	f.segment_count,
	f.original_content,
	f.error_message,
	f.created_at,
	f.updated_at
FROM trans.files f
WHERE f.file_uuid = $1::uuid
  AND f.deleted_at IS NULL
LIMIT 1
`

	var row TranslationFile
	err := p.QueryRow(ctx, q, strings.TrimSpace(fileUUID)).Scan(
		&row.FileID,
		&row.FileUUID,
		&row.Project,
		&row.Name,
		&row.Format,
		&row.Dialect,
		&row.SourceLang,
		&row.TargetLang,
		&row.Status,
		&row.SegmentCount,
		&row.OriginalContent,
		&row.ErrorMessage,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return TranslationFile{}, ErrFileNotFound
		}
		return TranslationFile{}, fmt.Errorf("query file: %w", err)
	}
	return row, nil
}

func (p *Pool) GetFileByID(ctx context.Context, fileID int64) (TranslationFile, error) {
	const q = `
SELECT
	f.file_id,
	f.file_uuid::text,
	f.project,
	f.name,
	f.format,
	f.dialect,
	f.source_lang,
	f.target_lang,
	f.status,
	f.segment_count,
	f.original_content,
	f.error_message,
	f.created_at,
	f.updated_at
FROM trans.files f
WHERE f.file_id = $1
  AND f.deleted_at IS NULL
LIMIT 1
`

	var row TranslationFile
	err := p.QueryRow(ctx, q, fileID).Scan(
		&row.FileID,
		&row.FileUUID,
		&row.Project,
		&row.Name,
		&row.Format,
		&row.Dialect,
		&row.SourceLang,
		&row.TargetLang,
		&row.Status,
		&row.SegmentCount,
		&row.OriginalContent,
		&row.ErrorMessage,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return TranslationFile{}, ErrFileNotFound
		}
		return TranslationFile{}, fmt.Errorf("query file: %w", err)
	}
	return row, nil
}

// ListProjectFiles returns the non-deleted files of a project in import
// order. An empty project name matches every file.
func (p *Pool) ListProjectFiles(ctx context.Context, project string) ([]TranslationFile, error) {
	const q = `
SELECT
	f.file_id,
	f.file_uuid::text,
	f.project,
	f.name,
	f.dialect,
	f.source_lang,
	f.target_lang,
	f.status,
	f.segment_count
FROM trans.files f
WHERE f.deleted_at IS NULL
  AND ($1 = '' OR f.project = $1)
ORDER BY f.file_id ASC
`

	rows, err := p.Query(ctx, q, strings.TrimSpace(project))
	if err != nil {
		return nil, fmt.Errorf("query project files: %w", err)
	}
	defer rows.Close()

	items := make([]TranslationFile, 0, 8)
	for rows.Next() {
		var row TranslationFile
		if err := rows.Scan(
			&row.FileID,
			&row.FileUUID,
			&row.Project,
			&row.Name,
			&row.Dialect,
			&row.SourceLang,
			&row.TargetLang,
			&row.Status,
			&row.SegmentCount,
		); err != nil {
			return nil, fmt.Errorf("scan project file row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate project files: %w", err)
	}

	return items, nil
}

func (p *Pool) UpdateFileStatus(ctx context.Context, fileID int64, status FileStatus, errorMessage *string) error {
	const q = `
UPDATE trans.files
SET status = $2,
	error_message = $3,
	updated_at = now()
WHERE file_id = $1
`

	tag, err := p.Exec(ctx, q, fileID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("update file status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFileNotFound
	}
	return nil
}
