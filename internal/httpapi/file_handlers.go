package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/importer"
	"horse.fit/verso/internal/xliff"
)

type fileItem struct {
	FileUUID     string     `json:"file_uuid"`
	Project      string     `json:"project"`
	Name         string     `json:"name"`
	Format       string     `json:"format,omitempty"`
	Dialect      string     `json:"dialect,omitempty"`
	SourceLang   string     `json:"source_lang"`
	TargetLang   string     `json:"target_lang"`
	Status       string     `json:"status"`
	SegmentCount int        `json:"segment_count"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func fileToItem(file db.TranslationFile, withTimes bool) fileItem {
	item := fileItem{
		FileUUID:     file.FileUUID,
		Project:      file.Project,
		Name:         file.Name,
		Format:       file.Format,
		Dialect:      file.Dialect,
		SourceLang:   file.SourceLang,
		TargetLang:   file.TargetLang,
		Status:       string(file.Status),
		SegmentCount: file.SegmentCount,
		ErrorMessage: file.ErrorMessage,
	}
	if withTimes {
		created := file.CreatedAt
		updated := file.UpdatedAt
		item.CreatedAt = &created
		item.UpdatedAt = &updated
	}
	return item
}

func (s *Server) handleFileImport(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return failValidation(c, map[string]string{"file": "multipart file field is required"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return failValidation(c, map[string]string{"file": "could not open upload"})
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return internalError(c, "Failed to read upload")
	}
	if len(data) > maxUploadBytes {
		return failValidation(c, map[string]string{"file": fmt.Sprintf("must be at most %d bytes", maxUploadBytes)})
	}

	params := importer.Params{
		Project:    c.FormValue("project"),
		Name:       strings.TrimSpace(c.FormValue("name")),
		Dialect:    c.FormValue("dialect"),
		SourceLang: c.FormValue("source_lang"),
		TargetLang: c.FormValue("target_lang"),
	}
	if params.Name == "" {
		params.Name = fileHeader.Filename
	}

	format := strings.TrimSpace(strings.ToLower(c.FormValue("format")))
	var file db.TranslationFile
	switch format {
	case "", "xliff":
		file, err = s.importer.ImportXLIFF(c.Request().Context(), data, params)
	case "html":
		file, err = s.importer.ImportHTML(c.Request().Context(), data, c.FormValue("page_url"), params)
	default:
		return failValidation(c, map[string]string{"format": "must be xliff or html"})
	}
	if err != nil {
		s.logger.Error().Err(err).Str("name", params.Name).Msg("file import failed")
		return fail(c, http.StatusUnprocessableEntity, err.Error(), nil)
	}

	return created(c, map[string]any{
		"file": fileToItem(file, false),
	})
}

func (s *Server) handleFileList(c echo.Context) error {
	project := strings.TrimSpace(c.QueryParam("project"))

	files, err := s.pool.ListProjectFiles(c.Request().Context(), project)
	if err != nil {
		s.logger.Error().Err(err).Str("project", project).Msg("list files failed")
		return internalError(c, "Failed to load files")
	}

	items := make([]fileItem, 0, len(files))
	for _, file := range files {
		items = append(items, fileToItem(file, false))
	}
	return success(c, map[string]any{
		"items":   items,
		"project": project,
	})
}

func (s *Server) handleFileDetail(c echo.Context) error {
	fileUUID := strings.TrimSpace(c.Param("file_uuid"))
	if fileUUID == "" {
		return failValidation(c, map[string]string{"file_uuid": "is required"})
	}

	file, err := s.pool.GetFileByUUID(c.Request().Context(), fileUUID)
	if err != nil {
		if errors.Is(err, db.ErrFileNotFound) {
			return failNotFound(c, "File not found")
		}
		s.logger.Error().Err(err).Str("file_uuid", fileUUID).Msg("load file failed")
		return internalError(c, "Failed to load file")
	}

	counts, err := s.pool.SegmentStatusCounts(c.Request().Context(), file.FileID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_uuid", fileUUID).Msg("load segment counts failed")
		return internalError(c, "Failed to load file")
	}

	statusCounts := make(map[string]int, len(counts))
	for status, count := range counts {
		statusCounts[string(status)] = count
	}

	return success(c, map[string]any{
		"file":           fileToItem(file, true),
		"segment_status": statusCounts,
	})
}

func (s *Server) handleFileSegments(c echo.Context) error {
	fileUUID := strings.TrimSpace(c.Param("file_uuid"))
	if fileUUID == "" {
		return failValidation(c, map[string]string{"file_uuid": "is required"})
	}

	file, err := s.pool.GetFileByUUID(c.Request().Context(), fileUUID)
	if err != nil {
		if errors.Is(err, db.ErrFileNotFound) {
			return failNotFound(c, "File not found")
		}
		s.logger.Error().Err(err).Str("file_uuid", fileUUID).Msg("load file failed")
		return internalError(c, "Failed to load file")
	}

	segments, err := s.pool.ListSegmentsByFile(c.Request().Context(), file.FileID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_uuid", fileUUID).Msg("list segments failed")
		return internalError(c, "Failed to load segments")
	}

	items := make([]segmentItem, 0, len(segments))
	for _, seg := range segments {
		items = append(items, segmentToItem(seg))
	}
	return success(c, map[string]any{
		"file_uuid": file.FileUUID,
		"items":     items,
	})
}

func (s *Server) handleFileExport(c echo.Context) error {
	fileUUID := strings.TrimSpace(c.Param("file_uuid"))
	if fileUUID == "" {
		return failValidation(c, map[string]string{"file_uuid": "is required"})
	}

	file, err := s.pool.GetFileByUUID(c.Request().Context(), fileUUID)
	if err != nil {
		if errors.Is(err, db.ErrFileNotFound) {
			return failNotFound(c, "File not found")
		}
		s.logger.Error().Err(err).Str("file_uuid", fileUUID).Msg("load file failed")
		return internalError(c, "Failed to load file")
	}
	if file.Format != "xliff" {
		return fail(c, http.StatusUnprocessableEntity, "Only interchange files can be exported", nil)
	}

	dialect, err := xliff.DialectByName(file.Dialect)
	if err != nil {
		return fail(c, http.StatusUnprocessableEntity, err.Error(), nil)
	}

	segments, err := s.pool.ListSegmentsByFile(c.Request().Context(), file.FileID)
	if err != nil {
		s.logger.Error().Err(err).Str("file_uuid", fileUUID).Msg("list segments failed")
		return internalError(c, "Failed to load segments")
	}

	out, warnings, err := xliff.Inject(file.OriginalContent, segments, dialect)
	if err != nil {
		s.logger.Error().Err(err).Str("file_uuid", fileUUID).Msg("export injection failed")
		return internalError(c, "Failed to export file")
	}
	for _, w := range warnings {
		s.logger.Warn().Str("file_uuid", fileUUID).Str("unit_id", w.UnitID).Str("reason", w.Reason).Msg("segment skipped on export")
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.Name))
	return c.Blob(http.StatusOK, "application/xml; charset=utf-8", out)
}
