// Package importer turns uploaded or fetched documents into stored
// files with ordered, pending segments.
package importer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/langdetect"
	"horse.fit/verso/internal/language"
	"horse.fit/verso/internal/xliff"
)

// Store is the persistence surface an import needs.
type Store interface {
	CreateFileWithSegments(ctx context.Context, file *db.TranslationFile, segments []db.Segment) error
}

var _ Store = (*db.Pool)(nil)

// Params describes one import request. SourceLang and TargetLang
// override anything declared in the document; blank values fall back to
// document metadata and then to detection.
type Params struct {
	Project    string
	Name       string
	Dialect    string
	SourceLang string
	TargetLang string
}

type Service struct {
	store  Store
	logger zerolog.Logger
}

func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ImportXLIFF extracts a bilingual interchange document and persists it
// with one segment per trans-unit. The raw bytes are kept for export.
func (s *Service) ImportXLIFF(ctx context.Context, data []byte, p Params) (db.TranslationFile, error) {
	if s == nil || s.store == nil {
		return db.TranslationFile{}, fmt.Errorf("importer is not initialized")
	}
	if len(data) == 0 {
		return db.TranslationFile{}, fmt.Errorf("document is empty")
	}

	dialect, err := xliff.DialectByName(p.Dialect)
	if err != nil {
		return db.TranslationFile{}, err
	}

	extracted, meta, warnings, err := xliff.Extract(data, dialect)
	if err != nil {
		return db.TranslationFile{}, err
	}
	for _, w := range warnings {
		s.logger.Warn().Str("unit_id", w.UnitID).Str("reason", w.Reason).Msg("trans-unit skipped on import")
	}
	if len(extracted) == 0 {
		return db.TranslationFile{}, fmt.Errorf("document has no usable translation units")
	}

	detected := langdetect.DetectCode(joinSources(extracted))
	sourceLang := resolveLang(p.SourceLang, meta.SourceLang, func() string {
		return detected
	})
	targetLang := resolveLang(p.TargetLang, meta.TargetLang, nil)

	if detected != "" && !language.SamePrimary(sourceLang, detected) {
		s.logger.Warn().
			Str("declared", sourceLang).
			Str("detected", detected).
			Msg("declared source language disagrees with detection")
	}

	file := db.TranslationFile{
		Project:         strings.TrimSpace(p.Project),
		Name:            importName(p.Name, meta.Original),
		Format:          "xliff",
		Dialect:         dialect.Name,
		SourceLang:      sourceLang,
		TargetLang:      targetLang,
		Status:          db.FileStatusPending,
		OriginalContent: data,
	}

	segments := make([]db.Segment, 0, len(extracted))
	for _, seg := range extracted {
		segments = append(segments, db.Segment{
			SegmentIndex: seg.Index,
			UnitID:       seg.UnitID,
			UnitState:    seg.UnitState,
			SourceText:   seg.SourceText,
			Translation:  seg.Translation,
			Status:       db.SegmentStatus(seg.Status),
		})
	}

	if err := s.store.CreateFileWithSegments(ctx, &file, segments); err != nil {
		return db.TranslationFile{}, err
	}

	s.logger.Info().
		Str("file_uuid", file.FileUUID).
		Str("name", file.Name).
		Int("segments", len(segments)).
		Str("source_lang", sourceLang).
		Str("target_lang", targetLang).
		Msg("interchange document imported")
	return file, nil
}

// resolveLang picks the first usable language value: explicit parameter,
// then document metadata, then detection. und marks an unknown language.
func resolveLang(param, declared string, detect func() string) string {
	if code := language.NormalizeTag(param); code != "" {
		return code
	}
	if code := language.NormalizeTag(declared); code != "" {
		return code
	}
	if detect != nil {
		if code := detect(); code != "" {
			return code
		}
	}
	return "und"
}

func importName(param, original string) string {
	if name := strings.TrimSpace(param); name != "" {
		return name
	}
	if name := strings.TrimSpace(original); name != "" {
		return name
	}
	return "untitled"
}

// joinSources builds a detection sample from the first few source texts.
func joinSources(segments []xliff.ExtractedSegment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i >= 20 || b.Len() > 2000 {
			break
		}
		b.WriteString(seg.SourceText)
		b.WriteString("\n")
	}
	return b.String()
}
