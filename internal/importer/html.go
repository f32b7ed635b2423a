package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"

	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/langdetect"
)

const (
	DefaultFetchTimeout  = 12 * time.Second
	DefaultBodyByteLimit = 2 * 1024 * 1024

	defaultUserAgent = "VERSO-Importer/1.0 (+https://horse.fit/verso)"
)

// FetchOptions controls HTTP behavior when importing from a URL.
type FetchOptions struct {
	Timeout       time.Duration
	BodyByteLimit int64
	UserAgent     string
	HTTPClient    *http.Client
}

// ImportHTML extracts readable text from an HTML document and persists
// it as a pending file with one segment per paragraph.
func (s *Service) ImportHTML(ctx context.Context, data []byte, pageURL string, p Params) (db.TranslationFile, error) {
	if s == nil || s.store == nil {
		return db.TranslationFile{}, fmt.Errorf("importer is not initialized")
	}
	if len(data) == 0 {
		return db.TranslationFile{}, fmt.Errorf("document is empty")
	}

	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil || pageURL == "" {
		base, _ = url.Parse("https://localhost/import")
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return db.TranslationFile{}, fmt.Errorf("readability parse: %w", err)
	}

	var rendered bytes.Buffer
	if err := article.RenderText(&rendered); err != nil {
		return db.TranslationFile{}, fmt.Errorf("render readability text: %w", err)
	}

	text := CleanText(rendered.String())
	if text == "" {
		text = CleanText(article.Excerpt())
	}
	if text == "" {
		return db.TranslationFile{}, fmt.Errorf("reader extracted empty content")
	}

	paragraphs := strings.Split(text, "\n\n")
	sourceLang := resolveLang(p.SourceLang, "", func() string {
		return langdetect.DetectCode(text)
	})
	targetLang := resolveLang(p.TargetLang, "", nil)

	file := db.TranslationFile{
		Project:         strings.TrimSpace(p.Project),
		Name:            importName(p.Name, article.Title()),
		Format:          "html",
		Dialect:         "standard",
		SourceLang:      sourceLang,
		TargetLang:      targetLang,
		Status:          db.FileStatusPending,
		OriginalContent: data,
	}

	segments := make([]db.Segment, 0, len(paragraphs))
	for i, paragraph := range paragraphs {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}
		segments = append(segments, db.Segment{
			SegmentIndex: len(segments),
			UnitID:       fmt.Sprintf("p%d", i+1),
			SourceText:   paragraph,
			Status:       db.SegmentStatusPending,
		})
	}
	if len(segments) == 0 {
		return db.TranslationFile{}, fmt.Errorf("document has no usable paragraphs")
	}

	if err := s.store.CreateFileWithSegments(ctx, &file, segments); err != nil {
		return db.TranslationFile{}, err
	}

	s.logger.Info().
		Str("file_uuid", file.FileUUID).
		Str("name", file.Name).
		Int("segments", len(segments)).
		Str("source_lang", sourceLang).
		Msg("html document imported")
	return file, nil
}

// ImportHTMLFromURL fetches a page and imports its readable content.
func (s *Service) ImportHTMLFromURL(ctx context.Context, pageURL string, p Params, opts FetchOptions) (db.TranslationFile, error) {
	page := strings.TrimSpace(pageURL)
	if page == "" {
		return db.TranslationFile{}, fmt.Errorf("page URL is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	bodyLimit := opts.BodyByteLimit
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyByteLimit
	}

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, page, nil)
	if err != nil {
		return db.TranslationFile{}, fmt.Errorf("build request: %w", err)
	}

	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return db.TranslationFile{}, fmt.Errorf("fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return db.TranslationFile{}, fmt.Errorf("fetch status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, bodyLimit))
	if err != nil {
		return db.TranslationFile{}, fmt.Errorf("read body: %w", err)
	}

	return s.ImportHTML(ctx, body, page, p)
}

// CleanText normalizes line endings and collapses extra in-line
// whitespace, keeping blank lines as paragraph boundaries.
func CleanText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")

	lines := strings.Split(normalized, "\n")
	paragraphs := make([]string, 0, len(lines))
	for _, line := range lines {
		clean := strings.Join(strings.Fields(strings.TrimSpace(line)), " ")
		if clean == "" {
			continue
		}
		paragraphs = append(paragraphs, clean)
	}

	return strings.TrimSpace(strings.Join(paragraphs, "\n\n"))
}
