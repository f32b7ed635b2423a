package review

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Finding is one defect reported by the reviewer model, before it is
// normalized into a stored issue.
type Finding struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Description string  `json:"description"`
	Start       *int    `json:"start,omitempty"`
	End         *int    `json:"end,omitempty"`
	Suggestion  *string `json:"suggestion,omitempty"`
}

// Assessment is the parsed review verdict for one segment.
type Assessment struct {
	Score              *float64  `json:"score,omitempty"`
	ModificationDegree *float64  `json:"modification_degree,omitempty"`
	Findings           []Finding `json:"issues"`
}

// SystemPrompt renders the review system prompt for one language pair.
func SystemPrompt(sourceLang, targetLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translation reviewer. The source language is %s and the target language is %s.\n\n", languageOrAny(sourceLang), languageOrAny(targetLang))
	b.WriteString("Assess the translation against the source text and reply with a single JSON object, nothing else:\n")
	b.WriteString(`{"score": <0-100>, "modification_degree": <0.0-1.0>, "issues": [{"type": "<terminology|grammar|style|accuracy|formatting|consistency|other>", "severity": "<high|medium|low>", "description": "...", "start": <offset or null>, "end": <offset or null>, "suggestion": "..."}]}`)
	b.WriteString("\n\nOffsets are character positions into the translation with start <= end. An empty issues array means the translation is acceptable as is.")
	return b.String()
}

func languageOrAny(lang string) string {
	trimmed := strings.TrimSpace(lang)
	if trimmed == "" || trimmed == "und" {
		return "unspecified"
	}
	return trimmed
}

// UserPrompt renders the source/translation pair under review.
func UserPrompt(source, translation string) string {
	var b strings.Builder
	b.WriteString("Source:\n")
	b.WriteString(source)
	b.WriteString("\n\nTranslation:\n")
	b.WriteString(translation)
	return b.String()
}

// ParseAssessment extracts the reviewer's JSON object from raw model
// output. Surrounding prose and code fences are tolerated; anything
// without a parseable object is an error, because a review with no
// verdict is unusable.
func ParseAssessment(content string) (*Assessment, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("review response contains no JSON object")
	}

	var parsed Assessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode review response: %w", err)
	}
	return &parsed, nil
}

// ClampFindings drops or repairs finding positions that do not satisfy
// 0 <= start <= end <= len(translation).
func ClampFindings(findings []Finding, translation string) []Finding {
	limit := len(translation)
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if f.Start == nil || f.End == nil {
			f.Start = nil
			f.End = nil
			out = append(out, f)
			continue
		}
		start, end := *f.Start, *f.End
		if start < 0 || end < start || end > limit {
			f.Start = nil
			f.End = nil
		}
		out = append(out, f)
	}
	return out
}
