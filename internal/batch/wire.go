package batch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SystemPrompt renders the translation system prompt for one language
// pair. The model must echo every [SEG<n>] marker unchanged; the response
// parser keys on them.
func SystemPrompt(sourceLang, targetLang string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator. Translate each segment from %s to %s.\n\n", languageOrAny(sourceLang), languageOrAny(targetLang))
	b.WriteString("The input contains numbered segments, each introduced by a marker line of the form [SEG<number>].\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Reply with one [SEG<number>] marker line per input segment, followed by the translation of that segment.\n")
	b.WriteString("2. Keep every marker exactly as given. Do not merge, split, reorder, or renumber segments.\n")
	b.WriteString("3. Output nothing except markers and translations: no commentary, no code fences.\n")
	return b.String()
}

func languageOrAny(lang string) string {
	trimmed := strings.TrimSpace(lang)
	if trimmed == "" || trimmed == "und" {
		return "the source language"
	}
	return trimmed
}

// RenderPrompt serializes a batch as the user prompt:
// "[SEG<index>]\n<source>" blocks joined by blank lines.
func RenderPrompt(b Batch) string {
	var sb strings.Builder
	for i, seg := range b.Segments {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[SEG%d]\n%s", seg.SegmentIndex, seg.SourceText)
	}
	return sb.String()
}

var segMarkerRe = regexp.MustCompile(`\[SEG(\d+)\]`)

// ParseResponse scans the model output for [SEG<digits>] markers and maps
// each index to the text up to the next marker (or end of output).
// Malformed or unexpected markers are ignored rather than failing the
// batch: a segment index absent from the returned map is a per-segment
// failure, and siblings that did parse stay usable.
func ParseResponse(text string) map[int]string {
	matches := segMarkerRe.FindAllStringSubmatchIndex(text, -1)
	out := make(map[int]string, len(matches))
	for i, m := range matches {
		index, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		start := m[1]
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(text[start:end])
		if content == "" {
			continue
		}
		out[index] = content
	}
	return out
}
