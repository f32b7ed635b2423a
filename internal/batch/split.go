package batch

import (
	"fmt"

	"horse.fit/verso/internal/db"
)

// Batch is a transient group of segments sent together in one completion
// request. It is never persisted.
type Batch struct {
	Segments        []db.Segment
	EstimatedTokens int
}

// Skip records a segment excluded from every batch, with the reason.
type Skip struct {
	Segment db.Segment
	Reason  string
}

// Split packs segments into batches under maxInputTokens using greedy
// bin-packing in original index order. Order is preserved for
// deterministic output and stable error attribution; segments are never
// sorted by size. A segment whose own estimate (plus the system prompt)
// exceeds the budget is excluded entirely and reported as a Skip;
// segment content is never truncated.
func Split(segments []db.Segment, systemPromptTokens, maxInputTokens int) ([]Batch, []Skip, error) {
	if maxInputTokens <= 0 {
		return nil, nil, fmt.Errorf("max input tokens must be > 0, got %d", maxInputTokens)
	}
	if systemPromptTokens < 0 {
		systemPromptTokens = 0
	}

	budget := maxInputTokens - systemPromptTokens
	if budget <= 0 {
		return nil, nil, fmt.Errorf("system prompt (%d tokens) exhausts the input budget (%d)", systemPromptTokens, maxInputTokens)
	}

	var (
		batches []Batch
		skips   []Skip
		current Batch
	)

	flush := func() {
		if len(current.Segments) > 0 {
			batches = append(batches, current)
			current = Batch{}
		}
	}

	for _, seg := range segments {
		cost := segmentTokens(seg)
		if cost > budget {
			skips = append(skips, Skip{
				Segment: seg,
				Reason:  fmt.Sprintf("segment %d alone exceeds the input budget (%d > %d tokens)", seg.SegmentIndex, cost, budget),
			})
			continue
		}
		if current.EstimatedTokens+cost > budget {
			flush()
		}
		current.Segments = append(current.Segments, seg)
		current.EstimatedTokens += cost
	}
	flush()

	return batches, skips, nil
}

// segmentTokens estimates one segment's share of a rendered prompt,
// including its marker line and separating blank line.
func segmentTokens(seg db.Segment) int {
	return EstimateTokens(fmt.Sprintf("[SEG%d]\n%s\n\n", seg.SegmentIndex, seg.SourceText))
}
