package db

// SegmentStatus is the lifecycle state of one translatable segment.
type SegmentStatus string

const (
	SegmentStatusPending           SegmentStatus = "pending"
	SegmentStatusTranslating       SegmentStatus = "translating"
	SegmentStatusTranslated        SegmentStatus = "translated"
	SegmentStatusTranslationFailed SegmentStatus = "translation_failed"
	SegmentStatusReviewing         SegmentStatus = "reviewing"
	SegmentStatusReviewCompleted   SegmentStatus = "review_completed"
	SegmentStatusReviewFailed      SegmentStatus = "review_failed"
	SegmentStatusCompleted         SegmentStatus = "completed"
)

// segmentTransitions lists the allowed forward edges of the segment state
// machine. Failed states may re-enter the pipeline; completed may not.
var segmentTransitions = map[SegmentStatus][]SegmentStatus{
	SegmentStatusPending:           {SegmentStatusTranslating},
	SegmentStatusTranslating:       {SegmentStatusTranslated, SegmentStatusTranslationFailed},
	SegmentStatusTranslationFailed: {SegmentStatusPending, SegmentStatusTranslating},
	SegmentStatusTranslated:        {SegmentStatusReviewing},
	SegmentStatusReviewing:         {SegmentStatusReviewCompleted, SegmentStatusReviewFailed},
	SegmentStatusReviewFailed:      {SegmentStatusTranslated, SegmentStatusReviewing},
	SegmentStatusReviewCompleted:   {SegmentStatusCompleted},
	SegmentStatusCompleted:         nil,
}

// CanTransition reports whether the pipeline may move a segment from one
// status to another.
func CanTransition(from, to SegmentStatus) bool {
	for _, next := range segmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidSegmentStatus reports whether the value is a known segment status.
func IsValidSegmentStatus(s SegmentStatus) bool {
	_, ok := segmentTransitions[s]
	return ok
}

// FileStatus is the lifecycle state of one imported file.
type FileStatus string

const (
	FileStatusPending     FileStatus = "pending"
	FileStatusTranslating FileStatus = "translating"
	FileStatusTranslated  FileStatus = "translated"
	FileStatusReviewing   FileStatus = "reviewing"
	FileStatusCompleted   FileStatus = "completed"
	FileStatusFailed      FileStatus = "failed"
)

// Issue classification for review findings.
const (
	IssueTypeTerminology = "terminology"
	IssueTypeGrammar     = "grammar"
	IssueTypeStyle       = "style"
	IssueTypeAccuracy    = "accuracy"
	IssueTypeFormatting  = "formatting"
	IssueTypeConsistency = "consistency"
	IssueTypeOther       = "other"
)

const (
	IssueSeverityHigh   = "high"
	IssueSeverityMedium = "medium"
	IssueSeverityLow    = "low"
)

var knownIssueTypes = map[string]struct{}{
	IssueTypeTerminology: {},
	IssueTypeGrammar:     {},
	IssueTypeStyle:       {},
	IssueTypeAccuracy:    {},
	IssueTypeFormatting:  {},
	IssueTypeConsistency: {},
	IssueTypeOther:       {},
}

// NormalizeIssueType maps unknown issue types to "other".
func NormalizeIssueType(raw string) string {
	if _, ok := knownIssueTypes[raw]; ok {
		return raw
	}
	return IssueTypeOther
}

// NormalizeIssueSeverity maps unknown severities to "medium".
func NormalizeIssueSeverity(raw string) string {
	switch raw {
	case IssueSeverityHigh, IssueSeverityMedium, IssueSeverityLow:
		return raw
	}
	return IssueSeverityMedium
}
