package queue

import (
	"encoding/json"
	"time"
)

// TaskType identifies a kind of queued work.
type TaskType string

const (
	TaskTranslateFile    TaskType = "translate_file"
	TaskTranslateProject TaskType = "translate_project"
	TaskReviewSegment    TaskType = "review_segment"
	TaskReviewBatch      TaskType = "review_batch"
	TaskReviewFile       TaskType = "review_file"
	TaskReviewText       TaskType = "review_text"
)

// KnownTaskTypes lists every submittable task type.
func KnownTaskTypes() []TaskType {
	return []TaskType{
		TaskTranslateFile,
		TaskTranslateProject,
		TaskReviewSegment,
		TaskReviewBatch,
		TaskReviewFile,
		TaskReviewText,
	}
}

// TaskStatus is the lifecycle state of a queued task. Completed, failed
// and cancelled are terminal.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusActive    TaskStatus = "active"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Progress reports partial completion. Callers always get counts plus the
// first error encountered, never a bare boolean, so they can act on
// partial success.
type Progress struct {
	Processed  int    `json:"processed"`
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	FirstError string `json:"first_error,omitempty"`
}

// Snapshot is a point-in-time copy of one task, safe to hand to callers.
type Snapshot struct {
	ID         string          `json:"id"`
	Type       TaskType        `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   int             `json:"priority"`
	Status     TaskStatus      `json:"status"`
	Progress   Progress        `json:"progress"`
	RetryCount int             `json:"retry_count"`
	Result     any             `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

type task struct {
	id       string
	taskType TaskType
	payload  json.RawMessage
	priority int
	seq      uint64

	status     TaskStatus
	progress   Progress
	retryCount int
	result     any
	err        string

	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time
}

func (t *task) snapshot() Snapshot {
	return Snapshot{
		ID:         t.id,
		Type:       t.taskType,
		Payload:    t.payload,
		Priority:   t.priority,
		Status:     t.status,
		Progress:   t.progress,
		RetryCount: t.retryCount,
		Result:     t.result,
		Error:      t.err,
		CreatedAt:  t.createdAt,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
	}
}
