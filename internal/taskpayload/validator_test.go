package taskpayload

import (
	"encoding/json"
	"testing"

	"horse.fit/verso/internal/queue"
)

const (
	fileUUID    = "3f1a2b4c-9d8e-4f70-a1b2-c3d4e5f60789"
	segmentUUID = "7e6d5c4b-3a29-4180-9f8e-7d6c5b4a3920"
)

func TestValidateTranslateFile_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"file_uuid":"` + fileUUID + `",
		"provider":"openai",
		"requeue_failed":true
	}`)

	if err := Validate(queue.TaskTranslateFile, payload); err != nil {
		t.Fatalf("expected payload to be valid, got error: %v", err)
	}

	var decoded TranslateFile
	if err := Decode(queue.TaskTranslateFile, payload, &decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if decoded.FileUUID != fileUUID {
		t.Fatalf("expected file_uuid=%s, got %q", fileUUID, decoded.FileUUID)
	}
	if !decoded.RequeueFailed {
		t.Fatalf("expected requeue_failed=true")
	}
}

func TestValidateTranslateFile_MissingRequired(t *testing.T) {
	payload := json.RawMessage(`{"provider":"openai"}`)

	if err := Validate(queue.TaskTranslateFile, payload); err == nil {
		t.Fatalf("expected validation to fail for missing file_uuid")
	}
}

func TestValidateTranslateFile_MalformedUUID(t *testing.T) {
	payload := json.RawMessage(`{"file_uuid":"not-a-uuid"}`)

	if err := Validate(queue.TaskTranslateFile, payload); err == nil {
		t.Fatalf("expected validation to fail for a malformed uuid")
	}
}

func TestValidateTranslateProject_EmptyProject(t *testing.T) {
	payload := json.RawMessage(`{"project":""}`)

	if err := Validate(queue.TaskTranslateProject, payload); err == nil {
		t.Fatalf("expected validation to fail for an empty project name")
	}
}

func TestValidateReviewBatch_Valid(t *testing.T) {
	payload := json.RawMessage(`{
		"segment_uuids":["` + segmentUUID + `"],
		"concurrency":8,
		"batch_size":25,
		"stop_on_error":true
	}`)

	var decoded ReviewBatch
	if err := Decode(queue.TaskReviewBatch, payload, &decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(decoded.SegmentUUIDs) != 1 || decoded.SegmentUUIDs[0] != segmentUUID {
		t.Fatalf("expected one segment uuid, got %v", decoded.SegmentUUIDs)
	}
	if decoded.Concurrency != 8 {
		t.Fatalf("expected concurrency=8, got %d", decoded.Concurrency)
	}
	if decoded.BatchSize != 25 {
		t.Fatalf("expected batch_size=25, got %d", decoded.BatchSize)
	}
}

func TestValidateReviewBatch_BatchSizeOutOfRange(t *testing.T) {
	payload := json.RawMessage(`{
		"segment_uuids":["` + segmentUUID + `"],
		"batch_size":0
	}`)

	if err := Validate(queue.TaskReviewBatch, payload); err == nil {
		t.Fatalf("expected validation to fail for batch_size below the minimum")
	}
}

func TestValidateReviewBatch_EmptyList(t *testing.T) {
	payload := json.RawMessage(`{"segment_uuids":[]}`)

	if err := Validate(queue.TaskReviewBatch, payload); err == nil {
		t.Fatalf("expected validation to fail for an empty segment_uuids list")
	}
}

func TestValidateReviewBatch_ConcurrencyOutOfRange(t *testing.T) {
	payload := json.RawMessage(`{
		"segment_uuids":["` + segmentUUID + `"],
		"concurrency":200
	}`)

	if err := Validate(queue.TaskReviewBatch, payload); err == nil {
		t.Fatalf("expected validation to fail for concurrency above the cap")
	}
}

func TestValidateReviewFile_StatusFilters(t *testing.T) {
	payload := json.RawMessage(`{
		"file_uuid":"` + fileUUID + `",
		"include":["translated","review_failed"],
		"batch_size":5,
		"only_new":true
	}`)

	var decoded ReviewFile
	if err := Decode(queue.TaskReviewFile, payload, &decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(decoded.Include) != 2 {
		t.Fatalf("expected two include statuses, got %v", decoded.Include)
	}
	if decoded.BatchSize != 5 {
		t.Fatalf("expected batch_size=5, got %d", decoded.BatchSize)
	}
	if !decoded.OnlyNew {
		t.Fatalf("expected only_new=true")
	}
}

func TestValidateReviewFile_UnknownStatus(t *testing.T) {
	payload := json.RawMessage(`{
		"file_uuid":"` + fileUUID + `",
		"exclude":["approved"]
	}`)

	if err := Validate(queue.TaskReviewFile, payload); err == nil {
		t.Fatalf("expected validation to fail for an unknown segment status")
	}
}

func TestValidateReviewText_MissingTranslation(t *testing.T) {
	payload := json.RawMessage(`{"source_text":"Hello"}`)

	if err := Validate(queue.TaskReviewText, payload); err == nil {
		t.Fatalf("expected validation to fail for a missing translation")
	}
}

func TestValidate_UnknownProperty(t *testing.T) {
	payload := json.RawMessage(`{
		"segment_uuid":"` + segmentUUID + `",
		"priority":5
	}`)

	if err := Validate(queue.TaskReviewSegment, payload); err == nil {
		t.Fatalf("expected validation to fail for an unknown property")
	}
}

func TestValidate_UnknownTaskType(t *testing.T) {
	if err := Validate(queue.TaskType("compact_database"), json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected an error for an unregistered task type")
	}
}

func TestValidate_TrailingContent(t *testing.T) {
	payload := json.RawMessage(`{"source_text":"a","translation":"b"} extra`)

	if err := Validate(queue.TaskReviewText, payload); err == nil {
		t.Fatalf("expected validation to fail for trailing content")
	}
}

func TestValidate_EmptyPayload(t *testing.T) {
	if err := Validate(queue.TaskReviewText, nil); err == nil {
		t.Fatalf("expected validation to fail for an empty payload")
	}
}
