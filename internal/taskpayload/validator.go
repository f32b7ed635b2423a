// Package taskpayload validates and decodes the JSON payloads accepted
// by the task submission surface. Validation failures are permanent:
// they reject the submission synchronously and never reach a worker.
package taskpayload

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/verso/internal/queue"
)

//go:embed task_payloads.schema.json
var taskPayloadsSchemaJSON string

// TranslateFile queues one file's pending segments for translation.
type TranslateFile struct {
	FileUUID      string `json:"file_uuid"`
	Provider      string `json:"provider,omitempty"`
	RequeueFailed bool   `json:"requeue_failed,omitempty"`
}

// TranslateProject queues every file of a project.
type TranslateProject struct {
	Project       string `json:"project"`
	Provider      string `json:"provider,omitempty"`
	RequeueFailed bool   `json:"requeue_failed,omitempty"`
}

// ReviewSegment reviews one translated segment.
type ReviewSegment struct {
	SegmentUUID string `json:"segment_uuid"`
	Provider    string `json:"provider,omitempty"`
}

// ReviewBatch reviews an explicit set of segments concurrently.
type ReviewBatch struct {
	SegmentUUIDs []string `json:"segment_uuids"`
	Provider     string   `json:"provider,omitempty"`
	Concurrency  int      `json:"concurrency,omitempty"`
	BatchSize    int      `json:"batch_size,omitempty"`
	StopOnError  bool     `json:"stop_on_error,omitempty"`
}

// ReviewFile reviews every eligible segment of one file.
type ReviewFile struct {
	FileUUID    string   `json:"file_uuid"`
	Provider    string   `json:"provider,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
	BatchSize   int      `json:"batch_size,omitempty"`
	StopOnError bool     `json:"stop_on_error,omitempty"`
	OnlyNew     bool     `json:"only_new,omitempty"`
	Include     []string `json:"include,omitempty"`
	Exclude     []string `json:"exclude,omitempty"`
}

// ReviewText reviews an ad-hoc source/translation pair without touching
// the store.
type ReviewText struct {
	SourceText  string `json:"source_text"`
	Translation string `json:"translation"`
	SourceLang  string `json:"source_lang,omitempty"`
	TargetLang  string `json:"target_lang,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

var schemaFragments = map[queue.TaskType]string{
	queue.TaskTranslateFile:    "task_payloads.schema.json#/$defs/translate_file",
	queue.TaskTranslateProject: "task_payloads.schema.json#/$defs/translate_project",
	queue.TaskReviewSegment:    "task_payloads.schema.json#/$defs/review_segment",
	queue.TaskReviewBatch:      "task_payloads.schema.json#/$defs/review_batch",
	queue.TaskReviewFile:       "task_payloads.schema.json#/$defs/review_file",
	queue.TaskReviewText:       "task_payloads.schema.json#/$defs/review_text",
}

var (
	compileOnce        sync.Once
	compiledFragments  map[queue.TaskType]*jsonschema.Schema
	compiledSchemasErr error
)

// Validate checks a raw payload against the schema for its task type.
func Validate(taskType queue.TaskType, payload json.RawMessage) error {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema(taskType)
	if err != nil {
		return err
	}

	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

// Decode validates the payload and unmarshals it into dst.
func Decode(taskType queue.TaskType, payload json.RawMessage, dst any) error {
	if err := Validate(taskType, payload); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

func loadSchema(taskType queue.TaskType) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("task_payloads.schema.json", strings.NewReader(taskPayloadsSchemaJSON)); err != nil {
			compiledSchemasErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		fragments := make(map[queue.TaskType]*jsonschema.Schema, len(schemaFragments))
		for tt, ref := range schemaFragments {
			schema, err := compiler.Compile(ref)
			if err != nil {
				compiledSchemasErr = fmt.Errorf("compile schema for %s: %w", tt, err)
				return
			}
			fragments[tt] = schema
		}
		compiledFragments = fragments
	})

	if compiledSchemasErr != nil {
		return nil, compiledSchemasErr
	}
	schema, ok := compiledFragments[taskType]
	if !ok {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
	return schema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
