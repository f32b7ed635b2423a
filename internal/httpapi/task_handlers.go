package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/verso/internal/queue"
	"horse.fit/verso/internal/taskpayload"
)

type taskSubmitRequest struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Priority int             `json:"priority"`
}

func (s *Server) handleTaskSubmit(c echo.Context) error {
	var req taskSubmitRequest
	if err := c.Bind(&req); err != nil {
		return failValidation(c, map[string]string{"body": "must be a JSON object"})
	}

	taskType := queue.TaskType(strings.TrimSpace(req.Type))
	if !knownTaskType(taskType) {
		return failValidation(c, map[string]string{"type": "unknown task type"})
	}

	if err := taskpayload.Validate(taskType, req.Payload); err != nil {
		return failValidation(c, map[string]string{"payload": err.Error()})
	}

	taskID, err := s.engine.Submit(taskType, req.Payload, req.Priority)
	if err != nil {
		s.logger.Error().Err(err).Str("task_type", string(taskType)).Msg("task submit failed")
		return internalError(c, "Failed to submit task")
	}

	return accepted(c, map[string]any{
		"task_id": taskID,
	})
}

func (s *Server) handleTaskStatus(c echo.Context) error {
	taskID := strings.TrimSpace(c.Param("task_id"))
	if taskID == "" {
		return failValidation(c, map[string]string{"task_id": "is required"})
	}

	snapshot, ok := s.engine.Status(taskID)
	if !ok {
		return failNotFound(c, "Task not found")
	}
	return success(c, snapshot)
}

func (s *Server) handleTaskCancel(c echo.Context) error {
	taskID := strings.TrimSpace(c.Param("task_id"))
	if taskID == "" {
		return failValidation(c, map[string]string{"task_id": "is required"})
	}

	if s.engine.Cancel(taskID) {
		return success(c, map[string]any{
			"task_id":   taskID,
			"cancelled": true,
		})
	}

	snapshot, ok := s.engine.Status(taskID)
	if !ok {
		return failNotFound(c, "Task not found")
	}
	// Active or terminal work cannot be cancelled cooperatively.
	return fail(c, http.StatusConflict, "Task is not pending", map[string]any{
		"task_id": taskID,
		"status":  snapshot.Status,
	})
}

func knownTaskType(taskType queue.TaskType) bool {
	for _, known := range queue.KnownTaskTypes() {
		if taskType == known {
			return true
		}
	}
	return false
}
