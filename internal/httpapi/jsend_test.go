package httpapi

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestEnvelopeHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(c echo.Context) error
		wantCode   int
		wantStatus string
	}{
		{
			name:       "success",
			write:      func(c echo.Context) error { return success(c, map[string]any{"ok": true}) },
			wantCode:   http.StatusOK,
			wantStatus: "success",
		},
		{
			name:       "accepted",
			write:      func(c echo.Context) error { return accepted(c, map[string]any{"task_id": "t1"}) },
			wantCode:   http.StatusAccepted,
			wantStatus: "success",
		},
		{
			name:       "created",
			write:      func(c echo.Context) error { return created(c, map[string]any{"file": "f1"}) },
			wantCode:   http.StatusCreated,
			wantStatus: "success",
		},
		{
			name:       "not found",
			write:      func(c echo.Context) error { return failNotFound(c, "Task not found") },
			wantCode:   http.StatusNotFound,
			wantStatus: "fail",
		},
		{
			name:       "internal error",
			write:      func(c echo.Context) error { return internalError(c, "boom") },
			wantCode:   http.StatusInternalServerError,
			wantStatus: "error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, c, rec := newJSONContext(http.MethodGet, "/", "")
			if err := tt.write(c); err != nil {
				t.Fatalf("write envelope: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("status code = %d, want %d", rec.Code, tt.wantCode)
			}
			resp := decodeJSend(t, rec)
			if resp.Status != tt.wantStatus {
				t.Fatalf("envelope status = %q, want %q", resp.Status, tt.wantStatus)
			}
		})
	}
}

func TestFailValidationCarriesFieldErrors(t *testing.T) {
	t.Parallel()

	_, c, rec := newJSONContext(http.MethodPost, "/", "")
	if err := failValidation(c, map[string]string{"type": "unknown task type"}); err != nil {
		t.Fatalf("failValidation: %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	resp := decodeJSend(t, rec)
	data, ok := resp.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T, want object", resp.Data)
	}
	fieldErrs, ok := data["validation_errors"].(map[string]any)
	if !ok {
		t.Fatalf("validation_errors missing from data: %v", data)
	}
	if got := fieldErrs["type"]; got != "unknown task type" {
		t.Fatalf("validation_errors[type] = %v, want %q", got, "unknown task type")
	}
}
