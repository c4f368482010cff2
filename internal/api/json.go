package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/ghostwriter/internal/apperr"
	"github.com/starford/ghostwriter/internal/ghost"
	"github.com/starford/ghostwriter/internal/publish"
)

// Machine-readable error codes carried next to the human message.
const (
	CodeBadRequest   = "bad_request"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeInvalidNote  = "invalid_config"
	CodeBusy         = "publish_in_progress"
	CodeRemote       = "remote_error"
	CodeInternal     = "internal"
)

type errResponse struct {
	Code  string `json:"code" validate:"required"`
	Error string `json:"error" validate:"required"`
	// Status is the remote HTTP status for remote_error responses.
	Status int `json:"status,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: json encode failed", slog.String("error", err.Error()))
	}
}

func writeHTML(w http.ResponseWriter, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func writeFail(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errResponse{Code: code, Error: msg})
}

// writeError maps domain errors to status codes. Remote API failures are
// reported as a bad gateway with the remote message.
func writeError(w http.ResponseWriter, op, path string, err error) {
	var apiErr *ghost.APIError
	remote := errors.As(err, &apiErr)
	switch {
	case errors.Is(err, apperr.ErrNotFound) && !remote:
		writeFail(w, http.StatusNotFound, CodeNotFound, "not found")
	case errors.Is(err, apperr.ErrInvalidConfig):
		writeFail(w, http.StatusUnprocessableEntity, CodeInvalidNote, publish.FailureMessage(err))
	case errors.Is(err, apperr.ErrPublishInProgress):
		writeFail(w, http.StatusConflict, CodeBusy, "publish already in progress")
	case remote:
		writeJSON(w, http.StatusBadGateway, errResponse{Code: CodeRemote, Error: apiErr.Error(), Status: apiErr.StatusCode})
	default:
		slog.Error("api: "+op+" failed", slog.String("path", path), slog.String("error", err.Error()))
		writeFail(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
