package ghost

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/ghostwriter/internal/apperr"
)

// ErrorDetail is one field-level validation failure.
type ErrorDetail struct {
	Message string       `json:"message"`
	Params  DetailParams `json:"params"`
}

// DetailParams carries the constraint a field failed.
type DetailParams struct {
	AllowedValues []any `json:"allowedValues"`
}

// ErrorItem is one entry of the "errors" array in a failed response.
type ErrorItem struct {
	Message string          `json:"message"`
	Context string          `json:"context"`
	Type    string          `json:"type"`
	Details json.RawMessage `json:"details,omitempty"`
}

// ValidationDetails decodes field-level details when the API sent them as a list.
func (e ErrorItem) ValidationDetails() []ErrorDetail {
	var out []ErrorDetail
	if len(e.Details) == 0 || json.Unmarshal(e.Details, &out) != nil {
		return nil
	}
	return out
}

// APIError is a non-2xx response from the Admin API.
type APIError struct {
	StatusCode int
	Errors     []ErrorItem
}

// Error reports the first error's context (or message), followed by the
// first validation detail and its allowed values when present.
func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("ghost: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	first := e.Errors[0]
	msg := first.Context
	if msg == "" {
		msg = first.Message
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if d := first.ValidationDetails(); len(d) > 0 && d[0].Message != "" {
		msg += " (" + d[0].Message
		if vals := d[0].Params.AllowedValues; len(vals) > 0 {
			parts := make([]string, len(vals))
			for i, v := range vals {
				parts[i] = fmt.Sprint(v)
			}
			msg += " - " + strings.Join(parts, ", ")
		}
		msg += ")"
	}
	return msg
}

// Unwrap maps status codes onto the shared sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.ErrUnauthorized
	}
	return nil
}

func decodeAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload struct {
		Errors []ErrorItem `json:"errors"`
	}
	if json.Unmarshal(body, &payload) == nil {
		apiErr.Errors = payload.Errors
	}
	if len(apiErr.Errors) == 0 && len(body) > 0 {
		apiErr.Errors = []ErrorItem{{Message: strings.TrimSpace(string(body))}}
	}
	return apiErr
}
