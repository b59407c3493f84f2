package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// APIError carries whatever the server said about a failed request. DRF-style
// payloads put the message in "detail", "error", "non_field_errors" or a
// per-field "errors" map; all four are captured so callers can surface the
// server's own wording.
type APIError struct {
	Status         int
	Detail         string
	ErrMsg         string
	NonFieldErrors []string
	Fields         map[string][]string
}

type apiErrorPayload struct {
	Detail         string              `json:"detail"`
	Error          string              `json:"error"`
	NonFieldErrors []string            `json:"non_field_errors"`
	Errors         map[string][]string `json:"errors"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Message())
}

// Message picks the most specific user-displayable text available, falling
// back to a bare status line.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.ErrMsg != "" {
		return e.ErrMsg
	}
	if len(e.NonFieldErrors) > 0 {
		return strings.Join(e.NonFieldErrors, " ")
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var parts []string
		for _, k := range keys {
			parts = append(parts, e.Fields[k]...)
		}
		return strings.Join(parts, " ")
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// HasMessage reports whether the server sent any displayable text of its
// own, as opposed to Message falling back to the bare status line.
func (e *APIError) HasMessage() bool {
	return e.Detail != "" || e.ErrMsg != "" || len(e.NonFieldErrors) > 0 || len(e.Fields) > 0
}

// DecodeAPIError reads a non-2xx response body into an APIError. Bodies that
// are not JSON are kept as the raw error text when short enough to display.
func DecodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var payload apiErrorPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		if text := strings.TrimSpace(string(raw)); len(text) <= 200 && !strings.HasPrefix(text, "<") {
			apiErr.ErrMsg = text
		}
		return apiErr
	}

	apiErr.Detail = payload.Detail
	apiErr.ErrMsg = payload.Error
	apiErr.NonFieldErrors = payload.NonFieldErrors
	apiErr.Fields = payload.Errors
	return apiErr
}
