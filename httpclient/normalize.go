package httpclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akjtjhklf/fnb-hrms-client/trace"
)

// Category groups terminal failures for reporting and metrics
type Category string

const (
	CategoryCredentialExpired Category = "credential_expired"
	CategoryCredentialInvalid Category = "credential_invalid"
	CategoryTransientServer   Category = "transient_server"
	CategoryPermanentClient   Category = "permanent_client"
	CategoryConnectivity      Category = "connectivity"
)

const (
	msgConnectivity = "Unable to reach the server. Check your network connection and try again."
	msgTimeout      = "The request timed out. Please try again."
)

var statusMessages = map[int]string{
	400: "The request was invalid.",
	401: "Your session has expired. Please sign in again.",
	403: "You do not have permission to perform this action.",
	404: "The requested resource was not found.",
	409: "The request conflicts with the current state of the resource.",
	422: "The submitted data could not be processed.",
	429: "Too many requests. Please slow down and try again.",
	500: "The server encountered an internal error.",
	502: "The server received an invalid response from an upstream service.",
	503: "The service is temporarily unavailable. Please try again later.",
	504: "The server timed out waiting for an upstream service.",
}

// Messages holds one or more user-facing messages. JSON accepts a string or an array of
// strings; a single message marshals back to a plain string.
type Messages []string

// String joins the messages with "; "
func (m Messages) String() string { return strings.Join(m, "; ") }

// MarshalJSON implements json.Marshaler
func (m Messages) MarshalJSON() ([]byte, error) {
	if len(m) == 1 {
		return json.Marshal(m[0])
	}
	if m == nil {
		return []byte(`[]`), nil
	}
	return json.Marshal([]string(m))
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Messages) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Messages{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("message must be a string or an array of strings: %w", err)
	}
	*m = list
	return nil
}

// NormalizedError is the single failure shape surfaced to callers. It is created once per
// originating failure and never mutated; errors.As reaches the underlying ClientError.
type NormalizedError struct {
	StatusCode int       `json:"statusCode"`
	Message    Messages  `json:"message"`
	RequestID  string    `json:"requestId,omitempty"`
	Path       string    `json:"path,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Category   Category  `json:"category"`
	cause      error
}

func (e *NormalizedError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Category, e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Category, e.StatusCode, e.Message)
}

func (e *NormalizedError) Unwrap() error { return e.cause }

// AsNormalizedError extracts a *NormalizedError from err's chain
func AsNormalizedError(err error) (*NormalizedError, bool) {
	var nerr *NormalizedError
	if errors.As(err, &nerr) {
		return nerr, true
	}
	return nil, false
}

// serverErrorBody is the error shape emitted by the HRMS backend
type serverErrorBody struct {
	StatusCode *int     `json:"statusCode"`
	Message    Messages `json:"message"`
	RequestID  string   `json:"requestId"`
	Path       string   `json:"path"`
	Timestamp  string   `json:"timestamp"`
}

// normalize converts one terminal failure into a NormalizedError. cause defaults to the
// failure's own error.
func normalize(rc *call, f *failure, category Category, cause error, now time.Time) *NormalizedError {
	if cause == nil {
		cause = f.err
	}
	nerr := &NormalizedError{
		RequestID: rc.requestID,
		Path:      rc.path,
		Timestamp: now,
		Category:  category,
		cause:     cause,
	}

	if f.resp == nil {
		nerr.Message = Messages{msgConnectivity}
		if IsErrorType(f.err, TimeoutError) {
			nerr.Message = Messages{msgTimeout}
		}
		return nerr
	}

	nerr.StatusCode = f.resp.StatusCode
	if id, ok := trace.FromHeader(f.resp.Headers); ok {
		nerr.RequestID = id
	}

	var body serverErrorBody
	if err := json.Unmarshal(f.resp.Body, &body); err == nil && body.StatusCode != nil && len(body.Message) > 0 {
		nerr.StatusCode = *body.StatusCode
		nerr.Message = body.Message
		if body.RequestID != "" {
			nerr.RequestID = body.RequestID
		}
		if body.Path != "" {
			nerr.Path = body.Path
		}
		if ts, err := time.Parse(time.RFC3339Nano, body.Timestamp); err == nil {
			nerr.Timestamp = ts
		}
		return nerr
	}

	nerr.Message = Messages{statusMessage(f.resp.StatusCode)}
	return nerr
}

func statusMessage(status int) string {
	if msg, ok := statusMessages[status]; ok {
		return msg
	}
	switch {
	case status >= 500:
		return "The server failed to process the request."
	case status >= 400:
		return "The request could not be completed."
	default:
		return "Unexpected response from the server."
	}
}
