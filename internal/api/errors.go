package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AuthError means the backend rejected our key or we have none stored.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string {
	return e.Msg
}

// StatusError is a non-2xx response with the backend's detail message.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if strings.TrimSpace(e.Detail) == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d)", e.Detail, e.StatusCode)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// decodeError turns a non-2xx response into an error, extracting the
// backend's {"detail": "..."} payload when present.
func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	detail := strings.TrimSpace(string(body))
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && strings.TrimSpace(payload.Detail) != "" {
		detail = strings.TrimSpace(payload.Detail)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		if detail == "" {
			detail = "Unauthorized: invalid API key"
		}
		return &AuthError{Msg: detail}
	}
	return &StatusError{StatusCode: resp.StatusCode, Detail: detail}
}
