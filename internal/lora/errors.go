package lora

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a device reference matched nothing in the registry
	ErrNotFound = errors.New("lora not found")

	// ErrUnknownAction indicates an action name outside encender/apagar/reiniciar
	ErrUnknownAction = errors.New("unknown action")

	// ErrUnreachable indicates the backend did not answer the connection check
	ErrUnreachable = errors.New("lora api not reachable")
)

// APIError is returned when the backend answered with a non-2xx status.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("lora api error: %d - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("lora api error: %d", e.Status)
}

// ServerMessage returns the backend-provided message of err, if any.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// parseMessage reads `message` from an error body. Validation errors carry a
// list of strings instead of a single one.
func parseMessage(body []byte) string {
	var data struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &data); err != nil || len(data.Message) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(data.Message, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(data.Message, &many); err == nil {
		return strings.Join(many, ", ")
	}
	return ""
}

// UserError pairs a notification-ready message with its cause.
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Err }

// Describe wraps err so that its message is the backend's, or fallback when
// the backend gave none. A nil err stays nil.
func Describe(err error, fallback string) error {
	if err == nil {
		return nil
	}
	msg := ServerMessage(err)
	if msg == "" {
		msg = fallback
	}
	return &UserError{Message: msg, Err: err}
}
