package shared

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents the kind of failure a character lookup ended in
type ErrorCategory string

const (
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryDecoding       ErrorCategory = "decoding"
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryNoConnectivity ErrorCategory = "no_connectivity"
)

// Sentinels matched by errors.Is against any LookupError of the same category.
var (
	ErrValidation     = &LookupError{Category: ErrorCategoryValidation}
	ErrNotFound       = &LookupError{Category: ErrorCategoryNotFound}
	ErrServer         = &LookupError{Category: ErrorCategoryServer}
	ErrDecoding       = &LookupError{Category: ErrorCategoryDecoding}
	ErrConnection     = &LookupError{Category: ErrorCategoryConnection}
	ErrNoConnectivity = &LookupError{Category: ErrorCategoryNoConnectivity}
)

// ErrFetchCancelled is reported to the caller of a fetch that a newer fetch superseded.
var ErrFetchCancelled = errors.New("fetch cancelled by a newer request")

// LookupError is the single error type a lookup can end in. All categories are terminal.
type LookupError struct {
	Category   ErrorCategory `json:"category"`
	Message    string        `json:"message"`
	Name       string        `json:"name,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	FieldPath  string        `json:"field_path,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Cause      error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *LookupError) Error() string {
	switch e.Category {
	case ErrorCategoryServer:
		return fmt.Sprintf("[%s:%d] %s", e.Category, e.StatusCode, e.Message)
	case ErrorCategoryDecoding:
		return fmt.Sprintf("[%s:%s] %s", e.Category, e.FieldPath, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Category, e.Message)
}

// Unwrap returns the underlying error
func (e *LookupError) Unwrap() error {
	return e.Cause
}

// Is matches another LookupError by category only.
func (e *LookupError) Is(target error) bool {
	t, ok := target.(*LookupError)
	if !ok {
		return false
	}
	return t.Category == e.Category
}

// UserMessage returns the one message shown to end users for this error.
func (e *LookupError) UserMessage() string {
	switch e.Category {
	case ErrorCategoryValidation:
		return e.Message
	case ErrorCategoryNotFound:
		return "Character not found."
	case ErrorCategoryServer:
		return fmt.Sprintf("Server error (%d). Please try again later.", e.StatusCode)
	case ErrorCategoryDecoding:
		return fmt.Sprintf("Could not read the server response (%s).", e.FieldPath)
	case ErrorCategoryConnection:
		return fmt.Sprintf("Connection error: %s", e.Message)
	case ErrorCategoryNoConnectivity:
		return "No internet connection and no cached data for this character."
	default:
		return e.Message
	}
}

// HTTPStatus maps the category onto the status code the API surface answers with.
func (e *LookupError) HTTPStatus() int {
	switch e.Category {
	case ErrorCategoryValidation:
		return http.StatusBadRequest
	case ErrorCategoryNotFound:
		return http.StatusNotFound
	case ErrorCategoryServer, ErrorCategoryDecoding:
		return http.StatusBadGateway
	case ErrorCategoryConnection:
		return http.StatusGatewayTimeout
	case ErrorCategoryNoConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// LogError logs the error with structured fields
func (e *LookupError) LogError() {
	logrus.WithFields(logrus.Fields{
		"component":        "CharacterLookup",
		"error_category":   e.Category,
		"error_message":    e.Message,
		"character_name":   e.Name,
		"status_code":      e.StatusCode,
		"field_path":       e.FieldPath,
		"timestamp":        e.Timestamp,
		"underlying_error": e.Cause,
	}).Warn("Character lookup failed")
}

// NewValidationError reports a name that failed the naming rules.
func NewValidationError(name string, cause error) *LookupError {
	return &LookupError{
		Category:  ErrorCategoryValidation,
		Message:   cause.Error(),
		Name:      name,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewNotFoundError reports an HTTP 404 from upstream.
func NewNotFoundError(name string) *LookupError {
	return &LookupError{
		Category:   ErrorCategoryNotFound,
		Message:    fmt.Sprintf("character %q not found", name),
		Name:       name,
		StatusCode: http.StatusNotFound,
		Timestamp:  time.Now(),
	}
}

// NewServerError reports any other non-2xx upstream status.
func NewServerError(name string, statusCode int) *LookupError {
	return &LookupError{
		Category:   ErrorCategoryServer,
		Message:    fmt.Sprintf("upstream returned HTTP %d: %s", statusCode, http.StatusText(statusCode)),
		Name:       name,
		StatusCode: statusCode,
		Timestamp:  time.Now(),
	}
}

// NewDecodingError reports a body that does not match the expected schema at fieldPath.
func NewDecodingError(name, fieldPath string, cause error) *LookupError {
	msg := "response does not match the expected schema"
	if cause != nil {
		msg = cause.Error()
	}
	return &LookupError{
		Category:  ErrorCategoryDecoding,
		Message:   msg,
		Name:      name,
		FieldPath: fieldPath,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewConnectionError reports a transport failure or timeout.
func NewConnectionError(name, reason string, cause error) *LookupError {
	return &LookupError{
		Category:  ErrorCategoryConnection,
		Message:   reason,
		Name:      name,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// NewNoConnectivityError reports that the monitor considers the network down.
func NewNoConnectivityError(name string) *LookupError {
	return &LookupError{
		Category:  ErrorCategoryNoConnectivity,
		Message:   "no connectivity and no cached data",
		Name:      name,
		Timestamp: time.Now(),
	}
}

// AsLookupError extracts a LookupError from err, if any
func AsLookupError(err error) (*LookupError, bool) {
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr, true
	}
	return nil, false
}
