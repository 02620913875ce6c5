// Package apperr defines the structured error taxonomy shared by the core
// services. Every public operation returns a closed set of outcomes; an
// AppError escaping a service boundary always carries one of the codes below.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Lifecycle / scoring errors
	CodeNotFound             = "NOT_FOUND"
	CodeLoadFailure          = "LOAD_FAILURE"
	CodeInferenceFailure     = "INFERENCE_FAILURE"
	CodePersistenceFailure   = "PERSISTENCE_FAILURE"
	CodeConfigurationMissing = "CONFIGURATION_MISSING"

	// Request-level errors (HTTP surface)
	CodeBadRequest    = "BAD_REQUEST"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError represents a structured application error
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
	}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// NotFound reports a missing resource (activation target, record lookup miss).
func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// LoadFailure reports a corrupt or unreadable model artifact.
func LoadFailure(version string, err error) *AppError {
	return &AppError{
		Code:    CodeLoadFailure,
		Message: fmt.Sprintf("failed to load model artifact for version %s", version),
		Status:  http.StatusInternalServerError,
		Details: map[string]any{"version": version},
		Err:     err,
	}
}

// InferenceFailure reports a scorer that raised during predict/probability.
func InferenceFailure(err error) *AppError {
	return &AppError{
		Code:    CodeInferenceFailure,
		Message: "scoring failed",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// PersistenceFailure reports a failed transactional write.
func PersistenceFailure(operation string, err error) *AppError {
	return &AppError{
		Code:    CodePersistenceFailure,
		Message: fmt.Sprintf("persistence failure: %s", operation),
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ConfigurationMissing reports an operation attempted with no active model.
func ConfigurationMissing(message string) *AppError {
	if message == "" {
		message = "no active model configured"
	}
	return &AppError{
		Code:    CodeConfigurationMissing,
		Message: message,
		Status:  http.StatusServiceUnavailable,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func InvalidInput(field, reason string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: fmt.Sprintf("invalid input for '%s': %s", field, reason),
		Status:  http.StatusBadRequest,
		Details: map[string]any{"field": field},
	}
}

func AlreadyExists(resource string) *AppError {
	return &AppError{
		Code:    CodeAlreadyExists,
		Message: fmt.Sprintf("%s already exists", resource),
		Status:  http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

func InternalWithError(err error) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: "internal server error",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Helper functions
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return InternalWithError(err)
}

func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
