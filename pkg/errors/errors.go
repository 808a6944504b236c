package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeBadRequest indicates a malformed or otherwise rejected request
	ErrorTypeBadRequest ErrorType = "BAD_REQUEST"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeUnauthorized indicates unauthorized access
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypeForbidden indicates an authenticated caller lacking permission
	ErrorTypeForbidden ErrorType = "FORBIDDEN"

	// ErrorTypeTooLarge indicates a request body or file over its limit
	ErrorTypeTooLarge ErrorType = "TOO_LARGE"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"
)

// AppError represents an application error.
// Fields, ErrorList and Suggestions are surfaced to clients as-is.
type AppError struct {
	Type        ErrorType
	Message     string
	Err         error
	Fields      []string
	ErrorList   []string
	Suggestions []string

	exposed bool
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error type to a response status code
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeValidation, ErrorTypeBadRequest, ErrorTypeConflict:
		return http.StatusBadRequest
	case ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case ErrorTypeForbidden:
		return http.StatusForbidden
	case ErrorTypeTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// IsOperational reports whether the message is safe to show to a client
func (e *AppError) IsOperational() bool {
	return e.exposed || (e.Type != ErrorTypeInternal && e.Type != ErrorTypeExternal)
}

// Expose marks the message of an internal or external error as safe to show
func (e *AppError) Expose() *AppError {
	e.exposed = true
	return e
}

// WithFields attaches offending field names
func (e *AppError) WithFields(fields ...string) *AppError {
	e.Fields = append(e.Fields, fields...)
	return e
}

// WithSuggestions attaches hints for the client
func (e *AppError) WithSuggestions(suggestions ...string) *AppError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// FieldError describes one invalid field
type FieldError struct {
	Field   string
	Message string
}

// NewFieldValidationError builds a validation error listing every invalid field.
// The message joins the per-field messages.
func NewFieldValidationError(fieldErrs []FieldError) *AppError {
	e := &AppError{Type: ErrorTypeValidation}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		e.Fields = append(e.Fields, fe.Field)
		e.ErrorList = append(e.ErrorList, fe.Message)
		msgs = append(msgs, fe.Message)
	}
	e.Message = strings.Join(msgs, " ")
	return e
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeBadRequest,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeForbidden,
		Message: message,
	}
}

// NewTooLargeError creates a new payload too large error
func NewTooLargeError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeTooLarge,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// As returns the AppError in err's chain, if any
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}
