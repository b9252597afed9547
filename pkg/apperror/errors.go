package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrNotFound       = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrBadRequest     = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrConflict       = &AppError{Code: http.StatusConflict, Message: "Resource already exists"}
)

// ValidationKind names the local, non-retryable failure a caller made.
type ValidationKind string

const (
	KindEmptyTicket      ValidationKind = "empty_ticket"
	KindInvalidProduct   ValidationKind = "invalid_product"
	KindMissingReference ValidationKind = "missing_reference"
	KindNoActiveTicket   ValidationKind = "no_active_ticket"
	KindInvalidIndex     ValidationKind = "invalid_index"
	KindInvalidQuantity  ValidationKind = "invalid_quantity"
	KindInvalidAmount    ValidationKind = "invalid_amount"
	KindInvalidCredit    ValidationKind = "invalid_credit"
	KindInvalidMethod    ValidationKind = "invalid_method"
)

// ValidationError is a local rule violation. It is never retried and fails
// the triggering call synchronously.
type ValidationError struct {
	Kind    ValidationKind
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Is matches any ValidationError of the same kind, so callers can compare
// against the sentinels below with errors.Is.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// Ticket engine sentinels
var (
	ErrEmptyTicket      = &ValidationError{Kind: KindEmptyTicket, Message: "ticket has no line items"}
	ErrInvalidProduct   = &ValidationError{Kind: KindInvalidProduct, Message: "product has no id"}
	ErrMissingReference = &ValidationError{Kind: KindMissingReference, Message: "payment reference is required for non-cash methods"}
	ErrNoActiveTicket   = &ValidationError{Kind: KindNoActiveTicket, Message: "no active ticket"}
)

// NewValidation creates a ValidationError with a custom message
func NewValidation(kind ValidationKind, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// StorageError wraps a local persistence failure. A lost write here means a
// lost sale, so callers must propagate it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError wraps err, returning nil when err is nil
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// NetworkError means a whole request could not be completed: transport
// failure or a non-2xx response.
type NetworkError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network: %s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("network: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ServerRejection is a per-ticket business rejection returned by the server.
type ServerRejection struct {
	ClientTicketID string
	Reason         string
}

func (e *ServerRejection) Error() string {
	return fmt.Sprintf("ticket %s rejected: %s", e.ClientTicketID, e.Reason)
}

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}

// NewConflictError creates a conflict error with a custom message
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: message,
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsStorage reports whether err is a StorageError
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}

// IsNetwork reports whether err is a NetworkError
func IsNetwork(err error) bool {
	var n *NetworkError
	return errors.As(err, &n)
}

// GetAppError converts an error to AppError for the HTTP layer
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return &AppError{
			Code:    http.StatusUnprocessableEntity,
			Message: validationErr.Message,
			Errors:  []FieldError{{Field: string(validationErr.Kind), Message: validationErr.Message}},
		}
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return &AppError{Code: http.StatusInternalServerError, Message: storageErr.Error()}
	}

	var networkErr *NetworkError
	if errors.As(err, &networkErr) {
		return &AppError{Code: http.StatusServiceUnavailable, Message: networkErr.Error()}
	}

	var rejection *ServerRejection
	if errors.As(err, &rejection) {
		return &AppError{Code: http.StatusConflict, Message: rejection.Error()}
	}

	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	}
}
