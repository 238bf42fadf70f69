package shared

import (
	"errors"
	"net/http"
)

// AppError is a categorised failure with a stable code reported to API clients.
type AppError struct {
	Code    int
	Status  int
	Message string
}

// NewError builds a catalog entry. Packages keep the result in a package-level var
// and wrap it with fmt.Errorf("...: %w", err) to add context.
func NewError(code, status int, message string) *AppError {
	return &AppError{Code: code, Status: status, Message: message}
}

func (e *AppError) Error() string {
	return e.Message
}

// AsAppError extracts the first AppError in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

var (
	// ErrValidation indicates malformed input rejected before any side effect.
	ErrValidation = NewError(1001, http.StatusBadRequest, "validation failed")
	// ErrUnauthenticated indicates missing or invalid bearer token.
	ErrUnauthenticated = NewError(1002, http.StatusUnauthorized, "authentication required")
	// ErrForbidden indicates the principal lacks the required role.
	ErrForbidden = NewError(1003, http.StatusForbidden, "forbidden")
	// ErrNotFound is the generic not-found entry.
	ErrNotFound = NewError(1010, http.StatusNotFound, "not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = NewError(1005, http.StatusUnauthorized, "invalid credentials")
	// ErrProductNotFound is shared by catalog, cart and the inventory ledger.
	ErrProductNotFound = NewError(2001, http.StatusNotFound, "product not found")
	// ErrInternal is reported for uncategorised failures.
	ErrInternal = NewError(9999, http.StatusInternalServerError, "internal server error")
)
