package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones with a custom
// message still match their kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Generic errors.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// Loan lifecycle errors. Messages are the user-facing defaults.
var (
	ErrStudentHasActiveLoan = New("STUDENT_HAS_ACTIVE_LOAN", http.StatusConflict, "El estudiante ya tiene un préstamo activo")
	ErrBookUnavailable      = New("BOOK_UNAVAILABLE", http.StatusConflict, "El libro no está disponible")
	ErrTimeOrderViolation   = New("TIME_ORDER_VIOLATION", http.StatusBadRequest, "La fecha de préstamo no puede ser después de la fecha de devolución")
	ErrInvalidState         = New("INVALID_STATE", http.StatusBadRequest, "El estado solo puede ser Prestado, Vencido o Devuelto")
	ErrLoanNotFound         = New(ErrNotFound.Code, http.StatusNotFound, "Préstamo no encontrado")
	ErrInvalidAttribute     = New("INVALID_ATTRIBUTE", http.StatusBadRequest, "Atributo no válido")
	ErrInvalidDateFormat    = New("INVALID_DATE_FORMAT", http.StatusBadRequest, "Formato de fecha no válido")
	ErrAlreadyReturned      = New("ALREADY_RETURNED", http.StatusConflict, "El préstamo ya fue devuelto")
	ErrAlreadyOverdue       = New("ALREADY_OVERDUE", http.StatusConflict, "El préstamo está vencido")
	ErrSweepInProgress      = New("SWEEP_IN_PROGRESS", http.StatusConflict, "Ya hay una revisión de vencimientos en curso")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
