package devserver

import (
	"errors"
	"fmt"
	"net/http"
)

// Repository errors. Implementations wrap these so handlers can map them
// to status codes.
var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("incorrect username or password")
)

// ErrNotFoundDetail indicates a missing record and carries the response detail.
type ErrNotFoundDetail struct {
	Detail string
}

func (e *ErrNotFoundDetail) Error() string { return e.Detail }

// Is makes errors.Is(err, ErrNotFound) match.
func (e *ErrNotFoundDetail) Is(target error) bool { return target == ErrNotFound }

// notFound builds an ErrNotFoundDetail, e.g. notFound("Application").
func notFound(kind string) error {
	return &ErrNotFoundDetail{Detail: kind + " not found"}
}

// ErrRejected indicates a request the server refuses on business rules.
type ErrRejected struct {
	Detail string
}

func (e *ErrRejected) Error() string { return e.Detail }

// ErrValidation indicates request validation failure.
type ErrValidation struct {
	Messages []string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %v", e.Messages)
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var (
		rejected   *ErrRejected
		validation *ErrValidation
	)
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrConflict), errors.As(err, &rejected):
		return http.StatusBadRequest
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
