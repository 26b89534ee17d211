package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joelkehle/kontrata/internal/dialogue"
	"github.com/joelkehle/kontrata/internal/records"
)

const (
	CodeValidation  = "validation"
	CodeNotFound    = "not_found"
	CodeUnavailable = "unavailable"
	CodeInternal    = "internal"
)

type Error struct {
	Code    string
	Message string
	Status  int
	Details []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func statusForCode(code string) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: statusForCode(code)}
}

func validationError(err error) *Error {
	return newError(CodeValidation, "invalid JSON: "+err.Error())
}

// asError maps engine errors onto API errors.
func asError(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var ve *dialogue.ValidationError
	if errors.As(err, &ve) {
		e := newError(CodeValidation, "contract details failed validation")
		e.Details = ve.Outcome.Errors
		return e
	}
	if errors.Is(err, records.ErrNotFound) || errors.Is(err, dialogue.ErrSessionNotFound) {
		return newError(CodeNotFound, err.Error())
	}
	return newError(CodeInternal, err.Error())
}
