package util

import (
	"errors"
	"fmt"
	"net/http"
)

// Wire messages shared by the authentication pipeline.
const (
	InvalidTokenMessage   = "El token no es valido"
	BadCredentialsMessage = "Error de autenticación: Bad credentials"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("validation_failed", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	return &DomainError{
		Code:       "not_found",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewUnauthorized is returned when a protected route is reached without authentication.
func NewUnauthorized(message string) error {
	return NewDomainError("unauthorized", message, http.StatusUnauthorized, nil)
}

// NewForbidden is returned when the caller is authenticated but lacks a required role.
func NewForbidden(message string) error {
	return NewDomainError("forbidden", message, http.StatusForbidden, nil)
}

// NewInvalidToken hides the token failure kind behind a uniform 401.
func NewInvalidToken(cause error) error {
	return &DomainError{
		Code:       "invalid_token",
		Message:    InvalidTokenMessage,
		HTTPStatus: http.StatusUnauthorized,
		Err:        cause,
	}
}

// NewBadCredentials is the single login failure surfaced to clients.
func NewBadCredentials(cause error) error {
	return &DomainError{
		Code:       "bad_credentials",
		Message:    BadCredentialsMessage,
		HTTPStatus: http.StatusUnauthorized,
		Err:        cause,
	}
}

func NewTooManyRequests(message string) error {
	return NewDomainError("too_many_requests", message, http.StatusTooManyRequests, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("conflict", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "internal_error",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "internal_error",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeForStatus derives an error code for errors that only carry an HTTP status.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	}
	if status >= 500 {
		return "internal_error"
	}
	return "error"
}
