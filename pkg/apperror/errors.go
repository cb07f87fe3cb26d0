package apperror

import (
	"errors"
	"fmt"
)

// Code classifies an AppError so transports can map it to a status code
type Code string

const (
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotParticipant      Code = "NOT_PARTICIPANT"
	CodeNotFound            Code = "NOT_FOUND"
	CodeInvalidMessage      Code = "INVALID_MESSAGE"
	CodeInvalidParticipants Code = "INVALID_PARTICIPANTS"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeDeliveryFailure     Code = "DELIVERY_FAILURE"
	CodeInternal            Code = "INTERNAL"
)

// AppError is the structured error returned by stores and services
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// New creates an AppError with the given code
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError that keeps the underlying cause
func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Unauthenticated(msg string) error     { return New(CodeUnauthenticated, msg) }
func Forbidden(msg string) error           { return New(CodeForbidden, msg) }
func NotParticipant(msg string) error      { return New(CodeNotParticipant, msg) }
func NotFound(msg string) error            { return New(CodeNotFound, msg) }
func InvalidMessage(msg string) error      { return New(CodeInvalidMessage, msg) }
func InvalidParticipants(msg string) error { return New(CodeInvalidParticipants, msg) }
func Validation(msg string) error          { return New(CodeValidation, msg) }

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

func DeliveryFailure(msg string, cause error) error {
	return Wrap(CodeDeliveryFailure, msg, cause)
}

// CodeOf returns the code of the outermost AppError in the chain,
// or CodeInternal for foreign errors
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// HasCode reports whether any AppError in the chain carries the code
func HasCode(err error, code Code) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Message returns the human-readable message of the outermost AppError
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}
