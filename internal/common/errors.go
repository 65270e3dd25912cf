package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// CollaboratorError marks a transport/auth fault from an external
// collaborator (OCR or LLM). Fatal to a single invocation, never retried.
type CollaboratorError struct {
	Collaborator string // "ocr" | "llm"
	Message      string
	Cause        error
}

func (e *CollaboratorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s collaborator: %s: %v", e.Collaborator, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s collaborator: %s", e.Collaborator, e.Message)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// NewCollaboratorError wraps a collaborator fault.
func NewCollaboratorError(collaborator, message string, cause error) *CollaboratorError {
	return &CollaboratorError{Collaborator: collaborator, Message: message, Cause: cause}
}

// IsCollaboratorError reports whether err carries a CollaboratorError.
func IsCollaboratorError(err error) bool {
	var ce *CollaboratorError
	return errors.As(err, &ce)
}
