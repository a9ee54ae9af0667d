package store

import (
	"errors"
	"fmt"
)

// ErrUnknownActionType is wrapped by every Error with ErrCodeUnknownActionType.
var ErrUnknownActionType = errors.New("unknown action type")

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeInvalidMutation indicates a mutation table entry is not callable.
	ErrCodeInvalidMutation ErrorCode = "INVALID_MUTATION"

	// ErrCodeUnknownActionType indicates an action names no mutation.
	ErrCodeUnknownActionType ErrorCode = "UNKNOWN_ACTION_TYPE"
)

// Error is returned by store construction and raw dispatch.
type Error struct {
	Code    ErrorCode
	Message string
	Store   string
	Action  string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s (store=%s, action=%s)", e.Code, e.Message, e.Store, e.Action)
	}
	return fmt.Sprintf("%s: %s (store=%s)", e.Code, e.Message, e.Store)
}

// Unwrap returns the underlying sentinel, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func unknownAction(storeName, action string) *Error {
	return &Error{
		Code:    ErrCodeUnknownActionType,
		Message: fmt.Sprintf("no mutation named %q", action),
		Store:   storeName,
		Action:  action,
		Err:     ErrUnknownActionType,
	}
}

// IsUnknownActionType returns true if err is or wraps an unknown action error.
func IsUnknownActionType(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeUnknownActionType
	}
	return false
}

// IsInvalidMutation returns true if err is or wraps an invalid mutation error.
func IsInvalidMutation(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == ErrCodeInvalidMutation
	}
	return false
}
