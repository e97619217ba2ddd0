package domain

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	CodeUnavailable       ErrorCode = "UNAVAILABLE"
	CodeFailedPrecond     ErrorCode = "FAILED_PRECONDITION"
	CodeProtocolViolation ErrorCode = "PROTOCOL_VIOLATION"
	CodeInternal          ErrorCode = "INTERNAL"
	CodeCanceled          ErrorCode = "CANCELED"
	CodeDeadlineExceeded  ErrorCode = "DEADLINE_EXCEEDED"
)

// Error is the structured error envelope used across the pipeline. Op
// identifies the failing component and operation ("registry.add",
// "model.detect_intent"), which is how the error taxonomy is reported.
type Error struct {
	Code      ErrorCode
	Op        string
	Message   string
	Cause     error
	Retryable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" && e.Cause != nil {
		msg = e.Cause.Error()
	}
	if e.Op == "" {
		if msg == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Code, msg)
	}
	if msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func E(code ErrorCode, op, msg string, cause error) *Error {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &Error{
		Code:    code,
		Op:      op,
		Message: msg,
		Cause:   cause,
	}
}

func Wrap(code ErrorCode, op string, err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		if existing.Op != "" || op == "" {
			return existing
		}
		return &Error{
			Code:      existing.Code,
			Op:        op,
			Message:   existing.Message,
			Cause:     existing.Cause,
			Retryable: existing.Retryable,
		}
	}
	return E(code, op, "", err)
}

// CodeFrom extracts an error code from err, mapping sentinel errors to
// their canonical codes.
func CodeFrom(err error) (ErrorCode, bool) {
	if err == nil {
		return "", false
	}
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Code != "" {
		return domainErr.Code, true
	}
	switch {
	case errors.Is(err, ErrDuplicateTool):
		return CodeAlreadyExists, true
	case errors.Is(err, ErrToolNotFound), errors.Is(err, ErrSchemaNotFound):
		return CodeNotFound, true
	case errors.Is(err, ErrNotConfirmed), errors.Is(err, ErrEmbedderRequired), errors.Is(err, ErrInvalidLocator), errors.Is(err, ErrCommandNotAllowed):
		return CodeFailedPrecond, true
	case errors.Is(err, ErrUnknownToolCall):
		return CodeProtocolViolation, true
	case errors.Is(err, ErrMalformedIntent), errors.Is(err, ErrEmptyQuery):
		return CodeInvalidArgument, true
	case errors.Is(err, ErrIllegalTransition):
		return CodeInternal, true
	case errors.Is(err, ErrStoreClosed):
		return CodeUnavailable, true
	default:
		return "", false
	}
}
