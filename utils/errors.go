package utils

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kataras/iris/v12"
)

// ErrorCode identifies a recoverable, caller-visible failure of a messaging
// operation. Codes are stable strings exposed in API responses.
type ErrorCode string

const (
	CodeNotFound          ErrorCode = "not_found"
	CodePermissionDenied  ErrorCode = "permission_denied"
	CodeValidation        ErrorCode = "validation_error"
	CodeCapacityExceeded  ErrorCode = "capacity_exceeded"
	CodeAlreadyMember     ErrorCode = "already_member"
	CodeNotAMember        ErrorCode = "not_a_member"
	CodeEditWindowExpired ErrorCode = "edit_window_expired"
	CodeGroupEnded        ErrorCode = "group_ended"
	CodeDecryption        ErrorCode = "decryption_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func NotFound(msg string) *AppError {
	return &AppError{Code: CodeNotFound, Message: msg}
}

func PermissionDenied(msg string) *AppError {
	return &AppError{Code: CodePermissionDenied, Message: msg}
}

func Validation(msg string) *AppError {
	return &AppError{Code: CodeValidation, Message: msg}
}

func CapacityExceeded(msg string) *AppError {
	return &AppError{Code: CodeCapacityExceeded, Message: msg}
}

func AlreadyMember(msg string) *AppError {
	return &AppError{Code: CodeAlreadyMember, Message: msg}
}

func NotAMember(msg string) *AppError {
	return &AppError{Code: CodeNotAMember, Message: msg}
}

func EditWindowExpired(msg string) *AppError {
	return &AppError{Code: CodeEditWindowExpired, Message: msg}
}

func GroupEnded(msg string) *AppError {
	return &AppError{Code: CodeGroupEnded, Message: msg}
}

func Decryption(msg string, cause error) *AppError {
	return &AppError{Code: CodeDecryption, Message: msg, Cause: cause}
}

func statusOf(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeValidation, CodeEditWindowExpired:
		return http.StatusUnprocessableEntity
	case CodeCapacityExceeded, CodeAlreadyMember, CodeNotAMember, CodeGroupEnded:
		return http.StatusConflict
	case CodeDecryption:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// HandleAppError renders err as a JSON error response. Unrecognized errors
// become plain 500s without leaking internals.
func HandleAppError(ctx iris.Context, err error) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		JSONError(ctx, statusOf(appErr.Code), string(appErr.Code), appErr.Message)
		return
	}
	JSONError(ctx, http.StatusInternalServerError, "internal", "internal server error")
}
