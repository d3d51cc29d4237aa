package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes shared by the archive, the API client and the read surface.
const (
	CodeTransportFailure    = "TRANSPORT_FAILURE"
	CodeUpstreamError       = "UPSTREAM_ERROR"
	CodeMalformedIdentifier = "MALFORMED_IDENTIFIER"
	CodeDuplicateContent    = "DUPLICATE_CONTENT"
	CodeNotReportable       = "NOT_REPORTABLE"
	CodeRequestFailed       = "REQUEST_FAILED"
	CodeInvalidURL          = "INVALID_URL"
	CodeRequestBlocked      = "REQUEST_BLOCKED"
	CodeInternal            = "INTERNAL_ERROR"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Status  bool   `json:"status"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// HasCode reports whether err is an *AppError carrying code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

func NewTransportFailure(err error) *AppError {
	return &AppError{
		Code:    CodeTransportFailure,
		Message: "Failed",
		Err:     err,
	}
}

func NewUpstreamError(message string) *AppError {
	return &AppError{
		Code:    CodeUpstreamError,
		Message: message,
	}
}

func NewMalformedIdentifierError(err error) *AppError {
	return &AppError{
		Code:    CodeMalformedIdentifier,
		Message: "Malformed identifier",
		Err:     err,
	}
}

func NewDuplicateContentError(kind string, id any) *AppError {
	return &AppError{
		Code:    CodeDuplicateContent,
		Message: fmt.Sprintf("%s %v already in database", kind, id),
	}
}

func NewNotReportableError() *AppError {
	return &AppError{
		Code:    CodeNotReportable,
		Message: "Not reportable",
	}
}

// NewRequestFailedError wraps a read-path failure. The message of an upstream
// AppError is surfaced as-is.
func NewRequestFailedError(message string, err error) *AppError {
	var appErr *AppError
	if message == "" && errors.As(err, &appErr) {
		message = appErr.Message
	}
	return &AppError{
		Code:    CodeRequestFailed,
		Message: message,
		Err:     err,
	}
}

func NewInvalidURLError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidURL,
		Message: message,
	}
}

func NewRequestBlockedError(message string) *AppError {
	return &AppError{
		Code:    CodeRequestBlocked,
		Message: message,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "Internal server error",
		Err:     err,
	}
}

// StatusFor maps an error to the HTTP status the web layer renders it with.
func StatusFor(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case CodeMalformedIdentifier, CodeInvalidURL:
		return fiber.StatusBadRequest
	case CodeNotReportable:
		return fiber.StatusConflict
	case CodeRequestBlocked:
		return fiber.StatusTooManyRequests
	case CodeRequestFailed, CodeUpstreamError, CodeTransportFailure:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil && appErr.Code != CodeInternal {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(StatusFor(err)).JSON(response)
}
