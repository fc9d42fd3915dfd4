package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound                  = "NOT_FOUND"
	CodeValidation                = "VALIDATION_ERROR"
	CodeUnauthorized              = "UNAUTHORIZED"
	CodeConflict                  = "CONFLICT"
	CodeInternal                  = "INTERNAL_ERROR"
	CodeInvalidInput              = "INVALID_INPUT"
	CodeTooManyRequests           = "TOO_MANY_REQUESTS"
	CodeInvalidState              = "INVALID_STATE"
	CodeGatewayUnavailable        = "GATEWAY_UNAVAILABLE"
	CodeVerificationIndeterminate = "VERIFICATION_INDETERMINATE"
	CodePaymentRejected           = "PAYMENT_REJECTED"
	CodeInternalInconsistency     = "INTERNAL_INCONSISTENCY"
)

// Sentinels for errors.Is matching. Any AppError with the same code matches.
var (
	ErrNotFound                  = &AppError{Code: CodeNotFound}
	ErrInvalidState              = &AppError{Code: CodeInvalidState}
	ErrGatewayUnavailable        = &AppError{Code: CodeGatewayUnavailable}
	ErrVerificationIndeterminate = &AppError{Code: CodeVerificationIndeterminate}
	ErrPaymentRejected           = &AppError{Code: CodePaymentRejected}
	ErrInternalInconsistency     = &AppError{Code: CodeInternalInconsistency}
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) StatusCode() int {
	if e.HTTPStatus == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTPStatus
}

func (e *AppError) Retryable() bool {
	return e.Code == CodeGatewayUnavailable || e.Code == CodeVerificationIndeterminate
}

func (e *AppError) ToJSON() []byte {
	data, _ := json.Marshal(ErrorResponse{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
	return data
}

type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func New(code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

func Wrap(err error, code, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

func NotFoundWithID(resource, id string) *AppError {
	return NotFound(resource).WithDetails(map[string]any{
		"resource": resource,
		"id":       id,
	})
}

func Validation(message string, details map[string]any) *AppError {
	return New(CodeValidation, message, http.StatusUnprocessableEntity).WithDetails(details)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

func TooManyRequests(message string) *AppError {
	return New(CodeTooManyRequests, message, http.StatusTooManyRequests)
}

func Internal(message string, err error) *AppError {
	return Wrap(err, CodeInternal, message, http.StatusInternalServerError)
}

// InvalidState signals that the booking or payment is not in a state that
// permits the requested operation (already paid, initiation in flight, ...).
func InvalidState(message string) *AppError {
	return New(CodeInvalidState, message, http.StatusConflict)
}

func GatewayUnavailable(err error) *AppError {
	return Wrap(err, CodeGatewayUnavailable, "Payment gateway is temporarily unavailable", http.StatusServiceUnavailable)
}

func VerificationIndeterminate(txRef string, err error) *AppError {
	return Wrap(err, CodeVerificationIndeterminate, "Payment outcome is not yet known, retry verification later", http.StatusServiceUnavailable).
		WithDetails(map[string]any{"tx_ref": txRef})
}

func PaymentRejected(reason string, err error) *AppError {
	return Wrap(err, CodePaymentRejected, reason, http.StatusPaymentRequired)
}

func InternalInconsistency(message string, err error) *AppError {
	return Wrap(err, CodeInternalInconsistency, message, http.StatusInternalServerError)
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
