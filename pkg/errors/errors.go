package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	CodeAppError      = "APP_ERROR"
	CodeAPIError      = "API_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodeStore         = "STORE_ERROR"
	CodeService       = "SERVICE_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeUnknownExpert = "UNKNOWN_EXPERT_ID"

	CodeInvalidResponseShape = "INVALID_RESPONSE_SHAPE"
	CodeEmptyResponse        = "EMPTY_RESPONSE"
	CodeMalformedJSON        = "MALFORMED_JSON"
	CodeAnalysisTimedOut     = "ANALYSIS_TIMED_OUT"
	CodeExpertNotConfigured  = "EXPERT_NOT_CONFIGURED"
	CodeNetworkUnreachable   = "NETWORK_UNREACHABLE"
	CodeWebhookNotConfigured = "WEBHOOK_NOT_CONFIGURED"
	CodeNoActiveSession      = "NO_ACTIVE_SESSION"
	CodeSuperseded           = "ANALYSIS_SUPERSEDED"
)

// Sentinels for errors.Is. Any AppError carrying the same code matches.
var (
	ErrInvalidResponseShape = NewAppError("response matched no known format", CodeInvalidResponseShape, 502, nil)
	ErrEmptyResponse        = NewAppError("webhook returned an empty response", CodeEmptyResponse, 502, nil)
	ErrMalformedJSON        = NewAppError("webhook response is not valid JSON", CodeMalformedJSON, 502, nil)
	ErrAnalysisTimedOut     = NewAppError("analysis took too long", CodeAnalysisTimedOut, 504, nil)
	ErrExpertNotConfigured  = NewAppError("selected expert is not configured", CodeExpertNotConfigured, 422, nil)
	ErrNetworkUnreachable   = NewAppError("webhook is unreachable", CodeNetworkUnreachable, 503, nil)
	ErrUnknownExpertID      = NewAppError("unknown expert id", CodeUnknownExpert, 404, nil)
	ErrWebhookNotConfigured = NewAppError("webhook URL is not configured", CodeWebhookNotConfigured, 412, nil)
	ErrNoActiveSession      = NewAppError("no profile has been analyzed yet", CodeNoActiveSession, 409, nil)
	ErrAnalysisSuperseded   = NewAppError("a newer analysis replaced this one", CodeSuperseded, 409, nil)
	ErrNotFound             = NewAppError("not found", CodeNotFound, 404, nil)
)

type AppError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on Code so that constructed errors compare equal to the sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code
}

func NewAppError(message, code string, statusCode int, context map[string]any) *AppError {
	return &AppError{
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
		Context:    context,
	}
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

type APIError struct {
	*AppError
}

func NewAPIError(message string, statusCode int, context map[string]any) *APIError {
	return &APIError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeAPIError,
			StatusCode: statusCode,
			Context:    context,
		},
	}
}

type ValidationError struct {
	*AppError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type StoreError struct {
	*AppError
	Operation string
	Key       string
}

func NewStoreError(message, operation, key string, cause error) *StoreError {
	return &StoreError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeStore,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

type ServiceError struct {
	*AppError
	Service   string
	Operation string
}

func NewServiceError(message, service, operation string, cause error) *ServiceError {
	return &ServiceError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeService,
			StatusCode: 500,
			Context: map[string]any{
				"service":   service,
				"operation": operation,
			},
			Cause: cause,
		},
		Service:   service,
		Operation: operation,
	}
}

// ShapeError reports a payload that matched neither known response format.
// Payload keeps the raw body for diagnostics.
type ShapeError struct {
	*AppError
	Payload []byte
}

func NewInvalidResponseShape(payload []byte) *ShapeError {
	return &ShapeError{
		AppError: &AppError{
			Message:    ErrInvalidResponseShape.Message,
			Code:       CodeInvalidResponseShape,
			StatusCode: 502,
			Context: map[string]any{
				"payload_preview": preview(payload, 200),
			},
		},
		Payload: payload,
	}
}

func NewEmptyResponse(url string) *AppError {
	return NewAppError(ErrEmptyResponse.Message, CodeEmptyResponse, 502, map[string]any{
		"url": url,
	})
}

func NewMalformedJSON(body []byte) *AppError {
	return NewAppError(ErrMalformedJSON.Message, CodeMalformedJSON, 502, map[string]any{
		"body_preview": preview(body, 200),
	})
}

func NewAnalysisTimedOut(timeout string, cause error) *AppError {
	return NewAppError(ErrAnalysisTimedOut.Message, CodeAnalysisTimedOut, 504, map[string]any{
		"timeout": timeout,
	}).WithCause(cause)
}

func NewExpertNotConfigured(expertID string) *AppError {
	return NewAppError(ErrExpertNotConfigured.Message, CodeExpertNotConfigured, 422, map[string]any{
		"expert_id": expertID,
	})
}

func NewNetworkUnreachable(url string, cause error) *AppError {
	return NewAppError(ErrNetworkUnreachable.Message, CodeNetworkUnreachable, 503, map[string]any{
		"url": url,
	}).WithCause(cause)
}

func NewUnknownExpertID(expertID string) *AppError {
	return NewAppError(ErrUnknownExpertID.Message, CodeUnknownExpert, 404, map[string]any{
		"expert_id": expertID,
	})
}

func preview(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}

func (e *AppError) base() *AppError {
	return e
}

// StatusOf returns the HTTP status and code carried by err, or 500/APP_ERROR.
// Typed wrappers (StoreError, ShapeError, ...) are found through the embedded AppError.
func StatusOf(err error) (int, string) {
	var carrier interface{ base() *AppError }
	if stderrors.As(err, &carrier) && carrier.base() != nil {
		appErr := carrier.base()
		status := appErr.StatusCode
		if status == 0 {
			status = 500
		}
		return status, appErr.Code
	}
	return 500, CodeAppError
}
