package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// Error codes
const (
	CodeAppError         = "APP_ERROR"
	CodeAPIError         = "API_ERROR"
	CodeValidation       = "VALIDATION_ERROR"
	CodeCache            = "CACHE_ERROR"
	CodeService          = "SERVICE_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeAnalysisFailed   = "ANALYSIS_FAILED"
	CodeUnusableResponse = "UNUSABLE_RESPONSE"
	CodeVideoFailed      = "VIDEO_FAILED"
	CodeUnusableResult   = "UNUSABLE_RESULT"
	CodeCredential       = "CREDENTIAL_ERROR"
	CodeBusy             = "SESSION_BUSY"
)

// ErrMissingCredential is returned when no API key has been selected yet.
var ErrMissingCredential = stderrors.New("api key not configured")

// CredentialNotFoundMarker is the message fragment the hosted API returns when
// the selected key has no access to the requested model.
const CredentialNotFoundMarker = "Requested entity was not found"

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
			StatusCode: http.StatusBadRequest,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*AppError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: http.StatusInternalServerError,
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
			StatusCode: http.StatusInternalServerError,
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

// GenerationError is returned by the analysis and video pipelines. Code tells
// the caller which stage failed; Credential is set when the failure points at
// a missing or unauthorized API key.
type GenerationError struct {
	*AppError
	Stage      string
	Credential bool
}

func NewGenerationError(message, code, stage string, cause error) *GenerationError {
	return &GenerationError{
		AppError: &AppError{
			Message:    message,
			Code:       code,
			StatusCode: http.StatusBadGateway,
			Context: map[string]any{
				"stage": stage,
			},
			Cause: cause,
		},
		Stage:      stage,
		Credential: IsCredentialError(cause),
	}
}

func NewNotFoundError(message, resource, id string) *AppError {
	return NewAppError(message, CodeNotFound, http.StatusNotFound, map[string]any{
		"resource": resource,
		"id":       id,
	})
}

// ErrorCode, HTTPStatus and UserMessage are promoted to every error type embedding AppError.
func (e *AppError) ErrorCode() string { return e.Code }

func (e *AppError) HTTPStatus() int { return e.StatusCode }

func (e *AppError) UserMessage() string { return e.Message }

type codedError interface {
	error
	ErrorCode() string
	HTTPStatus() int
	UserMessage() string
}

// CodeOf returns the code of the outermost coded error in the chain, or "".
func CodeOf(err error) string {
	var c codedError
	if stderrors.As(err, &c) {
		return c.ErrorCode()
	}
	return ""
}

// MessageOf returns the user-facing message of the outermost coded error in
// the chain, falling back to err.Error().
func MessageOf(err error) string {
	var c codedError
	if stderrors.As(err, &c) {
		return c.UserMessage()
	}
	return err.Error()
}

// StatusCodeOf maps an error to an HTTP status, defaulting to 500.
func StatusCodeOf(err error) int {
	var c codedError
	if stderrors.As(err, &c) && c.HTTPStatus() > 0 {
		return c.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsCredentialError reports whether err indicates the API key is missing,
// invalid or lacks access to the model. Structured API errors are checked
// first; the message marker covers error shapes that arrive as plain text.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}

	if stderrors.Is(err, ErrMissingCredential) {
		return true
	}

	var gen *GenerationError
	if stderrors.As(err, &gen) && gen.Credential {
		return true
	}

	if apiErr, ok := asGenaiAPIError(err); ok {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return true
		}
		if apiErr.Status == "PERMISSION_DENIED" || apiErr.Status == "UNAUTHENTICATED" {
			return true
		}
		if strings.Contains(apiErr.Message, "API_KEY_INVALID") || strings.Contains(apiErr.Message, "API key not valid") {
			return true
		}
	}

	return strings.Contains(err.Error(), CredentialNotFoundMarker)
}

func asGenaiAPIError(err error) (genai.APIError, bool) {
	var value genai.APIError
	if stderrors.As(err, &value) {
		return value, true
	}
	var ptr *genai.APIError
	if stderrors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return genai.APIError{}, false
}
