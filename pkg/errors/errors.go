package errors

import "fmt"

// Error codes
const (
	CodeAppError     = "APP_ERROR"
	CodeAnalysis     = "ANALYSIS_ERROR"
	CodeMusicLookup  = "MUSIC_LOOKUP_ERROR"
	CodePersistence  = "PERSISTENCE_ERROR"
	CodeValidation   = "VALIDATION_ERROR"
	CodeCache        = "CACHE_ERROR"
	CodeService      = "SERVICE_ERROR"
	CodeQuotaReached = "QUOTA_ERROR"
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

// AnalysisError is fatal to a request: the analysis payload was absent, unparseable or
// failed validation.
type AnalysisError struct {
	*AppError
	Provider string
}

func NewAnalysisError(message, provider string, cause error) *AnalysisError {
	return &AnalysisError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeAnalysis,
			StatusCode: 502,
			Context: map[string]any{
				"provider": provider,
			},
			Cause: cause,
		},
		Provider: provider,
	}
}

// MusicLookupError never leaves the dispatcher; it only exists so that lookups can report
// what went wrong before degrading to nil.
type MusicLookupError struct {
	*AppError
	Service string
	Query   string
}

func NewMusicLookupError(message, service, query string, statusCode int, cause error) *MusicLookupError {
	return &MusicLookupError{
		AppError: &AppError{
			Message:    message,
			Code:       CodeMusicLookup,
			StatusCode: statusCode,
			Context: map[string]any{
				"service": service,
				"query":   query,
			},
			Cause: cause,
		},
		Service: service,
		Query:   query,
	}
}

type PersistenceError struct {
	*AppError
	Operation string
}

func NewPersistenceError(message, operation string, cause error) *PersistenceError {
	return &PersistenceError{
		AppError: &AppError{
			Message:    message,
			Code:       CodePersistence,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
			},
			Cause: cause,
		},
		Operation: operation,
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
