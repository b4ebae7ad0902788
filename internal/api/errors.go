package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/scriptstore"
	"github.com/MJE43/luckyloop/internal/store"
)

// errSessionNotFound is returned by the registry for unknown ids.
var errSessionNotFound = errors.New("session not found")

// writeJSONError writes JSON error response
func writeJSONError(w http.ResponseWriter, data interface{}) error {
	return json.NewEncoder(w).Encode(data)
}

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]interface{}
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value interface{}) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause adds the underlying cause error
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   eb.context,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *log.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError maps err to a status and writes it. Known sentinel errors get
// their own types; anything else is an internal error.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetReqID(r.Context())

	var engineErr EngineError
	if errors.As(err, &engineErr) {
		eh.logError(r, engineErr, statusFor(engineErr.Type))
		eh.writeErrorResponse(w, statusFor(engineErr.Type), engineErr)
		return
	}

	errType := ErrTypeInternal
	switch {
	case errors.Is(err, errSessionNotFound), errors.Is(err, store.ErrNotFound):
		errType = ErrTypeSessionNotFound
	case errors.Is(err, scriptstore.ErrNotFound):
		errType = ErrTypeRunNotFound
	case errors.Is(err, game.ErrUnknownSkill):
		errType = ErrTypeUnknownSkill
	}
	engineErr = NewError(errType, err.Error()).
		WithRequestID(requestID).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	status := statusFor(errType)
	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	requestID := middleware.GetReqID(r.Context())

	engineErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(requestID).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// HandleScriptError reports a strategy script that failed to load or run.
func (eh *ErrorHandler) HandleScriptError(w http.ResponseWriter, r *http.Request, sessionID string, err error) {
	requestID := middleware.GetReqID(r.Context())

	engineErr := NewError(ErrTypeScript, "Strategy script failed").
		WithRequestID(requestID).
		WithContext("session_id", sessionID).
		WithContext("path", r.URL.Path).
		WithCause(err).
		Build()

	eh.logError(r, engineErr, http.StatusUnprocessableEntity)
	eh.writeErrorResponse(w, http.StatusUnprocessableEntity, engineErr)
}

func statusFor(errType string) int {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeValidation, ErrTypeUnknownSkill:
		return http.StatusBadRequest
	case ErrTypeSessionNotFound, ErrTypeRunNotFound:
		return http.StatusNotFound
	case ErrTypeScript:
		return http.StatusUnprocessableEntity
	case ErrTypeTimeout:
		return http.StatusRequestTimeout
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// logError logs the error with appropriate level and context
func (eh *ErrorHandler) logError(r *http.Request, engineErr EngineError, status int) {
	category := GetErrorCategory(engineErr.Type)

	logLevel := "ERROR"
	if category == CategoryValidation || status < 500 {
		logLevel = "WARN"
	}

	logFields := map[string]interface{}{}
	for key, value := range engineErr.Context {
		// Never log raw seeds - only hashes
		if key == "server_seed" {
			continue
		}
		logFields[key] = value
	}

	eh.logger.Printf(
		"error_occurred level=%s type=%s category=%s status=%d request_id=%s path=%s message=%q context=%+v",
		logLevel, engineErr.Type, category, status, engineErr.RequestID, r.URL.Path, engineErr.Message, logFields,
	)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, engineErr EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.Header().Set("X-Error-Type", engineErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(engineErr.Type)))
	w.WriteHeader(status)

	if err := writeJSONError(w, engineErr); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Printf(
					"panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, r.URL.Path, r.Method, rvr,
				)

				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("panic", fmt.Sprintf("%v", rvr)).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
