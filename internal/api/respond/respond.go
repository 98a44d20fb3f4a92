// Package respond writes the JSON envelopes shared by every API handler:
// {"data": ...} on success and {"error": {...}} on failure.
package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/good-yellow-bee/projectdesk/internal/collab"
	"github.com/good-yellow-bee/projectdesk/internal/logutil"
)

// Error codes
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeForbidden        = "FORBIDDEN"
	CodeNotFound         = "NOT_FOUND"
	CodeBadRequest       = "BAD_REQUEST"
	CodeConflict         = "CONFLICT"
	CodeInternalError    = "INTERNAL_ERROR"
	CodeRateLimited      = "RATE_LIMITED"
	CodeAccountLocked    = "ACCOUNT_LOCKED"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeStorageError     = "STORAGE_ERROR"
)

// ErrorBody is the error half of the envelope. Message is always present.
type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Field   string              `json:"field,omitempty"`
	Errors  []collab.FieldError `json:"errors,omitempty"`
}

type dataResponse struct {
	Data any `json:"data"`
}

type errorResponse struct {
	Error ErrorBody `json:"error"`
}

// JSON writes data wrapped in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dataResponse{Data: data})
}

// OK writes a 200 OK response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Fail writes an error envelope with an explicit status and code.
func Fail(w http.ResponseWriter, status int, code, message string) {
	write(w, status, ErrorBody{Code: code, Message: message})
}

func write(w http.ResponseWriter, status int, body ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: body})
}

// Common failures.
func BadRequest(w http.ResponseWriter, message string) {
	Fail(w, http.StatusBadRequest, CodeBadRequest, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	Fail(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	Fail(w, http.StatusForbidden, CodeForbidden, message)
}

func NotFound(w http.ResponseWriter, message string) {
	Fail(w, http.StatusNotFound, CodeNotFound, message)
}

// Internal writes a generic 500 and reports err with its context.
func Internal(w http.ResponseWriter, r *http.Request, err error) {
	logutil.LogError("request failed", err, logutil.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	})
	Fail(w, http.StatusInternalServerError, CodeInternalError, "internal server error")
}

// Error classifies err from the domain layer and writes the matching
// response. Unrecognized errors become a logged 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *collab.ValidationError
		cerr *collab.ConflictError
		serr *collab.StorageError
	)
	switch {
	case errors.As(err, &verr):
		body := ErrorBody{Code: CodeValidationFailed, Message: verr.Error(), Errors: verr.Fields}
		if len(verr.Fields) == 1 {
			body.Field = verr.Fields[0].Field
		}
		write(w, http.StatusBadRequest, body)
	case errors.As(err, &cerr):
		write(w, http.StatusBadRequest, ErrorBody{Code: CodeConflict, Message: cerr.Message, Field: cerr.Field})
	case errors.Is(err, collab.ErrNotFound):
		NotFound(w, "resource not found")
	case errors.Is(err, collab.ErrForbidden):
		Forbidden(w, "access denied")
	case errors.As(err, &serr):
		log.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("storage operation failed")
		Fail(w, http.StatusInternalServerError, CodeStorageError, serr.Message)
	default:
		Internal(w, r, err)
	}
}
