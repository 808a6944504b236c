// Package respond writes JSON responses and the error envelope shared by
// handlers and middleware.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/zatekoja/pgfinder/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/pgfinder/pkg/errors"
)

// MsgSomethingWentWrong replaces the message of non-operational errors
const MsgSomethingWentWrong = "Something Went Wrong!"

// ErrorBody is the error envelope
type ErrorBody struct {
	Success     bool     `json:"success"`
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	Fields      []string `json:"fields,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	ErrorList   []string `json:"errorList,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observability.GetLogger().Error().Err(err).Msg("failed to encode response")
	}
}

// Success writes {"status": "success", ...fields}
func Success(w http.ResponseWriter, status int, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["status"] = "success"
	JSON(w, status, body)
}

// Data writes {"status": "success", "data": data}
func Data(w http.ResponseWriter, status int, data any) {
	JSON(w, status, map[string]any{"status": "success", "data": data})
}

// Error renders err as the error envelope. Errors that are not AppErrors, and
// internal or external errors not marked exposed, are logged and answered
// with a generic 500.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.NewInternalError(MsgSomethingWentWrong, err)
	}

	status := appErr.HTTPStatus()
	body := ErrorBody{
		Success:     false,
		Status:      statusWord(status),
		Message:     appErr.Message,
		Fields:      appErr.Fields,
		Suggestions: appErr.Suggestions,
		ErrorList:   appErr.ErrorList,
	}

	logger := observability.LoggerFromContext(r.Context())
	if !appErr.IsOperational() {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		body = ErrorBody{Status: statusWord(status), Message: MsgSomethingWentWrong}
	} else {
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		}
		if len(body.ErrorList) == 0 {
			body.ErrorList = []string{appErr.Message}
		}
	}

	JSON(w, status, body)
}

func statusWord(status int) string {
	if status >= http.StatusInternalServerError {
		return "error"
	}
	return "failure"
}

// DecodeJSON decodes the request body into v. A malformed body is a 400,
// one over the body limit a 413.
func DecodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return apperrors.NewTooLargeError("Request body too large")
		case errors.Is(err, io.EOF):
			return apperrors.NewBadRequestError("Request body is required")
		default:
			return apperrors.NewBadRequestError("Invalid request body")
		}
	}
	return nil
}

// ReadBody returns the raw body, mapping an oversized body to a 413
func ReadBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, apperrors.NewTooLargeError("Request body too large")
		}
		return nil, apperrors.NewBadRequestError("Invalid request body")
	}
	if len(body) == 0 || !json.Valid(body) {
		return nil, apperrors.NewBadRequestError("Invalid request body")
	}
	return body, nil
}
