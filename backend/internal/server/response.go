// JSON response writers for success and structured error responses.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fuxialexander/codesherpa/backend/internal/server/dto"
)

// writeJSON writes v with the given status. API responses are never cached.
func writeJSON(w http.ResponseWriter, status int, v any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "status", status, "err", err)
	}
}

// errorStatus classifies err. Errors that carry no status are internal.
func errorStatus(err error) (int, dto.ErrorCode, map[string]any) {
	var ews dto.ErrorWithStatus
	if errors.As(err, &ews) {
		return ews.StatusCode(), ews.Code(), ews.Details()
	}
	return http.StatusInternalServerError, dto.CodeInternalError, nil
}

// writeError writes err as a dto.ErrorResponse. The request ID is read back
// from the response header set by withRequestID so that a client can quote
// it when reporting a failure.
func writeError(w http.ResponseWriter, err error) {
	status, code, details := errorStatus(err)
	reqID := w.Header().Get(requestIDHeader)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Log(context.Background(), level, "request failed", "status", status, "code", code, "reqID", reqID, "err", err)
	msg := err.Error()
	writeJSON(w, status, &dto.ErrorResponse{
		Error:     dto.ErrorDetails{Code: code, Message: msg},
		Message:   msg,
		Details:   details,
		RequestID: reqID,
	})
}

// writeJSONResponse writes output with 200, or err when it is non-nil.
func writeJSONResponse[Out any](w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, output)
}
