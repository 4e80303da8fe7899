package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/ballot/internal/model"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusOf maps an error kind to an HTTP status.
func statusOf(err error) int {
	switch model.KindOf(err) {
	case model.KindAlreadyVoted, model.KindConstraint:
		return http.StatusConflict
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindUnknownRegistrant, model.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case model.KindSensor, model.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError writes err using the taxonomy code. Unclassified errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorResponse{Code: string(model.KindOf(err)), Message: err.Error()}
	if status == http.StatusInternalServerError || status == http.StatusGatewayTimeout {
		slog.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		body = errorResponse{Code: "INTERNAL_ERROR", Message: http.StatusText(status)}
	}
	writeJSON(w, status, body)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
