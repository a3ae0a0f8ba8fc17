// Package httpapi exposes the service's HTTP surface: policy ingestion,
// compliance checks, and a health endpoint, per spec §6.
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/production-agents-for-compliance/claude-chatbot/internal/apperrors"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs). Every
// error response from this API uses this shape.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	Code     string `json:"code,omitempty"`
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, title, code, detail string) {
	problem := ProblemDetail{
		Type:     fmt.Sprintf("https://rules-engine.internal/errors/%d", status),
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		Code:     code,
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// writeAppError translates a typed apperrors.Error into the RFC 7807
// response its Kind maps to, per the error handling design's propagation
// policy column.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	appErr, ok := err.(*apperrors.Error)
	if !ok {
		if logger != nil {
			logger.Error("unexpected error", "error", err)
		}
		writeProblem(w, r, http.StatusInternalServerError, "Internal Server Error", "UNEXPECTED", "An unexpected error occurred.")
		return
	}

	switch appErr.Kind {
	case apperrors.KindInput:
		writeProblem(w, r, http.StatusBadRequest, "Bad Request", appErr.Code, appErr.Message)
	case apperrors.KindNotFound:
		writeProblem(w, r, http.StatusNotFound, "Not Found", appErr.Code, appErr.Message)
	case apperrors.KindGeneration, apperrors.KindStore, apperrors.KindUnexpected:
		if logger != nil {
			logger.Error("request failed", "kind", appErr.Kind, "code", appErr.Code, "error", appErr.Err)
		}
		writeProblem(w, r, http.StatusInternalServerError, "Internal Server Error", appErr.Code, appErr.Message)
	default:
		if logger != nil {
			logger.Error("request failed with unmapped kind", "kind", appErr.Kind, "error", appErr.Err)
		}
		writeProblem(w, r, http.StatusInternalServerError, "Internal Server Error", appErr.Code, appErr.Message)
	}
}
