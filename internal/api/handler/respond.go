package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"attendance.service/internal/core/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the workflow error taxonomy onto HTTP statuses. Anything
// unclassified is a 500 with a generic message.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "Service error processing request"

	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Msg
		switch e.Kind {
		case apperr.KindInvalidInput, apperr.KindAlreadyReviewed:
			status = http.StatusBadRequest
		case apperr.KindServiceUnavailable:
			status = http.StatusServiceUnavailable
		case apperr.KindLowConfidence:
			status = http.StatusUnprocessableEntity
		case apperr.KindNotFound:
			status = http.StatusNotFound
		case apperr.KindPermissionDenied:
			status = http.StatusForbidden
		case apperr.KindAlternationConflict:
			status = http.StatusConflict
		default:
			msg = "Service error processing request"
		}
	}

	body := map[string]any{"error": msg}
	if e != nil && e.Kind == apperr.KindLowConfidence {
		body["confidence"] = e.Confidence
	}
	writeJSON(w, status, body)
}
