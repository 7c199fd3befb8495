package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/CrowderSoup/studyboard/ordering"
	"github.com/CrowderSoup/studyboard/services"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Error encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request format")
		return false
	}
	return true
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrNoOwner):
		return http.StatusUnauthorized
	case errors.Is(err, ordering.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ordering.ErrDragInProgress), errors.Is(err, ordering.ErrNotDragging):
		return http.StatusConflict
	case errors.Is(err, ordering.ErrIndexOutOfRange), errors.Is(err, ordering.ErrInvalidDirection), errors.Is(err, services.ErrEmptyTitle):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Unexpected errors are logged and hidden.
func fail(w http.ResponseWriter, logger *log.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("Request failed")
		writeError(w, status, "Server error")
		return
	}
	writeError(w, status, err.Error())
}
