package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/service"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed API call. Data carries
// whatever the caller still needs, e.g. the unchanged day-off set.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Data  any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}
	return nil
}

var errBadRequest = errors.New("bad request")

// apiError picks the status, code and message for err. fallback names the
// message used for write failures so the user sees what did not happen.
type apiError struct {
	status int
	code   string
	msgID  string
}

func classify(err error, fallback string) apiError {
	switch {
	case errors.Is(err, errBadRequest):
		return apiError{http.StatusBadRequest, "bad_request", "error.bad_request"}
	case errors.Is(err, service.ErrDuplicateName):
		return apiError{http.StatusConflict, "duplicate_name", "error.duplicate_staff"}
	case errors.Is(err, service.ErrEmptyName):
		return apiError{http.StatusBadRequest, "empty_name", "error.empty_name"}
	case errors.Is(err, service.ErrPastDate):
		return apiError{http.StatusBadRequest, "past_date", "error.past_date"}
	case errors.Is(err, service.ErrInvalidDate):
		return apiError{http.StatusBadRequest, "invalid_date", "error.invalid_date"}
	case errors.Is(err, service.ErrValidation):
		return apiError{http.StatusBadRequest, "validation", "error.bad_request"}
	case errors.Is(err, service.ErrNotFound):
		return apiError{http.StatusNotFound, "not_found", "error.not_found"}
	case errors.Is(err, service.ErrDayOff):
		return apiError{http.StatusConflict, "day_off", "error.day_off"}
	case errors.Is(err, service.ErrInvalidTransition):
		return apiError{http.StatusConflict, "invalid_transition", "error.invalid_transition"}
	case errors.Is(err, service.ErrStatusDiverged):
		return apiError{http.StatusBadGateway, "status_diverged", "error.status_diverged"}
	case errors.Is(err, service.ErrWriteFailure):
		return apiError{http.StatusBadGateway, "write_failure", fallback}
	case errors.Is(err, service.ErrSyncFailure):
		return apiError{http.StatusServiceUnavailable, "sync_failure", "error.sync"}
	default:
		return apiError{http.StatusInternalServerError, "internal", fallback}
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string, tmpl map[string]any, data any) {
	e := classify(err, fallback)
	writeJSON(w, e.status, ErrorResponse{
		Error: i18n.T(r.Context(), e.msgID, tmpl),
		Code:  e.code,
		Data:  data,
	})
}
