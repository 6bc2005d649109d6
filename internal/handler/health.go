package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/livecache"
)

// SyncState reports whether the live cache is serving.
type SyncState interface {
	State() livecache.State
}

// RegisterHealth adds liveness and readiness checks. Readiness follows the
// live cache: only a synced cache can answer reads.
func RegisterHealth(mux *http.ServeMux, sync SyncState) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if state := sync.State(); state != livecache.StateReady {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(state.String()))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// NewRouter wires every route behind the access-log and locale middleware.
func NewRouter(staff *StaffHandler, attendance *AttendanceHandler, sync SyncState, log *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	staff.RegisterRoutes(mux)
	attendance.RegisterRoutes(mux)
	RegisterHealth(mux, sync)
	return LoggingMiddleware(log)(LocaleMiddleware(mux))
}
