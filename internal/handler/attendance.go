package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type AttendanceHandler struct {
	clock  *service.ClockService
	staff  *service.StaffService
	export *service.ExportService
	cache  service.Cache
	now    func() time.Time
	log    *zap.Logger
}

func NewAttendanceHandler(clock *service.ClockService, staff *service.StaffService, export *service.ExportService, cache service.Cache, now func() time.Time, log *zap.Logger) *AttendanceHandler {
	if now == nil {
		now = time.Now
	}
	return &AttendanceHandler{clock: clock, staff: staff, export: export, cache: cache, now: now, log: log}
}

// EventView is an attendance event as the API shows it. Pending events
// have no timestamp yet.
type EventView struct {
	ID        string          `json:"id"`
	StaffID   string          `json:"staff_id"`
	StaffName string          `json:"staff_name"`
	Type      model.EventType `json:"type"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Pending   bool            `json:"pending"`
}

type clockRequest struct {
	Status    model.Status `json:"status"`
	StaffName string       `json:"staff_name,omitempty"`
}

type reconcileResponse struct {
	Fixed []service.Divergence `json:"fixed"`
}

func eventView(e model.AttendanceEvent) EventView {
	return EventView{
		ID:        e.ID.Hex(),
		StaffID:   e.StaffID.Hex(),
		StaffName: e.StaffName,
		Type:      e.Type,
		Timestamp: e.Timestamp,
		Pending:   e.Pending(),
	}
}

// HandleClock records the event opposite to the status the caller saw.
func (h *AttendanceHandler) HandleClock(w http.ResponseWriter, r *http.Request) {
	id, err := staffID(r)
	if err != nil {
		writeError(w, r, err, "error.not_found", nil, nil)
		return
	}
	var req clockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "error.bad_request", nil, nil)
		return
	}
	event, err := h.clock.RecordEvent(r.Context(), id, req.StaffName, req.Status)
	h.respondClock(w, r, id, req.Status.Next(), event, err)
}

// HandleClockIn clocks a staff member in.
func (h *AttendanceHandler) HandleClockIn(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, model.EventClockIn)
}

// HandleClockOut clocks a staff member out.
func (h *AttendanceHandler) HandleClockOut(w http.ResponseWriter, r *http.Request) {
	h.handleTransition(w, r, model.EventClockOut)
}

func (h *AttendanceHandler) handleTransition(w http.ResponseWriter, r *http.Request, next model.EventType) {
	id, err := staffID(r)
	if err != nil {
		writeError(w, r, err, "error.not_found", nil, nil)
		return
	}
	var event *model.AttendanceEvent
	if next == model.EventClockIn {
		event, err = h.clock.ClockIn(r.Context(), id)
	} else {
		event, err = h.clock.ClockOut(r.Context(), id)
	}
	h.respondClock(w, r, id, next, event, err)
}

func (h *AttendanceHandler) respondClock(w http.ResponseWriter, r *http.Request, id bson.ObjectID, next model.EventType, event *model.AttendanceEvent, err error) {
	if err == nil {
		writeJSON(w, http.StatusCreated, eventView(*event))
		return
	}

	tmpl := map[string]any{"Status": string(next.Status())}
	if errors.Is(err, service.ErrDayOff) {
		if rec, ferr := h.staff.Find(id); ferr == nil {
			tmpl["Name"] = rec.Name
		}
	}
	var data any
	if event != nil {
		data = eventView(*event)
	}
	writeError(w, r, err, "error.clock_event", tmpl, data)
}

// HandleList returns the attendance log, newest first.
func (h *AttendanceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Err(); err != nil {
		writeError(w, r, err, "error.sync", nil, nil)
		return
	}
	events := h.cache.Attendance()
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 && n < len(events) {
			events = events[:n]
		}
	}
	out := make([]EventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleExport downloads the combined day-off and attendance workbook.
func (h *AttendanceHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	buf, name, err := h.export.WriteXLSX(r.Context(), h.now())
	if err != nil {
		h.log.Error("export", zap.Error(err))
		writeError(w, r, err, "error.export", nil, nil)
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.log.Warn("write export", zap.Error(err))
	}
}

// HandleReconcile repairs staff statuses that disagree with the log.
func (h *AttendanceHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.clock.Reconcile(r.Context())
	if fixed == nil {
		fixed = []service.Divergence{}
	}
	if err != nil {
		writeError(w, r, err, "error.reconcile", nil, reconcileResponse{Fixed: fixed})
		return
	}
	writeJSON(w, http.StatusOK, reconcileResponse{Fixed: fixed})
}

// RegisterRoutes registers all attendance routes on the given mux.
func (h *AttendanceHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/staff/{id}/clock", h.HandleClock)
	mux.HandleFunc("POST /api/staff/{id}/clock-in", h.HandleClockIn)
	mux.HandleFunc("POST /api/staff/{id}/clock-out", h.HandleClockOut)
	mux.HandleFunc("GET /api/attendance", h.HandleList)
	mux.HandleFunc("GET /api/export", h.HandleExport)
	mux.HandleFunc("POST /api/reconcile", h.HandleReconcile)
}
