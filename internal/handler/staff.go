package handler

import (
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/model"
	"github.com/Horth168/staff-attendance-app/internal/service"
)

// DisplayDayOff is the list-only status of a staff member who is off today.
const DisplayDayOff = "day_off"

type StaffHandler struct {
	staff    *service.StaffService
	calendar *service.Calendar
}

func NewStaffHandler(staff *service.StaffService, calendar *service.Calendar) *StaffHandler {
	return &StaffHandler{staff: staff, calendar: calendar}
}

// StaffView is a staff record as the API shows it.
type StaffView struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Status         model.Status `json:"status"`
	DisplayStatus  string       `json:"display_status"`
	DisplayLabel   string       `json:"display_label"`
	DaysOff        []string     `json:"days_off"`
	LastActivityAt *time.Time   `json:"last_activity_at,omitempty"`
	CreatedAt      *time.Time   `json:"created_at,omitempty"`
}

type addStaffRequest struct {
	Name string `json:"name"`
}

type daysOffRequest struct {
	Dates []string `json:"dates"`
}

type toggleRequest struct {
	Dates []string `json:"dates"`
	Date  string   `json:"date"`
}

type daysOffResponse struct {
	Dates []string `json:"dates"`
}

func (h *StaffHandler) view(r *http.Request, rec model.StaffRecord) StaffView {
	display := string(rec.Status)
	if !rec.Status.Valid() {
		display = string(model.StatusClockedOut)
	}
	if service.IsDayOff(rec, h.calendar.Today()) {
		display = DisplayDayOff
	}
	daysOff := rec.DaysOff
	if daysOff == nil {
		daysOff = []string{}
	}
	return StaffView{
		ID:             rec.ID.Hex(),
		Name:           rec.Name,
		Status:         rec.Status,
		DisplayStatus:  display,
		DisplayLabel:   i18n.T(r.Context(), "status."+display),
		DaysOff:        daysOff,
		LastActivityAt: rec.LastActivityAt,
		CreatedAt:      rec.CreatedAt,
	}
}

// HandleList returns every staff member ordered by name.
func (h *StaffHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.staff.All()
	if err != nil {
		writeError(w, r, err, "error.sync", nil, nil)
		return
	}
	out := make([]StaffView, 0, len(records))
	for _, rec := range records {
		out = append(out, h.view(r, rec))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleAdd creates a staff member.
func (h *StaffHandler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	var req addStaffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "error.add_staff", nil, nil)
		return
	}
	rec, err := h.staff.Add(r.Context(), req.Name)
	if err != nil {
		writeError(w, r, err, "error.add_staff", nil, nil)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(r, *rec))
}

// HandleGet returns one staff member.
func (h *StaffHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := staffID(r)
	if err != nil {
		writeError(w, r, err, "error.not_found", nil, nil)
		return
	}
	rec, err := h.staff.Find(id)
	if err != nil {
		writeError(w, r, err, "error.not_found", nil, nil)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, *rec))
}

// HandleSaveDaysOff replaces a staff member's day-off set.
func (h *StaffHandler) HandleSaveDaysOff(w http.ResponseWriter, r *http.Request) {
	id, err := staffID(r)
	if err != nil {
		writeError(w, r, err, "error.save_days_off", nil, nil)
		return
	}
	var req daysOffRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "error.save_days_off", nil, nil)
		return
	}
	saved, err := h.calendar.Save(r.Context(), id, req.Dates)
	if err != nil {
		writeError(w, r, err, "error.save_days_off", nil, nil)
		return
	}
	writeJSON(w, http.StatusOK, daysOffResponse{Dates: saved})
}

// HandleToggle flips one date in a working day-off set without saving it.
// A rejected toggle still returns the unchanged set.
func (h *StaffHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	var req toggleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err, "error.bad_request", nil, nil)
		return
	}
	dates, err := h.calendar.Toggle(req.Dates, req.Date)
	if dates == nil {
		dates = []string{}
	}
	if err != nil {
		writeError(w, r, err, "error.bad_request", nil, daysOffResponse{Dates: dates})
		return
	}
	writeJSON(w, http.StatusOK, daysOffResponse{Dates: dates})
}

// RegisterRoutes registers all staff and calendar routes on the given mux.
func (h *StaffHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/staff", h.HandleList)
	mux.HandleFunc("POST /api/staff", h.HandleAdd)
	mux.HandleFunc("GET /api/staff/{id}", h.HandleGet)
	mux.HandleFunc("PUT /api/staff/{id}/days-off", h.HandleSaveDaysOff)
	mux.HandleFunc("POST /api/days-off/toggle", h.HandleToggle)
}

func staffID(r *http.Request) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		return bson.NilObjectID, service.ErrNotFound
	}
	return id, nil
}
