package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"attendance.service/internal/api/middleware"
	"attendance.service/internal/core"
	"attendance.service/internal/core/apperr"
	"attendance.service/internal/core/model"
	"attendance.service/internal/ports/repository"
	"github.com/gorilla/mux"
)

// AttendanceHandler exposes the capture/manual/review workflow over HTTP.
// Handlers decode, delegate and encode; all business rules live in the core.
type AttendanceHandler struct {
	Service *core.AttendanceService
	Reviews *core.ReviewService
}

type CaptureRequest struct {
	Image     string      `json:"image"`
	StationID *int64      `json:"stationId,omitempty"`
	Kind      *model.Kind `json:"type,omitempty"`
}

type ManualRequest struct {
	PersonnelID int64      `json:"personnelId"`
	Kind        model.Kind `json:"type"`
	Date        time.Time  `json:"date"`
}

type PatchRequest struct {
	Kind        *model.Kind `json:"type,omitempty"`
	PersonnelID *int64      `json:"personnelId,omitempty"`
	CapturedAt  *time.Time  `json:"capturedAt,omitempty"`
}

func (h *AttendanceHandler) Capture(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Image == "" {
		http.Error(w, "Image is required", http.StatusBadRequest)
		return
	}

	outcome, err := h.Service.Capture(r.Context(), req.Image, req.StationID, req.Kind, identity)
	if err != nil {
		writeError(w, err)
		return
	}

	switch outcome.Disposition {
	case model.DispositionConfirmed:
		writeJSON(w, http.StatusCreated, outcome.Event)
	case model.DispositionPending:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"message": "Capture quarantined for review.",
			"pending": outcome.Pending,
		})
	case model.DispositionRejected:
		writeError(w, apperr.LowConfidence(outcome.Confidence))
	}
}

func (h *AttendanceHandler) CreateManual(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var req ManualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PersonnelID == 0 {
		http.Error(w, "PersonnelID is required", http.StatusBadRequest)
		return
	}

	ev, err := h.Service.CreateManual(r.Context(), req.PersonnelID, req.Kind, req.Date, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	page, err := h.Service.ListEvents(r.Context(), f, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *AttendanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := identityAndID(w, r)
	if !ok {
		return
	}

	ev, err := h.Service.GetEvent(r.Context(), id, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *AttendanceHandler) Patch(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := identityAndID(w, r)
	if !ok {
		return
	}

	var req PatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	ev, err := h.Service.EditEvent(r.Context(), id, core.EventPatch{
		Kind:        req.Kind,
		PersonnelID: req.PersonnelID,
		CapturedAt:  req.CapturedAt,
	}, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *AttendanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := identityAndID(w, r)
	if !ok {
		return
	}

	if err := h.Service.DeleteEvent(r.Context(), id, identity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AttendanceHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	entries, err := h.Reviews.ListPending(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *AttendanceHandler) CountPending(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	count, err := h.Reviews.CountPending(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *AttendanceHandler) Approve(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := identityAndID(w, r)
	if !ok {
		return
	}

	ev, err := h.Reviews.Approve(r.Context(), id, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *AttendanceHandler) Reject(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := identityAndID(w, r)
	if !ok {
		return
	}

	entry, err := h.Reviews.Reject(r.Context(), id, identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func identityAndID(w http.ResponseWriter, r *http.Request) (model.Identity, int64, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return model.Identity{}, 0, false
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid id", http.StatusBadRequest)
		return model.Identity{}, 0, false
	}
	return identity, id, true
}

func filterFromQuery(r *http.Request) (repository.EventFilter, error) {
	q := r.URL.Query()
	var f repository.EventFilter

	parseID := func(name string, dst **int64) error {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return apperr.New(apperr.KindInvalidInput, "invalid %s", name)
			}
			*dst = &n
		}
		return nil
	}
	if err := parseID("personnelId", &f.PersonnelID); err != nil {
		return f, err
	}
	if err := parseID("stationId", &f.StationID); err != nil {
		return f, err
	}

	if v := q.Get("type"); v != "" {
		kind := model.Kind(v)
		if !kind.Valid() {
			return f, apperr.New(apperr.KindInvalidInput, "invalid type %q", v)
		}
		f.Kind = &kind
	}

	parseTime := func(name string, dst **time.Time) error {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return apperr.New(apperr.KindInvalidInput, "invalid %s, expected RFC3339", name)
			}
			*dst = &t
		}
		return nil
	}
	if err := parseTime("dateFrom", &f.From); err != nil {
		return f, err
	}
	if err := parseTime("dateTo", &f.To); err != nil {
		return f, err
	}

	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f, nil
}
