package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"apptrack-engine/internal/applist"
	"apptrack-engine/internal/domain"
	"apptrack-engine/internal/events"
	"apptrack-engine/internal/notify"
	"apptrack-engine/internal/session"
)

type ApplicationsHandler struct {
	Sessions *session.Manager
	Hub      *events.Hub
	Notify   *notify.Dispatcher
}

type applicationReq struct {
	Company     string `json:"company"`
	Position    string `json:"position"`
	Status      string `json:"status"`
	Location    string `json:"location"`
	AppliedDate string `json:"appliedDate"`
	Notes       string `json:"notes"`
}

func (req applicationReq) validate() (domain.ApplicationRecord, string) {
	rec := domain.ApplicationRecord{
		Company:     strings.TrimSpace(req.Company),
		Position:    strings.TrimSpace(req.Position),
		Status:      domain.Status(req.Status),
		Location:    strings.TrimSpace(req.Location),
		AppliedDate: strings.TrimSpace(req.AppliedDate),
		Notes:       req.Notes,
	}
	if rec.Company == "" || rec.Position == "" {
		return rec, "company and position are required"
	}
	if rec.Status == "" {
		rec.Status = domain.StatusApplied
	}
	if !rec.Status.Valid() {
		return rec, "status must be one of applied, interview, offer, rejected"
	}
	if rec.AppliedDate == "" {
		rec.AppliedDate = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", rec.AppliedDate); err != nil {
		return rec, "appliedDate must be an ISO date (2006-01-02)"
	}
	return rec, ""
}

func (h ApplicationsHandler) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := h.Sessions.Current(); !ok {
		WriteError(w, r, http.StatusUnauthorized, "no_session", "no active session")
		return false
	}
	return true
}

func (h ApplicationsHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}
	writeJSON(w, h.Sessions.List().All())
}

func (h ApplicationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	var req applicationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	rec, problem := req.validate()
	if problem != "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_application", problem)
		return
	}

	rec = h.Sessions.List().Add(rec)
	h.saveAndAnnounce(r, events.TypeApplicationAdded, notify.KindAdded, rec)

	WriteJSON(w, http.StatusCreated, rec)
}

func (h ApplicationsHandler) UpdateByPath(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/applications/")
	if id == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}

	var req applicationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	rec, problem := req.validate()
	if problem != "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_application", problem)
		return
	}

	rec, err := h.Sessions.List().Update(id, rec)
	if err != nil {
		if errors.Is(err, applist.ErrNotFound) {
			WriteError(w, r, http.StatusNotFound, "not_found", "application not found")
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "update_failed", err.Error())
		return
	}
	h.saveAndAnnounce(r, events.TypeApplicationUpdated, notify.KindUpdated, rec)

	writeJSON(w, rec)
}

func (h ApplicationsHandler) DeleteByPath(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/applications/")
	if id == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_id", "invalid id")
		return
	}

	rec, ok := h.Sessions.List().Get(id)
	if !ok {
		// deleting an absent id is a no-op
		writeJSON(w, map[string]any{"ok": true, "id": id})
		return
	}

	h.Sessions.List().Remove(id)
	h.saveAndAnnounce(r, events.TypeApplicationDeleted, notify.KindDeleted, rec)

	writeJSON(w, map[string]any{"ok": true, "id": id})
}

func (h ApplicationsHandler) Counts(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	counts := h.Sessions.List().Counts()
	writeJSON(w, map[string]any{
		"total":     h.Sessions.List().Len(),
		"applied":   counts[domain.StatusApplied],
		"interview": counts[domain.StatusInterview],
		"offer":     counts[domain.StatusOffer],
		"rejected":  counts[domain.StatusRejected],
	})
}

// Calendar groups applications by applied date, either for one day (?date=)
// or a whole month (?month=YYYY-MM).
func (h ApplicationsHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !h.requireSession(w, r) {
		return
	}

	q := r.URL.Query()
	if date := q.Get("date"); date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			WriteError(w, r, http.StatusBadRequest, "invalid_date", "date must be 2006-01-02")
			return
		}
		writeJSON(w, map[string]any{date: h.Sessions.List().OnDate(date)})
		return
	}

	month := q.Get("month")
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_month", "month must be 2006-01")
		return
	}

	byDay := make(map[string][]domain.ApplicationRecord)
	for _, rec := range h.Sessions.List().All() {
		if strings.HasPrefix(rec.AppliedDate, month+"-") {
			byDay[rec.AppliedDate] = append(byDay[rec.AppliedDate], rec)
		}
	}
	writeJSON(w, byDay)
}

// saveAndAnnounce persists the snapshot, publishes the SSE event and fires
// the best-effort notification. None of these outcomes roll back the
// mutation.
func (h ApplicationsHandler) saveAndAnnounce(r *http.Request, eventType string, kind notify.Kind, rec domain.ApplicationRecord) {
	if err := h.Sessions.SaveSnapshot(r.Context()); err != nil {
		log.Printf("level=warn msg=\"snapshot save failed\" err=%v", err)
	}
	h.Hub.Emit(RequestIDFrom(r.Context()), eventType, map[string]any{"id": rec.ID})
	h.Notify.Notify(kind, rec)
}
