package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"apptrack-engine/internal/domain"
	"apptrack-engine/internal/events"
	"apptrack-engine/internal/session"
)

type ProfileHandler struct {
	Sessions *session.Manager
	Hub      *events.Hub
}

func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.Sessions.Current(); !ok {
		WriteError(w, r, http.StatusUnauthorized, "no_session", "no active session")
		return
	}
	writeJSON(w, h.Sessions.Profile())
}

func (h ProfileHandler) Put(w http.ResponseWriter, r *http.Request) {
	var p domain.PersonalInfo
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if strings.TrimSpace(p.Name) == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_fields", "name is required")
		return
	}

	if err := h.Sessions.SetProfile(r.Context(), p); err != nil {
		if errors.Is(err, session.ErrLoggedOut) {
			WriteError(w, r, http.StatusUnauthorized, "no_session", "no active session")
			return
		}
		log.Printf("level=warn msg=\"profile save failed\" err=%v", err)
		WriteError(w, r, http.StatusInternalServerError, "save_failed", err.Error())
		return
	}

	h.Hub.Emit(RequestIDFrom(r.Context()), events.TypeProfileUpdated, nil)
	writeJSON(w, p)
}
