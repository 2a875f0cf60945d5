package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"apptrack-engine/internal/authprovider"
	"apptrack-engine/internal/session"
)

type AuthHandler struct {
	Sessions *session.Manager
	Auth     *authprovider.Client
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupReq struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Name            string `json:"name"`
}

func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_fields", "email and password are required")
		return
	}

	sess, err := h.Auth.PasswordLogin(r.Context(), req.Email, req.Password)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}

	// The provider also emits signed_in; logging in here first means the
	// event is suppressed as a duplicate rather than racing the response.
	if err := h.Sessions.Login(r.Context(), sess.User.Email, sess.AccessToken); err != nil {
		if errors.Is(err, session.ErrActiveSession) {
			WriteError(w, r, http.StatusConflict, "active_session", "another session is active")
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "login_failed", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"identity": sess.User.Email})
}

func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signupReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_fields", "email and password are required")
		return
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		WriteError(w, r, http.StatusBadRequest, "password_mismatch", "passwords do not match")
		return
	}

	var meta map[string]string
	if req.Name != "" {
		meta = map[string]string{"name": req.Name}
	}

	sess, user, err := h.Auth.SignUp(r.Context(), req.Email, req.Password, meta)
	if err != nil {
		writeProviderError(w, r, err)
		return
	}

	// no session means the provider wants the email confirmed first
	if sess == nil {
		WriteJSON(w, http.StatusOK, map[string]any{
			"identity":             user.Email,
			"confirmationRequired": true,
		})
		return
	}

	if err := h.Sessions.Login(r.Context(), sess.User.Email, sess.AccessToken); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "login_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"identity": sess.User.Email})
}

func (h AuthHandler) OAuthURL(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		WriteError(w, r, http.StatusBadRequest, "missing_provider", "provider is required")
		return
	}
	redirect := r.URL.Query().Get("redirect_to")
	WriteJSON(w, http.StatusOK, map[string]any{"url": h.Auth.OAuthURL(provider, redirect)})
}

func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context()); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "logout_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.Sessions.Current()
	if !ok {
		WriteJSON(w, http.StatusOK, map[string]any{"loggedIn": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"loggedIn": true,
		"identity": sess.Identity,
	})
}

// writeProviderError surfaces the provider's own message for inline display;
// everything else is a plain upstream failure.
func writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *authprovider.Error
	if errors.As(err, &perr) {
		status := http.StatusUnauthorized
		if perr.Status == http.StatusUnprocessableEntity || perr.Status == http.StatusConflict {
			status = perr.Status
		}
		WriteError(w, r, status, "provider_error", perr.Message)
		return
	}
	WriteError(w, r, http.StatusBadGateway, "provider_unreachable", err.Error())
}
