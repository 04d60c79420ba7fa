package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/models"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// SessionResponse is returned after registration. The token is also set as
// the session cookie.
type SessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Register creates an account and starts a session for it.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if h.users == nil {
		h.Error(w, http.StatusServiceUnavailable, "user store not configured")
		return
	}
	if len(h.secret) == 0 {
		h.Error(w, http.StatusServiceUnavailable, "sessions not configured")
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.FullName)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "fullName is required")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	user, err := h.users.CreateUser(r.Context(), name, req.Email, req.ProfilePic)
	if err != nil {
		h.logger.Error().Err(err).Msg("create user")
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := middleware.IssueToken(h.secret, user.ID, h.tokenTTL)
	if err != nil {
		h.logger.Error().Err(err).Msg("issue token")
		h.Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	h.setSessionCookie(w, token, h.tokenTTL)

	h.JSON(w, http.StatusCreated, SessionResponse{User: user, Token: token})
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.JSON(w, http.StatusOK, user)
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.setSessionCookie(w, "", -time.Second)
	h.JSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
