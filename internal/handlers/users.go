package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ProfileResponse represents a public user profile.
type ProfileResponse struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic,omitempty"`
	Online     bool   `json:"online"`
	JoinedAt   string `json:"joinedAt"`
}

// StatsResponse represents the response from the stats endpoint.
type StatsResponse struct {
	TotalUsers  int64 `json:"totalUsers"`
	OnlineUsers int   `json:"onlineUsers"`
}

// Profile handles user profile lookup.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}
	if h.users == nil {
		h.Error(w, http.StatusServiceUnavailable, "user store not configured")
		return
	}

	user, err := h.users.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, ProfileResponse{
		ID:         user.ID.String(),
		FullName:   user.FullName,
		ProfilePic: user.ProfilePic,
		Online:     h.isOnline(user.ID.String()),
		JoinedAt:   user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}

// Stats returns user counts for dashboards.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	if h.users != nil {
		total, err := h.users.CountUsers(r.Context())
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to count users")
			return
		}
		resp.TotalUsers = total
	}
	if h.realtime != nil {
		resp.OnlineUsers = len(h.realtime.Online())
	}
	h.JSON(w, http.StatusOK, resp)
}

func (h *Handler) isOnline(userID string) bool {
	if h.realtime == nil {
		return false
	}
	for _, id := range h.realtime.Online() {
		if id == userID {
			return true
		}
	}
	return false
}
