package httpapi

import (
	"net/http"
	"time"

	"github.com/wilvurson/ai-chat/internal/server/models"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, token, err := s.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.setAuthCookie(w, token)
	respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, token, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	s.setAuthCookie(w, token)
	respondJSON(w, http.StatusOK, toUserResponse(user))
}

// Logout only clears the cookie: tokens are stateless, so the credential
// stays technically valid until expiry.
func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearAuthCookie(w)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "missing credential")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"id":    principal.UserID,
		"email": principal.Email,
	})
}
