package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wilvurson/ai-chat/internal/server/models"
)

type sendMessageRequest struct {
	Content string `json:"content"`
}

type turnResponse struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Seq       int64     `json:"seq"`
	ReplyTo   string    `json:"reply_to,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toTurnResponse(t *models.Turn) turnResponse {
	return turnResponse{
		ID:        t.ID,
		Role:      t.Role,
		Content:   t.Content,
		Seq:       t.Seq,
		ReplyTo:   t.ReplyTo,
		CreatedAt: t.CreatedAt,
	}
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	turns, err := s.conversations.ListTurns(r.Context(), principal.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]turnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, toTurnResponse(t))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	reply, err := s.conversations.SendMessage(r.Context(), principal.UserID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	err := s.conversations.DeleteTurn(r.Context(), principal.UserID,
		chi.URLParam(r, "id"), chi.URLParam(r, "turnID"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}
