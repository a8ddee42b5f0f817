// Package httpapi is the HTTP surface of the service: a chi router with
// cookie-credential middleware in front of the account, character and
// conversation endpoints.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wilvurson/ai-chat/internal/common"
	"github.com/wilvurson/ai-chat/internal/logging"
	"github.com/wilvurson/ai-chat/internal/observability"
	"github.com/wilvurson/ai-chat/internal/server/auth"
	"github.com/wilvurson/ai-chat/internal/server/models"
	"github.com/wilvurson/ai-chat/internal/server/services"
)

// UserService is the account surface the handlers need.
type UserService interface {
	Register(ctx context.Context, email, password string) (*models.User, string, error)
	Login(ctx context.Context, email, password string) (*models.User, string, error)
}

// CharacterService is the registry surface the handlers need.
type CharacterService interface {
	Create(ctx context.Context, userID string, fields services.CharacterFields, image *services.ImageUpload) (*models.Character, error)
	List(ctx context.Context, userID string) ([]*models.Character, error)
	Get(ctx context.Context, userID, id string) (*models.Character, error)
	Update(ctx context.Context, userID, id string, fields services.CharacterFields, image *services.ImageUpload) (*models.Character, error)
	Delete(ctx context.Context, userID, id string) error
	ImageURL(ctx context.Context, character *models.Character) (string, error)
}

// ConversationService is the transcript surface the handlers need.
type ConversationService interface {
	SendMessage(ctx context.Context, userID, characterID, content string) (string, error)
	ListTurns(ctx context.Context, userID, characterID string) ([]*models.Turn, error)
	DeleteTurn(ctx context.Context, userID, characterID, turnID string) error
}

type Server struct {
	users         UserService
	characters    CharacterService
	conversations ConversationService
	identity      *auth.Provider
	db            *sql.DB
	logger        logging.Logger
	secureCookies bool
}

func New(
	users UserService,
	characters CharacterService,
	conversations ConversationService,
	identity *auth.Provider,
	db *sql.DB,
	logger logging.Logger,
	secureCookies bool,
) *Server {
	return &Server{
		users:         users,
		characters:    characters,
		conversations: conversations,
		identity:      identity,
		db:            db,
		logger:        logger.With("module", "httpapi"),
		secureCookies: secureCookies,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireIdentity)

			r.Get("/auth/me", s.handleMe)

			r.Get("/characters", s.handleListCharacters)
			r.Post("/characters", s.handleCreateCharacter)
			r.Get("/characters/{id}", s.handleGetCharacter)
			r.Put("/characters/{id}", s.handleUpdateCharacter)
			r.Delete("/characters/{id}", s.handleDeleteCharacter)

			r.Get("/characters/{id}/messages", s.handleListMessages)
			r.Post("/characters/{id}/messages", s.handleSendMessage)
			r.Delete("/characters/{id}/messages/{turnID}", s.handleDeleteMessage)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "not_ready", "database unreachable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondServiceError maps the sentinel errors to statuses. Distinct code
// strings let callers tell a retryable provider failure from a storage one.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "invalid credentials")
	case errors.Is(err, common.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, common.ErrInvalidRole):
		respondError(w, http.StatusBadRequest, "invalid_role", "only user messages can be deleted")
	case errors.Is(err, common.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "invalid_request", "missing or malformed fields")
	case errors.Is(err, common.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email_taken", "an account with this email already exists")
	case errors.Is(err, common.ErrProvider):
		s.logger.Warn(r.Context(), "provider error", "error", err)
		respondError(w, http.StatusInternalServerError, "provider_error", "reply generation failed, try again")
	default:
		s.logger.Error(r.Context(), "internal error", "error", err)
		respondError(w, http.StatusInternalServerError, "storage_error", "internal error")
	}
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
