package httpapi

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wilvurson/ai-chat/internal/server/models"
	"github.com/wilvurson/ai-chat/internal/server/services"
)

// maxImageBytes bounds a character image upload.
const maxImageBytes = 8 << 20

type characterResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	BasePrompt   string    `json:"base_prompt"`
	GreetingText string    `json:"greeting_text"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Server) toCharacterResponse(r *http.Request, c *models.Character) characterResponse {
	resp := characterResponse{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		BasePrompt:   c.BasePrompt,
		GreetingText: c.GreetingText,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	url, err := s.characters.ImageURL(r.Context(), c)
	if err != nil {
		// The character itself is fine; serve it without the image link.
		s.logger.Warn(r.Context(), "presign image failed", "character_id", c.ID, "error", err)
		return resp
	}
	resp.ImageURL = url
	return resp
}

// parseCharacterForm reads the multipart form: text fields plus an optional
// image part. A missing image part returns a nil upload, not an error.
func parseCharacterForm(r *http.Request) (services.CharacterFields, *services.ImageUpload, error) {
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return services.CharacterFields{}, nil, err
	}

	fields := services.CharacterFields{
		Name:         r.FormValue("name"),
		Description:  r.FormValue("description"),
		BasePrompt:   r.FormValue("basePrompt"),
		GreetingText: r.FormValue("greetingText"),
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return fields, nil, nil
		}
		return services.CharacterFields{}, nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
	if err != nil {
		return services.CharacterFields{}, nil, err
	}
	if len(data) > maxImageBytes {
		return services.CharacterFields{}, nil, errors.New("image too large")
	}

	return fields, &services.ImageUpload{
		Data:        data,
		ContentType: imageContentType(header),
	}, nil
}

func imageContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) handleListCharacters(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	list, err := s.characters.List(r.Context(), principal.UserID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}

	out := make([]characterResponse, 0, len(list))
	for _, c := range list {
		out = append(out, s.toCharacterResponse(r, c))
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	fields, image, err := parseCharacterForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	character, err := s.characters.Create(r.Context(), principal.UserID, fields, image)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.toCharacterResponse(r, character))
}

func (s *Server) handleGetCharacter(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	character, err := s.characters.Get(r.Context(), principal.UserID, chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.toCharacterResponse(r, character))
}

func (s *Server) handleUpdateCharacter(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	fields, image, err := parseCharacterForm(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	character, err := s.characters.Update(r.Context(), principal.UserID, chi.URLParam(r, "id"), fields, image)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.toCharacterResponse(r, character))
}

func (s *Server) handleDeleteCharacter(w http.ResponseWriter, r *http.Request) {
	principal, _ := principalFrom(r.Context())

	if err := s.characters.Delete(r.Context(), principal.UserID, chi.URLParam(r, "id")); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}
