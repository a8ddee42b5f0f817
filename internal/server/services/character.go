package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/wilvurson/ai-chat/internal/common"
	"github.com/wilvurson/ai-chat/internal/dbx"
	"github.com/wilvurson/ai-chat/internal/logging"
	"github.com/wilvurson/ai-chat/internal/server/blob"
	"github.com/wilvurson/ai-chat/internal/server/models"
	"github.com/wilvurson/ai-chat/internal/server/repositories/repomanager"
)

// CharacterFields is the user-editable part of a character.
type CharacterFields struct {
	Name         string
	Description  string
	BasePrompt   string
	GreetingText string
}

// ImageUpload is raw image bytes with their content type, destined for the
// blob store.
type ImageUpload struct {
	Data        []byte
	ContentType string
}

// CharacterService is the character registry: owner-scoped CRUD with image
// storage delegated to the blob store.
type CharacterService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	blobs  blob.Store
	logger logging.Logger
}

func NewCharacterService(db *sql.DB, repos repomanager.RepositoryManager, blobs blob.Store, logger logging.Logger) *CharacterService {
	return &CharacterService{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		logger: logger.With("module", "characters"),
	}
}

func (f CharacterFields) validate() error {
	if strings.TrimSpace(f.Name) == "" ||
		strings.TrimSpace(f.BasePrompt) == "" ||
		strings.TrimSpace(f.GreetingText) == "" {
		return common.ErrInvalidInput
	}
	return nil
}

func (s *CharacterService) Create(ctx context.Context, userID string, fields CharacterFields, image *ImageUpload) (*models.Character, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}

	var imageKey string
	if image != nil {
		key, err := s.blobs.Put(ctx, image.Data, image.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: store image: %v", common.ErrStorage, err)
		}
		imageKey = key
	}

	character, err := s.repos.Characters(s.db).Create(ctx, &models.Character{
		UserID:       userID,
		Name:         fields.Name,
		Description:  fields.Description,
		BasePrompt:   fields.BasePrompt,
		GreetingText: fields.GreetingText,
		ImageKey:     imageKey,
	})
	if err != nil {
		if imageKey != "" {
			if derr := s.blobs.Delete(ctx, imageKey); derr != nil {
				s.logger.Warn(ctx, "orphaned image after failed create", "key", imageKey, "error", derr)
			}
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	return character, nil
}

func (s *CharacterService) List(ctx context.Context, userID string) ([]*models.Character, error) {
	list, err := s.repos.Characters(s.db).List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return list, nil
}

func (s *CharacterService) Get(ctx context.Context, userID, id string) (*models.Character, error) {
	character, err := s.repos.Characters(s.db).Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return character, nil
}

// Update replaces the editable fields and, when an image is supplied, swaps
// the stored object: the new image is written first, the database row
// updated, and only then the old object removed.
func (s *CharacterService) Update(ctx context.Context, userID, id string, fields CharacterFields, image *ImageUpload) (*models.Character, error) {
	if err := fields.validate(); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	imageKey := existing.ImageKey
	if image != nil {
		key, err := s.blobs.Put(ctx, image.Data, image.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: store image: %v", common.ErrStorage, err)
		}
		imageKey = key
	}

	updated, err := s.repos.Characters(s.db).Update(ctx, &models.Character{
		ID:           id,
		UserID:       userID,
		Name:         fields.Name,
		Description:  fields.Description,
		BasePrompt:   fields.BasePrompt,
		GreetingText: fields.GreetingText,
		ImageKey:     imageKey,
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	if image != nil && existing.ImageKey != "" {
		if derr := s.blobs.Delete(ctx, existing.ImageKey); derr != nil {
			s.logger.Warn(ctx, "failed to delete replaced image", "key", existing.ImageKey, "error", derr)
		}
	}

	return updated, nil
}

// Delete removes the character and its whole transcript in one transaction,
// then deletes the stored image best-effort.
func (s *CharacterService) Delete(ctx context.Context, userID, id string) error {
	existing, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Turns(tx).DeleteByCharacter(ctx, userID, id); err != nil {
			return err
		}
		return s.repos.Characters(tx).Delete(ctx, userID, id)
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	if existing.ImageKey != "" {
		if derr := s.blobs.Delete(ctx, existing.ImageKey); derr != nil {
			s.logger.Warn(ctx, "failed to delete character image", "key", existing.ImageKey, "error", derr)
		}
	}

	return nil
}

// ImageURL returns a presigned GET URL for the character's image, or ""
// when it has none.
func (s *CharacterService) ImageURL(ctx context.Context, character *models.Character) (string, error) {
	if character.ImageKey == "" {
		return "", nil
	}
	url, err := s.blobs.PresignGet(ctx, character.ImageKey)
	if err != nil {
		return "", fmt.Errorf("%w: presign image: %v", common.ErrStorage, err)
	}
	return url, nil
}
