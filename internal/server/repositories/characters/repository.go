package characters

import (
	"context"

	"github.com/wilvurson/ai-chat/internal/server/models"
)

// Repository stores character definitions. Every read and write is scoped to
// the owning user: an id that exists but belongs to someone else behaves
// exactly like a missing id.
type Repository interface {
	Create(ctx context.Context, character *models.Character) (*models.Character, error)
	List(ctx context.Context, userID string) ([]*models.Character, error)
	Get(ctx context.Context, userID, id string) (*models.Character, error)
	Update(ctx context.Context, character *models.Character) (*models.Character, error)
	Delete(ctx context.Context, userID, id string) error
}
