package turns

import (
	"context"

	"github.com/wilvurson/ai-chat/internal/server/models"
)

// Repository is the append-only transcript log, one ordered sequence per
// (user, character) pair. Turns are immutable once written; the only
// mutation is deletion. The conversation service composes these primitives
// under a transaction for atomic pair appends and cascade deletes.
type Repository interface {
	// Append inserts a turn, assigning the next per-(user, character)
	// sequence number atomically with the insert.
	Append(ctx context.Context, turn *models.Turn) (*models.Turn, error)

	// ListOrdered returns the transcript ascending by sequence number.
	ListOrdered(ctx context.Context, userID, characterID string) ([]*models.Turn, error)

	// Get fetches a single turn scoped to its owner.
	Get(ctx context.Context, userID, id string) (*models.Turn, error)

	// Delete removes a turn by id scoped to its owner.
	Delete(ctx context.Context, userID, id string) error

	// DeleteReply removes the model turn answering the given user turn, if
	// one exists. Returns the number of turns removed (0 or 1).
	DeleteReply(ctx context.Context, userID, replyTo string) (int64, error)

	// DeleteByCharacter removes a character's whole transcript.
	DeleteByCharacter(ctx context.Context, userID, characterID string) error
}
