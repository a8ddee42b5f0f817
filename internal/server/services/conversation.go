package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wilvurson/ai-chat/internal/common"
	"github.com/wilvurson/ai-chat/internal/dbx"
	"github.com/wilvurson/ai-chat/internal/logging"
	"github.com/wilvurson/ai-chat/internal/observability"
	"github.com/wilvurson/ai-chat/internal/server/history"
	"github.com/wilvurson/ai-chat/internal/server/llm"
	"github.com/wilvurson/ai-chat/internal/server/models"
	"github.com/wilvurson/ai-chat/internal/server/repositories/repomanager"
)

// ConversationService orchestrates a turn: look up the character, assemble
// the seeded history, call the generator, and persist the resulting turns.
// Turn-producing operations for one (user, character) pair are serialized by
// a keyed mutex so concurrent sends cannot interleave into unordered
// branches; reads take no lock since turns are immutable.
//
// Persistence policy: the user turn is written before generation so the
// user's text survives a provider failure. A failed generation therefore
// leaves a trailing unpaired user turn in the transcript, which later
// history assembly includes as a legitimate prior statement.
type ConversationService struct {
	db                *sql.DB
	repos             repomanager.RepositoryManager
	generator         llm.Generator
	locks             *keyedMutex
	metrics           *observability.Metrics
	logger            logging.Logger
	generationTimeout time.Duration
}

func NewConversationService(
	db *sql.DB,
	repos repomanager.RepositoryManager,
	generator llm.Generator,
	metrics *observability.Metrics,
	logger logging.Logger,
	generationTimeout time.Duration,
) *ConversationService {
	return &ConversationService{
		db:                db,
		repos:             repos,
		generator:         generator,
		locks:             newKeyedMutex(),
		metrics:           metrics,
		logger:            logger.With("module", "conversation"),
		generationTimeout: generationTimeout,
	}
}

func transcriptKey(userID, characterID string) string {
	return userID + "/" + characterID
}

// SendMessage runs one full turn and returns the model's reply text.
func (s *ConversationService) SendMessage(ctx context.Context, userID, characterID, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", common.ErrInvalidInput
	}

	started := time.Now()
	s.metrics.ActiveTurns.Inc()
	defer func() {
		s.metrics.ActiveTurns.Dec()
		s.metrics.ObserveTurnDuration(time.Since(started))
	}()

	unlock := s.locks.Lock(transcriptKey(userID, characterID))
	defer unlock()

	// A disconnecting client must not abort the turn mid-flight: once
	// generation starts, the result is persisted so the transcript has no
	// silent gaps. The configured timeout is the only cancellation source.
	ctx = context.WithoutCancel(ctx)

	character, err := s.repos.Characters(s.db).Get(ctx, userID, characterID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	prior, err := s.repos.Turns(s.db).ListOrdered(ctx, userID, characterID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	assembled := history.Assemble(character, prior)

	userTurn, err := s.repos.Turns(s.db).Append(ctx, &models.Turn{
		UserID:      userID,
		CharacterID: characterID,
		Role:        models.RoleUser,
		Content:     content,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	s.metrics.TurnsAppended.WithLabelValues(models.RoleUser).Inc()

	genCtx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	reply, err := s.generator.Generate(genCtx, assembled, content)
	if err != nil {
		s.metrics.ProviderErrors.Inc()
		s.logger.Warn(ctx, "generation failed, user turn left unpaired",
			"character_id", characterID, "turn_id", userTurn.ID, "error", err)
		if errors.Is(err, common.ErrProvider) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", common.ErrProvider, err)
	}

	_, err = s.repos.Turns(s.db).Append(ctx, &models.Turn{
		UserID:      userID,
		CharacterID: characterID,
		Role:        models.RoleModel,
		Content:     reply,
		ReplyTo:     userTurn.ID,
	})
	if err != nil {
		// The character may have been deleted while generation was in
		// flight; its transcript is gone with it, so the reply is dropped.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			s.logger.Info(ctx, "character deleted mid-turn, reply dropped", "character_id", characterID)
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	s.metrics.TurnsAppended.WithLabelValues(models.RoleModel).Inc()

	return reply, nil
}

// ListTurns returns the transcript in ascending order. Ownership of the
// character is checked first so a foreign character id reads as not-found.
func (s *ConversationService) ListTurns(ctx context.Context, userID, characterID string) ([]*models.Turn, error) {
	if _, err := s.repos.Characters(s.db).Get(ctx, userID, characterID); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	turns, err := s.repos.Turns(s.db).ListOrdered(ctx, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorage, err)
	}
	return turns, nil
}

// DeleteTurn removes a user turn and, via its reply_to back-reference, the
// model reply paired with it, as one transaction. Model turns cannot be
// deleted directly.
func (s *ConversationService) DeleteTurn(ctx context.Context, userID, characterID, turnID string) error {
	unlock := s.locks.Lock(transcriptKey(userID, characterID))
	defer unlock()

	var removed int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Turns(tx)

		turn, err := repo.Get(ctx, userID, turnID)
		if err != nil {
			return err
		}
		if turn.CharacterID != characterID {
			return common.ErrNotFound
		}
		if turn.Role != models.RoleUser {
			return common.ErrInvalidRole
		}

		// The reply goes first: deleting the user turn would null the
		// reply_to reference and strand the model turn.
		replies, err := repo.DeleteReply(ctx, userID, turn.ID)
		if err != nil {
			return err
		}
		if err := repo.Delete(ctx, userID, turn.ID); err != nil {
			return err
		}

		removed = replies + 1
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) || errors.Is(err, common.ErrInvalidRole) {
			return err
		}
		return fmt.Errorf("%w: %v", common.ErrStorage, err)
	}

	s.metrics.TurnsDeleted.Add(float64(removed))
	return nil
}
