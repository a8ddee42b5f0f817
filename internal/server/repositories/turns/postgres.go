// Package turns provides the PostgreSQL-backed transcript store.
//
// Ordering uses a per-(user, character) monotonic sequence number computed
// inside the insert statement; wall-clock timestamps are metadata only, so
// clock skew between concurrent appends cannot reorder a transcript. Model
// turns reference the user turn they answer via reply_to, which makes the
// deletion cascade an exact lookup.
package turns

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wilvurson/ai-chat/internal/common"
	"github.com/wilvurson/ai-chat/internal/dbx"
	"github.com/wilvurson/ai-chat/internal/server/models"
)

// invalidUUID reports whether err is Postgres rejecting a malformed uuid
// bind (22P02). Such an id cannot match any row, so callers treat it the
// same as an id that does not exist.
func invalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, turn *models.Turn) (*models.Turn, error) {
	if turn.ID == "" {
		turn.ID = uuid.NewString()
	}

	query := `INSERT INTO turns (id, user_id, character_id, role, content, seq, reply_to)
	          SELECT $1, $2, $3, $4, $5, COALESCE(MAX(seq), 0) + 1, NULLIF($6, '')::uuid
	          FROM turns WHERE user_id = $2 AND character_id = $3
	          RETURNING seq, created_at`

	err := r.db.QueryRowContext(ctx, query,
		turn.ID, turn.UserID, turn.CharacterID, turn.Role, turn.Content, turn.ReplyTo).
		Scan(&turn.Seq, &turn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return turn, nil
}

func (r *PostgresRepository) ListOrdered(ctx context.Context, userID, characterID string) ([]*models.Turn, error) {
	query := `SELECT id, user_id, character_id, role, content, seq, COALESCE(reply_to::text, ''), created_at
	          FROM turns
	          WHERE user_id = $1 AND character_id = $2
	          ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, userID, characterID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Turn
	for rows.Next() {
		var t models.Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.CharacterID, &t.Role, &t.Content,
			&t.Seq, &t.ReplyTo, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Turn, error) {
	query := `SELECT id, user_id, character_id, role, content, seq, COALESCE(reply_to::text, ''), created_at
	          FROM turns
	          WHERE id = $1 AND user_id = $2`

	t := &models.Turn{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&t.ID, &t.UserID, &t.CharacterID, &t.Role, &t.Content, &t.Seq, &t.ReplyTo, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || invalidUUID(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return t, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM turns WHERE id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		if invalidUUID(err) {
			return common.ErrNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteReply(ctx context.Context, userID, replyTo string) (int64, error) {
	query := `DELETE FROM turns WHERE reply_to = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, replyTo, userID)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) DeleteByCharacter(ctx context.Context, userID, characterID string) error {
	query := `DELETE FROM turns WHERE user_id = $1 AND character_id = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, characterID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}
