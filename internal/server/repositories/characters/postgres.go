// Package characters provides the PostgreSQL-backed character registry
// storage with owner scoping on every query.
package characters

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

func (r *PostgresRepository) Create(ctx context.Context, character *models.Character) (*models.Character, error) {
	if character.ID == "" {
		character.ID = uuid.NewString()
	}

	query := `INSERT INTO characters (id, user_id, name, description, base_prompt, greeting_text, image_key)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		character.ID, character.UserID, character.Name, character.Description,
		character.BasePrompt, character.GreetingText, character.ImageKey).
		Scan(&character.CreatedAt, &character.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return character, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*models.Character, error) {
	query := `SELECT id, user_id, name, description, base_prompt, greeting_text, image_key, created_at, updated_at
	          FROM characters
	          WHERE user_id = $1
	          ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Character
	for rows.Next() {
		var c models.Character
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Description,
			&c.BasePrompt, &c.GreetingText, &c.ImageKey, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		result = append(result, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Character, error) {
	query := `SELECT id, user_id, name, description, base_prompt, greeting_text, image_key, created_at, updated_at
	          FROM characters
	          WHERE id = $1 AND user_id = $2`

	c := &models.Character{}
	err := r.db.QueryRowContext(ctx, query, id, userID).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Description,
			&c.BasePrompt, &c.GreetingText, &c.ImageKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || invalidUUID(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return c, nil
}

func (r *PostgresRepository) Update(ctx context.Context, character *models.Character) (*models.Character, error) {
	query := `UPDATE characters
	          SET name = $3, description = $4, base_prompt = $5, greeting_text = $6, image_key = $7, updated_at = now()
	          WHERE id = $1 AND user_id = $2
	          RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		character.ID, character.UserID, character.Name, character.Description,
		character.BasePrompt, character.GreetingText, character.ImageKey).
		Scan(&character.CreatedAt, &character.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || invalidUUID(err) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return character, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	query := `DELETE FROM characters WHERE id = $1 AND user_id = $2`

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
