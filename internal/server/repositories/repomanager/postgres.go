// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/wilvurson/ai-chat/internal/dbx"
	"github.com/wilvurson/ai-chat/internal/server/migrations"
	"github.com/wilvurson/ai-chat/internal/server/repositories/characters"
	"github.com/wilvurson/ai-chat/internal/server/repositories/turns"
	"github.com/wilvurson/ai-chat/internal/server/repositories/users"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository
// implementations and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Characters(db dbx.DBTX) characters.Repository {
	return characters.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Turns(db dbx.DBTX) turns.Repository {
	return turns.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing RunMigrations.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations points goose at the embedded migrations and applies them.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
