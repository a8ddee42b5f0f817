package repomanager

import (
	"context"
	"database/sql"

	"github.com/wilvurson/ai-chat/internal/dbx"
	"github.com/wilvurson/ai-chat/internal/server/repositories/characters"
	"github.com/wilvurson/ai-chat/internal/server/repositories/turns"
	"github.com/wilvurson/ai-chat/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can use
// the same repository code against the pool or against a transaction.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Characters(db dbx.DBTX) characters.Repository
	Turns(db dbx.DBTX) turns.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
