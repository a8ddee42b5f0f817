package services

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/wilvurson/ai-chat/internal/common"
	"github.com/wilvurson/ai-chat/internal/dbx"
	"github.com/wilvurson/ai-chat/internal/logging"
	"github.com/wilvurson/ai-chat/internal/observability"
	"github.com/wilvurson/ai-chat/internal/server/models"
	"github.com/wilvurson/ai-chat/internal/server/repositories/characters"
	"github.com/wilvurson/ai-chat/internal/server/repositories/turns"
	"github.com/wilvurson/ai-chat/internal/server/repositories/users"
)

// Shared instruments: promauto registers globally, so construct once.
var testMetrics = observability.NewMetrics("test")

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// newMockDB returns a *sql.DB the fakes never query; it exists so services
// can run their transactions. Tests that trigger dbx.WithTx must expect the
// Begin/Commit (or Rollback) pair themselves.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

// fakeRepoManager vends in-memory repositories regardless of the DBTX.
type fakeRepoManager struct {
	users      *memUsersRepo
	characters *memCharactersRepo
	turns      *memTurnsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:      &memUsersRepo{byID: map[string]*models.User{}},
		characters: &memCharactersRepo{byID: map[string]*models.Character{}},
		turns:      newMemTurnsRepo(),
	}
}

func (f *fakeRepoManager) Users(dbx.DBTX) users.Repository           { return f.users }
func (f *fakeRepoManager) Characters(dbx.DBTX) characters.Repository { return f.characters }
func (f *fakeRepoManager) Turns(dbx.DBTX) turns.Repository           { return f.turns }
func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

// --- users ---

type memUsersRepo struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

func (r *memUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Email == u.Email {
			return nil, common.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	r.byID[u.ID] = &cp
	return u, nil
}

func (r *memUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// --- characters ---

type memCharactersRepo struct {
	mu   sync.Mutex
	byID map[string]*models.Character
}

func (r *memCharactersRepo) Create(_ context.Context, c *models.Character) (*models.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	cp := *c
	r.byID[c.ID] = &cp
	return c, nil
}

func (r *memCharactersRepo) List(_ context.Context, userID string) ([]*models.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Character
	for _, c := range r.byID {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memCharactersRepo) Get(_ context.Context, userID, id string) (*models.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.UserID != userID {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCharactersRepo) Update(_ context.Context, c *models.Character) (*models.Character, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[c.ID]
	if !ok || existing.UserID != c.UserID {
		return nil, common.ErrNotFound
	}
	cp := *c
	cp.CreatedAt = existing.CreatedAt
	r.byID[c.ID] = &cp
	return c, nil
}

func (r *memCharactersRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.UserID != userID {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// --- turns ---

type memTurnsRepo struct {
	mu        sync.Mutex
	logs      map[string][]*models.Turn // keyed by userID+"/"+characterID
	appendErr error                     // when set, Append fails with it
}

func (r *memTurnsRepo) failAppends(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appendErr = err
}

func newMemTurnsRepo() *memTurnsRepo {
	return &memTurnsRepo{logs: map[string][]*models.Turn{}}
}

func (r *memTurnsRepo) key(userID, characterID string) string {
	return userID + "/" + characterID
}

func (r *memTurnsRepo) Append(_ context.Context, t *models.Turn) (*models.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return nil, r.appendErr
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	k := r.key(t.UserID, t.CharacterID)
	log := r.logs[k]
	if n := len(log); n > 0 {
		t.Seq = log[n-1].Seq + 1
	} else {
		t.Seq = 1
	}
	cp := *t
	r.logs[k] = append(log, &cp)
	return t, nil
}

func (r *memTurnsRepo) ListOrdered(_ context.Context, userID, characterID string) ([]*models.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	log := r.logs[r.key(userID, characterID)]
	out := make([]*models.Turn, len(log))
	for i, t := range log {
		cp := *t
		out[i] = &cp
	}
	return out, nil
}

func (r *memTurnsRepo) Get(_ context.Context, userID, id string) (*models.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, log := range r.logs {
		for _, t := range log {
			if t.ID == id && t.UserID == userID {
				cp := *t
				return &cp, nil
			}
		}
	}
	return nil, common.ErrNotFound
}

func (r *memTurnsRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, log := range r.logs {
		for i, t := range log {
			if t.ID == id && t.UserID == userID {
				r.logs[k] = append(log[:i:i], log[i+1:]...)
				return nil
			}
		}
	}
	return common.ErrNotFound
}

func (r *memTurnsRepo) DeleteReply(_ context.Context, userID, replyTo string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed int64
	for k, log := range r.logs {
		kept := log[:0:0]
		for _, t := range log {
			if t.ReplyTo == replyTo && t.UserID == userID {
				removed++
				continue
			}
			kept = append(kept, t)
		}
		r.logs[k] = kept
	}
	return removed, nil
}

func (r *memTurnsRepo) DeleteByCharacter(_ context.Context, userID, characterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.logs, r.key(userID, characterID))
	return nil
}

// --- blob store ---

type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
	deletes []string
	putErr  error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (s *fakeBlobStore) Put(_ context.Context, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return "", s.putErr
	}
	s.puts++
	key := fmt.Sprintf("blob-%d", s.puts)
	s.objects[key] = data
	return key, nil
}

func (s *fakeBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.deletes = append(s.deletes, key)
	return nil
}

func (s *fakeBlobStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://blobs.test/" + key, nil
}
