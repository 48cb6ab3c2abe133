package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/config"
	"github.com/todovault/core/internal/infrastructure/database"
	"github.com/todovault/core/internal/ports"
)

type repoFixture struct {
	db    *database.DB
	hub   *Hub
	users ports.UserRepository
	todos ports.TodoRepository
	jobs  ports.JobRepository
}

func newRepoFixture(t *testing.T) *repoFixture {
	t.Helper()

	db, err := database.Open(config.StorageConfig{
		DataDir:      t.TempDir(),
		DatabaseFile: "todovault.db",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	hub := NewHub()
	return &repoFixture{
		db:    db,
		hub:   hub,
		users: NewUserRepository(db, hub),
		todos: NewTodoRepository(db, hub),
		jobs:  NewJobRepository(db),
	}
}

func (f *repoFixture) createUser(t *testing.T, email string) int64 {
	t.Helper()

	id, err := f.users.Create(context.Background(), &entities.User{
		Name:         "Test User",
		Email:        email,
		PasswordHash: "hash",
	})
	require.NoError(t, err)
	return id
}
