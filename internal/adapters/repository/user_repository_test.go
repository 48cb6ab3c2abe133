package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todovault/core/internal/domain/entities"
)

func TestUserCreateAndGet(t *testing.T) {
	f := newRepoFixture(t)

	user := &entities.User{
		Name:         "Ada",
		Email:        "ada@example.com",
		PasswordHash: "hash",
	}
	id, err := f.users.Create(context.Background(), user)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	byID, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ada", byID.Name)

	byEmail, err := f.users.GetByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)
}

func TestUserGetMissing(t *testing.T) {
	f := newRepoFixture(t)

	_, err := f.users.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, entities.ErrUserNotFound)

	_, err = f.users.GetByEmail(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, entities.ErrUserNotFound)
}

func TestUserEmailUnique(t *testing.T) {
	f := newRepoFixture(t)
	f.createUser(t, "ada@example.com")

	_, err := f.users.Create(context.Background(), &entities.User{
		Name:         "Imposter",
		Email:        "ada@example.com",
		PasswordHash: "hash",
	})
	assert.Error(t, err)
}

func TestUserUpdate(t *testing.T) {
	f := newRepoFixture(t)
	id := f.createUser(t, "ada@example.com")

	user, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)

	user.Name = "Ada Lovelace"
	user.Email = "lovelace@example.com"
	require.NoError(t, f.users.Update(context.Background(), user))

	got, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.Name)
	assert.Equal(t, "lovelace@example.com", got.Email)

	missing := &entities.User{ID: 99, Name: "Ghost", Email: "ghost@example.com"}
	assert.ErrorIs(t, f.users.Update(context.Background(), missing), entities.ErrUserNotFound)
}

func TestUserDeleteCascadesToTodos(t *testing.T) {
	f := newRepoFixture(t)
	id := f.createUser(t, "ada@example.com")

	todoID, err := f.todos.Create(context.Background(), &entities.Todo{UserID: id, Title: "owned"})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(context.Background(), id))

	_, err = f.users.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, entities.ErrUserNotFound)

	_, err = f.todos.GetByID(context.Background(), todoID)
	assert.ErrorIs(t, err, entities.ErrTodoNotFound)

	assert.ErrorIs(t, f.users.Delete(context.Background(), id), entities.ErrUserNotFound)
}
