package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/database"
	"github.com/todovault/core/internal/ports"
)

// TodoRepositoryImpl implements the TodoRepository interface
type TodoRepositoryImpl struct {
	db  *database.DB
	hub *Hub
}

// NewTodoRepository creates a new todo repository
func NewTodoRepository(db *database.DB, hub *Hub) ports.TodoRepository {
	return &TodoRepositoryImpl{db: db, hub: hub}
}

func (r *TodoRepositoryImpl) Create(ctx context.Context, todo *entities.Todo) (int64, error) {
	now := time.Now()
	if todo.CreatedAt.IsZero() {
		todo.CreatedAt = now
	}
	todo.UpdatedAt = now

	query := `
		INSERT INTO todos (user_id, title, description, is_completed, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		todo.UserID, todo.Title, todo.Description, todo.IsCompleted,
		todo.DueDate, todo.CreatedAt, todo.UpdatedAt,
	)
	if err != nil {
		// An unknown user_id fails the foreign key check and is rejected.
		return 0, fmt.Errorf("create todo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create todo: last insert id: %w", err)
	}
	todo.ID = id

	r.hub.notify(todo.UserID)
	return id, nil
}

func (r *TodoRepositoryImpl) GetByID(ctx context.Context, id int64) (*entities.Todo, error) {
	query := `
		SELECT id, user_id, title, description, is_completed, due_date, created_at, updated_at
		FROM todos
		WHERE id = ?`

	var todo entities.Todo
	err := r.db.GetContext(ctx, &todo, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entities.ErrTodoNotFound
		}
		return nil, fmt.Errorf("get todo by id: %w", err)
	}

	return &todo, nil
}

func (r *TodoRepositoryImpl) Update(ctx context.Context, todo *entities.Todo) error {
	todo.UpdatedAt = time.Now()

	query := `
		UPDATE todos
		SET title = ?, description = ?, is_completed = ?, due_date = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		todo.Title, todo.Description, todo.IsCompleted, todo.DueDate,
		todo.UpdatedAt, todo.ID,
	)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update todo: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrTodoNotFound
	}

	r.hub.notify(todo.UserID)
	return nil
}

func (r *TodoRepositoryImpl) Delete(ctx context.Context, id int64) error {
	todo, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entities.ErrTodoNotFound
	}

	r.hub.notify(todo.UserID)
	return nil
}

func (r *TodoRepositoryImpl) ListByUser(ctx context.Context, userID int64) ([]*entities.Todo, error) {
	query := `
		SELECT id, user_id, title, description, is_completed, due_date, created_at, updated_at
		FROM todos
		WHERE user_id = ?
		ORDER BY created_at DESC`

	todos := []*entities.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, userID); err != nil {
		return nil, fmt.Errorf("list todos by user: %w", err)
	}

	return todos, nil
}

func (r *TodoRepositoryImpl) ListPending(ctx context.Context, userID int64) ([]*entities.Todo, error) {
	// Undated todos sort last: no due date means "infinitely far", not "soonest".
	query := `
		SELECT id, user_id, title, description, is_completed, due_date, created_at, updated_at
		FROM todos
		WHERE user_id = ? AND is_completed = 0
		ORDER BY
			CASE WHEN due_date IS NULL THEN 1 ELSE 0 END,
			due_date ASC`

	todos := []*entities.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, userID); err != nil {
		return nil, fmt.Errorf("list pending todos: %w", err)
	}

	return todos, nil
}

func (r *TodoRepositoryImpl) ListCompleted(ctx context.Context, userID int64) ([]*entities.Todo, error) {
	query := `
		SELECT id, user_id, title, description, is_completed, due_date, created_at, updated_at
		FROM todos
		WHERE user_id = ? AND is_completed = 1
		ORDER BY updated_at DESC`

	todos := []*entities.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, userID); err != nil {
		return nil, fmt.Errorf("list completed todos: %w", err)
	}

	return todos, nil
}

func (r *TodoRepositoryImpl) ListUpcoming(ctx context.Context, now, horizon time.Time) ([]*entities.Todo, error) {
	query := `
		SELECT id, user_id, title, description, is_completed, due_date, created_at, updated_at
		FROM todos
		WHERE is_completed = 0 AND due_date IS NOT NULL AND due_date > ? AND due_date <= ?
		ORDER BY due_date ASC`

	todos := []*entities.Todo{}
	if err := r.db.SelectContext(ctx, &todos, query, now, horizon); err != nil {
		return nil, fmt.Errorf("list upcoming todos: %w", err)
	}

	return todos, nil
}

// Watch emits the current snapshot of the requested view immediately and
// a fresh snapshot after every mutation touching the user's rows. The
// stream closes when ctx is cancelled or a storage read fails.
func (r *TodoRepositoryImpl) Watch(ctx context.Context, userID int64, view entities.TodoView) (<-chan []*entities.Todo, error) {
	list := r.listerFor(view)

	snapshot, err := list(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan []*entities.Todo, 1)
	out <- snapshot

	signal := r.hub.subscribe(userID)

	go func() {
		defer close(out)
		defer r.hub.unsubscribe(userID, signal)

		for {
			select {
			case <-ctx.Done():
				return
			case <-signal:
				snapshot, err := list(ctx, userID)
				if err != nil {
					return
				}
				// Replace a stale undelivered snapshot with the latest.
				select {
				case <-out:
				default:
				}
				select {
				case out <- snapshot:
				default:
				}
			}
		}
	}()

	return out, nil
}

func (r *TodoRepositoryImpl) listerFor(view entities.TodoView) func(context.Context, int64) ([]*entities.Todo, error) {
	switch view {
	case entities.TodoViewPending:
		return r.ListPending
	case entities.TodoViewCompleted:
		return r.ListCompleted
	default:
		return r.ListByUser
	}
}

func (r *TodoRepositoryImpl) Stats(ctx context.Context, userID int64) (entities.TodoStats, error) {
	query := `
		SELECT COUNT(*) AS total, COALESCE(SUM(is_completed), 0) AS completed
		FROM todos
		WHERE user_id = ?`

	var row struct {
		Total     int `db:"total"`
		Completed int `db:"completed"`
	}
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		return entities.TodoStats{}, fmt.Errorf("todo stats: %w", err)
	}

	return entities.TodoStats{
		Total:     row.Total,
		Completed: row.Completed,
		Active:    row.Total - row.Completed,
	}, nil
}
