package services

import (
	"context"
	"strings"

	"github.com/todovault/core/internal/application/filter"
	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
)

// TodoService handles task operations on behalf of an authenticated
// user. Ownership is enforced here: a todo belonging to someone else is
// reported as not found.
type TodoService struct {
	todos  ports.TodoRepository
	logger *logger.Logger
}

// NewTodoService creates a new todo service
func NewTodoService(todos ports.TodoRepository, logger *logger.Logger) *TodoService {
	return &TodoService{todos: todos, logger: logger}
}

// Create adds a task for the user.
func (s *TodoService) Create(ctx context.Context, userID int64, req ports.CreateTodoRequest) (*entities.Todo, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, entities.ErrTitleRequired
	}

	todo := &entities.Todo{
		UserID:      userID,
		Title:       title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}

	if _, err := s.todos.Create(ctx, todo); err != nil {
		return nil, err
	}

	s.logger.Infow("Todo created", "todo_id", todo.ID, "user_id", userID)
	return todo, nil
}

// Update edits the user's task.
func (s *TodoService) Update(ctx context.Context, userID, todoID int64, req ports.UpdateTodoRequest) (*entities.Todo, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, entities.ErrTitleRequired
	}

	todo, err := s.owned(ctx, userID, todoID)
	if err != nil {
		return nil, err
	}

	todo.Title = title
	todo.Description = req.Description
	todo.DueDate = req.DueDate

	if err := s.todos.Update(ctx, todo); err != nil {
		return nil, err
	}

	return todo, nil
}

// Toggle flips the completion state of the user's task.
func (s *TodoService) Toggle(ctx context.Context, userID, todoID int64) (*entities.Todo, error) {
	todo, err := s.owned(ctx, userID, todoID)
	if err != nil {
		return nil, err
	}

	todo.IsCompleted = !todo.IsCompleted
	if err := s.todos.Update(ctx, todo); err != nil {
		return nil, err
	}

	return todo, nil
}

// Delete removes the user's task.
func (s *TodoService) Delete(ctx context.Context, userID, todoID int64) error {
	if _, err := s.owned(ctx, userID, todoID); err != nil {
		return err
	}

	return s.todos.Delete(ctx, todoID)
}

// Get returns the user's task.
func (s *TodoService) Get(ctx context.Context, userID, todoID int64) (*entities.Todo, error) {
	return s.owned(ctx, userID, todoID)
}

// List returns the user's tasks after one filter/search/sort pass.
func (s *TodoService) List(ctx context.Context, userID int64, spec filter.Spec) ([]*entities.Todo, error) {
	todos, err := s.todos.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return filter.Apply(todos, spec), nil
}

// Watch opens a reactive snapshot stream over the user's tasks.
func (s *TodoService) Watch(ctx context.Context, userID int64, view entities.TodoView) (<-chan []*entities.Todo, error) {
	return s.todos.Watch(ctx, userID, view)
}

// Stats returns the user's task counters.
func (s *TodoService) Stats(ctx context.Context, userID int64) (entities.TodoStats, error) {
	return s.todos.Stats(ctx, userID)
}

func (s *TodoService) owned(ctx context.Context, userID, todoID int64) (*entities.Todo, error) {
	todo, err := s.todos.GetByID(ctx, todoID)
	if err != nil {
		return nil, err
	}
	if todo.UserID != userID {
		// Another user's todo looks like a missing one.
		return nil, entities.ErrTodoNotFound
	}
	return todo, nil
}
