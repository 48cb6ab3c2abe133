package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/todovault/core/internal/application/filter"
	"github.com/todovault/core/internal/application/services"
	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
	"github.com/todovault/core/internal/worker"
)

// MessageResponse is a simple confirmation payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// userIDFromContext reads the authenticated user set by the auth middleware.
func userIDFromContext(c echo.Context) int64 {
	if id, ok := c.Get("user_id").(int64); ok {
		return id
	}
	return 0
}

// mapError translates domain sentinels into HTTP errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, entities.ErrInvalidCredentials):
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, entities.ErrEmailTaken):
		return echo.NewHTTPError(http.StatusConflict, "Email already in use")
	case errors.Is(err, entities.ErrTitleRequired):
		return echo.NewHTTPError(http.StatusBadRequest, "Title is required")
	case errors.Is(err, entities.ErrTodoNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Todo not found")
	case errors.Is(err, entities.ErrUserNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	default:
		return err
	}
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService *services.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// Register handles account creation
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, response)
}

// Login handles user login
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		h.logger.Warnw("Login failed", "email", req.Email)
		return mapError(err)
	}

	return c.JSON(http.StatusOK, response)
}

// Logout handles user logout
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.authService.Logout(c.Request().Context()); err != nil {
		h.logger.Errorw("Logout failed", "error", err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "Logout failed")
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

// Profile returns the current user with task statistics
func (h *AuthHandler) Profile(c echo.Context) error {
	userID := userIDFromContext(c)

	profile, err := h.authService.Profile(c.Request().Context(), userID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, profile)
}

// UpdateProfile edits the current user's name and email
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	userID := userIDFromContext(c)

	var req ports.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	user, err := h.authService.UpdateProfile(c.Request().Context(), userID, req)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteAccount removes the current user and all owned data
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	userID := userIDFromContext(c)

	if err := h.authService.DeleteAccount(c.Request().Context(), userID); err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Account deleted"})
}

// TodoHandler handles task-related requests
type TodoHandler struct {
	todoService *services.TodoService
	logger      *logger.Logger
}

// NewTodoHandler creates a new todo handler
func NewTodoHandler(todoService *services.TodoService, logger *logger.Logger) *TodoHandler {
	return &TodoHandler{todoService: todoService, logger: logger}
}

// List returns the user's tasks after a filter/search/sort pass
func (h *TodoHandler) List(c echo.Context) error {
	userID := userIDFromContext(c)

	spec, err := parseSpec(c)
	if err != nil {
		return err
	}

	todos, err := h.todoService.List(c.Request().Context(), userID, spec)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, todos)
}

// Create adds a task
func (h *TodoHandler) Create(c echo.Context) error {
	userID := userIDFromContext(c)

	var req ports.CreateTodoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	todo, err := h.todoService.Create(c.Request().Context(), userID, req)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, todo)
}

// Get returns one task
func (h *TodoHandler) Get(c echo.Context) error {
	userID := userIDFromContext(c)

	todoID, err := pathID(c)
	if err != nil {
		return err
	}

	todo, err := h.todoService.Get(c.Request().Context(), userID, todoID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, todo)
}

// Update edits a task
func (h *TodoHandler) Update(c echo.Context) error {
	userID := userIDFromContext(c)

	todoID, err := pathID(c)
	if err != nil {
		return err
	}

	var req ports.UpdateTodoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	todo, err := h.todoService.Update(c.Request().Context(), userID, todoID, req)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, todo)
}

// Toggle flips a task's completion state
func (h *TodoHandler) Toggle(c echo.Context) error {
	userID := userIDFromContext(c)

	todoID, err := pathID(c)
	if err != nil {
		return err
	}

	todo, err := h.todoService.Toggle(c.Request().Context(), userID, todoID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, todo)
}

// Delete removes a task
func (h *TodoHandler) Delete(c echo.Context) error {
	userID := userIDFromContext(c)

	todoID, err := pathID(c)
	if err != nil {
		return err
	}

	if err := h.todoService.Delete(c.Request().Context(), userID, todoID); err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Todo deleted"})
}

// Watch streams task snapshots as server-sent events. The first event
// is the current snapshot; each mutation pushes a fresh one.
func (h *TodoHandler) Watch(c echo.Context) error {
	userID := userIDFromContext(c)

	view, err := parseView(c.QueryParam("view"))
	if err != nil {
		return err
	}

	stream, err := h.todoService.Watch(c.Request().Context(), userID, view)
	if err != nil {
		return mapError(err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	for snapshot := range stream {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(resp, "data: %s\n\n", payload); err != nil {
			return err
		}
		resp.Flush()
	}

	return nil
}

// Stats returns the user's task counters
func (h *TodoHandler) Stats(c echo.Context) error {
	userID := userIDFromContext(c)

	stats, err := h.todoService.Stats(c.Request().Context(), userID)
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, stats)
}

// SettingsHandler handles preference requests
type SettingsHandler struct {
	settingsService *services.SettingsService
	logger          *logger.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *services.SettingsService, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService, logger: logger}
}

// Get returns the current settings snapshot
func (h *SettingsHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.settingsService.Get())
}

// Update applies a partial settings change
func (h *SettingsHandler) Update(c echo.Context) error {
	var req ports.UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	snapshot, err := h.settingsService.Update(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Settings update failed", "error", err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "Settings update failed")
	}

	return c.JSON(http.StatusOK, snapshot)
}

// BackupHandler triggers and lists database backups
type BackupHandler struct {
	backup *worker.Backup
	logger *logger.Logger
}

// NewBackupHandler creates a new backup handler
func NewBackupHandler(backup *worker.Backup, logger *logger.Logger) *BackupHandler {
	return &BackupHandler{backup: backup, logger: logger}
}

// Run performs a backup immediately, outside the scheduled cadence
func (h *BackupHandler) Run(c echo.Context) error {
	if err := h.backup.Run(c.Request().Context()); err != nil {
		h.logger.Errorw("Manual backup failed", "error", err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "Backup failed")
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "Backup completed"})
}

// List returns the backup artifacts on disk, newest first
func (h *BackupHandler) List(c echo.Context) error {
	artifacts, err := h.backup.ListBackups()
	if err != nil {
		h.logger.Errorw("Failed to list backups", "error", err.Error())
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list backups")
	}

	return c.JSON(http.StatusOK, artifacts)
}

func parseSpec(c echo.Context) (filter.Spec, error) {
	spec := filter.DefaultSpec()
	spec.Query = c.QueryParam("query")

	switch f := c.QueryParam("filter"); f {
	case "":
	case string(filter.FilterAll), string(filter.FilterActive), string(filter.FilterCompleted):
		spec.Filter = filter.Filter(f)
	default:
		return filter.Spec{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid filter")
	}

	switch s := c.QueryParam("sort"); s {
	case "":
	case string(filter.SortDateAsc), string(filter.SortDateDesc), string(filter.SortTitleAsc), string(filter.SortTitleDesc):
		spec.Sort = filter.Sort(s)
	default:
		return filter.Spec{}, echo.NewHTTPError(http.StatusBadRequest, "Invalid sort")
	}

	return spec, nil
}

func parseView(raw string) (entities.TodoView, error) {
	switch raw {
	case "", string(entities.TodoViewAll):
		return entities.TodoViewAll, nil
	case string(entities.TodoViewPending):
		return entities.TodoViewPending, nil
	case string(entities.TodoViewCompleted):
		return entities.TodoViewCompleted, nil
	default:
		return "", echo.NewHTTPError(http.StatusBadRequest, "Invalid view")
	}
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid todo ID")
	}
	return id, nil
}
