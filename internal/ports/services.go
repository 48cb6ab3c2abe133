package ports

import (
	"time"

	"github.com/todovault/core/internal/domain/entities"
)

// Claims carries the authenticated identity extracted from a token.
type Claims struct {
	UserID int64
	Email  string
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest is the payload for authentication.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresIn   int64          `json:"expires_in"`
	User        *entities.User `json:"user"`
}

// CreateTodoRequest is the payload for adding a task.
type CreateTodoRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateTodoRequest is the payload for editing a task.
type UpdateTodoRequest struct {
	Title       string     `json:"title" validate:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

// UpdateProfileRequest is the payload for editing the account.
type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// UpdateSettingsRequest carries partial settings changes; nil fields are
// left untouched.
type UpdateSettingsRequest struct {
	NotificationsEnabled *bool               `json:"notifications_enabled"`
	DarkModeEnabled      *bool               `json:"dark_mode_enabled"`
	NotificationTime     *int                `json:"notification_time" validate:"omitempty,min=1,max=48"`
	AutoBackupEnabled    *bool               `json:"auto_backup_enabled"`
	BackupFrequency      *int                `json:"backup_frequency" validate:"omitempty,min=1,max=30"`
	ThemeMode            *entities.ThemeMode `json:"theme_mode" validate:"omitempty,min=0,max=2"`
}

// ProfileResponse is the profile view: the user plus task statistics.
type ProfileResponse struct {
	User  *entities.User     `json:"user"`
	Stats entities.TodoStats `json:"stats"`
}
