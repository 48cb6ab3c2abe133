package entities

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrTodoNotFound       = errors.New("todo not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrTitleRequired      = errors.New("title cannot be empty")
	ErrJobNotFound        = errors.New("scheduled job not found")
	ErrUnauthorized       = errors.New("unauthorized")
)

// ThemeMode selects the UI theme a client should render.
type ThemeMode int

const (
	ThemeModeSystem ThemeMode = iota
	ThemeModeLight
	ThemeModeDark
)

// User represents a registered account.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Todo represents a single dated task owned by exactly one user.
type Todo struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	IsCompleted bool       `json:"is_completed" db:"is_completed"`
	DueDate     *time.Time `json:"due_date" db:"due_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// TodoView names the three reactive task list projections.
type TodoView string

const (
	TodoViewAll       TodoView = "all"
	TodoViewPending   TodoView = "pending"
	TodoViewCompleted TodoView = "completed"
)

// TodoStats summarizes a user's tasks for the profile view.
type TodoStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Active    int `json:"active"`
}

// Settings is the full per-installation preference snapshot.
// ActiveUserID == 0 means no authenticated session.
type Settings struct {
	NotificationsEnabled bool      `json:"notifications_enabled"`
	DarkModeEnabled      bool      `json:"dark_mode_enabled"`
	NotificationTime     int       `json:"notification_time"`
	AutoBackupEnabled    bool      `json:"auto_backup_enabled"`
	BackupFrequency      int       `json:"backup_frequency"`
	LastBackup           int64     `json:"last_backup"`
	LastSync             int64     `json:"last_sync"`
	ThemeMode            ThemeMode `json:"theme_mode"`
	ActiveUserID         int64     `json:"user_id,omitempty"`
}

// JobPolicy controls what happens when a periodic job is scheduled
// under a name that already has an active registration.
type JobPolicy string

const (
	// JobPolicyUpdate merges the new cadence and constraints into the
	// existing registration, preserving its schedule anchor.
	JobPolicyUpdate JobPolicy = "update"
	// JobPolicyReplace cancels the old registration and starts a fresh
	// schedule anchored at now.
	JobPolicyReplace JobPolicy = "replace"
)

// JobConstraints are the host-condition gates checked before a firing.
// Unmet constraints defer the firing to the next eligible window.
type JobConstraints struct {
	BatteryNotLow   bool `json:"battery_not_low" db:"battery_not_low"`
	DeviceIdle      bool `json:"device_idle" db:"device_idle"`
	NetworkRequired bool `json:"network_required" db:"network_required"`
}

// JobRecord is the persisted state of one named periodic job.
type JobRecord struct {
	Name            string     `db:"name"`
	IntervalSeconds int64      `db:"interval_seconds"`
	FlexSeconds     int64      `db:"flex_seconds"`
	BatteryNotLow   bool       `db:"battery_not_low"`
	DeviceIdle      bool       `db:"device_idle"`
	NetworkRequired bool       `db:"network_required"`
	NextRun         time.Time  `db:"next_run"`
	LastRun         *time.Time `db:"last_run"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// Interval returns the job cadence as a duration.
func (r *JobRecord) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Flex returns the trailing flex window as a duration.
func (r *JobRecord) Flex() time.Duration {
	return time.Duration(r.FlexSeconds) * time.Second
}

// Constraints returns the persisted constraint gates.
func (r *JobRecord) Constraints() JobConstraints {
	return JobConstraints{
		BatteryNotLow:   r.BatteryNotLow,
		DeviceIdle:      r.DeviceIdle,
		NetworkRequired: r.NetworkRequired,
	}
}

// BackupArtifact describes one snapshot file in the backup directory.
type BackupArtifact struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
