package ports

import (
	"context"
	"time"

	"github.com/todovault/core/internal/domain/entities"
)

// UserRepository defines the interface for user record operations.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
	// Delete removes the user and cascades to all owned todos.
	Delete(ctx context.Context, id int64) error
}

// TodoRepository defines the interface for todo record operations.
// List* methods are one-shot snapshots; Watch returns a reactive stream
// that emits the current snapshot immediately and a fresh snapshot after
// every mutation affecting the user's rows.
type TodoRepository interface {
	Create(ctx context.Context, todo *entities.Todo) (int64, error)
	GetByID(ctx context.Context, id int64) (*entities.Todo, error)
	Update(ctx context.Context, todo *entities.Todo) error
	Delete(ctx context.Context, id int64) error

	// ListByUser returns all todos ordered by creation time, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*entities.Todo, error)
	// ListPending returns incomplete todos ordered by due date ascending,
	// undated todos last.
	ListPending(ctx context.Context, userID int64) ([]*entities.Todo, error)
	// ListCompleted returns completed todos ordered by last update, newest first.
	ListCompleted(ctx context.Context, userID int64) ([]*entities.Todo, error)
	// ListUpcoming returns incomplete todos with a due date strictly after
	// now and at or before horizon, ascending, across all users.
	ListUpcoming(ctx context.Context, now, horizon time.Time) ([]*entities.Todo, error)

	Watch(ctx context.Context, userID int64, view entities.TodoView) (<-chan []*entities.Todo, error)

	Stats(ctx context.Context, userID int64) (entities.TodoStats, error)
}

// JobRepository persists the scheduler's named periodic job registrations.
type JobRepository interface {
	Get(ctx context.Context, name string) (*entities.JobRecord, error)
	Save(ctx context.Context, record *entities.JobRecord) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]*entities.JobRecord, error)
	// MarkRun records a completed firing and the next schedule anchor.
	MarkRun(ctx context.Context, name string, lastRun, nextRun time.Time) error
}

// SettingsStore is the durable key-value store for user preferences.
// Reads never fail: an unreadable backing file degrades to defaults.
// Writes are durable before the call returns.
type SettingsStore interface {
	Snapshot() entities.Settings
	// Watch emits the full settings snapshot immediately and after every
	// change until ctx is cancelled.
	Watch(ctx context.Context) <-chan entities.Settings

	NotificationsEnabled() bool
	SetNotificationsEnabled(enabled bool) error
	DarkModeEnabled() bool
	SetDarkModeEnabled(enabled bool) error
	NotificationTime() int
	SetNotificationTime(hours int) error
	AutoBackupEnabled() bool
	SetAutoBackupEnabled(enabled bool) error
	BackupFrequency() int
	SetBackupFrequency(days int) error
	LastBackup() int64
	SetLastBackup(t time.Time) error
	LastSync() int64
	SetLastSync(t time.Time) error
	ThemeMode() entities.ThemeMode
	SetThemeMode(mode entities.ThemeMode) error
	ActiveUserID() (int64, bool)
	SetActiveUserID(id int64) error
	ClearActiveUser() error
}

// HostStatus reports the device conditions used as constraint gates.
// It is an injected capability so tests and other platforms can fake it.
type HostStatus interface {
	BatteryNotLow() bool
	DeviceIdle() bool
	NetworkAvailable() bool
}

// Notifier dispatches a user-facing notification.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}
