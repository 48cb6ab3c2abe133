package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
)

// Persisted keys.
const (
	keyNotificationsEnabled = "notifications_enabled"
	keyDarkModeEnabled      = "dark_mode_enabled"
	keyNotificationTime     = "notification_time"
	keyLastSync             = "last_sync"
	keyAutoBackupEnabled    = "auto_backup_enabled"
	keyBackupFrequency      = "backup_frequency"
	keyLastBackup           = "last_backup"
	keyUserID               = "user_id"
	keyThemeMode            = "theme_mode"
)

// Store is the durable key-value preference store, backed by a JSON file
// managed through a dedicated viper instance. Reads degrade to defaults
// when the backing file is unreadable; writes are flushed to disk before
// returning.
type Store struct {
	mu   sync.RWMutex
	v    *viper.Viper
	path string
	log  *logger.Logger
	subs map[chan entities.Settings]struct{}
}

var _ ports.SettingsStore = (*Store)(nil)

// Open loads the settings file at path, falling back to defaults if it
// does not exist or cannot be read.
func Open(path string, log *logger.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault(keyNotificationsEnabled, false)
	v.SetDefault(keyDarkModeEnabled, false)
	v.SetDefault(keyNotificationTime, 24)
	v.SetDefault(keyLastSync, int64(0))
	v.SetDefault(keyAutoBackupEnabled, false)
	v.SetDefault(keyBackupFrequency, 7)
	v.SetDefault(keyLastBackup, int64(0))
	v.SetDefault(keyUserID, int64(0))
	v.SetDefault(keyThemeMode, int(entities.ThemeModeSystem))

	if err := v.ReadInConfig(); err != nil {
		// Read resilience: a missing or corrupt file yields defaults.
		log.Debugw("Settings file not readable, using defaults", "path", path, "error", err.Error())
	}

	return &Store{
		v:    v,
		path: path,
		log:  log,
		subs: make(map[chan entities.Settings]struct{}),
	}, nil
}

// Snapshot returns the current full settings value.
func (s *Store) Snapshot() entities.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() entities.Settings {
	return entities.Settings{
		NotificationsEnabled: s.v.GetBool(keyNotificationsEnabled),
		DarkModeEnabled:      s.v.GetBool(keyDarkModeEnabled),
		NotificationTime:     s.v.GetInt(keyNotificationTime),
		AutoBackupEnabled:    s.v.GetBool(keyAutoBackupEnabled),
		BackupFrequency:      s.v.GetInt(keyBackupFrequency),
		LastBackup:           s.v.GetInt64(keyLastBackup),
		LastSync:             s.v.GetInt64(keyLastSync),
		ThemeMode:            entities.ThemeMode(s.v.GetInt(keyThemeMode)),
		ActiveUserID:         s.v.GetInt64(keyUserID),
	}
}

// Watch emits the current snapshot immediately, then a fresh snapshot
// after every change, until ctx is cancelled.
func (s *Store) Watch(ctx context.Context) <-chan entities.Settings {
	ch := make(chan entities.Settings, 1)

	s.mu.Lock()
	ch <- s.snapshotLocked()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		// Close under the lock so set never sends on a closed channel.
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// set writes one key durably and publishes the new snapshot. The publish
// loop runs under the lock; every send is non-blocking, so no subscriber
// can stall a write.
func (s *Store) set(key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.v.Set(key, value)
	if err := s.v.WriteConfig(); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	snap := s.snapshotLocked()
	for ch := range s.subs {
		// Keep only the latest snapshot per subscriber.
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}

	return nil
}

func (s *Store) NotificationsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(keyNotificationsEnabled)
}

func (s *Store) SetNotificationsEnabled(enabled bool) error {
	return s.set(keyNotificationsEnabled, enabled)
}

func (s *Store) DarkModeEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(keyDarkModeEnabled)
}

func (s *Store) SetDarkModeEnabled(enabled bool) error {
	return s.set(keyDarkModeEnabled, enabled)
}

func (s *Store) NotificationTime() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt(keyNotificationTime)
}

func (s *Store) SetNotificationTime(hours int) error {
	return s.set(keyNotificationTime, hours)
}

func (s *Store) AutoBackupEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(keyAutoBackupEnabled)
}

func (s *Store) SetAutoBackupEnabled(enabled bool) error {
	return s.set(keyAutoBackupEnabled, enabled)
}

func (s *Store) BackupFrequency() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt(keyBackupFrequency)
}

func (s *Store) SetBackupFrequency(days int) error {
	return s.set(keyBackupFrequency, days)
}

func (s *Store) LastBackup() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt64(keyLastBackup)
}

func (s *Store) SetLastBackup(t time.Time) error {
	return s.set(keyLastBackup, t.UnixMilli())
}

func (s *Store) LastSync() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetInt64(keyLastSync)
}

func (s *Store) SetLastSync(t time.Time) error {
	return s.set(keyLastSync, t.UnixMilli())
}

func (s *Store) ThemeMode() entities.ThemeMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return entities.ThemeMode(s.v.GetInt(keyThemeMode))
}

func (s *Store) SetThemeMode(mode entities.ThemeMode) error {
	return s.set(keyThemeMode, int(mode))
}

// ActiveUserID returns the authenticated user id; ok is false when no
// session is active.
func (s *Store) ActiveUserID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id := s.v.GetInt64(keyUserID)
	return id, id != 0
}

func (s *Store) SetActiveUserID(id int64) error {
	return s.set(keyUserID, id)
}

// ClearActiveUser removes the session marker; this is the sole signal the
// rest of the system uses to gate data loading.
func (s *Store) ClearActiveUser() error {
	return s.set(keyUserID, int64(0))
}
