package services

import (
	"context"
	"fmt"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
	"github.com/todovault/core/internal/scheduler"
	"github.com/todovault/core/internal/worker"
)

// SettingsService applies preference changes and keeps the background
// jobs in line with them: toggling notifications or auto-backup
// schedules or cancels the corresponding job, and a cadence change
// re-registers it under the same unique name.
type SettingsService struct {
	store    ports.SettingsStore
	sched    *scheduler.Scheduler
	reminder *worker.Reminder
	backup   *worker.Backup
	logger   *logger.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(store ports.SettingsStore, sched *scheduler.Scheduler, reminder *worker.Reminder, backup *worker.Backup, logger *logger.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		sched:    sched,
		reminder: reminder,
		backup:   backup,
		logger:   logger,
	}
}

// Get returns the current settings snapshot.
func (s *SettingsService) Get() entities.Settings {
	return s.store.Snapshot()
}

// Watch opens a reactive stream of settings snapshots.
func (s *SettingsService) Watch(ctx context.Context) <-chan entities.Settings {
	return s.store.Watch(ctx)
}

// Update applies the non-nil fields of req and reconciles the reminder
// and backup jobs with the resulting state.
func (s *SettingsService) Update(ctx context.Context, req ports.UpdateSettingsRequest) (entities.Settings, error) {
	if req.NotificationsEnabled != nil {
		if err := s.store.SetNotificationsEnabled(*req.NotificationsEnabled); err != nil {
			return entities.Settings{}, fmt.Errorf("set notifications_enabled: %w", err)
		}
		if err := s.reconcileReminder(ctx, *req.NotificationsEnabled); err != nil {
			return entities.Settings{}, err
		}
	}

	if req.DarkModeEnabled != nil {
		if err := s.store.SetDarkModeEnabled(*req.DarkModeEnabled); err != nil {
			return entities.Settings{}, fmt.Errorf("set dark_mode_enabled: %w", err)
		}
	}

	if req.NotificationTime != nil {
		if err := s.store.SetNotificationTime(*req.NotificationTime); err != nil {
			return entities.Settings{}, fmt.Errorf("set notification_time: %w", err)
		}
	}

	if req.ThemeMode != nil {
		if err := s.store.SetThemeMode(*req.ThemeMode); err != nil {
			return entities.Settings{}, fmt.Errorf("set theme_mode: %w", err)
		}
	}

	backupChanged := false
	if req.AutoBackupEnabled != nil {
		if err := s.store.SetAutoBackupEnabled(*req.AutoBackupEnabled); err != nil {
			return entities.Settings{}, fmt.Errorf("set auto_backup_enabled: %w", err)
		}
		backupChanged = true
	}
	if req.BackupFrequency != nil {
		if err := s.store.SetBackupFrequency(*req.BackupFrequency); err != nil {
			return entities.Settings{}, fmt.Errorf("set backup_frequency: %w", err)
		}
		backupChanged = true
	}
	if backupChanged {
		if err := s.reconcileBackup(ctx); err != nil {
			return entities.Settings{}, err
		}
	}

	return s.store.Snapshot(), nil
}

// EnsureStartupJobs re-registers the background jobs at process start.
// UPDATE keeps existing schedule anchors so a restart never advances or
// resets a pending firing.
func (s *SettingsService) EnsureStartupJobs(ctx context.Context) error {
	if s.store.NotificationsEnabled() {
		if err := s.sched.SchedulePeriodic(ctx, s.reminder.Job(entities.JobPolicyUpdate)); err != nil {
			return fmt.Errorf("schedule reminder job: %w", err)
		}
	}

	if s.store.AutoBackupEnabled() {
		job := s.backup.Job(entities.JobPolicyUpdate, s.store.BackupFrequency())
		if err := s.sched.SchedulePeriodic(ctx, job); err != nil {
			return fmt.Errorf("schedule backup job: %w", err)
		}
	}

	return nil
}

func (s *SettingsService) reconcileReminder(ctx context.Context, enabled bool) error {
	if !enabled {
		if err := s.sched.Cancel(ctx, worker.ReminderJobName); err != nil {
			return fmt.Errorf("cancel reminder job: %w", err)
		}
		return nil
	}

	if err := s.sched.SchedulePeriodic(ctx, s.reminder.Job(entities.JobPolicyReplace)); err != nil {
		return fmt.Errorf("schedule reminder job: %w", err)
	}
	return nil
}

func (s *SettingsService) reconcileBackup(ctx context.Context) error {
	if !s.store.AutoBackupEnabled() {
		if err := s.sched.Cancel(ctx, worker.BackupJobName); err != nil {
			return fmt.Errorf("cancel backup job: %w", err)
		}
		return nil
	}

	job := s.backup.Job(entities.JobPolicyReplace, s.store.BackupFrequency())
	if err := s.sched.SchedulePeriodic(ctx, job); err != nil {
		return fmt.Errorf("schedule backup job: %w", err)
	}
	return nil
}
