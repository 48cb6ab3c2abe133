package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todovault/core/internal/adapters/repository"
	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/config"
	"github.com/todovault/core/internal/infrastructure/database"
	"github.com/todovault/core/internal/infrastructure/hoststatus"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/infrastructure/settings"
	"github.com/todovault/core/internal/notify"
	"github.com/todovault/core/internal/ports"
	"github.com/todovault/core/internal/scheduler"
	"github.com/todovault/core/internal/worker"
)

type settingsFixture struct {
	svc  *SettingsService
	jobs ports.JobRepository
}

func newSettingsFixture(t *testing.T) *settingsFixture {
	t.Helper()

	dataDir := t.TempDir()
	db, err := database.Open(config.StorageConfig{
		DataDir:      dataDir,
		DatabaseFile: "todovault.db",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	store, err := settings.Open(filepath.Join(dataDir, "settings.json"), logger.NewNop())
	require.NoError(t, err)

	hub := repository.NewHub()
	todos := repository.NewTodoRepository(db, hub)
	jobs := repository.NewJobRepository(db)

	log := logger.NewNop()
	sched := scheduler.New(jobs, hoststatus.New(), log, nil, config.SchedulerConfig{
		Tick:       time.Second,
		RunTimeout: time.Minute,
	})
	reminder := worker.NewReminder(todos, store, notify.NewLogNotifier(log), log)
	backup := worker.NewBackup(db, store, log, filepath.Join(dataDir, "backups"))

	return &settingsFixture{
		svc:  NewSettingsService(store, sched, reminder, backup, log),
		jobs: jobs,
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestSettingsUpdateAppliesFields(t *testing.T) {
	f := newSettingsFixture(t)
	mode := entities.ThemeModeDark

	snap, err := f.svc.Update(context.Background(), ports.UpdateSettingsRequest{
		DarkModeEnabled:  boolPtr(true),
		NotificationTime: intPtr(12),
		ThemeMode:        &mode,
	})
	require.NoError(t, err)
	assert.True(t, snap.DarkModeEnabled)
	assert.Equal(t, 12, snap.NotificationTime)
	assert.Equal(t, entities.ThemeModeDark, snap.ThemeMode)

	// Untouched fields keep their defaults.
	assert.False(t, snap.NotificationsEnabled)
	assert.Equal(t, 7, snap.BackupFrequency)
}

func TestEnablingNotificationsSchedulesReminder(t *testing.T) {
	f := newSettingsFixture(t)

	_, err := f.svc.Update(context.Background(), ports.UpdateSettingsRequest{
		NotificationsEnabled: boolPtr(true),
	})
	require.NoError(t, err)

	record, err := f.jobs.Get(context.Background(), worker.ReminderJobName)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, record.Interval())
	assert.Equal(t, 15*time.Minute, record.Flex())
	assert.True(t, record.Constraints().BatteryNotLow)

	_, err = f.svc.Update(context.Background(), ports.UpdateSettingsRequest{
		NotificationsEnabled: boolPtr(false),
	})
	require.NoError(t, err)

	_, err = f.jobs.Get(context.Background(), worker.ReminderJobName)
	assert.ErrorIs(t, err, entities.ErrJobNotFound)
}

func TestBackupFrequencyReschedulesJob(t *testing.T) {
	f := newSettingsFixture(t)

	_, err := f.svc.Update(context.Background(), ports.UpdateSettingsRequest{
		AutoBackupEnabled: boolPtr(true),
	})
	require.NoError(t, err)

	record, err := f.jobs.Get(context.Background(), worker.BackupJobName)
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, record.Interval())
	assert.True(t, record.Constraints().DeviceIdle)

	_, err = f.svc.Update(context.Background(), ports.UpdateSettingsRequest{
		BackupFrequency: intPtr(3),
	})
	require.NoError(t, err)

	record, err = f.jobs.Get(context.Background(), worker.BackupJobName)
	require.NoError(t, err)
	assert.Equal(t, 3*24*time.Hour, record.Interval())

	records, err := f.jobs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestEnsureStartupJobsFollowsFlags(t *testing.T) {
	f := newSettingsFixture(t)

	// Everything disabled: nothing to register.
	require.NoError(t, f.svc.EnsureStartupJobs(context.Background()))
	records, err := f.jobs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	_, err = f.svc.Update(context.Background(), ports.UpdateSettingsRequest{
		NotificationsEnabled: boolPtr(true),
		AutoBackupEnabled:    boolPtr(true),
	})
	require.NoError(t, err)

	before, err := f.jobs.Get(context.Background(), worker.ReminderJobName)
	require.NoError(t, err)

	// A restart re-registers without moving the schedule anchor.
	require.NoError(t, f.svc.EnsureStartupJobs(context.Background()))

	after, err := f.jobs.Get(context.Background(), worker.ReminderJobName)
	require.NoError(t, err)
	assert.True(t, after.NextRun.Equal(before.NextRun))

	records, err = f.jobs.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
