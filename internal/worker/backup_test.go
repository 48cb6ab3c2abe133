package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/todovault/core/internal/infrastructure/config"
	"github.com/todovault/core/internal/infrastructure/database"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/infrastructure/settings"
)

func newBackupFixture(t *testing.T) (*Backup, *database.DB, string) {
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

	backupDir := filepath.Join(dataDir, "backups")
	b := NewBackup(db, store, logger.NewNop(), backupDir)
	return b, db, backupDir
}

func TestBackupRunCopiesDatabase(t *testing.T) {
	b, db, backupDir := newBackupFixture(t)

	stamp := time.Date(2024, 3, 1, 14, 30, 5, 0, time.UTC)
	b.now = func() time.Time { return stamp }

	require.NoError(t, b.Run(context.Background()))

	dest := filepath.Join(backupDir, "todo_backup_20240301_143005.db")
	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// The backup reflects the settings record of its own completion.
	assert.Equal(t, stamp.UnixMilli(), b.settings.LastBackup())

	// The store reopens and keeps serving after the copy.
	require.NoError(t, db.Ping(context.Background()))
}

func TestBackupRunHonorsCancellation(t *testing.T) {
	b, db, backupDir := newBackupFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Nothing was written and the last backup marker did not move.
	_, statErr := os.Stat(backupDir)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, int64(0), b.settings.LastBackup())
	require.NoError(t, db.Ping(context.Background()))
}

func TestBackupRunAbortsCopyOnCancel(t *testing.T) {
	b, db, backupDir := newBackupFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	b.now = func() time.Time {
		// Cancellation arriving once the run is underway stops the copy
		// and leaves no partial artifact behind.
		cancel()
		return time.Date(2024, 3, 1, 14, 30, 5, 0, time.UTC)
	}

	err := b.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	entries, readErr := os.ReadDir(backupDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
	require.NoError(t, db.Ping(context.Background()))
}

func TestBackupListNewestFirst(t *testing.T) {
	b, _, backupDir := newBackupFixture(t)
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		path := filepath.Join(backupDir, "todo_backup_"+stamp.Format(backupTimeFormat)+".db")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, stamp, stamp))
	}
	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(backupDir, "notes.txt"), []byte("x"), 0o644))

	artifacts, err := b.ListBackups()
	require.NoError(t, err)
	require.Len(t, artifacts, 3)
	assert.True(t, artifacts[0].CreatedAt.After(artifacts[1].CreatedAt))
	assert.True(t, artifacts[1].CreatedAt.After(artifacts[2].CreatedAt))
}

func TestBackupPruneKeepsFiveNewest(t *testing.T) {
	b, _, backupDir := newBackupFixture(t)
	require.NoError(t, os.MkdirAll(backupDir, 0o755))

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var paths []string
	for i := 0; i < 7; i++ {
		stamp := base.Add(time.Duration(i) * time.Hour)
		path := filepath.Join(backupDir, "todo_backup_"+stamp.Format(backupTimeFormat)+".db")
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
		require.NoError(t, os.Chtimes(path, stamp, stamp))
		paths = append(paths, path)
	}

	require.NoError(t, b.prune())

	artifacts, err := b.ListBackups()
	require.NoError(t, err)
	require.Len(t, artifacts, backupRetention)

	// The two oldest are gone, the five newest survive.
	for _, path := range paths[:2] {
		_, err := os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	}
	for _, path := range paths[2:] {
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
}

func TestBackupListEmptyWhenDirMissing(t *testing.T) {
	b, _, _ := newBackupFixture(t)

	artifacts, err := b.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}
