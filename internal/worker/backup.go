package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/database"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
	"github.com/todovault/core/internal/scheduler"
)

// BackupJobName is the unique scheduler name for the backup job.
const BackupJobName = "todo_backup_work"

const (
	backupPrefix     = "todo_backup_"
	backupSuffix     = ".db"
	backupTimeFormat = "20060102_150405"
	backupRetention  = 5
)

// Backup copies the database file into the backup directory while the
// store is held closed, then prunes old artifacts down to the retention
// limit.
type Backup struct {
	db       *database.DB
	settings ports.SettingsStore
	log      *logger.Logger
	dir      string
	now      func() time.Time
}

// NewBackup creates the backup job writing into dir.
func NewBackup(db *database.DB, settings ports.SettingsStore, log *logger.Logger, dir string) *Backup {
	return &Backup{
		db:       db,
		settings: settings,
		log:      log.WithComponent("backup"),
		dir:      dir,
		now:      time.Now,
	}
}

// Job describes the backup's schedule for registration. frequencyDays
// comes from the backup_frequency setting.
func (b *Backup) Job(policy entities.JobPolicy, frequencyDays int) scheduler.Job {
	if frequencyDays < 1 {
		frequencyDays = 1
	}
	return scheduler.Job{
		Name:        BackupJobName,
		Interval:    time.Duration(frequencyDays) * 24 * time.Hour,
		Constraints: entities.JobConstraints{BatteryNotLow: true, DeviceIdle: true},
		Policy:      policy,
		Fn:          b.Run,
	}
}

// Run executes one backup pass. The store is unavailable to other
// callers for the duration of the file copy; they block, they do not
// fail.
func (b *Backup) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	dest := filepath.Join(b.dir, backupPrefix+b.now().Format(backupTimeFormat)+backupSuffix)

	err := b.db.Exclusive(func(path string) error {
		return copyFile(ctx, path, dest)
	})
	if err != nil {
		return fmt.Errorf("backup database: %w", err)
	}

	if err := b.settings.SetLastBackup(b.now()); err != nil {
		return fmt.Errorf("record last backup: %w", err)
	}

	if err := b.prune(); err != nil {
		return fmt.Errorf("prune backups: %w", err)
	}

	b.log.Infow("Backup completed", "file", dest)
	return nil
}

// ListBackups returns the backup artifacts on disk, newest first.
func (b *Backup) ListBackups() ([]entities.BackupArtifact, error) {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []entities.BackupArtifact{}, nil
		}
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	artifacts := []entities.BackupArtifact{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat backup %s: %w", name, err)
		}
		artifacts = append(artifacts, entities.BackupArtifact{
			Path:      filepath.Join(b.dir, name),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}

// prune deletes everything beyond the newest backupRetention artifacts.
func (b *Backup) prune() error {
	artifacts, err := b.ListBackups()
	if err != nil {
		return err
	}

	for _, artifact := range artifacts[min(len(artifacts), backupRetention):] {
		if err := os.Remove(artifact.Path); err != nil {
			return fmt.Errorf("remove old backup: %w", err)
		}
		b.log.Debugw("Old backup removed", "file", artifact.Path)
	}

	return nil
}

// copyFile copies src to dest in chunks, checking ctx between chunks so
// a run timeout can interrupt a stalled copy. A partial destination is
// removed.
func copyFile(ctx context.Context, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	buf := make([]byte, 1<<20)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			os.Remove(dest)
			return err
		}

		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				os.Remove(dest)
				return fmt.Errorf("copy contents: %w", writeErr)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			os.Remove(dest)
			return fmt.Errorf("copy contents: %w", readErr)
		}
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync destination: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination: %w", err)
	}

	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
