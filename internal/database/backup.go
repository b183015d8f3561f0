package database

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// BackupOptions configures periodic snapshots of the database file.
type BackupOptions struct {
	Enabled       bool
	Interval      time.Duration
	StoragePath   string
	RetentionDays int
}

const snapshotPrefix = "glowbook-"

// BackupService copies the SQLite file into a snapshot directory on a
// schedule and prunes snapshots older than the retention window. Losing the
// appointment ledger should cost at most one interval.
type BackupService struct {
	dbPath string
	opts   BackupOptions
	logger *zerolog.Logger

	// now is the snapshot clock; tests override it.
	now func() time.Time
}

// NewBackupService creates a snapshot service for the database at dbPath.
func NewBackupService(dbPath string, opts BackupOptions, logger *zerolog.Logger) *BackupService {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	return &BackupService{
		dbPath: dbPath,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the snapshot loop until the context is cancelled. The first
// snapshot is taken immediately so a fresh deploy is covered right away.
func (s *BackupService) Start(ctx context.Context) {
	if !s.opts.Enabled {
		s.logger.Info().Msg("database snapshots disabled")
		return
	}
	s.logger.Info().Dur("interval", s.opts.Interval).Str("path", s.opts.StoragePath).Msg("database snapshots enabled")

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.runOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *BackupService) runOnce() {
	path, err := s.Snapshot()
	if err != nil {
		s.logger.Error().Err(err).Msg("database snapshot failed")
		return
	}
	s.logger.Info().Str("file", filepath.Base(path)).Msg("database snapshot written")
	if err := s.prune(); err != nil {
		s.logger.Error().Err(err).Msg("snapshot pruning failed")
	}
}

// Snapshot copies the database file into the storage directory and returns
// the snapshot path.
func (s *BackupService) Snapshot() (string, error) {
	if err := os.MkdirAll(s.opts.StoragePath, 0o755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := snapshotPrefix + s.now().Format("20060102-150405") + ".db"
	path := filepath.Join(s.opts.StoragePath, name)

	src, err := os.Open(s.dbPath)
	if err != nil {
		return "", fmt.Errorf("open database: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create snapshot: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", fmt.Errorf("copy snapshot: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close snapshot: %w", err)
	}
	return path, nil
}

// prune deletes snapshots older than the retention window. Only files this
// service wrote are touched; anything else in the directory is left alone.
func (s *BackupService) prune() error {
	if s.opts.RetentionDays <= 0 {
		return nil
	}

	entries, err := os.ReadDir(s.opts.StoragePath)
	if err != nil {
		return fmt.Errorf("read snapshot dir: %w", err)
	}
	cutoff := s.now().AddDate(0, 0, -s.opts.RetentionDays)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			s.logger.Info().Str("file", name).Msg("pruning expired snapshot")
			os.Remove(filepath.Join(s.opts.StoragePath, name))
		}
	}
	return nil
}
