package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CreateBackup copies the current documents into a timestamped snapshot
// directory. Missing source files are skipped; a partially written
// document never reaches a backup because saves are atomic.
func (s *Store) CreateBackup(label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	dir := filepath.Join(s.dir, backupsDir, stamp+"_"+label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	for _, name := range []string{listingsFile, historyFile, alertsFile, settingsFile} {
		if err := copyFile(filepath.Join(s.dir, name), filepath.Join(dir, name)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("backup %s: %w", name, err)
		}
	}

	s.logger.Info().Str("snapshot", dir).Msg("backup created")
	return nil
}

// PruneBackups removes snapshot directories older than the retention
// window.
func (s *Store) PruneBackups(retention time.Duration) error {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	root := filepath.Join(s.dir, backupsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-retention)
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			full := filepath.Join(root, entry.Name())
			if err := os.RemoveAll(full); err != nil {
				s.logger.Warn().Err(err).Str("snapshot", full).Msg("prune failed")
				continue
			}
			s.logger.Debug().Str("snapshot", full).Msg("backup pruned")
		}
	}
	return nil
}

// Backups lists snapshot directory names, newest first.
func (s *Store) Backups() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root := filepath.Join(s.dir, backupsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	// Stamps sort lexically; reverse for newest first.
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// BackupLabelValid rejects labels that would escape the backup dir.
func BackupLabelValid(label string) bool {
	return label != "" && !strings.ContainsAny(label, `/\`) && !strings.Contains(label, "..")
}
