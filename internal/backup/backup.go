// Package backup provides file backup, atomic replacement and replay of
// recorded rewrites. Reports written by a run can be read back to revert
// its changes, or to apply the rewrites a dry run only reported.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"reroot/internal/errors"
)

// backupTimeFormat is appended to backup names: <file>.<stamp>.bak.
const backupTimeFormat = "20060102_150405"

// Manager creates and restores backups of files about to be rewritten.
type Manager struct {
	enabled bool
	now     func() time.Time
}

// NewBackupManager creates a Manager. A disabled Manager makes no copies
// and returns an empty backup path.
func NewBackupManager(enabled bool) *Manager {
	return &Manager{
		enabled: enabled,
		now:     time.Now,
	}
}

// Enabled reports whether backups are taken.
func (bm *Manager) Enabled() bool {
	return bm.enabled
}

// BackupFile copies filePath next to itself with a timestamped name and
// returns the backup path.
func (bm *Manager) BackupFile(filePath string) (string, error) {
	if !bm.enabled {
		return "", nil
	}

	backupPath := bm.backupPath(filePath)
	if err := copyFile(filePath, backupPath); err != nil {
		_ = os.Remove(backupPath)
		return "", errors.NewBackupError(filePath, "failed to create backup", err)
	}
	return backupPath, nil
}

// RestoreFile overwrites originalPath with the contents of backupPath.
func (bm *Manager) RestoreFile(originalPath, backupPath string) error {
	if backupPath == "" {
		return nil
	}

	if _, err := os.Stat(backupPath); err != nil {
		return errors.NewBackupError(backupPath, "backup file not found", err)
	}

	content, err := os.ReadFile(backupPath)
	if err != nil {
		return errors.NewBackupError(backupPath, "failed to read backup file", err)
	}

	if err := WriteFileAtomic(originalPath, content); err != nil {
		return errors.NewBackupError(originalPath, "failed to restore file content", err)
	}
	return nil
}

// CleanupBackup removes a backup file. A missing file is not an error.
func (bm *Manager) CleanupBackup(backupPath string) error {
	if backupPath == "" {
		return nil
	}

	err := os.Remove(backupPath)
	if err != nil && !os.IsNotExist(err) {
		return errors.NewBackupError(backupPath, "failed to remove backup file", err)
	}
	return nil
}

func (bm *Manager) backupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	stamp := bm.now().Format(backupTimeFormat)

	candidate := filepath.Join(dir, fmt.Sprintf("%s.%s.bak", base, stamp))
	for i := 1; fileExists(candidate); i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s.%s-%d.bak", base, stamp, i))
	}
	return candidate
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// WriteFileAtomic replaces path with content. The data is written to a
// temporary file in the same directory, synced, given the original file's
// permissions and renamed over path, so readers see either the old or the
// new content.
func WriteFileAtomic(path string, content []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.WrapFileError(path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewFileNotWritableError(path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return errors.NewFileNotWritableError(path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewFileNotWritableError(path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewFileNotWritableError(path, err)
	}

	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return errors.NewFileNotWritableError(path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.NewFileNotWritableError(path, err)
	}
	return nil
}
