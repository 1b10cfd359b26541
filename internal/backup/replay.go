package backup

import (
	"fmt"
	"os"

	"reroot/internal/config"
	"reroot/internal/errors"
	"reroot/internal/rewrite"
)

// ReplayFile is the outcome of replaying one log entry.
type ReplayFile struct {
	Path      string
	Restored  bool
	Applied   int
	Conflicts int
	Error     error
}

// ReplayResult collects the outcome of a revert or apply run.
type ReplayResult struct {
	Files []ReplayFile
}

// Changed returns the paths whose content was modified by the replay.
func (r *ReplayResult) Changed() []string {
	var out []string
	for _, f := range r.Files {
		if f.Error == nil && (f.Restored || f.Applied > 0) {
			out = append(out, f.Path)
		}
	}
	return out
}

// Err returns a BackupError summarizing failed files, or nil.
func (r *ReplayResult) Err(logPath, action string) error {
	var failed []error
	for _, f := range r.Files {
		if f.Error != nil {
			failed = append(failed, f.Error)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return errors.NewBackupError(logPath,
		fmt.Sprintf("%s completed with %d successes and %d errors", action, len(r.Files)-len(failed), len(failed)),
		failed[0])
}

func oldLine(rw rewrite.Rewrite) string { return rw.OldLine }
func newLine(rw rewrite.Rewrite) string { return rw.NewLine }

// replayEntry writes the recorded rewrites of entry back into its file.
func replayEntry(entry LogEntry, bm *Manager, expect, replace func(rewrite.Rewrite) string) ReplayFile {
	result := ReplayFile{Path: entry.FilePath}

	content, err := os.ReadFile(entry.FilePath)
	if err != nil {
		result.Error = errors.WrapFileError(entry.FilePath, err)
		return result
	}

	updated, applied, conflicts := rewrite.ApplyRecorded(content, entry.Rewrites, expect, replace)
	result.Applied = applied
	result.Conflicts = conflicts

	if applied > 0 {
		if bm != nil && bm.Enabled() {
			if _, err := bm.BackupFile(entry.FilePath); err != nil {
				result.Error = err
				result.Applied = 0
				return result
			}
		}
		if err := WriteFileAtomic(entry.FilePath, updated); err != nil {
			result.Error = err
			result.Applied = 0
			return result
		}
	}

	if conflicts > 0 {
		result.Error = errors.NewBackupError(entry.FilePath,
			fmt.Sprintf("%d of %d recorded lines changed since the run", conflicts, len(entry.Rewrites)), nil)
	}
	return result
}

// RevertManager undoes the rewrites recorded in a run report.
type RevertManager struct {
	backups *Manager
}

// NewRevertManager creates a RevertManager.
func NewRevertManager() *RevertManager {
	return &RevertManager{backups: NewBackupManager(true)}
}

// RevertFromLog restores every modified file of the report at logPath.
// Files with a recorded backup are restored from it; the others have each
// rewritten line put back, provided the line has not been edited since.
func (rm *RevertManager) RevertFromLog(logPath string, format config.LogFormat) (*ReplayResult, error) {
	report, err := ReadLog(logPath, format)
	if err != nil {
		return nil, err
	}
	if report.Summary.DryRun {
		return nil, errors.NewConfigErrorWithPath(logPath, "log was recorded by a dry run; nothing to revert", nil)
	}

	result := &ReplayResult{}
	for _, entry := range report.Entries {
		if !entry.Modified || entry.Error != "" {
			continue
		}
		result.Files = append(result.Files, rm.revertEntry(entry))
	}
	return result, result.Err(logPath, "revert")
}

func (rm *RevertManager) revertEntry(entry LogEntry) ReplayFile {
	if entry.BackupPath != "" && fileExists(entry.BackupPath) {
		result := ReplayFile{Path: entry.FilePath}
		if err := rm.backups.RestoreFile(entry.FilePath, entry.BackupPath); err != nil {
			result.Error = err
			return result
		}
		result.Restored = true
		result.Applied = len(entry.Rewrites)
		return result
	}
	return replayEntry(entry, nil, newLine, oldLine)
}

// ApplyManager applies the rewrites recorded in a report, typically one
// produced with --dry-run and reviewed before being applied.
type ApplyManager struct {
	backups *Manager
}

// NewApplyManager creates an ApplyManager. bm may be nil.
func NewApplyManager(bm *Manager) *ApplyManager {
	return &ApplyManager{backups: bm}
}

// ApplyFromLog rewrites every line recorded in the report at logPath whose
// current content still matches the recorded original line.
func (am *ApplyManager) ApplyFromLog(logPath string, format config.LogFormat) (*ReplayResult, error) {
	report, err := ReadLog(logPath, format)
	if err != nil {
		return nil, err
	}

	result := &ReplayResult{}
	for _, entry := range report.Entries {
		if !entry.Modified || entry.Error != "" || len(entry.Rewrites) == 0 {
			continue
		}
		result.Files = append(result.Files, replayEntry(entry, am.backups, oldLine, newLine))
	}
	return result, result.Err(logPath, "apply")
}
