package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reroot/internal/config"
	rerrors "reroot/internal/errors"
	"reroot/internal/rewrite"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBackupFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "app.ts")
	writeFile(t, file, "import a from './a';\n", 0o640)

	disabled := NewBackupManager(false)
	path, err := disabled.BackupFile(file)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.False(t, disabled.Enabled())

	bm := NewBackupManager(true)
	bm.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	first, err := bm.BackupFile(file)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app.ts.20260102_030405.bak"), first)
	assert.Equal(t, "import a from './a';\n", readFile(t, first))

	info, err := os.Stat(first)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())

	second, err := bm.BackupFile(file)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app.ts.20260102_030405-1.bak"), second)

	_, err = bm.BackupFile(filepath.Join(dir, "missing.ts"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrBackup))
}

func TestRestoreAndCleanup(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.css")
	writeFile(t, file, "original", 0o644)

	bm := NewBackupManager(true)
	backupPath, err := bm.BackupFile(file)
	require.NoError(t, err)

	writeFile(t, file, "changed", 0o644)
	require.NoError(t, bm.RestoreFile(file, backupPath))
	assert.Equal(t, "original", readFile(t, file))

	require.NoError(t, bm.RestoreFile(file, ""))
	assert.Error(t, bm.RestoreFile(file, filepath.Join(dir, "nope.bak")))

	require.NoError(t, bm.CleanupBackup(backupPath))
	_, err = os.Stat(backupPath)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, bm.CleanupBackup(backupPath))
	assert.NoError(t, bm.CleanupBackup(""))
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x.ts")
	writeFile(t, file, "old", 0o600)

	require.NoError(t, WriteFileAtomic(file, []byte("new")))
	assert.Equal(t, "new", readFile(t, file))

	info, err := os.Stat(file)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must not be left behind")

	err = WriteFileAtomic(filepath.Join(dir, "missing.ts"), []byte("x"))
	require.Error(t, err)
	var notFound *rerrors.FileNotFoundError
	assert.True(t, errors.As(err, &notFound))
}

// runReport rewrites every file in memory and returns a report describing
// the run, optionally writing the results to disk.
func runReport(t *testing.T, root string, files []string, write, dryRun bool) Report {
	t.Helper()
	engine := rewrite.NewEngine(rewrite.New(root))
	report := Report{Summary: LogSummary{RootDir: root, DryRun: dryRun}}

	for _, f := range files {
		content, err := os.ReadFile(f)
		require.NoError(t, err)
		result, err := engine.ProcessFile(f, content)
		require.NoError(t, err)

		if write && result.Modified {
			require.NoError(t, WriteFileAtomic(f, result.Content))
		}
		report.Entries = append(report.Entries, LogEntry{
			FilePath: f,
			Modified: result.Modified,
			Rewrites: result.Rewrites,
		})
	}
	return report
}

func saveReport(t *testing.T, dir string, format config.LogFormat, report Report) string {
	t.Helper()
	path := filepath.Join(dir, "report."+string(format))
	var buf bytes.Buffer
	require.NoError(t, EncodeReport(&buf, format, report))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestApplyThenRevert(t *testing.T) {
	for _, format := range []config.LogFormat{config.LogFormatJSON, config.LogFormatCSV, config.LogFormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			root := t.TempDir()
			a := filepath.Join(root, "src", "a.ts")
			b := filepath.Join(root, "src", "styles", "b.scss")
			c := filepath.Join(root, "c.ts")
			writeFile(t, a, "import x from './x';\nimport y from 'y';\n", 0o644)
			writeFile(t, b, "@import \"../vars.scss\";\r\n", 0o644)
			writeFile(t, c, "import z from 'z';\n", 0o644)
			files := []string{a, b, c}

			dry := runReport(t, root, files, false, true)
			logPath := saveReport(t, t.TempDir(), format, dry)

			applied, err := NewApplyManager(nil).ApplyFromLog(logPath, format)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{a, b}, applied.Changed())
			assert.Equal(t, "import x from 'src/x';\nimport y from 'y';\n", readFile(t, a))
			assert.Equal(t, "@import \"src/vars.scss\";\r\n", readFile(t, b))
			assert.Equal(t, "import z from 'z';\n", readFile(t, c))

			// Applying twice changes nothing and reports no conflicts.
			again, err := NewApplyManager(nil).ApplyFromLog(logPath, format)
			require.NoError(t, err)
			assert.Empty(t, again.Changed())

			// Revert needs a production log of the same rewrites.
			prod := dry
			prod.Summary.DryRun = false
			prodPath := saveReport(t, t.TempDir(), format, prod)

			reverted, err := NewRevertManager().RevertFromLog(prodPath, format)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{a, b}, reverted.Changed())
			assert.Equal(t, "import x from './x';\nimport y from 'y';\n", readFile(t, a))
			assert.Equal(t, "@import \"../vars.scss\";\r\n", readFile(t, b))
		})
	}
}

func TestRevertRefusesDryRunLog(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "src", "a.ts")
	writeFile(t, a, "import x from './x';\n", 0o644)

	logPath := saveReport(t, t.TempDir(), config.LogFormatJSON, runReport(t, root, []string{a}, false, true))
	_, err := NewRevertManager().RevertFromLog(logPath, config.LogFormatJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrConfig))
}

func TestRevertFromBackup(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "src", "a.ts")
	writeFile(t, a, "import x from './x';\n", 0o644)

	bm := NewBackupManager(true)
	backupPath, err := bm.BackupFile(a)
	require.NoError(t, err)

	report := runReport(t, root, []string{a}, true, false)
	report.Entries[0].BackupPath = backupPath
	// Edits made after the run are discarded by a backup restore.
	writeFile(t, a, "edited after the run\n", 0o644)

	logPath := saveReport(t, t.TempDir(), config.LogFormatJSON, report)
	result, err := NewRevertManager().RevertFromLog(logPath, config.LogFormatJSON)
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.True(t, result.Files[0].Restored)
	assert.Equal(t, "import x from './x';\n", readFile(t, a))
}

func TestApplyConflicts(t *testing.T) {
	root := t.TempDir()
	a := filepath.Join(root, "src", "a.ts")
	writeFile(t, a, "import x from './x';\nimport w from './w';\n", 0o644)

	logPath := saveReport(t, t.TempDir(), config.LogFormatJSON, runReport(t, root, []string{a}, false, true))
	writeFile(t, a, "import x from './x';\nimport w from './other';\n", 0o644)

	result, err := NewApplyManager(NewBackupManager(true)).ApplyFromLog(logPath, config.LogFormatJSON)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrBackup))
	require.Len(t, result.Files, 1)
	assert.Equal(t, 1, result.Files[0].Applied)
	assert.Equal(t, 1, result.Files[0].Conflicts)
	assert.Equal(t, "import x from 'src/x';\nimport w from './other';\n", readFile(t, a))

	matches, err := filepath.Glob(filepath.Join(root, "src", "a.ts.*.bak"))
	require.NoError(t, err)
	assert.Len(t, matches, 1, "apply backs files up before writing")
}

func TestDecodeCSVIgnoresCommentedRows(t *testing.T) {
	csvLog := strings.Join([]string{
		"file_path,line,from,to,old_line,new_line,backup_path",
		"/r/src/a.ts,1,./x,src/x,import x from './x';,import x from 'src/x';,",
		"# /r/src/a.ts,2,./y,src/y,import y from './y';,import y from 'src/y';,",
		"/r/src/b.ts,3,../z,z,\"import {a, b} from '../z';\",\"import {a, b} from 'z';\",/r/src/b.ts.bak",
		"# Reroot CSV Report (dry-run)",
		"# Total files processed: 2",
		"",
	}, "\n")

	report, err := DecodeReport(strings.NewReader(csvLog), config.LogFormatCSV)
	require.NoError(t, err)
	assert.True(t, report.Summary.DryRun)
	require.Len(t, report.Entries, 2)

	assert.Equal(t, "/r/src/a.ts", report.Entries[0].FilePath)
	require.Len(t, report.Entries[0].Rewrites, 1)
	assert.Equal(t, 1, report.Entries[0].Rewrites[0].Line)

	assert.Equal(t, "/r/src/b.ts.bak", report.Entries[1].BackupPath)
	assert.Equal(t, "import {a, b} from '../z';", report.Entries[1].Rewrites[0].OldLine)
}

func TestDecodeReportErrors(t *testing.T) {
	_, err := DecodeReport(strings.NewReader("{"), config.LogFormatJSON)
	assert.Error(t, err)

	_, err = DecodeReport(strings.NewReader("a,b\n"), config.LogFormatCSV)
	assert.Error(t, err)

	_, err = DecodeReport(strings.NewReader("x"), config.LogFormatText)
	assert.Error(t, err)

	_, err = ReadLog(filepath.Join(t.TempDir(), "missing.json"), config.LogFormatJSON)
	assert.True(t, errors.Is(err, rerrors.ErrFile))
}
