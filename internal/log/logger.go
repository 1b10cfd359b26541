// Package log provides progress output and reporting for reroot runs.
// Human-readable lines go to stdout (errors to stderr); a structured report
// in JSON, CSV or YAML can additionally be written for later revert/apply.
package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"

	"reroot/internal/backup"
	"reroot/internal/concurrent"
	"reroot/internal/config"
	"reroot/internal/errors"
)

// Logger records processing results and renders progress and reports.
// It is not safe for concurrent use; results are fed from a single
// goroutine draining the processor's channel.
type Logger struct {
	config  *config.Config
	out     io.Writer
	errOut  io.Writer
	report  io.Writer
	closer  io.Closer
	entries []backup.LogEntry
	summary backup.LogSummary
	changed []string

	okColor    *color.Color
	noteColor  *color.Color
	errColor   *color.Color
	titleColor *color.Color
	colored    bool
}

// NewLogger creates a Logger writing to stdout and stderr. When a log file
// is configured the report is written there instead of stdout. In revert
// and apply mode the log file is the input and is never opened for writing.
func NewLogger(cfg *config.Config) (*Logger, error) {
	return newLogger(cfg, os.Stdout, os.Stderr)
}

func newLogger(cfg *config.Config, out, errOut io.Writer) (*Logger, error) {
	l := &Logger{
		config: cfg,
		out:    out,
		errOut: errOut,
		report: out,
		summary: backup.LogSummary{
			RootDir: cfg.RootDir,
			DryRun:  cfg.DryRun,
		},
		okColor:    color.New(color.FgGreen),
		noteColor:  color.New(color.FgYellow),
		errColor:   color.New(color.FgRed),
		titleColor: color.New(color.Bold),
		colored:    !cfg.NoColor && !color.NoColor,
	}

	if !l.colored {
		for _, c := range []*color.Color{l.okColor, l.noteColor, l.errColor, l.titleColor} {
			c.DisableColor()
		}
	}

	replay := cfg.Revert || cfg.Apply
	if cfg.LogFile != "" && !replay {
		file, err := os.Create(cfg.LogFile)
		if err != nil {
			return nil, errors.NewLogError(cfg.LogFile, "failed to create log file", err)
		}
		l.report = file
		l.closer = file
		if !cfg.LogFormat.Structured() {
			l.out = file
		}
	} else if cfg.LogFormat.Structured() && !replay {
		// Keep stdout clean for the report.
		l.out = errOut
	}

	return l, nil
}

// LogResult records and prints the outcome of one file.
func (l *Logger) LogResult(result concurrent.ProcessResult) {
	entry := backup.LogEntry{
		Timestamp:  time.Now().Format(time.RFC3339),
		FilePath:   result.Job.FilePath,
		BackupPath: result.BackupPath,
	}

	switch {
	case result.Skipped:
		entry.Skipped = true
		l.summary.SkippedDirs++
		if l.config.ShouldLog() {
			l.noteColor.Fprintf(l.out, "Skipping directory: %s\n", entry.FilePath)
		}
	case result.Error != nil:
		entry.Error = result.Error.Error()
		l.summary.TotalFiles++
		l.summary.ErrorCount++
		l.errColor.Fprintf(l.errOut, "Error processing %s: %v\n", entry.FilePath, result.Error)
	default:
		l.summary.TotalFiles++
		if result.Result != nil {
			entry.OriginalSize = result.Result.OriginalSize
			entry.NewSize = result.Result.NewSize
			entry.Modified = result.Result.Modified
			entry.Rewrites = result.Result.Rewrites
		}
		if entry.Modified {
			l.summary.ModifiedFiles++
			l.summary.TotalRewrites += len(entry.Rewrites)
			l.changed = append(l.changed, entry.FilePath)
		}
		if l.config.ShouldLog() {
			fmt.Fprintf(l.out, "Processed: %s\n", entry.FilePath)
			l.logDetails(entry)
		}
	}

	l.entries = append(l.entries, entry)
}

func (l *Logger) logDetails(entry backup.LogEntry) {
	if l.config.IsDebug() {
		fmt.Fprintf(l.out, "  size: %s -> %s\n",
			humanize.Bytes(uint64(entry.OriginalSize)), humanize.Bytes(uint64(entry.NewSize)))
	}
	if !l.config.IsVerbose() && !l.config.Diff {
		return
	}
	for _, rw := range entry.Rewrites {
		if l.config.IsVerbose() {
			fmt.Fprintf(l.out, "  line %d: '%s' -> '%s'\n", rw.Line, rw.From, rw.To)
		}
		if l.config.Diff {
			fmt.Fprintf(l.out, "  %d| %s\n", rw.Line, l.lineDiff(rw.OldLine, rw.NewLine))
		}
	}
}

// lineDiff renders a character diff of a rewritten line. Without colour,
// deletions are shown as [-text-] and insertions as {+text+}.
func (l *Logger) lineDiff(oldLine, newLine string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffCleanupSemantic(dmp.DiffMain(oldLine, newLine, false))
	if l.colored {
		return dmp.DiffPrettyText(diffs)
	}

	var b strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			b.WriteString("[-" + d.Text + "-]")
		case diffmatchpatch.DiffInsert:
			b.WriteString("{+" + d.Text + "+}")
		case diffmatchpatch.DiffEqual:
			b.WriteString(d.Text)
		}
	}
	return b.String()
}

// LogNoMatch reports that the patterns matched nothing.
func (l *Logger) LogNoMatch(err error) {
	l.errColor.Fprintln(l.errOut, "No files found matching the specified patterns.")
	if l.config.IsVerbose() && err != nil {
		fmt.Fprintf(l.errOut, "  %v\n", err)
	}
}

// LogReplay prints the outcome of a revert or apply run.
func (l *Logger) LogReplay(action string, result *backup.ReplayResult) {
	if result == nil {
		return
	}
	for _, f := range result.Files {
		if f.Error != nil {
			l.errColor.Fprintf(l.errOut, "Error processing %s: %v\n", f.Path, f.Error)
		}
		if !l.config.ShouldLog() {
			continue
		}
		switch {
		case f.Restored:
			l.okColor.Fprintf(l.out, "%s: %s (restored from backup)\n", action, f.Path)
		case f.Applied > 0:
			l.okColor.Fprintf(l.out, "%s: %s (%d lines)\n", action, f.Path, f.Applied)
		case f.Error == nil:
			fmt.Fprintf(l.out, "Unchanged: %s\n", f.Path)
		}
	}
}

// SetProcessingTime records the total run duration for reporting.
func (l *Logger) SetProcessingTime(duration time.Duration) {
	l.summary.ProcessingTime = duration
}

// Changed returns the sorted paths of files that were (or in a dry run
// would be) rewritten.
func (l *Logger) Changed() []string {
	out := append([]string(nil), l.changed...)
	sort.Strings(out)
	return out
}

// Summary returns the aggregate statistics recorded so far.
func (l *Logger) Summary() backup.LogSummary {
	return l.summary
}

// Report returns the complete report with entries sorted by path.
func (l *Logger) Report() backup.Report {
	entries := append([]backup.LogEntry(nil), l.entries...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].FilePath < entries[j].FilePath
	})
	return backup.Report{Summary: l.summary, Entries: entries}
}

// WriteReport prints the final summary and, for structured formats, the
// machine-readable report.
func (l *Logger) WriteReport() error {
	if l.config.ShouldLog() {
		l.writeSummary()
	}

	if !l.config.LogFormat.Structured() {
		return nil
	}
	if err := backup.EncodeReport(l.report, l.config.LogFormat, l.Report()); err != nil {
		return errors.NewLogError(l.config.LogFile, "failed to write report", err)
	}
	return nil
}

func (l *Logger) writeSummary() {
	changed := l.Changed()
	if len(changed) == 0 {
		fmt.Fprintln(l.out, "No files were changed.")
	} else {
		title := "Files changed:"
		if l.summary.DryRun {
			title = "Files that would be changed (dry run):"
		}
		l.titleColor.Fprintln(l.out, title)
		for _, path := range changed {
			l.okColor.Fprintln(l.out, path)
		}
	}

	if l.config.IsVerbose() {
		fmt.Fprintln(l.out, l.statsTable())
	}
}

func (l *Logger) statsTable() string {
	s := l.summary
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("reroot summary (%s)", mode(s.DryRun))
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Root", s.RootDir},
		{"Files processed", s.TotalFiles},
		{"Files changed", s.ModifiedFiles},
		{"Rewrites", s.TotalRewrites},
		{"Directories skipped", s.SkippedDirs},
		{"Errors", s.ErrorCount},
		{"Processing time", s.ProcessingTime.Round(time.Millisecond)},
	})
	return tbl.Render()
}

func mode(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "production"
}

// Close releases the log file, if any. Standard streams are never closed.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
