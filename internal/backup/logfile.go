package backup

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"reroot/internal/config"
	"reroot/internal/errors"
	"reroot/internal/rewrite"
)

// LogEntry is the per-file record of a run report.
type LogEntry struct {
	Timestamp    string            `json:"timestamp" yaml:"timestamp"`
	FilePath     string            `json:"file_path" yaml:"file_path"`
	OriginalSize int64             `json:"original_size" yaml:"original_size"`
	NewSize      int64             `json:"new_size" yaml:"new_size"`
	Modified     bool              `json:"modified" yaml:"modified"`
	Skipped      bool              `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Rewrites     []rewrite.Rewrite `json:"rewrites,omitempty" yaml:"rewrites,omitempty"`
	BackupPath   string            `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	Error        string            `json:"error,omitempty" yaml:"error,omitempty"`
}

// LogSummary holds aggregate statistics for a run.
type LogSummary struct {
	RootDir        string        `json:"root_dir" yaml:"root_dir"`
	TotalFiles     int           `json:"total_files" yaml:"total_files"`
	ModifiedFiles  int           `json:"modified_files" yaml:"modified_files"`
	SkippedDirs    int           `json:"skipped_dirs" yaml:"skipped_dirs"`
	TotalRewrites  int           `json:"total_rewrites" yaml:"total_rewrites"`
	ErrorCount     int           `json:"error_count" yaml:"error_count"`
	ProcessingTime time.Duration `json:"processing_time" yaml:"processing_time"`
	DryRun         bool          `json:"dry_run" yaml:"dry_run"`
}

// Report is a complete run report as written by the logger.
type Report struct {
	Summary LogSummary `json:"summary" yaml:"summary"`
	Entries []LogEntry `json:"entries" yaml:"entries"`
}

// csvHeader is the header row of CSV reports, one row per rewritten line.
var csvHeader = []string{"file_path", "line", "from", "to", "old_line", "new_line", "backup_path"}

const csvTitle = "# Reroot CSV Report"

// EncodeReport writes report to w in the given structured format.
func EncodeReport(w io.Writer, format config.LogFormat, report Report) error {
	switch format {
	case config.LogFormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	case config.LogFormatYAML:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(report); err != nil {
			return err
		}
		return encoder.Close()
	case config.LogFormatCSV:
		return encodeCSV(w, report)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func encodeCSV(w io.Writer, report Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}

	for _, entry := range report.Entries {
		for _, rw := range entry.Rewrites {
			record := []string{
				entry.FilePath,
				strconv.Itoa(rw.Line),
				rw.From,
				rw.To,
				rw.OldLine,
				rw.NewLine,
				entry.BackupPath,
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	s := report.Summary
	fmt.Fprintf(w, "%s (%s)\n", csvTitle, mode(s.DryRun))
	fmt.Fprintf(w, "# Root: %s\n", s.RootDir)
	fmt.Fprintf(w, "# Total files processed: %d\n", s.TotalFiles)
	fmt.Fprintf(w, "# Files modified: %d\n", s.ModifiedFiles)
	fmt.Fprintf(w, "# Directories skipped: %d\n", s.SkippedDirs)
	fmt.Fprintf(w, "# Total rewrites: %d\n", s.TotalRewrites)
	fmt.Fprintf(w, "# Errors: %d\n", s.ErrorCount)
	for _, entry := range report.Entries {
		if entry.Error != "" {
			fmt.Fprintf(w, "#   %s: %s\n", entry.FilePath, entry.Error)
		}
	}
	fmt.Fprintf(w, "# Processing time: %v\n", s.ProcessingTime)
	return nil
}

func mode(dryRun bool) string {
	if dryRun {
		return "dry-run"
	}
	return "production"
}

// ReadLog loads a report written in the given format.
func ReadLog(path string, format config.LogFormat) (*Report, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFileError(path, err)
	}

	report, err := DecodeReport(bytes.NewReader(content), format)
	if err != nil {
		return nil, errors.NewLogError(path, "failed to parse "+string(format)+" log", err)
	}
	return report, nil
}

// DecodeReport parses a report. CSV rows commented out with '#' are
// ignored, which lets a reviewed dry-run report drop individual rewrites
// before it is applied.
func DecodeReport(r io.Reader, format config.LogFormat) (*Report, error) {
	var report Report
	switch format {
	case config.LogFormatJSON:
		if err := json.NewDecoder(r).Decode(&report); err != nil {
			return nil, err
		}
	case config.LogFormatYAML:
		if err := yaml.NewDecoder(r).Decode(&report); err != nil {
			return nil, err
		}
	case config.LogFormatCSV:
		return decodeCSV(r)
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
	return &report, nil
}

func decodeCSV(r io.Reader) (*Report, error) {
	report := &Report{}

	var data []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, csvTitle) {
			report.Summary.DryRun = strings.Contains(trimmed, "(dry-run)")
			continue
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		data = append(data, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return report, nil
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(data, "\n")))
	reader.FieldsPerRecord = len(csvHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	if len(records) > 0 && records[0][0] == csvHeader[0] {
		records = records[1:]
	}

	index := make(map[string]int)
	for i, record := range records {
		line, err := strconv.Atoi(record[1])
		if err != nil {
			return nil, fmt.Errorf("record %d: invalid line number %q", i+1, record[1])
		}

		pos, ok := index[record[0]]
		if !ok {
			pos = len(report.Entries)
			index[record[0]] = pos
			report.Entries = append(report.Entries, LogEntry{
				FilePath:   record[0],
				Modified:   true,
				BackupPath: record[6],
			})
		}
		report.Entries[pos].Rewrites = append(report.Entries[pos].Rewrites, rewrite.Rewrite{
			Line:    line,
			From:    record[2],
			To:      record[3],
			OldLine: record[4],
			NewLine: record[5],
		})
	}
	return report, nil
}
