// Package config provides configuration management and validation for reroot.
// It centralizes all command-line options and runtime settings, providing
// validation logic to catch configuration errors early before processing begins.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"reroot/internal/errors"
)

// LogFormat represents the supported output formats for run reports.
type LogFormat string

// Supported log formats. LogFormatText is the human-readable progress and
// summary output; the others produce a machine-readable report that the
// revert and apply modes can consume.
const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatCSV  LogFormat = "csv"
	LogFormatYAML LogFormat = "yaml"
)

// Structured reports whether the format can be read back by revert and apply.
func (f LogFormat) Structured() bool {
	return f == LogFormatJSON || f == LogFormatCSV || f == LogFormatYAML
}

// FileExtensions lists the file types rewritten when no pattern is given.
var FileExtensions = []string{"ts", "tsx", "js", "jsx", "css", "scss", "less", "sass"}

// DefaultPattern matches every file with one of FileExtensions below the root.
var DefaultPattern = fmt.Sprintf("**/*.{%s}", strings.Join(FileExtensions, ","))

// DefaultExcludeDirs are never descended into by file discovery.
var DefaultExcludeDirs = []string{"node_modules", ".git"}

// MaxWorkers caps the default worker pool size.
const MaxWorkers = 8

// Config holds all runtime configuration options for a reroot run.
// The mapstructure tags match the command-line flag names so flags, the
// config file and environment variables all decode into the same fields.
type Config struct {
	RootDir    string    `mapstructure:"root-dir"`
	Patterns   []string  `mapstructure:"patterns"`
	Strict     bool      `mapstructure:"strict"`
	Exclude    []string  `mapstructure:"exclude"`
	ExcludeDir []string  `mapstructure:"exclude-dir"`
	DryRun     bool      `mapstructure:"dry-run"`
	Backup     bool      `mapstructure:"backup"`
	DotPrefix  bool      `mapstructure:"dot-prefix"`
	Workers    int       `mapstructure:"workers"`
	Verbose    bool      `mapstructure:"verbose"`
	Debug      bool      `mapstructure:"debug"`
	Quiet      bool      `mapstructure:"quiet"`
	Diff       bool      `mapstructure:"diff"`
	NoColor    bool      `mapstructure:"no-color"`
	LogFile    string    `mapstructure:"log"`
	LogFormat  LogFormat `mapstructure:"log-format"`
	Revert     bool      `mapstructure:"revert"`
	Apply      bool      `mapstructure:"apply"`
}

// Validate checks the configuration and fills in defaults. In strict mode a
// missing root directory or pattern list is an error; otherwise the working
// directory and DefaultPattern are used.
func (c *Config) Validate() error {
	if c.Revert && c.Apply {
		return errors.NewConfigError("revert and apply cannot be combined", nil)
	}

	if err := c.validateLogFormat(); err != nil {
		return err
	}

	if c.Revert || c.Apply {
		return c.validateLogReplay()
	}

	if err := c.validateRootDir(); err != nil {
		return err
	}

	if err := c.validatePatterns(); err != nil {
		return err
	}

	if c.Workers < 0 {
		return errors.NewConfigError(fmt.Sprintf("workers must not be negative, got %d", c.Workers), nil)
	}

	c.normalizeConfig()
	return nil
}

func (c *Config) validateLogFormat() error {
	switch c.LogFormat {
	case "":
		c.LogFormat = LogFormatText
	case LogFormatText, LogFormatJSON, LogFormatCSV, LogFormatYAML:
	default:
		return errors.NewConfigError(fmt.Sprintf("log format must be one of text, json, csv, yaml; got %q", c.LogFormat), nil)
	}
	return nil
}

func (c *Config) validateLogReplay() error {
	if c.LogFile == "" {
		return errors.NewConfigError("log file is required for revert and apply", nil)
	}
	if !c.LogFormat.Structured() {
		c.LogFormat = LogFormatJSON
	}

	absLog, err := filepath.Abs(c.LogFile)
	if err != nil {
		return errors.NewConfigErrorWithPath(c.LogFile, "invalid log file path", err)
	}
	c.LogFile = absLog
	return nil
}

func (c *Config) validateRootDir() error {
	if c.RootDir == "" {
		if c.Strict {
			return errors.NewConfigError("root directory is required (use --root-dir)", nil)
		}
		wd, err := os.Getwd()
		if err != nil {
			return errors.NewConfigError("cannot determine working directory", err)
		}
		c.RootDir = wd
	}

	absDir, err := filepath.Abs(c.RootDir)
	if err != nil {
		return errors.NewConfigErrorWithPath(c.RootDir, "invalid root directory path", err)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return errors.NewConfigErrorWithPath(absDir, "root directory is not accessible", err)
	}
	if !info.IsDir() {
		return errors.NewConfigErrorWithPath(absDir, "root directory is not a directory", nil)
	}

	c.RootDir = absDir
	return nil
}

func (c *Config) validatePatterns() error {
	c.Patterns = compact(c.Patterns)
	if len(c.Patterns) > 0 {
		return nil
	}
	if c.Strict {
		return errors.NewConfigError("at least one file pattern is required in strict mode", nil)
	}
	c.Patterns = []string{DefaultPattern}
	return nil
}

func (c *Config) normalizeConfig() {
	c.Exclude = compact(c.Exclude)
	c.ExcludeDir = compact(c.ExcludeDir)
	if c.Workers == 0 {
		c.Workers = defaultWorkerCount()
	}
	if c.LogFile != "" {
		if absLog, err := filepath.Abs(c.LogFile); err == nil {
			c.LogFile = absLog
		}
	}
}

func defaultWorkerCount() int {
	n := runtime.NumCPU()
	if n > MaxWorkers {
		n = MaxWorkers
	}
	return n
}

func compact(values []string) []string {
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// IsVerbose reports whether verbose output is enabled. Quiet wins.
func (c *Config) IsVerbose() bool {
	return (c.Verbose || c.Debug) && !c.Quiet
}

// IsDebug reports whether debug output is enabled. Quiet wins.
func (c *Config) IsDebug() bool {
	return c.Debug && !c.Quiet
}

// ShouldLog reports whether any human-readable output should be produced.
func (c *Config) ShouldLog() bool {
	return !c.Quiet
}

// ShouldCreateBackup reports whether modified files are backed up before
// being overwritten. Dry runs never write, so never back up.
func (c *Config) ShouldCreateBackup() bool {
	return c.Backup && !c.DryRun
}
