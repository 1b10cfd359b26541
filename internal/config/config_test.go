package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rerrors "reroot/internal/errors"
)

func TestConfigValidation(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.ts")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "lenient with explicit root",
			config: Config{RootDir: root},
		},
		{
			name:   "lenient without root uses working directory",
			config: Config{},
		},
		{
			name:        "strict without root",
			config:      Config{Strict: true, Patterns: []string{"**/*.ts"}},
			expectError: true,
		},
		{
			name:        "strict without patterns",
			config:      Config{Strict: true, RootDir: root},
			expectError: true,
		},
		{
			name:   "strict with root and patterns",
			config: Config{Strict: true, RootDir: root, Patterns: []string{"src/**/*.ts"}},
		},
		{
			name:        "root is a file",
			config:      Config{RootDir: file},
			expectError: true,
		},
		{
			name:        "root does not exist",
			config:      Config{RootDir: filepath.Join(root, "missing")},
			expectError: true,
		},
		{
			name:        "invalid log format",
			config:      Config{RootDir: root, LogFormat: "xml"},
			expectError: true,
		},
		{
			name:        "negative workers",
			config:      Config{RootDir: root, Workers: -1},
			expectError: true,
		},
		{
			name:        "revert without log",
			config:      Config{Revert: true},
			expectError: true,
		},
		{
			name:   "revert with log needs no root",
			config: Config{Revert: true, LogFile: "run.json"},
		},
		{
			name:        "revert and apply together",
			config:      Config{Revert: true, Apply: true, LogFile: "run.json"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, rerrors.ErrConfig), "expected a config error, got %v", err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	root := t.TempDir()

	cfg := Config{RootDir: root, Patterns: []string{" ", ""}, ExcludeDir: []string{"dist", " "}}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{DefaultPattern}, cfg.Patterns)
	assert.Equal(t, []string{"dist"}, cfg.ExcludeDir)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.LessOrEqual(t, cfg.Workers, MaxWorkers)
	assert.True(t, filepath.IsAbs(cfg.RootDir))
}

func TestValidateReplayDefaultsToJSON(t *testing.T) {
	cfg := Config{Apply: true, LogFile: "run.log"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.True(t, filepath.IsAbs(cfg.LogFile))
}

func TestDefaultPattern(t *testing.T) {
	assert.Equal(t, "**/*.{ts,tsx,js,jsx,css,scss,less,sass}", DefaultPattern)
}

func TestConfigPredicates(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		verbose bool
		debug   bool
		log     bool
		backup  bool
	}{
		{"defaults", Config{}, false, false, true, false},
		{"verbose", Config{Verbose: true}, true, false, true, false},
		{"debug implies verbose", Config{Debug: true}, true, true, true, false},
		{"quiet wins", Config{Verbose: true, Debug: true, Quiet: true}, false, false, false, false},
		{"backup", Config{Backup: true}, false, false, true, true},
		{"dry run never backs up", Config{Backup: true, DryRun: true}, false, false, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.verbose, tt.config.IsVerbose())
			assert.Equal(t, tt.debug, tt.config.IsDebug())
			assert.Equal(t, tt.log, tt.config.ShouldLog())
			assert.Equal(t, tt.backup, tt.config.ShouldCreateBackup())
		})
	}
}

func TestLoadLayers(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "reroot.yaml")
	content := `root-dir: /from/file
dot-prefix: true
exclude:
  - "**/*.d.ts"
log-format: json
workers: 3
`
	require.NoError(t, os.WriteFile(cfgFile, []byte(content), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("root-dir", "", "")
	flags.Int("workers", 0, "")
	flags.Bool("dry-run", false, "")
	require.NoError(t, flags.Parse([]string{"--workers=5"}))

	t.Setenv("REROOT_DRY_RUN", "true")

	cfg, err := Load(cfgFile, flags)
	require.NoError(t, err)

	assert.Equal(t, "/from/file", cfg.RootDir, "unset flag must not override the file")
	assert.True(t, cfg.DotPrefix)
	assert.Equal(t, []string{"**/*.d.ts"}, cfg.Exclude)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, 5, cfg.Workers, "explicit flag wins over the file")
	assert.True(t, cfg.DryRun, "environment applies")
	assert.Equal(t, DefaultExcludeDirs, cfg.ExcludeDir)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrConfig))
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, LogFormatText, cfg.LogFormat)
	assert.Empty(t, cfg.RootDir)
}
