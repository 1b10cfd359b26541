package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"reroot/internal/config"
	"reroot/internal/errors"
)

var configPath string

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reroot [rootDir] [pattern...]",
		Short: "Rewrite relative import paths to root-relative paths",
		Long: `Reroot rewrites relative paths in JavaScript/TypeScript import and export
statements and in stylesheet @import rules so that they are expressed relative
to a chosen root directory.

Without --root-dir the first argument is the root directory and the remaining
arguments are glob patterns. With --root-dir every argument is a pattern. The
root defaults to the working directory and the patterns default to all script
and stylesheet files. --strict requires both and fails when nothing matches.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runReroot,
	}

	flags := cmd.Flags()
	flags.String("root-dir", "", "Root directory that rewritten paths are relative to")
	flags.Bool("strict", false, "Require --root-dir and patterns; fail when no files match")
	flags.StringSlice("exclude", []string{}, "Exclude file patterns (glob, repeatable)")
	flags.StringSlice("exclude-dir", config.DefaultExcludeDirs, "Exclude directories (repeatable)")
	flags.Bool("dry-run", false, "Report rewrites without changing files")
	flags.Bool("backup", false, "Create timestamped .bak files before writing")
	flags.Bool("dot-prefix", false, "Prefix rewritten paths with ./")
	flags.Int("workers", 0, fmt.Sprintf("Number of parallel workers (default: CPU count, at most %d)", config.MaxWorkers))
	flags.BoolP("verbose", "v", false, "Verbose mode")
	flags.Bool("debug", false, "Debug mode")
	flags.BoolP("quiet", "q", false, "Quiet mode")
	flags.Bool("diff", false, "Show a diff of every rewritten line")
	flags.Bool("no-color", false, "Disable coloured output")
	flags.String("log", "", "Log file (default: stdout)")
	flags.String("log-format", string(config.LogFormatText), "Log format (text, json, csv, yaml)")
	flags.BoolP("revert", "r", false, "Revert rewrites recorded in the log file")
	flags.Bool("apply", false, "Apply rewrites recorded in the log file (ignores commented lines)")
	flags.StringVar(&configPath, "config", "", "Config file (default: .reroot.yaml in the working directory or $HOME)")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	cmd.MarkFlagsMutuallyExclusive("debug", "quiet")
	cmd.MarkFlagsMutuallyExclusive("revert", "apply")

	return cmd
}

// Execute runs the root command and handles top-level error reporting.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		os.Exit(1)
	}
}

func runReroot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}

	if err := applyArgs(cfg, args); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	return executeReroot(cmd.Context(), cfg)
}

// applyArgs maps positional arguments onto cfg. When no root directory was
// configured the first argument names it, except in strict mode where the
// root must come from --root-dir.
func applyArgs(cfg *config.Config, args []string) error {
	if cfg.Revert || cfg.Apply {
		if len(args) > 0 {
			return errors.NewConfigError("revert and apply take no positional arguments", nil)
		}
		return nil
	}

	if cfg.RootDir == "" && !cfg.Strict && len(args) > 0 {
		cfg.RootDir = args[0]
		args = args[1:]
	}
	if len(args) > 0 {
		cfg.Patterns = args
	}
	return nil
}
