// Package cmd implements the command-line interface and orchestration logic for reroot.
// It coordinates between different components to execute file processing operations,
// providing the main business logic that connects configuration, discovery, processing, and reporting.
package cmd

import (
	"context"
	stderrors "errors"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"reroot/internal/backup"
	"reroot/internal/concurrent"
	"reroot/internal/config"
	"reroot/internal/errors"
	"reroot/internal/filter"
	"reroot/internal/log"
)

func executeReroot(ctx context.Context, cfg *config.Config) error {
	startTime := time.Now()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	logger, err := log.NewLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()

	diag, err := log.NewDiagnostics(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = diag.Sync() }()

	diag.Debug("configuration",
		zap.String("root", cfg.RootDir),
		zap.Strings("patterns", cfg.Patterns),
		zap.Strings("exclude_dirs", cfg.ExcludeDir),
		zap.Int("workers", cfg.Workers),
		zap.Bool("dry_run", cfg.DryRun),
		zap.Bool("strict", cfg.Strict),
	)

	if cfg.Revert {
		return executeRevert(cfg, logger)
	}

	if cfg.Apply {
		return executeApply(cfg, logger)
	}

	discovery := filter.NewFileDiscovery(cfg)
	files, err := discovery.Discover(ctx)
	if err != nil {
		var noMatch *errors.NoMatchError
		if stderrors.As(err, &noMatch) && !errors.IsFatal(err, cfg.Strict) {
			logger.LogNoMatch(err)
			return nil
		}
		return err
	}
	diag.Debug("discovered files", zap.Int("count", len(files)))

	processor := concurrent.NewProcessor(cfg)

	results, err := processor.ProcessFiles(ctx, files)
	if err != nil {
		return err
	}

	for result := range results {
		if result.Error != nil {
			diag.Debug("file failed", zap.String("path", result.Job.FilePath), zap.Error(result.Error))
		}
		logger.LogResult(result)
	}

	elapsed := time.Since(startTime)
	diag.Debug("run complete", zap.Duration("elapsed", elapsed), zap.Int("changed", len(logger.Changed())))
	logger.SetProcessingTime(elapsed)
	if err := logger.WriteReport(); err != nil {
		return err
	}
	return ctx.Err()
}

func executeRevert(cfg *config.Config, logger *log.Logger) error {
	revertManager := backup.NewRevertManager()
	result, err := revertManager.RevertFromLog(cfg.LogFile, cfg.LogFormat)
	logger.LogReplay("Reverted", result)
	return err
}

func executeApply(cfg *config.Config, logger *log.Logger) error {
	applyManager := backup.NewApplyManager(backup.NewBackupManager(cfg.Backup))
	result, err := applyManager.ApplyFromLog(cfg.LogFile, cfg.LogFormat)
	logger.LogReplay("Applied", result)
	return err
}
