// Package concurrent provides parallel file processing capabilities.
// It implements a worker pool where every file is read, rewritten in memory
// and written back by exactly one worker, so no locking is needed.
package concurrent

import (
	"context"
	"os"
	"runtime"
	"sync"

	"reroot/internal/backup"
	"reroot/internal/config"
	"reroot/internal/errors"
	"reroot/internal/filter"
	"reroot/internal/rewrite"
)

// ProcessJob represents a single file processing task.
type ProcessJob struct {
	FilePath string
	FileInfo filter.FileInfo
}

// ProcessResult contains the outcome of processing a single file. Skipped is
// set for directories matched by a pattern; Error for per-file failures.
type ProcessResult struct {
	Job        ProcessJob
	Result     *rewrite.FileResult
	BackupPath string
	Skipped    bool
	Error      error
}

// Changed reports whether the file was rewritten (or would be, in a dry run).
func (r ProcessResult) Changed() bool {
	return r.Error == nil && !r.Skipped && r.Result != nil && r.Result.Modified
}

// Processor orchestrates concurrent file processing operations.
type Processor struct {
	config        *config.Config
	engine        *rewrite.Engine
	backupManager *backup.Manager
	workerCount   int
	writeFile     func(path string, content []byte) error
}

// NewProcessor creates a Processor for the configured root. The worker count
// comes from the configuration, defaulting to the CPU count capped at
// config.MaxWorkers.
func NewProcessor(cfg *config.Config) *Processor {
	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount > config.MaxWorkers && cfg.Workers <= 0 {
		workerCount = config.MaxWorkers
	}

	rewriter := rewrite.New(cfg.RootDir, rewrite.WithDotPrefix(cfg.DotPrefix))

	return &Processor{
		config:        cfg,
		engine:        rewrite.NewEngine(rewriter),
		backupManager: backup.NewBackupManager(cfg.ShouldCreateBackup()),
		workerCount:   workerCount,
		writeFile:     backup.WriteFileAtomic,
	}
}

// ProcessFiles processes files concurrently and streams one result per file.
// The channel is closed once every dispatched file is done. Cancelling ctx
// stops dispatching further files.
func (p *Processor) ProcessFiles(ctx context.Context, files []filter.FileInfo) (<-chan ProcessResult, error) {
	jobs := make(chan ProcessJob, len(files))
	results := make(chan ProcessResult, len(files))

	var wg sync.WaitGroup

	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.worker(ctx, jobs, results)
		}()
	}

	go func() {
		defer close(jobs)
		for _, fileInfo := range files {
			select {
			case jobs <- ProcessJob{FilePath: fileInfo.Path, FileInfo: fileInfo}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

func (p *Processor) worker(ctx context.Context, jobs <-chan ProcessJob, results chan<- ProcessResult) {
	for {
		select {
		case job, ok := <-jobs:
			if !ok {
				return
			}
			result := p.processFile(job)
			select {
			case results <- result:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) processFile(job ProcessJob) ProcessResult {
	result := ProcessResult{Job: job}

	info, err := os.Stat(job.FilePath)
	if err != nil {
		result.Error = errors.WrapFileError(job.FilePath, err)
		return result
	}
	if info.IsDir() {
		result.Skipped = true
		return result
	}

	content, err := os.ReadFile(job.FilePath)
	if err != nil {
		result.Error = errors.WrapFileError(job.FilePath, err)
		return result
	}

	fileResult, err := p.engine.ProcessFile(job.FilePath, content)
	result.Result = fileResult
	if err != nil {
		result.Error = err
		return result
	}

	if !fileResult.Modified || p.config.DryRun {
		return result
	}

	if p.backupManager.Enabled() {
		backupPath, err := p.backupManager.BackupFile(job.FilePath)
		if err != nil {
			result.Error = err
			return result
		}
		result.BackupPath = backupPath
	}

	if err := p.writeFile(job.FilePath, fileResult.Content); err != nil {
		if result.BackupPath != "" {
			_ = p.backupManager.RestoreFile(job.FilePath, result.BackupPath)
			_ = p.backupManager.CleanupBackup(result.BackupPath)
			result.BackupPath = ""
		}
		result.Error = err
	}

	return result
}
