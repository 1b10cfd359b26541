package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reroot/internal/config"
	"reroot/internal/errors"
)

// NewDiagnostics returns the internal tracing logger. It discards
// everything unless debug output is enabled, in which case JSON lines go to
// stderr beside the human-readable progress.
func NewDiagnostics(cfg *config.Config) (*zap.Logger, error) {
	if !cfg.IsDebug() {
		return zap.NewNop(), nil
	}

	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zc.Sampling = nil
	zc.DisableStacktrace = true
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.NewLogError("", "failed to initialize diagnostics", err)
	}
	return logger, nil
}
