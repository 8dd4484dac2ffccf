package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// asyncTimeout is the max time allowed for one fire-and-forget export. Used by RunAsync and ShutdownDrainDuration.
const asyncTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the servers stop before shutting down exporters,
// so in-flight async exports have time to complete. Must be >= asyncTimeout.
const ShutdownDrainDuration = asyncTimeout

// RunAsync runs fn in a goroutine with a bounded timeout so the caller is not blocked.
// The goroutine uses context.Background so request cancellation does not abort the export.
// Errors are logged under what and otherwise dropped.
func RunAsync(logger *zap.Logger, what string, fn func(context.Context) error) {
	if fn == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			logger.Warn("async export failed", zap.String("export", what), zap.Error(err))
		}
	}()
}
