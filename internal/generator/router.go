package generator

import (
	"context"
	"errors"
	"time"

	"github.com/instanti8/engine/internal/metrics"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// Router tries backends in priority order and returns the first program text.
type Router struct {
	backends []Backend
	metrics  *metrics.Metrics
}

func NewRouter(m *metrics.Metrics, backends ...Backend) *Router {
	return &Router{backends: backends, metrics: m}
}

// Backends returns the configured order.
func (r *Router) Backends() []string {
	names := make([]string, 0, len(r.backends))
	for _, b := range r.backends {
		names = append(names, b.Name())
	}
	return names
}

// Generate fails with generation_exhausted, wrapping the last backend's
// error, once every available backend and its backup have failed.
func (r *Router) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	attempted := 0

	for _, b := range r.backends {
		if a, ok := b.(Availability); ok && !a.Available() {
			logger.L().Debug("generation backend skipped: not configured", zap.String("backend", b.Name()))
			r.metrics.RecordGeneration(b.Name(), "skipped", 0)
			continue
		}

		attempted++
		code, err := r.try(ctx, b, prompt)
		if err == nil {
			return code, nil
		}
		lastErr = err

		if bp, ok := b.(BackupProvider); ok {
			if backup := bp.Backup(); backup != nil {
				logger.L().Info("retrying generation with backup credential", zap.String("backend", b.Name()))
				code, err = r.try(ctx, backup, prompt)
				if err == nil {
					return code, nil
				}
				lastErr = err
			}
		}

		if ctx.Err() != nil {
			break
		}
	}

	if attempted == 0 {
		return "", appErr.New(appErr.CodeGenerationExhausted, "no generation backend available")
	}
	msg := "all generation backends failed"
	if errors.Is(lastErr, context.DeadlineExceeded) || errors.Is(lastErr, context.Canceled) {
		msg = "generation aborted"
	}
	return "", appErr.Wrap(lastErr, appErr.CodeGenerationExhausted, msg).WithMeta("attempted", attempted)
}

func (r *Router) try(ctx context.Context, b Backend, prompt string) (string, error) {
	start := time.Now()
	raw, err := b.Generate(ctx, prompt)
	if err == nil {
		raw, err = ExtractProgram(raw)
	}
	dur := time.Since(start)
	if err != nil {
		logger.L().Warn("generation backend failed",
			zap.String("backend", b.Name()),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
		r.metrics.RecordGeneration(b.Name(), "error", dur)
		return "", err
	}
	logger.L().Info("generation succeeded",
		zap.String("backend", b.Name()),
		zap.Duration("duration", dur),
		zap.Int("bytes", len(raw)),
	)
	r.metrics.RecordGeneration(b.Name(), "success", dur)
	return raw, nil
}
