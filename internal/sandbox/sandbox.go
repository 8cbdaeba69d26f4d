package sandbox

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/instanti8/engine/internal/metrics"
	"github.com/instanti8/engine/internal/provisioner"
	"github.com/instanti8/engine/pkg/logger"
	"github.com/instanti8/engine/pkg/utils"
	"go.uber.org/zap"
)

const (
	projectName = "infrastructure-validation"
	stackName   = "validation"
	outputLimit = 8 << 10
)

// Outcome is the binary verdict of a dry run. Reason is set when invalid.
type Outcome struct {
	Valid    bool
	Reason   string
	Output   string
	Duration time.Duration
}

// Sandbox previews untrusted programs in throwaway project directories.
type Sandbox struct {
	prov        provisioner.Provisioner
	timeout     time.Duration
	scratchRoot string
	metrics     *metrics.Metrics
}

// New returns a Sandbox creating scratch dirs under scratchRoot (the system
// temp dir when empty) and bounding each run by timeout.
func New(prov provisioner.Provisioner, timeout time.Duration, scratchRoot string, m *metrics.Metrics) *Sandbox {
	return &Sandbox{prov: prov, timeout: timeout, scratchRoot: scratchRoot, metrics: m}
}

// Validate installs the program's dependencies and runs a preview. Install
// failure, preview failure and timeout all yield an invalid outcome.
func (s *Sandbox) Validate(ctx context.Context, code string) Outcome {
	start := time.Now()
	log := logger.L().With(zap.String("program", utils.ProgramDigest(code)))

	out := s.run(ctx, code, log)
	out.Duration = time.Since(start)
	s.metrics.RecordValidation(out.Valid, out.Duration)

	if out.Valid {
		log.Info("program validated", zap.Duration("duration", out.Duration))
	} else {
		log.Warn("program failed validation", zap.Duration("duration", out.Duration), zap.String("reason", out.Reason))
	}
	return out
}

func (s *Sandbox) run(ctx context.Context, code string, log *zap.Logger) Outcome {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(s.scratchRoot, "pulumi-validation-")
	if err != nil {
		return Outcome{Reason: "create scratch dir: " + err.Error()}
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Error("remove scratch dir failed", zap.String("dir", dir), zap.Error(err))
		}
	}()

	spec := &provisioner.Spec{
		ProjectName: projectName,
		StackName:   stackName,
		Description: "Temporary project for validating infrastructure code",
		Program:     code,
	}

	if err := s.prov.Prepare(ctx, dir, spec); err != nil {
		return Outcome{Reason: describe(ctx, err)}
	}

	output := newTailBuffer(outputLimit)
	if _, err := s.prov.Preview(ctx, dir, spec, output); err != nil {
		return Outcome{Reason: describe(ctx, err), Output: output.String()}
	}
	return Outcome{Valid: true, Output: output.String()}
}

func describe(ctx context.Context, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "validation timed out"
	}
	return err.Error()
}
