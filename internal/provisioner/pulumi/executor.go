package pulumi

import (
	"context"
	"fmt"
	"io"

	"github.com/instanti8/engine/pkg/logger"
	"github.com/pulumi/pulumi/sdk/v3/go/auto"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optpreview"
	"github.com/pulumi/pulumi/sdk/v3/go/auto/optup"
	"go.uber.org/zap"
)

// SecretMask replaces secret output values.
const SecretMask = "[secret]"

// Executor drives the Pulumi CLI through the automation API for one project
// directory. Env is passed to the CLI process only.
type Executor struct {
	workingDir string
	env        map[string]string
}

func NewExecutor(workingDir string, env map[string]string) *Executor {
	return &Executor{workingDir: workingDir, env: env}
}

func (e *Executor) stack(ctx context.Context, stackName string) (auto.Stack, error) {
	s, err := auto.UpsertStackLocalSource(ctx, stackName, e.workingDir, auto.EnvVars(e.env))
	if err != nil {
		return auto.Stack{}, fmt.Errorf("select stack %s: %w", stackName, err)
	}
	return s, nil
}

// Preview runs a non-interactive dry run.
func (e *Executor) Preview(ctx context.Context, stackName string, progress io.Writer) (*PreviewResult, error) {
	logger.L().Info("running pulumi preview", zap.String("working_dir", e.workingDir), zap.String("stack", stackName))

	s, err := e.stack(ctx, stackName)
	if err != nil {
		return nil, err
	}
	opts := []optpreview.Option{}
	if progress != nil {
		opts = append(opts, optpreview.ProgressStreams(progress))
	}
	res, err := s.Preview(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulumi preview: %w", err)
	}

	changes := make(map[string]int, len(res.ChangeSummary))
	for op, n := range res.ChangeSummary {
		changes[string(op)] = n
	}
	return &PreviewResult{Changes: changes, Stdout: res.StdOut}, nil
}

// Up applies the program, streaming engine output lines to progress.
func (e *Executor) Up(ctx context.Context, stackName string, progress io.Writer) (*UpResult, error) {
	logger.L().Info("running pulumi up", zap.String("working_dir", e.workingDir), zap.String("stack", stackName))

	s, err := e.stack(ctx, stackName)
	if err != nil {
		return nil, err
	}
	opts := []optup.Option{}
	if progress != nil {
		opts = append(opts, optup.ProgressStreams(progress))
	}
	res, err := s.Up(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulumi up: %w", err)
	}

	out := &UpResult{
		Outputs: ConvertOutputs(res.Outputs),
		Stdout:  res.StdOut,
		Result:  res.Summary.Result,
		Message: res.Summary.Message,
	}
	if res.Summary.ResourceChanges != nil {
		out.Changes = *res.Summary.ResourceChanges
	}
	return out, nil
}

type PreviewResult struct {
	Changes map[string]int
	Stdout  string
}

type UpResult struct {
	Outputs map[string]any
	Changes map[string]int
	Stdout  string
	Result  string
	Message string
}

// ConvertOutputs flattens stack outputs, masking secrets.
func ConvertOutputs(outputs auto.OutputMap) map[string]any {
	converted := make(map[string]any, len(outputs))
	for key, output := range outputs {
		if output.Secret {
			converted[key] = SecretMask
			continue
		}
		converted[key] = output.Value
	}
	return converted
}
