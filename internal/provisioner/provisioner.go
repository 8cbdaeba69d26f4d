package provisioner

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/instanti8/engine/internal/provisioner/pulumi"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// Provisioner runs generated programs through the automation engine. The
// program always executes in the engine's own processes, never in ours.
type Provisioner interface {
	// Prepare writes the project into dir and installs its dependencies.
	Prepare(ctx context.Context, dir string, spec *Spec) error

	// Preview runs a dry run against an already prepared dir.
	Preview(ctx context.Context, dir string, spec *Spec, progress io.Writer) (*Result, error)

	// Apply prepares a private working dir, runs up, and removes the dir.
	Apply(ctx context.Context, spec *Spec, progress io.Writer) (*Result, error)
}

// Spec identifies a program and the scope it runs in.
type Spec struct {
	ProjectName string
	StackName   string
	Description string
	Program     string
	// Env is passed to the engine process; the service environment is untouched.
	Env map[string]string
}

type Result struct {
	Success  bool           `json:"success"`
	Summary  string         `json:"summary,omitempty"`
	Changes  map[string]int `json:"changes,omitempty"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Stdout   string         `json:"stdout,omitempty"`
	Duration time.Duration  `json:"duration"`
}

// EngineSettings are applied to every engine invocation.
type EngineSettings struct {
	AccessToken      string
	BackendURL       string
	ConfigPassphrase string
}

// PulumiProvisioner implements Provisioner with the Pulumi automation API.
type PulumiProvisioner struct {
	baseWorkingDir string
	installer      Installer
	settings       EngineSettings
}

func NewPulumiProvisioner(workingDir string, installer Installer, settings EngineSettings) *PulumiProvisioner {
	if workingDir == "" {
		workingDir = filepath.Join(os.TempDir(), "instanti8")
	}
	if settings.BackendURL == "" && settings.AccessToken == "" {
		settings.BackendURL = "file://" + filepath.Join(workingDir, ".state")
	}
	return &PulumiProvisioner{baseWorkingDir: workingDir, installer: installer, settings: settings}
}

var _ Provisioner = (*PulumiProvisioner)(nil)

func (p *PulumiProvisioner) engineEnv(spec *Spec) map[string]string {
	env := map[string]string{
		"PULUMI_SKIP_UPDATE_CHECK": "true",
		"PULUMI_CONFIG_PASSPHRASE": p.settings.ConfigPassphrase,
	}
	if p.settings.AccessToken != "" {
		env["PULUMI_ACCESS_TOKEN"] = p.settings.AccessToken
	}
	if p.settings.BackendURL != "" {
		env["PULUMI_BACKEND_URL"] = p.settings.BackendURL
	}
	for k, v := range spec.Env {
		env[k] = v
	}
	return env
}

func (p *PulumiProvisioner) Prepare(ctx context.Context, dir string, spec *Spec) error {
	if err := pulumi.Write(dir, pulumi.Project{Name: spec.ProjectName, Description: spec.Description, Program: spec.Program}); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	if p.installer != nil {
		if err := p.installer.Install(ctx, dir); err != nil {
			return fmt.Errorf("install dependencies: %w", err)
		}
	}
	return nil
}

func (p *PulumiProvisioner) Preview(ctx context.Context, dir string, spec *Spec, progress io.Writer) (*Result, error) {
	start := time.Now()
	exec := pulumi.NewExecutor(dir, p.engineEnv(spec))
	pr, err := exec.Preview(ctx, spec.StackName, progress)
	if err != nil {
		return &Result{Success: false, Duration: time.Since(start)}, err
	}
	return &Result{Success: true, Changes: pr.Changes, Stdout: pr.Stdout, Duration: time.Since(start)}, nil
}

func (p *PulumiProvisioner) Apply(ctx context.Context, spec *Spec, progress io.Writer) (*Result, error) {
	// Per-run working directory
	runDir := filepath.Join(p.baseWorkingDir, spec.ProjectName, strconv.FormatInt(time.Now().UnixNano(), 10))
	logger.L().Info("using working dir for up", zap.String("dir", runDir))
	defer func() {
		if err := os.RemoveAll(runDir); err != nil {
			logger.L().Warn("remove working dir failed", zap.String("dir", runDir), zap.Error(err))
		}
	}()

	if err := p.Prepare(ctx, runDir, spec); err != nil {
		return &Result{Success: false}, err
	}

	start := time.Now()
	exec := pulumi.NewExecutor(runDir, p.engineEnv(spec))
	ur, err := exec.Up(ctx, spec.StackName, progress)
	if err != nil {
		return &Result{Success: false, Duration: time.Since(start)}, err
	}
	return &Result{
		Success:  true,
		Summary:  ur.Result,
		Changes:  ur.Changes,
		Outputs:  ur.Outputs,
		Stdout:   ur.Stdout,
		Duration: time.Since(start),
	}, nil
}
