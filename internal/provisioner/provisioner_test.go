package provisioner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/instanti8/engine/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	restore := logger.Replace(zap.NewNop())
	code := m.Run()
	restore()
	os.Exit(code)
}

type recordingInstaller struct {
	dirs []string
	err  error
}

func (r *recordingInstaller) Install(ctx context.Context, dir string) error {
	r.dirs = append(r.dirs, dir)
	return r.err
}

func TestPrepareWritesProjectAndInstalls(t *testing.T) {
	inst := &recordingInstaller{}
	p := NewPulumiProvisioner(t.TempDir(), inst, EngineSettings{})
	dir := filepath.Join(t.TempDir(), "scratch")

	require.NoError(t, p.Prepare(context.Background(), dir, &Spec{ProjectName: "user-1-infra-2", Program: "export const a = 1;"}))
	assert.Equal(t, []string{dir}, inst.dirs)
	for _, f := range []string{"index.ts", "package.json", "Pulumi.yaml"} {
		_, err := os.Stat(filepath.Join(dir, f))
		assert.NoError(t, err, f)
	}
}

func TestEngineEnvMergesSpecOverSettings(t *testing.T) {
	base := t.TempDir()
	p := NewPulumiProvisioner(base, nil, EngineSettings{ConfigPassphrase: "pp"})
	env := p.engineEnv(&Spec{Env: map[string]string{"AWS_REGION": "eu-west-1"}})

	assert.Equal(t, "true", env["PULUMI_SKIP_UPDATE_CHECK"])
	assert.Equal(t, "pp", env["PULUMI_CONFIG_PASSPHRASE"])
	assert.Equal(t, "file://"+filepath.Join(base, ".state"), env["PULUMI_BACKEND_URL"])
	assert.Equal(t, "eu-west-1", env["AWS_REGION"])
	_, hasToken := env["PULUMI_ACCESS_TOKEN"]
	assert.False(t, hasToken)

	withToken := NewPulumiProvisioner(base, nil, EngineSettings{AccessToken: "pul-123"})
	env = withToken.engineEnv(&Spec{})
	assert.Equal(t, "pul-123", env["PULUMI_ACCESS_TOKEN"])
	_, hasBackend := env["PULUMI_BACKEND_URL"]
	assert.False(t, hasBackend)
}

func TestApplyCleansWorkingDirOnPrepareFailure(t *testing.T) {
	base := t.TempDir()
	p := NewPulumiProvisioner(base, &recordingInstaller{err: assert.AnError}, EngineSettings{})

	_, err := p.Apply(context.Background(), &Spec{ProjectName: "user-a-infra-b", StackName: "auto-generated"}, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(base, "user-a-infra-b"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCommandInstallerFailureAndTimeout(t *testing.T) {
	dir := t.TempDir()

	err := NewCommandInstaller("false").Install(context.Background(), dir)
	assert.Error(t, err)

	err = NewCommandInstaller("").Install(context.Background(), dir)
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = NewCommandInstaller("sleep 5").Install(ctx, dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, NewCommandInstaller("true").Install(context.Background(), dir))
}
