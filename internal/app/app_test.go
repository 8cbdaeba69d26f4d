package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/instanti8/engine/pkg/config"
	"github.com/instanti8/engine/pkg/logger"
	"github.com/nats-io/nats-server/v2/server"
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

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		AppEnv:             "test",
		DatabaseDriver:     "sqlite",
		DatabaseURL:        "file::memory:?cache=shared",
		WorkingDir:         filepath.Join(dir, "work"),
		CredentialBackend:  "file",
		CredentialsDir:     filepath.Join(dir, "credentials"),
		GenerationBackends: "azure,groq",
		GroqBaseURL:        "https://api.groq.com/openai/v1",
		GroqModel:          "llama3-70b-8192",
		PulumiStack:        "auto-generated",
		NPMCommand:         "npm install",
		ValidationTimeout:  time.Minute,
		DeployTimeout:      time.Minute,
	}
}

func TestBuildWiresServices(t *testing.T) {
	cfg := testConfig(t)
	a, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Infra)
	assert.NotNil(t, a.Deployments)
	assert.NotNil(t, a.Credentials)
	assert.NoError(t, a.Ping(context.Background()))
	assert.DirExists(t, cfg.WorkingDir)
	assert.DirExists(t, cfg.CredentialsDir)
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.GenerationBackends = "azure,palm"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuildDatabaseCredentialStoreNeedsKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.CredentialBackend = "database"
	cfg.CredentialsEncryptionKey = "short"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuildFailureClosesEventConnection(t *testing.T) {
	ns, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1, NoLog: true, NoSigs: true})
	require.NoError(t, err)
	go ns.Start()
	require.True(t, ns.ReadyForConnections(4*time.Second))
	t.Cleanup(ns.Shutdown)

	cfg := testConfig(t)
	cfg.NATSURL = ns.ClientURL()
	cfg.GenerationBackends = "azure,palm"
	_, err = Build(context.Background(), cfg, nil)
	require.Error(t, err)

	assert.Eventually(t, func() bool { return ns.NumClients() == 0 }, 5*time.Second, 20*time.Millisecond)
}
