// Package app wires configuration into the services shared by the API server
// and the worker.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/instanti8/engine/internal/credentials"
	"github.com/instanti8/engine/internal/events"
	"github.com/instanti8/engine/internal/generator"
	"github.com/instanti8/engine/internal/metrics"
	"github.com/instanti8/engine/internal/provisioner"
	"github.com/instanti8/engine/internal/repository"
	"github.com/instanti8/engine/internal/sandbox"
	"github.com/instanti8/engine/internal/services"
	"github.com/instanti8/engine/pkg/config"
	"github.com/instanti8/engine/pkg/database"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	DB          *gorm.DB
	Metrics     *metrics.Metrics
	Events      events.Publisher
	Infra       services.InfrastructureService
	Deployments services.DeploymentService
	Credentials services.CredentialService
}

// Build opens the database and assembles the services. enq may be nil when
// background deployments are not available.
func Build(ctx context.Context, cfg *config.Config, enq services.Enqueuer) (*App, error) {
	db, err := database.Open(ctx, database.Options{
		Driver:  cfg.DatabaseDriver,
		DSN:     cfg.DatabaseURL,
		Verbose: cfg.AppEnv == "development",
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a, err := build(cfg, db, enq)
	if err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return a, nil
}

func build(cfg *config.Config, db *gorm.DB, enq services.Enqueuer) (_ *App, err error) {
	m := metrics.New(cfg.MetricsEnabled)

	pub, err := events.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			pub.Close()
		}
	}()

	backends, err := generator.FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	router := generator.NewRouter(m, backends...)
	logger.L().Info("generation backends configured", zap.Strings("order", router.Backends()))

	workingDir := cfg.WorkingDir
	if workingDir == "" {
		workingDir = filepath.Join(os.TempDir(), "instanti8")
	}
	if err := os.MkdirAll(workingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create working dir: %w", err)
	}
	prov := provisioner.NewPulumiProvisioner(workingDir, provisioner.NewCommandInstaller(cfg.NPMCommand), provisioner.EngineSettings{
		AccessToken:      cfg.PulumiAccessToken,
		BackendURL:       cfg.PulumiBackendURL,
		ConfigPassphrase: cfg.PulumiConfigPassphrase,
	})
	box := sandbox.New(prov, cfg.ValidationTimeout, "", m)

	store, err := credentialStore(cfg, db)
	if err != nil {
		return nil, err
	}
	manager := credentials.NewManager(store, "")
	infraRepo := repository.NewInfrastructureRepository(db)

	return &App{
		DB:      db,
		Metrics: m,
		Events:  pub,
		Infra:   services.NewInfrastructureService(infraRepo, router, box),
		Deployments: services.NewDeploymentService(infraRepo, box, manager, prov, pub, m, enq, services.DeploymentOptions{
			StackName: cfg.PulumiStack,
			Timeout:   cfg.DeployTimeout,
		}),
		Credentials: services.NewCredentialService(manager, credentials.NewAWSVerifier(store, "")),
	}, nil
}

func credentialStore(cfg *config.Config, db *gorm.DB) (credentials.Store, error) {
	switch cfg.CredentialBackend {
	case "database":
		key, err := credentials.ParseKey(cfg.CredentialsEncryptionKey)
		if err != nil {
			return nil, err
		}
		return credentials.NewDatabaseStore(repository.NewCloudAccountRepository(db), key)
	default:
		return credentials.NewFileStore(cfg.CredentialsDir)
	}
}

// Ping checks the database connection.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the event connection and the database pool.
func (a *App) Close() {
	a.Events.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
