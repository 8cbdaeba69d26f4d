//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/models"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("instanti8"),
		tcpostgres.WithUsername("instanti8"),
		tcpostgres.WithPassword("instanti8"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(ctr) })

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func TestPostgresLeaseAndUniqueAccount(t *testing.T) {
	db := newPostgresDB(t)
	ctx := context.Background()
	owner := uuid.New()

	infra := NewInfrastructureRepository(db)
	rec := &models.Infrastructure{OwnerID: owner, Description: "azure storage", Code: "export const x = 1;"}
	require.NoError(t, infra.Create(ctx, rec))

	lease := uuid.New()
	require.NoError(t, infra.AcquireLease(ctx, rec.ID, owner, lease, nil))
	assert.True(t, appErr.IsCode(infra.AcquireLease(ctx, rec.ID, owner, uuid.New(), nil), appErr.CodeConflict))

	ok, err := infra.SaveProgress(ctx, rec.ID, lease, 1, models.DeploymentDetails{Status: models.DetailsInProgress, Log: "step"}.JSON())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, infra.Complete(ctx, rec.ID, lease, nil))

	accounts := NewCloudAccountRepository(db)
	require.NoError(t, accounts.Replace(ctx, &models.CloudAccount{UserID: owner, Provider: "azure", Credentials: []byte("a")}))

	dup := &models.CloudAccount{UserID: owner, Provider: "azure", Credentials: []byte("b")}
	err = db.WithContext(ctx).Create(dup).Error
	require.Error(t, err)
	assert.True(t, appErr.IsCode(wrapWriteErr(err, "insert"), appErr.CodeConflict))
}
