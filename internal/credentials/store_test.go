package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/cloud"
	"github.com/instanti8/engine/internal/models"
	"github.com/instanti8/engine/internal/repository"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var awsBundle = Bundle{"accessKeyId": "AKIATEST", "secretAccessKey": "secret", "region": "eu-west-1"}

func TestFileStoreLayoutAndPermissions(t *testing.T) {
	root := filepath.Join(t.TempDir(), "credentials")
	store, err := NewFileStore(root)
	require.NoError(t, err)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, store.Save(ctx, owner, cloud.AWS, awsBundle))

	dirInfo, err := os.Stat(filepath.Join(root, owner.String()))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

	fileInfo, err := os.Stat(filepath.Join(root, owner.String(), "aws.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fileInfo.Mode().Perm())

	entries, err := os.ReadDir(filepath.Join(root, owner.String()))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not linger")
}

func TestFileStoreOverwriteNotMerge(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, store.Save(ctx, owner, cloud.AWS, awsBundle))
	require.NoError(t, store.Save(ctx, owner, cloud.AWS, Bundle{"accessKeyId": "AKIANEW", "secretAccessKey": "s2"}))

	got, err := store.Get(ctx, owner, cloud.AWS)
	require.NoError(t, err)
	assert.Equal(t, "AKIANEW", got["accessKeyId"])
	_, hasRegion := got["region"]
	assert.False(t, hasRegion)
}

func TestFileStoreAbsenceAndDelete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	owner := uuid.New()

	_, err = store.Get(ctx, owner, cloud.Azure)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	ok, err := store.Has(ctx, owner, cloud.Azure)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, owner, cloud.Azure))

	require.NoError(t, store.Save(ctx, owner, cloud.AWS, awsBundle))
	ok, err = store.Has(ctx, owner, cloud.AWS)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, owner, cloud.AWS))
	ok, err = store.Has(ctx, owner, cloud.AWS)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreIsolatesOwners(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, uuid.New(), cloud.AWS, awsBundle))
	ok, err := store.Has(ctx, uuid.New(), cloud.AWS)
	require.NoError(t, err)
	assert.False(t, ok)
}

func newDatabaseStore(t *testing.T) *DatabaseStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.CloudAccount{}))

	key, err := ParseKey("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	store, err := NewDatabaseStore(repository.NewCloudAccountRepository(db), key)
	require.NoError(t, err)
	return store
}

func TestDatabaseStoreEncryptsAtRest(t *testing.T) {
	store := newDatabaseStore(t)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, store.Save(ctx, owner, cloud.AWS, awsBundle))

	acct, err := store.repo.GetByUserAndProvider(ctx, owner, "aws")
	require.NoError(t, err)
	assert.NotContains(t, string(acct.Credentials), "AKIATEST")

	got, err := store.Get(ctx, owner, cloud.AWS)
	require.NoError(t, err)
	assert.Equal(t, "AKIATEST", got["accessKeyId"])

	ok, err := store.Has(ctx, owner, cloud.GCP)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Delete(ctx, owner, cloud.AWS))
	_, err = store.Get(ctx, owner, cloud.AWS)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestParseKey(t *testing.T) {
	_, err := ParseKey("short")
	assert.Error(t, err)

	k, err := ParseKey("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	require.NoError(t, err)
	assert.Len(t, k, 32)

	k, err = ParseKey("000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")
	require.NoError(t, err)
	assert.Equal(t, byte(0x1f), k[31])
}

func TestEncryptDecrypt(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	sealed, err := encrypt(key, []byte("payload"))
	require.NoError(t, err)
	plain, err := decrypt(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = decrypt(key, sealed)
	assert.Error(t, err)
}
