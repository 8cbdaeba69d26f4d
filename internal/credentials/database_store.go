package credentials

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/cloud"
	"github.com/instanti8/engine/internal/models"
	"github.com/instanti8/engine/internal/repository"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// DatabaseStore keeps bundles AES-256-GCM encrypted in the cloud_accounts table.
type DatabaseStore struct {
	repo repository.CloudAccountRepository
	key  []byte
}

func NewDatabaseStore(repo repository.CloudAccountRepository, key []byte) (*DatabaseStore, error) {
	if len(key) != 32 {
		return nil, appErr.New(appErr.CodeInvalid, "credentials encryption key must be 32 bytes")
	}
	return &DatabaseStore{repo: repo, key: key}, nil
}

var _ Store = (*DatabaseStore)(nil)

func (s *DatabaseStore) Save(ctx context.Context, ownerID uuid.UUID, p cloud.Provider, b Bundle) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "encode credential bundle failed")
	}
	sealed, err := encrypt(s.key, raw)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "encrypt credential bundle failed")
	}

	fields := make([]string, 0, len(b))
	for k := range b {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	meta, _ := json.Marshal(map[string]any{"fields": fields})

	acct := &models.CloudAccount{
		UserID:      ownerID,
		Provider:    p.String(),
		Credentials: sealed,
		Metadata:    datatypes.JSON(meta),
	}
	if err := s.repo.Replace(ctx, acct); err != nil {
		return err
	}
	logger.L().Info("credentials saved", zap.String("owner_id", ownerID.String()), zap.String("provider", p.String()))
	return nil
}

func (s *DatabaseStore) Get(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) (Bundle, error) {
	acct, err := s.repo.GetByUserAndProvider(ctx, ownerID, p.String())
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.Newf(appErr.CodeNotFound, "no %s credentials configured", p).WithMeta("provider", p.String())
		}
		return nil, err
	}
	raw, err := decrypt(s.key, acct.Credentials)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "decrypt credential bundle failed")
	}
	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "decode credential bundle failed")
	}
	return b, nil
}

func (s *DatabaseStore) Delete(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) error {
	return s.repo.DeleteByUserAndProvider(ctx, ownerID, p.String())
}

func (s *DatabaseStore) Has(ctx context.Context, ownerID uuid.UUID, p cloud.Provider) (bool, error) {
	_, err := s.repo.GetByUserAndProvider(ctx, ownerID, p.String())
	if err == nil {
		return true, nil
	}
	if appErr.IsCode(err, appErr.CodeNotFound) {
		return false, nil
	}
	return false, err
}
