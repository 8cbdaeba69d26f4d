package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/models"
	appErr "github.com/instanti8/engine/pkg/errors"
	"gorm.io/gorm"
)

type CloudAccountRepository interface {
	GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*models.CloudAccount, error)
	// Replace stores acct as the only account for its (user, provider).
	Replace(ctx context.Context, acct *models.CloudAccount) error
	DeleteByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) error
	ListProviders(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type cloudAccountRepository struct {
	db *gorm.DB
}

func NewCloudAccountRepository(db *gorm.DB) CloudAccountRepository {
	return &cloudAccountRepository{db: db}
}

func (r *cloudAccountRepository) GetByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) (*models.CloudAccount, error) {
	var acct models.CloudAccount
	err := r.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&acct).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "cloud account not found")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get cloud account failed")
	}
	return &acct, nil
}

func (r *cloudAccountRepository) Replace(ctx context.Context, acct *models.CloudAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND provider = ?", acct.UserID, acct.Provider).Delete(&models.CloudAccount{}).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "replace cloud account failed")
		}
		if err := tx.Create(acct).Error; err != nil {
			return wrapWriteErr(err, "replace cloud account failed")
		}
		return nil
	})
}

func (r *cloudAccountRepository) DeleteByUserAndProvider(ctx context.Context, userID uuid.UUID, provider string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).Delete(&models.CloudAccount{}).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "delete cloud account failed")
	}
	return nil
}

func (r *cloudAccountRepository) ListProviders(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var out []string
	if err := r.db.WithContext(ctx).Model(&models.CloudAccount{}).Where("user_id = ?", userID).Pluck("provider", &out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list cloud accounts failed")
	}
	return out, nil
}
