package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/models"
	appErr "github.com/instanti8/engine/pkg/errors"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InfrastructureRepository persists records. Status changes only go through the
// lease operations so concurrent deployments of one record cannot interleave.
type InfrastructureRepository interface {
	BaseRepository[models.Infrastructure]
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Infrastructure, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Infrastructure, error)

	// AcquireLease moves a generated or failed record to deploying. Conflict if the
	// record is already deploying, deployed, or owned by someone else.
	AcquireLease(ctx context.Context, id, ownerID, leaseID uuid.UUID, details datatypes.JSON) error
	// SaveProgress writes a snapshot only if seq is newer than the stored one and
	// the lease is still held. Returns false when the write was discarded.
	SaveProgress(ctx context.Context, id, leaseID uuid.UUID, seq int64, details datatypes.JSON) (bool, error)
	// Complete marks the record deployed and releases the lease.
	Complete(ctx context.Context, id, leaseID uuid.UUID, details datatypes.JSON) error
	// Fail marks the record failed. A nil lease only applies to idle records.
	Fail(ctx context.Context, id uuid.UUID, leaseID *uuid.UUID, details datatypes.JSON) error
}

type infrastructureRepository struct {
	BaseRepository[models.Infrastructure]
	db *gorm.DB
}

func NewInfrastructureRepository(db *gorm.DB) InfrastructureRepository {
	return &infrastructureRepository{BaseRepository: NewBaseRepository[models.Infrastructure](db), db: db}
}

var idleStatuses = []string{string(models.StatusGenerated), string(models.StatusFailed)}

func (r *infrastructureRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Infrastructure, error) {
	var out []models.Infrastructure
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list infrastructures failed")
	}
	return out, nil
}

func (r *infrastructureRepository) GetByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Infrastructure, error) {
	var rec models.Infrastructure
	err := r.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "infrastructure not found")
		}
		return nil, appErr.Wrap(err, appErr.CodeInternal, "get infrastructure failed")
	}
	return &rec, nil
}

func (r *infrastructureRepository) AcquireLease(ctx context.Context, id, ownerID, leaseID uuid.UUID, details datatypes.JSON) error {
	res := r.db.WithContext(ctx).Model(&models.Infrastructure{}).
		Where("id = ? AND owner_id = ? AND status IN ?", id, ownerID, idleStatuses).
		Updates(map[string]any{
			"status":             string(models.StatusDeploying),
			"lease_id":           leaseID,
			"progress_seq":       0,
			"deployment_details": details,
		})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "acquire deployment lease failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "infrastructure is not in a deployable state").WithMeta("infrastructure_id", id.String())
	}
	return nil
}

func (r *infrastructureRepository) SaveProgress(ctx context.Context, id, leaseID uuid.UUID, seq int64, details datatypes.JSON) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Infrastructure{}).
		Where("id = ? AND lease_id = ? AND status = ? AND progress_seq < ?", id, leaseID, string(models.StatusDeploying), seq).
		Updates(map[string]any{
			"progress_seq":       seq,
			"deployment_details": details,
		})
	if res.Error != nil {
		return false, appErr.Wrap(res.Error, appErr.CodeInternal, "save deployment progress failed")
	}
	return res.RowsAffected > 0, nil
}

func (r *infrastructureRepository) Complete(ctx context.Context, id, leaseID uuid.UUID, details datatypes.JSON) error {
	return r.release(ctx, id, &leaseID, models.StatusDeployed, details)
}

func (r *infrastructureRepository) Fail(ctx context.Context, id uuid.UUID, leaseID *uuid.UUID, details datatypes.JSON) error {
	return r.release(ctx, id, leaseID, models.StatusFailed, details)
}

func (r *infrastructureRepository) release(ctx context.Context, id uuid.UUID, leaseID *uuid.UUID, status models.InfrastructureStatus, details datatypes.JSON) error {
	q := r.db.WithContext(ctx).Model(&models.Infrastructure{}).Where("id = ?", id)
	if leaseID != nil {
		q = q.Where("lease_id = ? AND status = ?", *leaseID, string(models.StatusDeploying))
	} else {
		q = q.Where("lease_id IS NULL AND status IN ?", idleStatuses)
	}
	res := q.Updates(map[string]any{
		"status":             string(status),
		"lease_id":           nil,
		"deployment_details": details,
	})
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update infrastructure status failed")
	}
	if res.RowsAffected == 0 {
		return appErr.New(appErr.CodeConflict, "deployment lease no longer held").WithMeta("infrastructure_id", id.String())
	}
	return nil
}
