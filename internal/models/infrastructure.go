package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InfrastructureStatus is the deployment state of a generated program.
type InfrastructureStatus string

const (
	StatusGenerated InfrastructureStatus = "generated"
	StatusDeploying InfrastructureStatus = "deploying"
	StatusDeployed  InfrastructureStatus = "deployed"
	StatusFailed    InfrastructureStatus = "failed"
)

// Deployable reports whether a deployment may start from this status.
func (s InfrastructureStatus) Deployable() bool {
	return s == StatusGenerated || s == StatusFailed
}

// Infrastructure is a generated, validated program owned by one user.
type Infrastructure struct {
	ID                uuid.UUID            `gorm:"type:uuid;primaryKey" json:"id"`
	OwnerID           uuid.UUID            `gorm:"type:uuid;index;not null" json:"owner_id"`
	Description       string               `gorm:"type:text;not null" json:"description" validate:"required"`
	Code              string               `gorm:"type:text;not null" json:"code" validate:"required"`
	Status            InfrastructureStatus `gorm:"type:varchar(16);index;not null" json:"status" validate:"required,oneof=generated deploying deployed failed"`
	DeploymentDetails datatypes.JSON       `json:"deployment_details,omitempty"`

	// LeaseID is set while a deployment owns the record.
	LeaseID     *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	ProgressSeq int64      `gorm:"not null;default:0" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate assigns an id and the initial status.
func (i *Infrastructure) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Status == "" {
		i.Status = StatusGenerated
	}
	return nil
}

// Details decodes the deployment details blob. A record that never deployed yields nil.
func (i *Infrastructure) Details() (*DeploymentDetails, error) {
	if len(i.DeploymentDetails) == 0 || string(i.DeploymentDetails) == "null" {
		return nil, nil
	}
	var d DeploymentDetails
	if err := json.Unmarshal(i.DeploymentDetails, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
