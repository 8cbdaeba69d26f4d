package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CloudAccount stores one encrypted provider credential bundle for a user.
type CloudAccount struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_cloud_accounts_user_provider" json:"user_id" validate:"required"`
	Provider    string         `gorm:"type:varchar(32);not null;uniqueIndex:idx_cloud_accounts_user_provider" json:"provider" validate:"required,oneof=aws gcp azure"`
	Credentials []byte         `gorm:"not null" json:"-"`
	Metadata    datatypes.JSON `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (a *CloudAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
