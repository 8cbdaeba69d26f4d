package types

import (
	"time"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/models"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
	Total     int64  `json:"total,omitempty"`
}

// Infrastructure is the public view of a record.
type Infrastructure struct {
	ID          uuid.UUID `json:"id"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Status      string    `json:"status"`
}

func NewInfrastructure(rec *models.Infrastructure) Infrastructure {
	return Infrastructure{ID: rec.ID, Description: rec.Description, Code: rec.Code, Status: string(rec.Status)}
}

// Deployment is the latest persisted deployment state of a record.
type Deployment struct {
	ID        uuid.UUID                 `json:"id"`
	Status    string                    `json:"status"`
	Details   *models.DeploymentDetails `json:"deploymentDetails"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// Deploy mirrors services.DeployResult at the top level of the body.
type Deploy struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Outputs map[string]any `json:"outputs"`
}

type Accepted struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

type ProviderAck struct {
	Success  bool   `json:"success"`
	Provider string `json:"provider"`
}
