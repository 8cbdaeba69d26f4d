package credentials

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/instanti8/engine/internal/cloud"
	appErr "github.com/instanti8/engine/pkg/errors"
)

// Bundle is a provider-specific set of secret fields as submitted by the user.
type Bundle map[string]any

// AWSBundle is the typed view of an aws bundle.
type AWSBundle struct {
	AccessKeyID     string `json:"accessKeyId" validate:"required"`
	SecretAccessKey string `json:"secretAccessKey" validate:"required"`
	Region          string `json:"region"`
}

// AzureBundle is the typed view of an azure service principal.
type AzureBundle struct {
	TenantID       string `json:"tenantId" validate:"required"`
	ClientID       string `json:"clientId" validate:"required"`
	ClientSecret   string `json:"clientSecret" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

// GCPBundle accepts either a service account key inline or wrapped as a JSON
// string under "credentials".
type GCPBundle struct {
	Credentials string `json:"credentials" validate:"omitempty,json"`
	ProjectID   string `json:"projectId"`
	Type        string `json:"type"`
	ClientEmail string `json:"client_email" validate:"required_without=Credentials,omitempty,email"`
	PrivateKey  string `json:"private_key" validate:"required_without=Credentials"`
	KeyProject  string `json:"project_id"`
}

// Project returns the project id from whichever field carries it.
func (g GCPBundle) Project() string {
	if g.ProjectID != "" {
		return g.ProjectID
	}
	if g.KeyProject != "" {
		return g.KeyProject
	}
	if g.Credentials != "" {
		var inner struct {
			ProjectID string `json:"project_id"`
		}
		if json.Unmarshal([]byte(g.Credentials), &inner) == nil {
			return inner.ProjectID
		}
	}
	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decode copies the bundle into a typed view.
func (b Bundle) Decode(dest any) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "credential bundle is not serializable")
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "credential bundle has unexpected field types")
	}
	return nil
}

// Validate checks that the bundle carries the fields the provider needs.
func Validate(p cloud.Provider, b Bundle) error {
	if len(b) == 0 {
		return appErr.New(appErr.CodeInvalid, "credential bundle is empty")
	}
	var view any
	switch p {
	case cloud.AWS:
		view = &AWSBundle{}
	case cloud.Azure:
		view = &AzureBundle{}
	case cloud.GCP:
		view = &GCPBundle{}
	default:
		return appErr.Newf(appErr.CodeUnsupportedProvider, "unsupported provider %q", p)
	}
	if err := b.Decode(view); err != nil {
		return err
	}
	if err := validate.Struct(view); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid "+p.String()+" credentials")
	}
	return nil
}
