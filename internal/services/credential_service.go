package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/cloud"
	"github.com/instanti8/engine/internal/credentials"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// Verifier checks that stored keys actually authenticate.
type Verifier interface {
	Verify(ctx context.Context, ownerID uuid.UUID) (*credentials.CallerIdentity, error)
}

type CredentialService interface {
	// Configured reports every supported provider, configured or not.
	Configured(ctx context.Context, ownerID uuid.UUID) (map[cloud.Provider]bool, error)
	// Save validates and stores a bundle, replacing any previous one.
	Save(ctx context.Context, ownerID uuid.UUID, provider string, bundle credentials.Bundle) (cloud.Provider, error)
	Delete(ctx context.Context, ownerID uuid.UUID, provider string) (cloud.Provider, error)
	VerifyAWS(ctx context.Context, ownerID uuid.UUID) (*credentials.CallerIdentity, error)
}

type credentialService struct {
	manager  *credentials.Manager
	verifier Verifier
}

func NewCredentialService(manager *credentials.Manager, verifier Verifier) CredentialService {
	return &credentialService{manager: manager, verifier: verifier}
}

var _ CredentialService = (*credentialService)(nil)

func requireOwner(ownerID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	return nil
}

func (s *credentialService) Configured(ctx context.Context, ownerID uuid.UUID) (map[cloud.Provider]bool, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return s.manager.Configured(ctx, ownerID)
}

func (s *credentialService) Save(ctx context.Context, ownerID uuid.UUID, provider string, bundle credentials.Bundle) (cloud.Provider, error) {
	if err := requireOwner(ownerID); err != nil {
		return "", err
	}
	p, err := cloud.Parse(provider)
	if err != nil {
		return "", err
	}
	if err := credentials.Validate(p, bundle); err != nil {
		return "", err
	}
	if err := s.manager.Store().Save(ctx, ownerID, p, bundle); err != nil {
		return "", err
	}
	logger.L().Info("credentials saved", zap.String("owner_id", ownerID.String()), zap.String("provider", p.String()))
	return p, nil
}

func (s *credentialService) Delete(ctx context.Context, ownerID uuid.UUID, provider string) (cloud.Provider, error) {
	if err := requireOwner(ownerID); err != nil {
		return "", err
	}
	p, err := cloud.Parse(provider)
	if err != nil {
		return "", err
	}
	if err := s.manager.Store().Delete(ctx, ownerID, p); err != nil {
		return "", err
	}
	logger.L().Info("credentials deleted", zap.String("owner_id", ownerID.String()), zap.String("provider", p.String()))
	return p, nil
}

func (s *credentialService) VerifyAWS(ctx context.Context, ownerID uuid.UUID) (*credentials.CallerIdentity, error) {
	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if s.verifier == nil {
		return nil, appErr.New(appErr.CodeUnavailable, "credential verification is not configured")
	}
	return s.verifier.Verify(ctx, ownerID)
}
