package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/models"
	"github.com/instanti8/engine/internal/repository"
	"github.com/instanti8/engine/internal/sandbox"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"github.com/instanti8/engine/pkg/utils"
	"go.uber.org/zap"
)

// Generator turns a prompt into program text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Validator dry-runs program text.
type Validator interface {
	Validate(ctx context.Context, code string) sandbox.Outcome
}

type InfrastructureService interface {
	// Generate creates a record only once the generated program passed validation.
	Generate(ctx context.Context, ownerID uuid.UUID, prompt string) (*models.Infrastructure, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]models.Infrastructure, error)
	Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Infrastructure, error)
	// Analyze runs the advisory static scan over a stored program.
	Analyze(ctx context.Context, id, ownerID uuid.UUID) (*sandbox.Report, error)
}

type infrastructureService struct {
	repo      repository.InfrastructureRepository
	generator Generator
	validator Validator
}

func NewInfrastructureService(repo repository.InfrastructureRepository, gen Generator, val Validator) InfrastructureService {
	return &infrastructureService{repo: repo, generator: gen, validator: val}
}

var _ InfrastructureService = (*infrastructureService)(nil)

func (s *infrastructureService) Generate(ctx context.Context, ownerID uuid.UUID, prompt string) (*models.Infrastructure, error) {
	if ownerID == uuid.Nil {
		return nil, appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, appErr.New(appErr.CodeInvalid, "prompt is required")
	}
	logger.L().Info("generate infrastructure", zap.String("owner_id", ownerID.String()), zap.Int("prompt_len", len(prompt)))

	code, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	outcome := s.validator.Validate(ctx, code)
	if !outcome.Valid {
		return nil, appErr.Newf(appErr.CodeValidationFailed, "generated code failed validation: %s", outcome.Reason).
			WithMeta("program", utils.ProgramDigest(code))
	}

	rec := &models.Infrastructure{
		OwnerID:     ownerID,
		Description: prompt,
		Code:        code,
		Status:      models.StatusGenerated,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	logger.L().Info("infrastructure generated",
		zap.String("infrastructure_id", rec.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("program", utils.ProgramDigest(code)),
	)
	return rec, nil
}

func (s *infrastructureService) List(ctx context.Context, ownerID uuid.UUID) ([]models.Infrastructure, error) {
	if ownerID == uuid.Nil {
		return nil, appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *infrastructureService) Get(ctx context.Context, id, ownerID uuid.UUID) (*models.Infrastructure, error) {
	if ownerID == uuid.Nil {
		return nil, appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	return s.repo.GetByIDAndOwner(ctx, id, ownerID)
}

func (s *infrastructureService) Analyze(ctx context.Context, id, ownerID uuid.UUID) (*sandbox.Report, error) {
	rec, err := s.Get(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	r := sandbox.Analyze(rec.Code)
	return &r, nil
}
