package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/cloud"
	"github.com/instanti8/engine/internal/credentials"
	"github.com/instanti8/engine/internal/events"
	"github.com/instanti8/engine/internal/metrics"
	"github.com/instanti8/engine/internal/models"
	"github.com/instanti8/engine/internal/provisioner"
	"github.com/instanti8/engine/internal/repository"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"github.com/instanti8/engine/pkg/utils"
	"go.uber.org/zap"
)

// DeployResult is what a caller sees after a successful deployment.
type DeployResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Outputs map[string]any `json:"outputs"`
}

// Enqueuer hands a deployment to the background worker.
type Enqueuer interface {
	EnqueueDeploy(ctx context.Context, id, ownerID uuid.UUID) error
}

type DeploymentService interface {
	// Deploy runs the program of one record to completion. Every failure after
	// the lease is acquired leaves the record failed with an error payload.
	Deploy(ctx context.Context, id, ownerID uuid.UUID) (*DeployResult, error)
	// Enqueue checks the request and schedules Deploy on the worker.
	Enqueue(ctx context.Context, id, ownerID uuid.UUID) error
}

// DeploymentOptions are the orchestrator's tunables.
type DeploymentOptions struct {
	StackName string
	Timeout   time.Duration
}

type deploymentService struct {
	repo        repository.InfrastructureRepository
	validator   Validator
	creds       *credentials.Manager
	provisioner provisioner.Provisioner
	events      events.Publisher
	metrics     *metrics.Metrics
	enqueuer    Enqueuer
	opts        DeploymentOptions
}

func NewDeploymentService(
	repo repository.InfrastructureRepository,
	val Validator,
	creds *credentials.Manager,
	prov provisioner.Provisioner,
	pub events.Publisher,
	m *metrics.Metrics,
	enq Enqueuer,
	opts DeploymentOptions,
) DeploymentService {
	if pub == nil {
		pub = events.Nop()
	}
	if opts.StackName == "" {
		opts.StackName = "auto-generated"
	}
	return &deploymentService{
		repo:        repo,
		validator:   val,
		creds:       creds,
		provisioner: prov,
		events:      pub,
		metrics:     m,
		enqueuer:    enq,
		opts:        opts,
	}
}

var _ DeploymentService = (*deploymentService)(nil)

const (
	deployedMessage    = "Infrastructure deployed successfully"
	statusWriteTimeout = 10 * time.Second
)

// ProjectName is the engine project namespace of one owner's record.
func ProjectName(ownerID, id uuid.UUID) string {
	return fmt.Sprintf("user-%s-infra-%s", ownerID, id)
}

func (s *deploymentService) load(ctx context.Context, id, ownerID uuid.UUID) (*models.Infrastructure, error) {
	if ownerID == uuid.Nil {
		return nil, appErr.New(appErr.CodeUnauthorized, "authentication required")
	}
	var rec models.Infrastructure
	if err := s.repo.GetByID(ctx, id, &rec); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeNotFound, "infrastructure not found")
		}
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, appErr.New(appErr.CodeForbidden, "infrastructure belongs to another user")
	}
	return &rec, nil
}

func (s *deploymentService) Enqueue(ctx context.Context, id, ownerID uuid.UUID) error {
	rec, err := s.load(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if !rec.Status.Deployable() {
		return appErr.Newf(appErr.CodeConflict, "infrastructure is %s", rec.Status)
	}
	if s.enqueuer == nil {
		return appErr.New(appErr.CodeUnavailable, "background deployments are not configured")
	}
	if err := s.enqueuer.EnqueueDeploy(ctx, id, ownerID); err != nil {
		return appErr.Wrap(err, appErr.CodeUnavailable, "enqueue deployment failed")
	}
	logger.L().Info("deployment enqueued", zap.String("infrastructure_id", id.String()), zap.String("owner_id", ownerID.String()))
	return nil
}

func (s *deploymentService) Deploy(ctx context.Context, id, ownerID uuid.UUID) (*DeployResult, error) {
	rec, err := s.load(ctx, id, ownerID)
	if err != nil {
		return nil, err
	}
	log := logger.L().With(
		zap.String("infrastructure_id", id.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("program", utils.ProgramDigest(rec.Code)),
	)
	if !rec.Status.Deployable() {
		return nil, appErr.Newf(appErr.CodeConflict, "infrastructure is %s", rec.Status)
	}

	if outcome := s.validator.Validate(ctx, rec.Code); !outcome.Valid {
		verr := appErr.Newf(appErr.CodeValidationFailed, "stored code failed validation: %s", outcome.Reason)
		s.fail(ctx, log, id, nil, "", verr)
		return nil, verr
	}

	provider := cloud.Infer(rec.Description)
	log = log.With(zap.String("provider", provider.String()))

	lease := uuid.New()
	start := time.Now().UTC()
	started := models.InProgressDetails(provider.String(), "Deployment started", 0, start, start)
	if err := s.repo.AcquireLease(ctx, id, ownerID, lease, started.JSON()); err != nil {
		return nil, err
	}
	s.metrics.DeploymentStarted()
	s.events.Status(id, string(models.StatusDeploying), provider.String(), "")
	log.Info("deployment started", zap.String("lease_id", lease.String()))

	res, err := s.run(ctx, log, rec, lease, provider, start)
	if err != nil {
		s.fail(ctx, log, id, &lease, provider, err)
		s.metrics.DeploymentFinished(provider.String(), string(models.StatusFailed), time.Since(start))
		return nil, err
	}

	end := time.Now().UTC()
	result := &models.DeployResult{
		Summary:  res.Summary,
		Changes:  res.Changes,
		Duration: res.Duration.String(),
		Stdout:   res.Stdout,
	}
	done := models.SuccessDetails(provider.String(), result, res.Outputs, start, end)
	// The engine already applied the changes; the terminal write must not
	// depend on the caller still waiting.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	err = s.repo.Complete(wctx, id, lease, done.JSON())
	cancel()
	if err != nil {
		cerr := appErr.Wrap(err, appErr.CodeDeploymentFailed, "record deployed state failed")
		s.fail(ctx, log, id, &lease, provider, cerr)
		s.metrics.DeploymentFinished(provider.String(), string(models.StatusFailed), time.Since(start))
		return nil, cerr
	}
	s.metrics.DeploymentFinished(provider.String(), string(models.StatusDeployed), end.Sub(start))
	s.events.Status(id, string(models.StatusDeployed), provider.String(), "")
	log.Info("deployment succeeded", zap.Duration("duration", end.Sub(start)), zap.Int("outputs", len(res.Outputs)))

	outputs := res.Outputs
	if outputs == nil {
		outputs = map[string]any{}
	}
	return &DeployResult{Success: true, Message: deployedMessage, Outputs: outputs}, nil
}

func (s *deploymentService) run(ctx context.Context, log *zap.Logger, rec *models.Infrastructure, lease uuid.UUID, provider cloud.Provider, start time.Time) (*provisioner.Result, error) {
	env, err := s.creds.Materialize(ctx, rec.OwnerID, provider)
	if err != nil {
		return nil, err
	}
	defer env.Release()

	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	progress := s.progress(ctx, log, rec.ID, lease, provider, start)
	spec := &provisioner.Spec{
		ProjectName: ProjectName(rec.OwnerID, rec.ID),
		StackName:   s.opts.StackName,
		Description: rec.Description,
		Program:     rec.Code,
		Env:         env.Vars,
	}
	res, err := s.provisioner.Apply(ctx, spec, progress)
	progress.Flush()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, appErr.Wrap(err, appErr.CodeDeploymentFailed, fmt.Sprintf("deployment timed out after %s", s.opts.Timeout))
		}
		return nil, appErr.Wrap(err, appErr.CodeDeploymentFailed, "deployment failed")
	}
	if res == nil {
		res = &provisioner.Result{Success: true}
	}
	return res, nil
}

// progress persists each engine line as an in_progress snapshot. Writes are
// serialized here and guarded by sequence in the store, so a stale snapshot
// never overwrites a newer one. Failures are logged and never abort the run.
func (s *deploymentService) progress(ctx context.Context, log *zap.Logger, id, lease uuid.UUID, provider cloud.Provider, start time.Time) *lineWriter {
	var (
		mu  sync.Mutex
		seq int64
	)
	return newLineWriter(func(line string) {
		mu.Lock()
		defer mu.Unlock()
		seq++
		s.events.Progress(id, seq, line)

		snap := models.InProgressDetails(provider.String(), line, seq, start, time.Now().UTC())
		saved, err := s.repo.SaveProgress(ctx, id, lease, seq, snap.JSON())
		switch {
		case err != nil:
			s.metrics.RecordProgress("error")
			log.Warn("persist deployment progress failed", zap.Int64("seq", seq), zap.Error(err))
		case !saved:
			s.metrics.RecordProgress("stale")
			log.Debug("deployment progress discarded", zap.Int64("seq", seq))
		default:
			s.metrics.RecordProgress("saved")
		}
	})
}

// fail records the error on the record. A nil lease only touches idle records.
// The write is best-effort; its own failure is logged and dropped.
func (s *deploymentService) fail(ctx context.Context, log *zap.Logger, id uuid.UUID, lease *uuid.UUID, provider cloud.Provider, cause error) {
	msg := cause.Error()
	var ae *appErr.AppError
	if errors.As(cause, &ae) {
		msg = ae.Message
		if ae.Err != nil {
			msg = ae.Message + ": " + ae.Err.Error()
		}
	}
	// The caller's context may be the reason we are failing.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()

	details := models.ErrorDetails(provider.String(), msg, time.Now().UTC())
	if err := s.repo.Fail(wctx, id, lease, details.JSON()); err != nil {
		log.Warn("record failed state failed", zap.Error(err), zap.NamedError("cause", cause))
	}
	s.events.Status(id, string(models.StatusFailed), provider.String(), msg)
	log.Error("deployment failed", zap.Error(cause))
}
