package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/instanti8/engine/internal/services"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// TypeDeploy is the asynq task type for background deployments.
const TypeDeploy = "infrastructure:deploy"

// DeployPayload is the task payload for deploy tasks.
type DeployPayload struct {
	InfrastructureID string `json:"infrastructure_id"`
	OwnerID          string `json:"owner_id"`
}

// NewDeployTask builds a deploy task. Deployments are not retried by the
// queue; a failed run leaves the record failed and the user redeploys.
// Task ids are unique per attempt because asynq keeps archived tasks under
// their id; exclusivity per record comes from the deployment lease.
func NewDeployTask(id, ownerID uuid.UUID, timeout time.Duration) (*asynq.Task, error) {
	b, err := json.Marshal(DeployPayload{InfrastructureID: id.String(), OwnerID: ownerID.String()})
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.MaxRetry(0), asynq.TaskID(DeployTaskID(id))}
	if timeout > 0 {
		// Leave room for validation and the final status write.
		opts = append(opts, asynq.Timeout(timeout+10*time.Minute))
	}
	return asynq.NewTask(TypeDeploy, b, opts...), nil
}

// DeployTaskID returns a fresh task id for one deploy attempt of a record.
func DeployTaskID(id uuid.UUID) string {
	return "deploy:" + id.String() + ":" + uuid.NewString()
}

// Enqueuer schedules deploy tasks on asynq.
type Enqueuer struct {
	client  *asynq.Client
	timeout time.Duration
}

func NewEnqueuer(client *asynq.Client, deployTimeout time.Duration) *Enqueuer {
	return &Enqueuer{client: client, timeout: deployTimeout}
}

var _ services.Enqueuer = (*Enqueuer)(nil)

func (e *Enqueuer) EnqueueDeploy(ctx context.Context, id, ownerID uuid.UUID) error {
	task, err := NewDeployTask(id, ownerID, e.timeout)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return err
	}
	logger.L().Info("deploy task enqueued", zap.String("infrastructure_id", id.String()), zap.String("task_id", info.ID), zap.String("queue", info.Queue))
	return nil
}

// DeployTaskHandler runs queued deployments through the orchestrator.
type DeployTaskHandler struct {
	deploySvc services.DeploymentService
}

func NewDeployTaskHandler(deploySvc services.DeploymentService) *DeployTaskHandler {
	return &DeployTaskHandler{deploySvc: deploySvc}
}

func (h *DeployTaskHandler) HandleDeploy(ctx context.Context, t *asynq.Task) error {
	var p DeployPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		logger.L().Error("invalid deploy task payload", zap.Error(err))
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := uuid.Parse(p.InfrastructureID)
	if err != nil {
		logger.L().Error("invalid infrastructure id in task", zap.Error(err))
		return fmt.Errorf("infrastructure id: %v: %w", err, asynq.SkipRetry)
	}
	ownerID, err := uuid.Parse(p.OwnerID)
	if err != nil {
		logger.L().Error("invalid owner id in task", zap.Error(err))
		return fmt.Errorf("owner id: %v: %w", err, asynq.SkipRetry)
	}

	logger.L().Info("handling deploy task", zap.String("infrastructure_id", id.String()))
	res, err := h.deploySvc.Deploy(ctx, id, ownerID)
	if err != nil {
		// The record already carries the failure; nothing to retry.
		return fmt.Errorf("deploy %s: %v: %w", id, err, asynq.SkipRetry)
	}
	logger.L().Info("deploy task completed", zap.String("infrastructure_id", id.String()), zap.Int("outputs", len(res.Outputs)))
	return nil
}

// Register installs the task handlers on mux.
func (h *DeployTaskHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeDeploy, h.HandleDeploy)
}
