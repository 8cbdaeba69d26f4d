package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/instanti8/engine/pkg/logger"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix roots every infrastructure subject.
const SubjectPrefix = "instanti8.infrastructure"

// ProgressSubject is where progress lines for one record are published.
func ProgressSubject(id uuid.UUID) string {
	return fmt.Sprintf("%s.%s.progress", SubjectPrefix, id)
}

// StatusSubject is where status transitions for one record are published.
func StatusSubject(id uuid.UUID) string {
	return fmt.Sprintf("%s.%s.status", SubjectPrefix, id)
}

// Progress is one line of engine output.
type Progress struct {
	InfrastructureID string    `json:"infrastructure_id"`
	Sequence         int64     `json:"sequence"`
	Line             string    `json:"line"`
	Timestamp        time.Time `json:"timestamp"`
}

// Status is a record status transition.
type Status struct {
	InfrastructureID string    `json:"infrastructure_id"`
	Status           string    `json:"status"`
	Provider         string    `json:"provider,omitempty"`
	Message          string    `json:"message,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// Publisher fans deployment events out to subscribers. Publishing is fire and
// forget; a failed publish never affects the deployment.
type Publisher interface {
	Progress(id uuid.UUID, seq int64, line string)
	Status(id uuid.UUID, status, provider, message string)
	Close()
}

// Connect dials NATS. An empty url yields a publisher that drops everything.
func Connect(url string) (Publisher, error) {
	if url == "" {
		return Nop(), nil
	}
	nc, err := nats.Connect(url,
		nats.Name("instanti8-engine"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.L().Info("connected to nats", zap.String("url", nc.ConnectedUrlRedacted()))
	return NewNATSPublisher(nc), nil
}

type natsPublisher struct {
	nc *nats.Conn
}

// NewNATSPublisher publishes on an existing connection and owns it.
func NewNATSPublisher(nc *nats.Conn) Publisher {
	return &natsPublisher{nc: nc}
}

func (p *natsPublisher) Progress(id uuid.UUID, seq int64, line string) {
	p.publish(ProgressSubject(id), Progress{
		InfrastructureID: id.String(),
		Sequence:         seq,
		Line:             line,
		Timestamp:        time.Now().UTC(),
	})
}

func (p *natsPublisher) Status(id uuid.UUID, status, provider, message string) {
	p.publish(StatusSubject(id), Status{
		InfrastructureID: id.String(),
		Status:           status,
		Provider:         provider,
		Message:          message,
		Timestamp:        time.Now().UTC(),
	})
}

func (p *natsPublisher) publish(subject string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.L().Warn("encode event failed", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := p.nc.Publish(subject, b); err != nil {
		logger.L().Warn("publish event failed", zap.String("subject", subject), zap.Error(err))
	}
}

func (p *natsPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

type nop struct{}

// Nop returns a Publisher that discards events.
func Nop() Publisher { return nop{} }

func (nop) Progress(uuid.UUID, int64, string)        {}
func (nop) Status(uuid.UUID, string, string, string) {}
func (nop) Close()                                   {}
