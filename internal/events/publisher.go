// Package events publica el resultado de cada intento de verificación para otros servicios.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectVerificationCompleted es el subject donde se publican los resultados.
const SubjectVerificationCompleted = "verification.completed"

// VerificationCompleted es el mensaje publicado al terminar un intento.
type VerificationCompleted struct {
	VerificationID string    `json:"verification_id"`
	UserID         string    `json:"user_id"`
	Status         string    `json:"status"`
	Approved       bool      `json:"approved"`
	Similarity     float64   `json:"similarity"`
	Liveness       float64   `json:"liveness"`
	Provider       string    `json:"provider"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher emite eventos de verificación.
type Publisher interface {
	PublishVerificationCompleted(ctx context.Context, evt VerificationCompleted) error
	Close()
}

type natsConn interface {
	Publish(subj string, data []byte) error
	Close()
}

type natsPublisher struct {
	conn   natsConn
	logger *zap.Logger
}

// NewNATSPublisher conecta a NATS y devuelve un Publisher.
func NewNATSPublisher(url string, logger *zap.Logger) (Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("pampapro-api"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("connected to NATS", zap.String("url", url))
	return newPublisher(conn, logger), nil
}

func newPublisher(conn natsConn, logger *zap.Logger) *natsPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &natsPublisher{conn: conn, logger: logger}
}

func (p *natsPublisher) PublishVerificationCompleted(ctx context.Context, evt VerificationCompleted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal verification event: %w", err)
	}
	if err := p.conn.Publish(SubjectVerificationCompleted, data); err != nil {
		p.logger.Error("failed to publish verification event", zap.Error(err), zap.String("verification_id", evt.VerificationID))
		return fmt.Errorf("failed to publish verification event: %w", err)
	}
	p.logger.Debug("verification event published", zap.String("verification_id", evt.VerificationID))
	return nil
}

func (p *natsPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
		p.logger.Info("NATS connection closed")
	}
}

type noopPublisher struct{}

// NewNoopPublisher se usa cuando NATS_URL no está configurado.
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishVerificationCompleted(context.Context, VerificationCompleted) error {
	return nil
}

func (noopPublisher) Close() {}
