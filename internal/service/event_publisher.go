package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// CheckedEvent is published after a teacher manually checks a submission.
type CheckedEvent struct {
	Kind         string    `json:"kind"`
	SubmissionID uint      `json:"submission_id"`
	TestID       uint      `json:"test_id,omitempty"`
	TeacherID    uint      `json:"teacher_id"`
	Score        float64   `json:"score"`
	CheckedAt    time.Time `json:"checked_at"`
}

// EventPublisher emits panel events to downstream consumers.
type EventPublisher interface {
	PublishChecked(ctx context.Context, event CheckedEvent) error
}

// messagePublisher is the subset of *nats.Conn the publisher needs.
type messagePublisher interface {
	Publish(subject string, data []byte) error
}

type natsEventPublisher struct {
	conn    messagePublisher
	subject string
	logger  zerolog.Logger
}

// NewEventPublisher publishes to subject over conn. A nil connection or empty subject
// yields a publisher that drops events.
func NewEventPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) EventPublisher {
	if conn == nil {
		return newEventPublisher(nil, subject, logger)
	}
	return newEventPublisher(conn, subject, logger)
}

func newEventPublisher(conn messagePublisher, subject string, logger zerolog.Logger) EventPublisher {
	return &natsEventPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsEventPublisher) PublishChecked(ctx context.Context, event CheckedEvent) error {
	if p.conn == nil || p.subject == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Str("subject", p.subject).Msg("failed to publish checked event")
		return err
	}
	return nil
}

// publish emits the event without failing the caller's operation.
func publish(ctx context.Context, events EventPublisher, logger zerolog.Logger, event CheckedEvent) {
	if events == nil {
		return
	}
	if err := events.PublishChecked(ctx, event); err != nil {
		logger.Warn().Err(err).Uint("submission_id", event.SubmissionID).Msg("checked event not delivered")
	}
}
