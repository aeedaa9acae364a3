package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/lead-distributor/utils"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventMeta describes an emitted event
type EventMeta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
	Time          time.Time `json:"time"`
}

// EventEnvelope is the wire format of every published event
type EventEnvelope struct {
	Meta EventMeta `json:"meta"`
	Data any       `json:"data"`
}

// LeadAssignedEvent is the payload of leads.assigned.v1
type LeadAssignedEvent struct {
	AssignmentID string    `json:"assignment_id"`
	TenantID     string    `json:"tenant_id"`
	LeadID       string    `json:"lead_id"`
	VendorID     string    `json:"vendor_id"`
	PipelineID   string    `json:"pipeline_id"`
	StageID      string    `json:"stage_id"`
	Origin       *string   `json:"origin,omitempty"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// EventPublisher publishes domain events
type EventPublisher interface {
	PublishLeadAssigned(ctx context.Context, event LeadAssignedEvent) error
	Close() error
}

// RabbitEventPublisher publishes events to a RabbitMQ topic exchange with publisher confirms
type RabbitEventPublisher struct {
	conn       *amqp.Connection
	exchange   string
	routingKey string
	producer   string
	logger     *log.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewRabbitEventPublisher dials RabbitMQ and declares the exchange
func NewRabbitEventPublisher(url, exchange, routingKey, producer string, logger *log.Logger) (*RabbitEventPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	if routingKey == "" {
		routingKey = utils.LeadsAssignedEventType
	}

	return &RabbitEventPublisher{
		conn:       conn,
		exchange:   exchange,
		routingKey: routingKey,
		producer:   producer,
		logger:     logger,
		ch:         ch,
	}, nil
}

// PublishLeadAssigned publishes a leads.assigned.v1 event and waits for the broker confirm
func (p *RabbitEventPublisher) PublishLeadAssigned(ctx context.Context, event LeadAssignedEvent) error {
	envelope := EventEnvelope{
		Meta: EventMeta{
			ID:       uuid.NewString(),
			Type:     utils.LeadsAssignedEventType,
			Producer: p.producer,
			Time:     utils.UTCNow(),
		},
		Data: event,
	}
	if requestID, ok := ctx.Value(utils.RequestIDKey).(string); ok && requestID != "" {
		envelope.Meta.CorrelationID = &requestID
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	confirmation, err := p.ch.PublishWithDeferredConfirmWithContext(
		ctx, p.exchange, p.routingKey, false, false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     envelope.Meta.ID,
			CorrelationId: event.AssignmentID,
			Timestamp:     envelope.Meta.Time,
			Type:          envelope.Meta.Type,
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", envelope.Meta.Type, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("failed waiting for broker confirm: %w", err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s %s", envelope.Meta.Type, envelope.Meta.ID)
	}
	return nil
}

// Close closes the channel and the connection
func (p *RabbitEventPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && p.logger != nil {
			p.logger.Printf("Failed to close rabbitmq channel: %v", err)
		}
	}
	return p.conn.Close()
}

// NoopEventPublisher drops every event; used when RabbitMQ is disabled
type NoopEventPublisher struct{}

func (NoopEventPublisher) PublishLeadAssigned(ctx context.Context, event LeadAssignedEvent) error {
	return nil
}

func (NoopEventPublisher) Close() error { return nil }
