// Package publisher announces confirmed ledger writes to other services.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// Routing keys of the events published after a confirmed write.
const (
	ProjectCreated    = "project.created"
	MilestoneCreated  = "milestone.created"
	MilestoneFunded   = "milestone.funded"
	ProposalSubmitted = "proposal.submitted"
	ProposalAccepted  = "proposal.accepted"
	ReviewCreated     = "review.created"
)

const defaultExchange = "gigledger.events"

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("publisher closed")

// Event is the envelope of every published message.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	TxHash     string    `json:"tx_hash"`
	Block      uint64    `json:"block"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// NewEvent fills in the id and time of an envelope.
func NewEvent(routingKey, txHash string, block uint64, data any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       routingKey,
		TxHash:     txHash,
		Block:      block,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// AMQP publishes JSON events to a durable topic exchange.
type AMQP struct {
	mu       sync.Mutex
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// Option configures an AMQP publisher.
type Option func(*AMQP)

// WithExchange sets the exchange name.
func WithExchange(name string) Option {
	return func(p *AMQP) {
		if name != "" {
			p.exchange = name
		}
	}
}

// NewAMQP dials url and declares the exchange.
func NewAMQP(url string, opts ...Option) (*AMQP, error) {
	p := &AMQP{exchange: defaultExchange}
	for _, opt := range opts {
		opt(p)
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	p.conn, p.channel = conn, ch
	return p, nil
}

func (p *AMQP) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil || p.conn.IsClosed() {
		return ErrClosed
	}
	return p.channel.PublishWithContext(ctx, p.exchange, ev.Type, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    ev.ID,
		Timestamp:    ev.OccurredAt,
		Type:         ev.Type,
		Body:         body,
	})
}

func (p *AMQP) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Memory keeps published events in order. Useful in tests and local runs.
type Memory struct {
	mu     sync.Mutex
	events []Event
	err    error
}

// NewMemory creates an empty in-memory publisher.
func NewMemory() *Memory { return &Memory{} }

// FailWith makes every later Publish return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Publish(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, ev)
	return nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of what was published.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

var (
	_ Publisher = (*AMQP)(nil)
	_ Publisher = Nop{}
	_ Publisher = (*Memory)(nil)
)
