package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"insurance-ledger/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// channel is the subset of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// LedgerEventMessage is the wire form of a committed audit event.
type LedgerEventMessage struct {
	EventID  uint64           `json:"event_id"`
	Kind     models.EventKind `json:"kind"`
	Payload  string           `json:"payload"`
	EntityID *uint64          `json:"entity_id,omitempty"`
	Account  string           `json:"account"`
	Tick     uint64           `json:"tick"`
}

// LedgerPublisher forwards committed ledger events to the broker's ledger queue.
type LedgerPublisher struct {
	mu                sync.Mutex
	ch                channel
	queue             string
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

func NewLedgerPublisher(broker *LedgerBroker) *LedgerPublisher {
	return newLedgerPublisher(broker.Channel, broker.Queue.Name)
}

func newLedgerPublisher(ch channel, queue string) *LedgerPublisher {
	return &LedgerPublisher{
		ch:              ch,
		queue:           queue,
		lastPublishTime: time.Now(),
	}
}

func (p *LedgerPublisher) PublishLedgerEvent(ctx context.Context, e models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	body, err := json.Marshal(LedgerEventMessage{
		EventID:  e.ID,
		Kind:     e.Kind,
		Payload:  e.Payload,
		EntityID: e.EntityID,
		Account:  e.Account,
		Tick:     e.Tick,
	})
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal ledger event: %w", err)
	}

	err = p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    fmt.Sprintf("ledger-event-%d", e.ID),
			Type:         string(e.Kind),
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish ledger event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()

	slog.Info("Ledger event published",
		"queue", p.queue,
		"event_id", e.ID,
		"kind", e.Kind,
	)
	return nil
}

// GetStats returns publisher statistics
func (p *LedgerPublisher) GetStats() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"messages_published": p.messagesPublished,
		"messages_failed":    p.messagesFailed,
		"last_publish_time":  p.lastPublishTime,
	}
}

// HealthCheck reports unhealthy when failures outnumber successes.
func (p *LedgerPublisher) HealthCheck() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messagesFailed > 0 && p.messagesFailed > p.messagesPublished {
		return fmt.Errorf("publisher unhealthy: %d failed vs %d published", p.messagesFailed, p.messagesPublished)
	}
	return nil
}
