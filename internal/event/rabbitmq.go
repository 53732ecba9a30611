package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"insurance-ledger/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// LedgerBroker is an open channel with the ledger events queue already declared.
type LedgerBroker struct {
	Connection *amqp.Connection
	Channel    *amqp.Channel
	Queue      amqp.Queue
}

// queueDeclarer is the part of *amqp.Channel needed to set up the ledger queue.
type queueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

func brokerURI(cfg config.RabbitMQConfig) (string, error) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return "", fmt.Errorf("invalid RabbitMQ port %q: %w", cfg.Port, err)
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
		Vhost:    cfg.VHost,
	}
	return uri.String(), nil
}

// declareLedgerQueue declares the durable queue that carries committed ledger events.
func declareLedgerQueue(ch queueDeclarer, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("failed to declare queue %s: %w", name, err)
	}
	return q, nil
}

func dialBroker(uri, queue string) (*LedgerBroker, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	q, err := declareLedgerQueue(ch, queue)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &LedgerBroker{Connection: conn, Channel: ch, Queue: q}, nil
}

// retryUntil runs attempt every wait until it succeeds or ctx ends.
func retryUntil(ctx context.Context, wait time.Duration, attempt func() error) error {
	for {
		err := attempt()
		if err == nil {
			return nil
		}
		slog.Warn("RabbitMQ not ready, retrying", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return fmt.Errorf("gave up connecting to RabbitMQ: %w", err)
		case <-time.After(wait):
		}
	}
}

// ConnectRabbitMQ dials the broker until it answers or cfg.ConnectTimeout passes,
// then declares the ledger events queue on the new channel.
func ConnectRabbitMQ(ctx context.Context, cfg config.RabbitMQConfig) (*LedgerBroker, error) {
	uri, err := brokerURI(cfg)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	var broker *LedgerBroker
	err = retryUntil(connectCtx, cfg.RetryWait, func() error {
		b, err := dialBroker(uri, cfg.Queue)
		if err != nil {
			return err
		}
		broker = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Connected to RabbitMQ",
		"host", cfg.Host,
		"port", cfg.Port,
		"queue", broker.Queue.Name)
	return broker, nil
}

func (b *LedgerBroker) Close() error {
	if b.Channel != nil {
		if err := b.Channel.Close(); err != nil {
			slog.Error("failed to close RabbitMQ channel", "error", err)
		}
	}
	if b.Connection != nil {
		if err := b.Connection.Close(); err != nil {
			slog.Error("failed to close RabbitMQ connection", "error", err)
			return err
		}
	}
	slog.Info("RabbitMQ connection closed")
	return nil
}
