package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"tally/internal/log"
)

const publishTimeout = 5 * time.Second

var errDeliveriesClosed = errors.New("message channel closed")

// Client publishes statistics snapshots and consumes ledger change
// notifications over one direct exchange. Both queues are bound with their
// own name as routing key.
type Client struct {
	url           string
	exchangeName  string
	snapshotQueue string
	ledgerQueue   string
	logger        *log.Logger

	connMu  sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	// circuit breaker
	state        int32
	failureCount int64
	mu           sync.Mutex
	lastFailure  time.Time
}

// NewClient dials url and declares the exchange and queues. An empty queue
// name skips that queue.
func NewClient(url, exchangeName, snapshotQueue, ledgerQueue string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:           url,
		exchangeName:  exchangeName,
		snapshotQueue: snapshotQueue,
		ledgerQueue:   ledgerQueue,
		logger:        logger.WithComponent(log.ComponentAMQP),
	}
	if _, err := c.ensureChannel(); err != nil {
		return nil, err
	}
	return c, nil
}

// ensureChannel returns the open channel, reconnecting when it was lost.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	c.closeLocked()

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}
	c.conn, c.channel = conn, channel
	return channel, nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.snapshotQueue, c.ledgerQueue} {
		if queue == "" {
			continue
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// PublishSnapshot publishes a computed snapshot to the snapshot queue.
func (c *Client) PublishSnapshot(ctx context.Context, msg *SnapshotMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.snapshotQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published snapshot",
		log.FieldLabel, msg.Label,
		log.FieldFingerprint, msg.Fingerprint,
		"queue", c.snapshotQueue)
	return nil
}

// PublishLedgerChanged notifies consumers that the ledger was written to.
func (c *Client) PublishLedgerChanged(ctx context.Context, msg *LedgerChangedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.ledgerQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "Published ledger change",
		"source", msg.Source,
		log.FieldCount, msg.Count,
		"queue", c.ledgerQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, not publishing to %s", routingKey)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.resetConnection()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

// ConsumeLedgerChanges delivers ledger change messages to handler until ctx
// is done. Lost connections are re-established with exponential backoff.
// Undecodable messages are dropped; handler failures are requeued.
func (c *Client) ConsumeLedgerChanges(ctx context.Context, handler func(*LedgerChangedMessage) error) error {
	attempt := 0
	for {
		started, err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		if started {
			attempt = 0
		}
		wait := exponentialBackoff(attempt)
		attempt++
		c.logger.WarnContext(ctx, "Ledger consumer interrupted, reconnecting",
			log.FieldError, err,
			"retry_in", wait.String())
		c.resetConnection()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, handler func(*LedgerChangedMessage) error) (bool, error) {
	ch, err := c.ensureChannel()
	if err != nil {
		return false, err
	}
	msgs, err := ch.Consume(
		c.ledgerQueue, // queue
		"",            // consumer
		false,         // auto-ack
		false,         // exclusive
		false,         // no-local
		false,         // no-wait
		nil,           // args
	)
	if err != nil {
		return false, fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming ledger changes", "queue", c.ledgerQueue)

	for {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return true, errDeliveriesClosed
			}

			msg, err := LedgerChangedMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle ledger change",
					log.FieldError, err,
					"source", msg.Source)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
			c.logger.DebugContext(ctx, "Processed ledger change",
				"source", msg.Source,
				log.FieldCount, msg.Count)
		}
	}
}

func (c *Client) resetConnection() {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	c.closeLocked()
}

func (c *Client) closeLocked() error {
	var err error
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	return err
}

func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.closeLocked()
}
