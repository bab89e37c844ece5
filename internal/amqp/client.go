// Package amqp publishes scorecard events to RabbitMQ.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"esgdash/internal/core"
	applog "esgdash/internal/log"
)

const (
	publishTimeout = 5 * time.Second
	// scorecardComputedType is set as the AMQP type property.
	scorecardComputedType = "esg.scorecard.computed"
)

var ErrClosed = errors.New("amqp client closed")

// channel is the subset of *amqp091.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

type Client struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      channel
	exchangeName string
	queueName    string
	logger       *applog.Logger
	closed       bool
}

// NewClient dials url and declares a durable direct exchange with one queue
// bound under its own name.
func NewClient(url, exchangeName, queueName string, logger *applog.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := newClient(ch, exchangeName, queueName, logger)
	client.conn = conn

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func newClient(ch channel, exchangeName, queueName string, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Client{
		channel:      ch,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger.WithComponent(applog.ComponentAMQP),
	}
}

// setup declares the topology. The queue is bound under its own name.
func (c *Client) setup() error {
	if err := c.channel.ExchangeDeclare(c.exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %q: %w", c.exchangeName, err)
	}
	if _, err := c.channel.QueueDeclare(c.queueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %q: %w", c.queueName, err)
	}
	if err := c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue %q: %w", c.queueName, err)
	}
	return nil
}

// PublishScorecardComputed publishes a persistent summary of sc.
func (c *Client) PublishScorecardComputed(ctx context.Context, reportID, source string, sc core.Scorecard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := NewScorecardComputedMessage(reportID, source, sc)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	pub := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    msg.Timestamp,
		MessageId:    reportID,
		Type:         scorecardComputedType,
		Body:         body,
	}
	if err := c.channel.PublishWithContext(ctx, c.exchangeName, c.queueName, false, false, pub); err != nil {
		return fmt.Errorf("publish scorecard %s: %w", reportID, err)
	}

	c.logger.InfoContext(ctx, "Scorecard event published",
		applog.FieldReportID, reportID,
		applog.FieldTotalKg, sc.TotalKgCO2e,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
