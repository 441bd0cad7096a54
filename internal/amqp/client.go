// Package amqp connects the achievement pipeline to RabbitMQ: unlock
// and redemption events go out, evaluation requests come in.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	evalQueue    string
	eventQueue   string
}

// NewClient dials RabbitMQ and declares the exchange plus the two
// queues: evalQueue carries evaluation requests into the worker,
// eventQueue carries unlock and redemption events out.
func NewClient(url, exchangeName, evalQueue, eventQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		evalQueue:    evalQueue,
		eventQueue:   eventQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
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

	for _, queue := range []string{c.evalQueue, c.eventQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key matches the queue name on a direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
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
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishEvaluationRequest enqueues one evaluation pass for a user.
func (c *Client) PublishEvaluationRequest(ctx context.Context, userID, reason string) error {
	msg := NewEvaluationRequestedMessage(userID, reason)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.evalQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published evaluation request",
		"user_id", userID,
		"reason", reason,
		"queue", c.evalQueue)
	return nil
}

// PublishAchievementUnlocked announces a newly completed achievement.
func (c *Client) PublishAchievementUnlocked(ctx context.Context, msg *AchievementUnlockedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.eventQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published achievement unlocked event",
		"user_id", msg.UserID,
		"achievement_id", msg.AchievementID,
		"reward_points", msg.RewardPoints)
	return nil
}

// PublishRedemptionSettled announces a successful redemption.
func (c *Client) PublishRedemptionSettled(ctx context.Context, msg *RedemptionSettledMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.eventQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published redemption settled event",
		"user_id", msg.UserID,
		"points", msg.Points,
		"monetary_value", msg.MonetaryValue)
	return nil
}

// ConsumeEvaluationRequests delivers evaluation requests to handler
// with manual acknowledgment. A handler error requeues the message; a
// message that cannot be decoded is dropped.
func (c *Client) ConsumeEvaluationRequests(ctx context.Context, handler func(context.Context, *EvaluationRequestedMessage) error) error {
	msgs, err := c.channel.Consume(
		c.evalQueue, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming evaluation requests", "queue", c.evalQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := EvaluationRequestedMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal evaluation request", "error", err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}

			if err := handler(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle evaluation request",
					"error", err,
					"user_id", msg.UserID)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

// ConsumeWithReconnect wraps ConsumeEvaluationRequests with a backoff
// retry loop for dropped broker connections. Non-connection errors and
// context cancellation end the loop.
func (c *Client) ConsumeWithReconnect(ctx context.Context, handler func(context.Context, *EvaluationRequestedMessage) error) error {
	attempt := 0
	for {
		err := c.ConsumeEvaluationRequests(ctx, handler)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP connection lost, retrying",
			"attempt", attempt,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// exponentialBackoff doubles from one second and caps at 30s.
func exponentialBackoff(attempt int) time.Duration {
	const max = 30 * time.Second
	d := time.Second << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}

// isConnectionError reports whether err looks like a dropped broker
// connection worth retrying.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"channel closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
