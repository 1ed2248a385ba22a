package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/congo_points/internal/points"
)

// DefaultChannel is the Redis channel events are published on.
const DefaultChannel = "points:events"

// Message describes a ledger notification for downstream observers. Topics
// carry the indexed fields of the event (owner, store, user, value, auth).
type Message struct {
	Kind      string            `json:"kind"`
	Topics    map[string]string `json:"topics"`
	CallID    string            `json:"call_id"`
	Operation string            `json:"operation"`
	Caller    string            `json:"caller"`
	At        time.Time         `json:"at"`
}

// FromEvent builds the message for one event of a committed call.
func FromEvent(e points.Event, callID, operation, caller string, at time.Time) Message {
	return Message{
		Kind:      e.EventType(),
		Topics:    e.Topics(),
		CallID:    callID,
		Operation: operation,
		Caller:    caller,
		At:        at,
	}
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	attrs := []any{
		slog.String("kind", message.Kind),
		slog.String("call_id", message.CallID),
		slog.String("operation", message.Operation),
		slog.String("caller", message.Caller),
	}
	for k, v := range message.Topics {
		attrs = append(attrs, slog.String("topic."+k, v))
	}
	n.logger.Info("notification", attrs...)
	return nil
}

// RedisNotifier publishes JSON encoded messages on a Redis channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier builds a publisher. An empty channel uses DefaultChannel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisNotifier{client: client, channel: channel}
}

// Send publishes the message.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.client == nil {
		return nil
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Multi fans a message out to every notifier, joining their errors.
type Multi []Notifier

// Send delivers to all notifiers even when some fail.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
