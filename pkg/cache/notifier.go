package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes cache invalidation signals after schema or submission
// writes. The core calls it as a side-effect hook; delivery is best-effort.
type Notifier interface {
	SchemaChanged(ctx context.Context, formName string) error
	SubmissionChanged(ctx context.Context, submissionID int64) error
}

// NopNotifier discards all signals. Used when no redis address is configured.
type NopNotifier struct{}

// SchemaChanged implements Notifier.
func (NopNotifier) SchemaChanged(context.Context, string) error { return nil }

// SubmissionChanged implements Notifier.
func (NopNotifier) SubmissionChanged(context.Context, int64) error { return nil }

// Message prefixes on the invalidation channel.
const (
	schemaPrefix     = "schema:"
	submissionPrefix = "submission:"
)

// RedisNotifier publishes invalidation messages to a redis channel so peer
// instances can drop their local cache entries.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to redis and returns a notifier publishing on
// the given channel.
func NewRedisNotifier(addr, channel string) *RedisNotifier {
	return &RedisNotifier{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		channel: channel,
	}
}

// SchemaChanged implements Notifier.
func (n *RedisNotifier) SchemaChanged(ctx context.Context, formName string) error {
	if err := n.client.Publish(ctx, n.channel, schemaPrefix+formName).Err(); err != nil {
		return fmt.Errorf("publish schema invalidation: %w", err)
	}
	return nil
}

// SubmissionChanged implements Notifier.
func (n *RedisNotifier) SubmissionChanged(ctx context.Context, submissionID int64) error {
	msg := submissionPrefix + strconv.FormatInt(submissionID, 10)
	if err := n.client.Publish(ctx, n.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish submission invalidation: %w", err)
	}
	return nil
}

// Close releases the redis connection.
func (n *RedisNotifier) Close() error { return n.client.Close() }

// Listen consumes invalidation messages and applies them to the local cache
// manager until ctx is cancelled. Run it in its own goroutine.
func (n *RedisNotifier) Listen(ctx context.Context, cm *CacheManager) {
	sub := n.client.Subscribe(ctx, n.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			applyInvalidation(cm, msg.Payload)
		}
	}
}

func applyInvalidation(cm *CacheManager, payload string) {
	switch {
	case strings.HasPrefix(payload, schemaPrefix):
		cm.InvalidateForm(strings.TrimPrefix(payload, schemaPrefix))
	case strings.HasPrefix(payload, submissionPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(payload, submissionPrefix), 10, 64)
		if err != nil {
			slog.Warn("ignoring malformed invalidation message", "payload", payload)
			return
		}
		cm.InvalidateSubmission(id)
	default:
		slog.Warn("ignoring unknown invalidation message", "payload", payload)
	}
}
