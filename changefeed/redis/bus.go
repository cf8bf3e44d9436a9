// Package redis provides a change feed on Redis pub/sub so that directory
// writes made by one instance invalidate directory caches on every other
// instance.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
)

// Compile-time interface check.
var _ changefeed.Source = (*Bus)(nil)

// DefaultChannelPrefix namespaces change channels.
const DefaultChannelPrefix = "opendental:changes:"

// Bus publishes and subscribes to change events over Redis pub/sub.
type Bus struct {
	client *goredis.Client
	prefix string
	logger *slog.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithChannelPrefix overrides DefaultChannelPrefix.
func WithChannelPrefix(p string) Option { return func(b *Bus) { b.prefix = p } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(b *Bus) { b.logger = l } }

// New creates a Bus on the given client.
func New(client *goredis.Client, opts ...Option) *Bus {
	b := &Bus{
		client: client,
		prefix: DefaultChannelPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Channel returns the Redis channel carrying events for table.
func (b *Bus) Channel(table string) string { return b.prefix + table }

// Publish sends ev to every subscriber of ev.Table.
func (b *Bus) Publish(ctx context.Context, ev changefeed.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("changefeed/redis: marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.Channel(ev.Table), data).Err(); err != nil {
		b.logger.Error("failed to publish change event",
			"table", ev.Table,
			"op", ev.Op,
			"row_id", ev.RowID,
			"error", err,
		)
		return fmt.Errorf("changefeed/redis: publish: %w", err)
	}
	return nil
}

// Subscribe listens on the table's channel and calls h for each event until
// ctx is done or the subscription is closed. It returns once Redis has
// confirmed the subscription.
func (b *Bus) Subscribe(ctx context.Context, table string, h changefeed.Handler) (changefeed.Subscription, error) {
	channel := b.Channel(table)
	ps := b.client.Subscribe(ctx, channel)

	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("changefeed/redis: subscribe %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	ch := ps.Channel()

	go func() {
		defer close(done)
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev changefeed.Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.Warn("dropping malformed change event",
						"channel", channel,
						"error", err,
					)
					continue
				}
				h(subCtx, ev)
			}
		}
	}()

	var once sync.Once
	return changefeed.SubscriptionFunc(func() error {
		var err error
		once.Do(func() {
			cancel()
			err = ps.Close()
			<-done
		})
		return err
	}), nil
}
