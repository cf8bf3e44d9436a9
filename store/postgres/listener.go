package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
)

// Listener holds a dedicated pgx connection that LISTENs on NotifyChannel and
// republishes trigger notifications on a changefeed.Hub. It reconnects after
// connection loss.
type Listener struct {
	dsn            string
	channel        string
	hub            *changefeed.Hub
	logger         *slog.Logger
	reconnectDelay time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// WithChannel overrides NotifyChannel.
func WithChannel(ch string) ListenerOption { return func(l *Listener) { l.channel = ch } }

// WithReconnectDelay sets the pause between reconnect attempts.
func WithReconnectDelay(d time.Duration) ListenerOption {
	return func(l *Listener) { l.reconnectDelay = d }
}

// WithListenerLogger sets the structured logger.
func WithListenerLogger(lg *slog.Logger) ListenerOption { return func(l *Listener) { l.logger = lg } }

// NewListener creates a listener that connects to dsn and republishes on hub.
func NewListener(dsn string, hub *changefeed.Hub, opts ...ListenerOption) *Listener {
	l := &Listener{
		dsn:            dsn,
		channel:        NotifyChannel,
		hub:            hub,
		logger:         slog.Default(),
		reconnectDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start connects and begins listening. The first connection is made
// synchronously so configuration errors surface to the caller.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return nil
	}

	conn, err := l.connect(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx, conn)
	return nil
}

// Close stops listening and closes the connection.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	<-l.done
	l.cancel = nil
	return nil
}

func (l *Listener) connect(ctx context.Context) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return nil, fmt.Errorf("opendental/postgres: listener connect: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		_ = conn.Close(ctx)
		return nil, fmt.Errorf("opendental/postgres: listen %s: %w", l.channel, err)
	}
	return conn, nil
}

func (l *Listener) run(ctx context.Context, conn *pgx.Conn) {
	defer close(l.done)
	defer func() {
		if conn != nil {
			_ = conn.Close(context.Background())
		}
	}()

	for {
		if conn == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.reconnectDelay):
			}
			c, err := l.connect(ctx)
			if err != nil {
				l.logger.Warn("change listener reconnect failed", "error", err)
				continue
			}
			conn = c
			l.logger.Info("change listener reconnected", "channel", l.channel)
		}

		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("change listener connection lost", "error", err)
			_ = conn.Close(context.Background())
			conn = nil
			continue
		}

		ev, err := decodeNotification(n.Payload)
		if err != nil {
			l.logger.Warn("change listener: bad payload", "payload", n.Payload, "error", err)
			continue
		}
		l.hub.Publish(ctx, ev)
	}
}

func decodeNotification(payload string) (changefeed.Event, error) {
	var ev changefeed.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return changefeed.Event{}, err
	}
	if ev.Table == "" {
		return changefeed.Event{}, fmt.Errorf("missing table")
	}
	return ev, nil
}
