package directory

import (
	"context"

	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
)

// Start subscribes to the change feed. Every event on the configured table
// triggers a full refresh. Events that arrive while a refresh is running
// collapse into a single follow-up refresh. Start does not perform the
// initial load; call Load for that.
//
// Without a configured feed Start is a no-op.
func (d *Directory) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.isClosed() {
		return ErrClosed
	}
	if d.done != nil {
		return ErrAlreadyStarted
	}
	if d.feed == nil {
		d.logger.Debug("directory started without change feed")
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pending := make(chan struct{}, 1)

	sub, err := d.feed.Subscribe(runCtx, d.config.Table, func(_ context.Context, ev changefeed.Event) {
		d.logger.Debug("directory change received",
			"table", ev.Table,
			"op", ev.Op,
			"row_id", ev.RowID,
		)
		select {
		case pending <- struct{}{}:
		default:
		}
	})
	if err != nil {
		cancel()
		return err
	}

	d.sub = sub
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.refreshLoop(runCtx, pending, d.done)

	d.logger.Info("directory subscribed to change feed", "table", d.config.Table)
	return nil
}

func (d *Directory) refreshLoop(ctx context.Context, pending <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-pending:
			if _, err := d.Refresh(ctx); err != nil {
				d.logger.Warn("directory refresh failed", "error", err)
			}
		}
	}
}

// Close tears down the feed subscription. Loads still running complete but
// their results are discarded. Close is idempotent.
func (d *Directory) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.runMu.Lock()
	defer d.runMu.Unlock()

	var err error
	if d.sub != nil {
		err = d.sub.Close()
		d.sub = nil
	}
	if d.cancel != nil {
		d.cancel()
		<-d.done
	}
	d.plugins.EmitShutdown(context.Background())
	return err
}

func (d *Directory) isClosed() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.closed
}
