package changefeed

import (
	"context"
	"sync"
	"time"
)

// Compile-time interface check.
var _ Source = (*Hub)(nil)

// Hub is an in-process Source. Publish delivers synchronously to every
// open subscription on the event's table, in subscription order.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler // table -> subscription id -> handler
	order  map[string][]uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs:  make(map[string]map[uint64]Handler),
		order: make(map[string][]uint64),
	}
}

// Subscribe registers h for events on table. The subscription ends when
// Close is called or ctx is done.
func (h *Hub) Subscribe(ctx context.Context, table string, handler Handler) (Subscription, error) {
	h.mu.Lock()
	h.nextID++
	subID := h.nextID
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]Handler)
	}
	h.subs[table][subID] = handler
	h.order[table] = append(h.order[table], subID)
	h.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	closeFn := func() error {
		once.Do(func() {
			close(stop)
			h.remove(table, subID)
		})
		return nil
	}

	go func() {
		select {
		case <-ctx.Done():
			_ = closeFn()
		case <-stop:
		}
	}()

	return SubscriptionFunc(closeFn), nil
}

// Publish delivers ev to every open subscription on ev.Table.
// A zero ev.At is stamped with the current time.
func (h *Hub) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.RLock()
	ids := h.order[ev.Table]
	handlers := make([]Handler, 0, len(ids))
	for _, subID := range ids {
		if fn, ok := h.subs[ev.Table][subID]; ok {
			handlers = append(handlers, fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ctx, ev)
	}
}

// Len returns the number of open subscriptions on table.
func (h *Hub) Len(table string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}

func (h *Hub) remove(table string, subID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[table], subID)
	ids := h.order[table]
	for i, v := range ids {
		if v == subID {
			h.order[table] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
}
