package changefeed

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversToTableSubscribers(t *testing.T) {
	ctx := context.Background()
	h := NewHub()

	var tenants, other []Event
	if _, err := h.Subscribe(ctx, "tenants", func(_ context.Context, ev Event) { tenants = append(tenants, ev) }); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Subscribe(ctx, "invoices", func(_ context.Context, ev Event) { other = append(other, ev) }); err != nil {
		t.Fatal(err)
	}

	h.Publish(ctx, Event{Table: "tenants", Op: OpInsert, RowID: "b1"})

	if len(tenants) != 1 {
		t.Fatalf("expected 1 tenants event, got %d", len(tenants))
	}
	if tenants[0].At.IsZero() {
		t.Fatal("publish should stamp event time")
	}
	if len(other) != 0 {
		t.Fatal("events must not leak across tables")
	}
}

func TestHubCloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	h := NewHub()

	calls := 0
	sub, err := h.Subscribe(ctx, "tenants", func(context.Context, Event) { calls++ })
	if err != nil {
		t.Fatal(err)
	}
	h.Publish(ctx, Event{Table: "tenants", Op: OpUpdate})
	if err := sub.Close(); err != nil {
		t.Fatal(err)
	}
	if err := sub.Close(); err != nil {
		t.Fatal("second close should be a no-op")
	}
	h.Publish(ctx, Event{Table: "tenants", Op: OpDelete})

	if calls != 1 {
		t.Fatalf("expected 1 call before close, got %d", calls)
	}
	if h.Len("tenants") != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len("tenants"))
	}
}

func TestHubContextCancelUnsubscribes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()

	if _, err := h.Subscribe(ctx, "tenants", func(context.Context, Event) {}); err != nil {
		t.Fatal(err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for h.Len("tenants") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not removed after context cancel")
		}
		time.Sleep(time.Millisecond)
	}
}
