package changefeed

import (
	"context"
	"errors"
)

// Publisher sends events to the subscribers of a shared Source, such as a
// Redis bus.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Relay forwards every event that from delivers on tables to to. The returned
// Subscription closes all table subscriptions. Publish failures are left
// to the publisher to report.
func Relay(ctx context.Context, from Source, to Publisher, tables ...string) (Subscription, error) {
	subs := make([]Subscription, 0, len(tables))
	closeAll := func() error {
		var errs []error
		for _, s := range subs {
			errs = append(errs, s.Close())
		}
		return errors.Join(errs...)
	}

	for _, table := range tables {
		sub, err := from.Subscribe(ctx, table, func(ctx context.Context, ev Event) {
			_ = to.Publish(ctx, ev)
		})
		if err != nil {
			_ = closeAll()
			return nil, err
		}
		subs = append(subs, sub)
	}
	return SubscriptionFunc(closeAll), nil
}
