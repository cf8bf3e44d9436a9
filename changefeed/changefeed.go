// Package changefeed defines row-change notifications for directory tables
// and an in-process fan-out hub.
//
// Consumers treat events as coarse invalidation signals: any event on a
// table means "re-read the table", so payloads carry only the operation and
// the affected row ID.
package changefeed

import (
	"context"
	"time"
)

// Op is the kind of row change.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes a change to one row of a table.
type Event struct {
	Table string    `json:"table"`
	Op    Op        `json:"op"`
	RowID string    `json:"row_id,omitempty"`
	At    time.Time `json:"at"`
}

// Handler receives change events.
type Handler func(ctx context.Context, ev Event)

// Subscription is an active registration on a Source.
type Subscription interface {
	// Close stops delivery. It is safe to call more than once.
	Close() error
}

// Source delivers change events for a table.
type Source interface {
	Subscribe(ctx context.Context, table string, h Handler) (Subscription, error)
}

// SubscriptionFunc adapts a function to the Subscription interface.
type SubscriptionFunc func() error

// Close calls f.
func (f SubscriptionFunc) Close() error { return f() }
