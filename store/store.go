// Package store defines the aggregate persistence interface. Each subsystem
// (modulerule, branch) defines its own store interface and changefeed
// defines how row changes are observed. The composite Store composes them
// all. Backends: Postgres, SQLite, MongoDB and Memory.
package store

import (
	"context"

	"github.com/imranmit2020/open-dental-helper-sub002/branch"
	"github.com/imranmit2020/open-dental-helper-sub002/changefeed"
	"github.com/imranmit2020/open-dental-helper-sub002/modulerule"
)

// Store is the aggregate persistence interface.
// A single backend (postgres, sqlite, mongo, memory) implements all of them.
type Store interface {
	modulerule.Store
	branch.Store
	changefeed.Source

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
