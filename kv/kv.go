// Package kv defines the small string key-value store used for local,
// best-effort persistence such as the geocode cache.
package kv

import (
	"context"
	"errors"
)

// ErrQuotaExceeded is returned by Set when the store cannot accept another entry.
var ErrQuotaExceeded = errors.New("kv: quota exceeded")

// Store is a string key-value store.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key.
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
