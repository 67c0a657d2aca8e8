package cache

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("cache: key not found")

// Well-known keys.
const (
	FeedKey          = "feed"
	NotificationsKey = "notifications"
)

// MessagesKey returns the key for one conversation's message history.
func MessagesKey(conversationID string) string {
	return "messages:" + conversationID
}

// Store is a byte-oriented key/value store. Implementations must be safe
// for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}
