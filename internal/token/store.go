// Package token persists the client's credential state: the cart token, the
// auth access/refresh tokens and the cached serialized user record. The rest
// of the system treats storage failure as "value absent" and keeps working in
// a tokenless, unauthenticated state.
package token

import (
	"context"
	"errors"
)

// Logical storage keys. Stable across restarts; other processes sharing the
// same backing store observe the same values.
const (
	KeyCartToken    = "cart_token"
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

var ErrNotFound = errors.New("token not found")

// Change describes a key written or cleared by some writer, possibly another
// process. Value is empty when the key was cleared.
type Change struct {
	Key   string
	Value string
}

// Store is the durable key-value port. Consumers define this interface, not
// the redis implementation.
type Store interface {
	// Get returns ErrNotFound when the key holds no value.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context, key string) error
}

// Watcher delivers change notifications for the store's keys. The channel is
// closed when ctx is done. This is the cross-tab signal: another process
// rotating the cart token shows up here.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}
