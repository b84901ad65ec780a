// Package secrets resolves the per-WEMA credentials used to talk to the
// LCO site proxies.
package secrets

import (
	"context"
	"errors"
)

// ErrSecretNotFound indicates the requested secret does not exist in the
// backing store.
var ErrSecretNotFound = errors.New("secret not found")

// Source resolves a secret value by path. Values are resolved fresh for
// every call; implementations must not cache across calls.
type Source interface {
	Get(ctx context.Context, path string) (string, error)
}
