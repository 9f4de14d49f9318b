package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matzehuels/viewgraph/pkg/httputil"
)

// Sentinel errors for cache construction.
var (
	// ErrUnknownBackend is returned by [New] for an unrecognized backend name.
	ErrUnknownBackend = errors.New("unknown cache backend")

	// ErrUnavailable is returned when a network backend cannot be reached.
	ErrUnavailable = errors.New("cache backend unavailable")
)

// Connection retry policy for network backends.
const (
	connectAttempts = 3
	connectDelay    = 250 * time.Millisecond
)

// connect pings a network backend until it answers, retrying transient
// failures with exponential backoff.
func connect(ctx context.Context, backend string, ping func(ctx context.Context) error) error {
	err := httputil.Retry(ctx, connectAttempts, connectDelay, func() error {
		if err := ping(ctx); err != nil {
			return &httputil.RetryableError{Err: err}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, backend, err)
	}
	return nil
}
