package patterns

import (
	"context"
	"time"
)

// DefaultTimeout is the default timeout for back-office HTTP requests
const DefaultTimeout = 3 * time.Second

// SyncTimeout bounds a fire-and-forget sync call detached from the request
const SyncTimeout = 5 * time.Second

// LedgerTimeout bounds one write to the transaction ledger
const LedgerTimeout = 5 * time.Second

// DefaultAcquireTimeout is how long a bulkhead waits for a free slot
const DefaultAcquireTimeout = 1 * time.Second

// WithTimeout derives a context with timeout for fail-fast behavior
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}
