package patterns

import (
	"context"
	"fmt"
	"time"

	"github.com/ashendes/kitchen-pos/internal/metrics"
)

// Bulkhead caps concurrent calls to one downstream dependency
type Bulkhead struct {
	semaphore  chan struct{}
	name       string
	service    string
	acquireTTL time.Duration
}

// NewBulkhead creates a new bulkhead with specified capacity
func NewBulkhead(size int, name, service string) *Bulkhead {
	if size <= 0 {
		size = 1
	}
	return &Bulkhead{
		semaphore:  make(chan struct{}, size),
		name:       name,
		service:    service,
		acquireTTL: DefaultAcquireTimeout,
	}
}

// Execute runs fn once a slot is free. It gives up when ctx is done or
// no slot frees up within the acquire timeout.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(b.acquireTTL)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Inc()
		defer func() {
			<-b.semaphore
			metrics.BulkheadActiveRequests.WithLabelValues(b.service, b.name).Dec()
		}()
		return fn()

	case <-ctx.Done():
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: %w", b.name, ctx.Err())

	case <-timer.C:
		metrics.BulkheadRejectedRequests.WithLabelValues(b.service, b.name).Inc()
		return fmt.Errorf("bulkhead %s: timeout acquiring resource: %w", b.name, ErrUnavailable)
	}
}
