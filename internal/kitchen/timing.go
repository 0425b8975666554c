package kitchen

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ashendes/kitchen-pos/internal/metrics"
	"github.com/ashendes/kitchen-pos/internal/models"
	log "github.com/sirupsen/logrus"
)

// DefaultTickInterval is how often elapsed times are recomputed
const DefaultTickInterval = time.Second

// maxDisplayProgress caps the progress bar until the order is actually done
const maxDisplayProgress = 85.0

var ErrTickerRunning = errors.New("ticker already running")

// ElapsedMinutes is floor((now - orderTime) / 1 minute)
func ElapsedMinutes(orderTime, now time.Time) int {
	return int(math.Floor(float64(now.Sub(orderTime)) / float64(time.Minute)))
}

// IsOverdue reports whether the order has run past its estimate at now.
// Overdue is a display flag, never an order status.
func IsOverdue(order models.KitchenOrder, now time.Time) bool {
	return ElapsedMinutes(order.OrderTime, now) > order.TotalEstimatedTime
}

// Progress returns the display progress percentage of an order
func Progress(order models.KitchenOrder) float64 {
	if order.TotalEstimatedTime == 0 {
		return 0
	}
	p := float64(order.ElapsedTime) / float64(order.TotalEstimatedTime) * 100
	return math.Min(p, maxDisplayProgress)
}

// PriorityRank orders orders for display. Rushed beats every priority.
func PriorityRank(order models.KitchenOrder) int {
	if order.IsRushed {
		return 4
	}
	switch order.Priority {
	case models.PriorityUrgent:
		return 3
	case models.PriorityHigh:
		return 2
	case models.PriorityNormal:
		return 1
	}
	return 0
}

// View decorates an order with its derived display attributes
func View(order models.KitchenOrder, now time.Time) models.KitchenOrderView {
	return models.KitchenOrderView{
		KitchenOrder: order,
		IsOverdue:    IsOverdue(order, now),
		Progress:     Progress(order),
	}
}

// TickSummary is what one tick observed
type TickSummary struct {
	At       time.Time
	Orders   int
	Overdue  []string
	ByStatus map[models.OrderStatus]int
}

// Ticker recomputes elapsed times on a fixed interval. It owns a single
// goroutine between Start and Stop.
type Ticker struct {
	store    *Store
	clock    Clock
	interval time.Duration
	logger   log.FieldLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	tickMu  sync.Mutex
	flagged map[string]bool
}

// NewTicker creates a stopped ticker
func NewTicker(store *Store, clock Clock, interval time.Duration, logger log.FieldLogger) *Ticker {
	if clock == nil {
		clock = SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Ticker{
		store:    store,
		clock:    clock,
		interval: interval,
		logger:   logger,
		flagged:  make(map[string]bool),
	}
}

// Start launches the tick loop. The loop ends when ctx is cancelled or Stop
// is called; Stop must still be called before the ticker can start again.
func (t *Ticker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cancel != nil {
		return ErrTickerRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.run(ctx, t.done)

	t.logger.WithField("interval", t.interval.String()).Info("Kitchen ticker started")
	return nil
}

func (t *Ticker) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			t.Tick()
		}
	}
}

// Stop cancels the loop and waits for its goroutine to exit
func (t *Ticker) Stop() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.logger.Info("Kitchen ticker stopped")
}

// Running reports whether Start has been called without a matching Stop
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}

// Tick runs one refresh at the clock's current time
func (t *Ticker) Tick() TickSummary {
	now := t.clock.Now()
	orders := t.store.RefreshElapsed(now)

	summary := TickSummary{
		At:       now,
		Orders:   len(orders),
		ByStatus: make(map[models.OrderStatus]int),
	}

	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	for _, o := range orders {
		summary.ByStatus[o.Status]++

		if o.Status == models.OrderStatusServed || !IsOverdue(o, now) {
			delete(t.flagged, o.ID)
			continue
		}
		summary.Overdue = append(summary.Overdue, o.ID)
		if !t.flagged[o.ID] {
			t.flagged[o.ID] = true
			t.logger.WithFields(log.Fields{
				"order_id":     o.ID,
				"order_number": o.OrderNumber,
				"elapsed":      o.ElapsedTime,
				"estimated":    o.TotalEstimatedTime,
			}).Warn("Order delayed")
		}
	}

	for _, status := range []models.OrderStatus{
		models.OrderStatusNew,
		models.OrderStatusAcknowledged,
		models.OrderStatusPreparing,
		models.OrderStatusReady,
		models.OrderStatusServed,
	} {
		metrics.ActiveOrders.WithLabelValues(string(status)).Set(float64(summary.ByStatus[status]))
	}
	metrics.OverdueOrders.Set(float64(len(summary.Overdue)))

	return summary
}
