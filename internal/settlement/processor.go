package settlement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ashendes/kitchen-pos/internal/events"
	"github.com/ashendes/kitchen-pos/internal/kitchen"
	"github.com/ashendes/kitchen-pos/internal/metrics"
	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/ashendes/kitchen-pos/internal/patterns"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var (
	ErrOrderNotPayable       = errors.New("order is not ready for payment")
	ErrAlreadyPaid           = errors.New("order already paid")
	ErrVersionConflict       = errors.New("order was modified concurrently")
	ErrPaymentMethodRequired = errors.New("payment method is required")
	ErrPaymentInProgress     = errors.New("payment already in progress")
)

// TransactionPoster ships settled transactions to the back office
type TransactionPoster interface {
	PostTransaction(ctx context.Context, tx models.Transaction) error
}

// Processor settles ready orders into transactions
type Processor struct {
	store     *kitchen.Store
	calc      *Calculator
	ledger    Ledger
	poster    TransactionPoster
	publisher events.Publisher
	clock     kitchen.Clock
	logger    log.FieldLogger
	newID     func() string

	mu       sync.Mutex
	inflight map[string]struct{}
	pending  sync.WaitGroup
}

type ProcessorOption func(*Processor)

func WithPoster(poster TransactionPoster) ProcessorOption {
	return func(p *Processor) { p.poster = poster }
}

func WithPublisher(pub events.Publisher) ProcessorOption {
	return func(p *Processor) { p.publisher = pub }
}

func WithClock(clock kitchen.Clock) ProcessorOption {
	return func(p *Processor) { p.clock = clock }
}

func WithLogger(logger log.FieldLogger) ProcessorOption {
	return func(p *Processor) { p.logger = logger }
}

func WithIDGenerator(fn func() string) ProcessorOption {
	return func(p *Processor) { p.newID = fn }
}

// NewProcessor creates a processor settling orders held in store
func NewProcessor(store *kitchen.Store, calc *Calculator, ledger Ledger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:     store,
		calc:      calc,
		ledger:    ledger,
		publisher: events.NoopPublisher{},
		clock:     kitchen.SystemClock{},
		logger:    log.StandardLogger(),
		newID:     func() string { return uuid.New().String() },
		inflight:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Quote computes the totals of an order without settling it
func (p *Processor) Quote(orderID string, amount decimal.Decimal, discountType models.DiscountType) (Totals, error) {
	order, ok := p.store.Get(orderID)
	if !ok {
		return Totals{}, fmt.Errorf("%w: %s", kitchen.ErrOrderNotFound, orderID)
	}
	return p.calc.ComputeTotals(order, amount, discountType)
}

// Transactions lists recorded transactions
func (p *Processor) Transactions(ctx context.Context) ([]models.Transaction, error) {
	return p.ledger.List(ctx)
}

// ProcessPayment settles a ready order in three steps. The order is
// priced from a snapshot, the transaction is written to the ledger without
// holding the store lock, and the order is then marked paid and served only
// if it has not changed since the snapshot. A failed commit voids the
// ledger entry, so the order is left exactly as it was on any error.
func (p *Processor) ProcessPayment(ctx context.Context, orderID string, req models.PaymentRequest) (models.Transaction, error) {
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return models.Transaction{}, ErrPaymentMethodRequired
	}

	if !p.reserve(orderID) {
		return models.Transaction{}, p.reject(orderID, method, fmt.Errorf("%w: %s", ErrPaymentInProgress, orderID))
	}
	defer p.release(orderID)

	now := p.clock.Now()
	snapshot, ok := p.store.Get(orderID)
	if !ok {
		return models.Transaction{}, p.reject(orderID, method, fmt.Errorf("%w: %s", kitchen.ErrOrderNotFound, orderID))
	}
	if err := checkPayable(snapshot, req.ExpectedVersion); err != nil {
		return models.Transaction{}, p.reject(orderID, method, err)
	}

	items, totals, err := p.calc.Settle(snapshot, req.DiscountAmount, req.DiscountType)
	if err != nil {
		return models.Transaction{}, p.reject(orderID, method, err)
	}

	paidAt := now
	tx := models.Transaction{
		ID:            p.newID(),
		OrderID:       snapshot.ID,
		OrderNumber:   snapshot.OrderNumber,
		TableNumber:   snapshot.TableNumber,
		CustomerName:  snapshot.CustomerName,
		OrderType:     snapshot.OrderType,
		Items:         items,
		Subtotal:      totals.Subtotal,
		Discount:      totals.Discount,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentMethod: method,
		Status:        models.TransactionStatusPaid,
		CreatedAt:     now,
		PaidAt:        &paidAt,
	}

	appendCtx, cancel := patterns.WithTimeout(ctx, patterns.LedgerTimeout)
	err = p.ledger.Append(appendCtx, tx)
	cancel()
	if err != nil {
		return models.Transaction{}, p.reject(orderID, method, fmt.Errorf("cannot record transaction: %w", err))
	}

	var prevStatus models.OrderStatus
	order, err := p.store.Update(orderID, func(o *models.KitchenOrder) error {
		if o.Version != snapshot.Version {
			return fmt.Errorf("%w: order %s changed while settling", ErrVersionConflict, o.ID)
		}
		prevStatus = o.Status
		o.Paid = true
		o.Status = models.OrderStatusServed
		return nil
	})
	if err != nil {
		p.void(ctx, tx)
		return models.Transaction{}, p.reject(orderID, method, err)
	}

	metrics.PaymentsTotal.WithLabelValues(methodLabel(method), "paid").Inc()
	metrics.PaymentAmount.Observe(tx.Total.InexactFloat64())
	p.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"transaction_id": tx.ID,
		"method":         method,
		"total":          tx.Total.StringFixed(2),
	}).Info("Payment processed")

	p.publish(ctx, events.EventTransactionSettled, events.TransactionSettledEvent{
		KitchenOrderEventMetadata: events.Metadata(events.EventTransactionSettled, order, now),
		TransactionID:             tx.ID,
		PaymentMethod:             tx.PaymentMethod,
		Total:                     tx.Total,
	})
	if prevStatus != order.Status {
		metrics.OrderTransitions.WithLabelValues(string(prevStatus), string(order.Status)).Inc()
		p.publish(ctx, events.EventKitchenOrderStatusChange, events.KitchenOrderStatusChangedEvent{
			KitchenOrderEventMetadata: events.Metadata(events.EventKitchenOrderStatusChange, order, now),
			NewStatus:                 order.Status,
			PreviousStatus:            prevStatus,
			ActualCompletionTime:      order.ActualCompletionTime,
		})
	}

	if p.poster != nil {
		p.post(ctx, tx)
	}

	return tx, nil
}

// Reconcile marks restored orders that already have a ledger transaction
// as paid and served. It returns how many orders it marked.
func (p *Processor) Reconcile(ctx context.Context) (int, error) {
	marked := 0
	for _, o := range p.store.List(kitchen.Filter{Status: kitchen.FilterUnpaid}) {
		tx, err := p.ledger.FindByOrderID(ctx, o.ID)
		if err != nil {
			return marked, fmt.Errorf("cannot reconcile order %s: %w", o.ID, err)
		}
		if tx == nil {
			continue
		}

		if _, err := p.store.Update(o.ID, func(order *models.KitchenOrder) error {
			order.Paid = true
			order.Status = models.OrderStatusServed
			return nil
		}); err != nil {
			return marked, err
		}
		marked++
		p.logger.WithFields(log.Fields{
			"order_id":       o.ID,
			"transaction_id": tx.ID,
		}).Info("Order already settled, marked paid")
	}
	return marked, nil
}

func checkPayable(o models.KitchenOrder, expectedVersion *int) error {
	if o.Paid {
		return fmt.Errorf("%w: %s", ErrAlreadyPaid, o.ID)
	}
	if o.Status != models.OrderStatusReady && o.Status != models.OrderStatusServed {
		return fmt.Errorf("%w: order %s is %s", ErrOrderNotPayable, o.ID, o.Status)
	}
	if expectedVersion != nil && *expectedVersion != o.Version {
		return fmt.Errorf("%w: expected version %d, have %d", ErrVersionConflict, *expectedVersion, o.Version)
	}
	return nil
}

func (p *Processor) reserve(orderID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inflight[orderID]; busy {
		return false
	}
	p.inflight[orderID] = struct{}{}
	return true
}

func (p *Processor) release(orderID string) {
	p.mu.Lock()
	delete(p.inflight, orderID)
	p.mu.Unlock()
}

func (p *Processor) reject(orderID, method string, err error) error {
	metrics.PaymentsTotal.WithLabelValues(methodLabel(method), "rejected").Inc()
	p.logger.WithFields(log.Fields{
		"order_id": orderID,
		"method":   method,
	}).Warn("Payment rejected: ", err)
	return err
}

// void removes a recorded transaction whose order commit failed
func (p *Processor) void(ctx context.Context, tx models.Transaction) {
	ctx, cancel := patterns.WithTimeout(context.WithoutCancel(ctx), patterns.LedgerTimeout)
	defer cancel()

	if err := p.ledger.Remove(ctx, tx.ID); err != nil {
		p.logger.WithFields(log.Fields{
			"order_id":       tx.OrderID,
			"transaction_id": tx.ID,
		}).Error("Cannot void uncommitted transaction: ", err)
	}
}

// Wait blocks until in-flight back-office posts have finished
func (p *Processor) Wait() {
	p.pending.Wait()
}

func (p *Processor) post(ctx context.Context, tx models.Transaction) {
	p.pending.Add(1)
	go func() {
		defer p.pending.Done()

		ctx, cancel := patterns.WithTimeout(context.WithoutCancel(ctx), patterns.SyncTimeout)
		defer cancel()

		if err := p.poster.PostTransaction(ctx, tx); err != nil {
			metrics.BackendSyncFailures.WithLabelValues("post_transaction").Inc()
			p.logger.WithFields(log.Fields{
				"order_id":       tx.OrderID,
				"transaction_id": tx.ID,
			}).Error("Back-office sync failed: ", err)
		}
	}()
}

func (p *Processor) publish(ctx context.Context, eventType string, evt interface{}) {
	if err := events.PublishJSON(ctx, p.publisher, evt); err != nil {
		metrics.EventPublishFailures.WithLabelValues(eventType).Inc()
		p.logger.WithField("event_type", eventType).Error("Failed to publish event: ", err)
	}
}

// methodLabel keeps free-text payment methods out of metric labels
func methodLabel(method string) string {
	switch m := strings.ToLower(method); m {
	case models.PaymentMethodCash, models.PaymentMethodCard, models.PaymentMethodMobile:
		return m
	}
	return "other"
}
