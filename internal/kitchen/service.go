package kitchen

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ashendes/kitchen-pos/internal/events"
	"github.com/ashendes/kitchen-pos/internal/metrics"
	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/ashendes/kitchen-pos/internal/patterns"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

var (
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrTableRequired     = errors.New("table number is required for dine-in orders")
	ErrInvalidOrderType  = errors.New("invalid order type")
	ErrInvalidItem       = errors.New("invalid order item")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrUnknownStation    = errors.New("unknown station")
)

// MenuLookup resolves catalog entries by menu item id
type MenuLookup interface {
	Lookup(menuItemID string) (models.MenuItem, bool)
}

// OrderSyncer mirrors kitchen state to the back-office API
type OrderSyncer interface {
	PushOrder(ctx context.Context, order models.KitchenOrder) error
	PatchItemStatus(ctx context.Context, orderID, itemID string, status models.ItemStatus) error
	PatchOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error
}

// OrderSource lists the kitchen orders the back office holds
type OrderSource interface {
	FetchKitchenOrders(ctx context.Context) ([]models.KitchenOrder, error)
}

// Service runs kitchen operations against the store and fans the results
// out to the event bus and the back office.
type Service struct {
	store     *Store
	menu      MenuLookup
	syncer    OrderSyncer
	publisher events.Publisher
	clock     Clock
	logger    log.FieldLogger
	newID     func() string

	pending sync.WaitGroup
}

type ServiceOption func(*Service)

func WithMenu(menu MenuLookup) ServiceOption {
	return func(s *Service) { s.menu = menu }
}

func WithSyncer(syncer OrderSyncer) ServiceOption {
	return func(s *Service) { s.syncer = syncer }
}

func WithPublisher(p events.Publisher) ServiceOption {
	return func(s *Service) { s.publisher = p }
}

func WithClock(clock Clock) ServiceOption {
	return func(s *Service) { s.clock = clock }
}

func WithLogger(logger log.FieldLogger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithIDGenerator replaces uuid generation, mostly for tests
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a kitchen service over store
func NewService(store *Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		publisher: events.NoopPublisher{},
		clock:     SystemClock{},
		logger:    log.StandardLogger(),
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying order store
func (s *Service) Store() *Store {
	return s.store
}

// Clock returns the clock the service stamps times with
func (s *Service) Clock() Clock {
	return s.clock
}

// SendToKitchen turns a cart into a new kitchen order
func (s *Service) SendToKitchen(ctx context.Context, req models.CreateKitchenOrderRequest) (models.KitchenOrder, error) {
	if err := validateCart(req); err != nil {
		return models.KitchenOrder{}, err
	}

	now := s.clock.Now()
	items := make([]models.KitchenOrderItem, 0, len(req.Items))
	for _, c := range req.Items {
		items = append(items, models.KitchenOrderItem{
			ID:                  s.newID(),
			MenuItemID:          c.MenuItemID,
			Name:                s.itemName(c),
			Quantity:            c.Quantity,
			Status:              models.ItemStatusPending,
			Station:             StationFor(c.MenuItemID),
			EstimatedTime:       EstimatedTimeFor(c.MenuItemID),
			Modifiers:           c.Modifiers.Clone(),
			SpecialInstructions: c.SpecialInstructions,
		})
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	total := TotalEstimatedTime(items)
	eta := now.Add(time.Duration(total) * time.Minute)

	order := models.KitchenOrder{
		ID:                      s.newID(),
		OrderNumber:             OrderNumber(now),
		TableNumber:             req.TableNumber,
		CustomerName:            req.CustomerName,
		OrderType:               req.OrderType,
		Items:                   items,
		Status:                  models.OrderStatusNew,
		Priority:                priority,
		IsRushed:                req.IsRushed,
		OrderTime:               now,
		EstimatedCompletionTime: &eta,
		TotalEstimatedTime:      total,
		SpecialNotes:            req.SpecialNotes,
		Version:                 1,
	}

	if err := s.store.Add(order); err != nil {
		return models.KitchenOrder{}, err
	}

	metrics.KitchenOrdersCreated.WithLabelValues(string(order.OrderType)).Inc()
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"items":        len(items),
		"estimated":    total,
	}).Info("Order sent to kitchen")

	s.publish(ctx, events.EventKitchenOrderCreated, events.KitchenOrderCreatedEvent{
		KitchenOrderEventMetadata: events.Metadata(events.EventKitchenOrderCreated, order, now),
		OrderType:                 order.OrderType,
		Priority:                  order.Priority,
		IsRushed:                  order.IsRushed,
		ItemCount:                 len(order.Items),
		TotalEstimatedTime:        order.TotalEstimatedTime,
	})

	if s.syncer != nil {
		snapshot := order.Clone()
		s.sync(ctx, "push_order", order.ID, func(ctx context.Context) error {
			return s.syncer.PushOrder(ctx, snapshot)
		})
	}

	return order, nil
}

// UpdateItemStatus moves one item and re-derives the order status
func (s *Service) UpdateItemStatus(ctx context.Context, orderID, itemID string, status models.ItemStatus) (models.KitchenOrder, error) {
	tr, err := s.store.TransitionItemStatus(orderID, itemID, status)
	if err != nil {
		s.logger.WithFields(log.Fields{
			"order_id": orderID,
			"item_id":  itemID,
			"status":   status,
		}).Debug("Item status change rejected: ", err)
		return models.KitchenOrder{}, err
	}

	at := s.clock.Now()
	if tr.PreviousItemStatus != tr.Item.Status {
		metrics.ItemTransitions.WithLabelValues(string(tr.Item.Station), string(tr.Item.Status)).Inc()
		if tr.Item.Status == models.ItemStatusReady && tr.Item.ActualTime != nil {
			metrics.ItemPrepMinutes.WithLabelValues(string(tr.Item.Station)).Observe(float64(*tr.Item.ActualTime))
		}

		s.publish(ctx, events.EventKitchenItemStatusChange, events.KitchenItemStatusChangedEvent{
			KitchenOrderEventMetadata: events.Metadata(events.EventKitchenItemStatusChange, tr.Order, at),
			ItemID:                    tr.Item.ID,
			MenuItemID:                tr.Item.MenuItemID,
			Station:                   tr.Item.Station,
			NewStatus:                 tr.Item.Status,
			PreviousStatus:            tr.PreviousItemStatus,
			StartTime:                 tr.Item.StartTime,
			CompletionTime:            tr.Item.CompletionTime,
			ActualTime:                tr.Item.ActualTime,
		})

		if s.syncer != nil {
			s.sync(ctx, "patch_item_status", orderID, func(ctx context.Context) error {
				return s.syncer.PatchItemStatus(ctx, orderID, itemID, status)
			})
		}
	}

	if tr.OrderChanged() {
		s.orderChanged(ctx, tr.Order, tr.PreviousOrderStatus, at, false)
	}

	return tr.Order, nil
}

// Acknowledge marks a new order as seen by the kitchen
func (s *Service) Acknowledge(ctx context.Context, orderID string) (models.KitchenOrder, error) {
	return s.transitionOrder(ctx, orderID, models.OrderStatusAcknowledged, models.OrderStatusNew)
}

// Complete forces an unfinished order to ready
func (s *Service) Complete(ctx context.Context, orderID string) (models.KitchenOrder, error) {
	return s.transitionOrder(ctx, orderID, models.OrderStatusReady,
		models.OrderStatusNew, models.OrderStatusAcknowledged, models.OrderStatusPreparing)
}

// Serve hands a ready order over to the guest
func (s *Service) Serve(ctx context.Context, orderID string) (models.KitchenOrder, error) {
	return s.transitionOrder(ctx, orderID, models.OrderStatusServed, models.OrderStatusReady)
}

func (s *Service) transitionOrder(ctx context.Context, orderID string, to models.OrderStatus, from ...models.OrderStatus) (models.KitchenOrder, error) {
	tr, err := s.store.TransitionOrderStatus(orderID, to, from...)
	if err != nil {
		return models.KitchenOrder{}, err
	}
	if tr.Changed() {
		s.orderChanged(ctx, tr.Order, tr.PreviousStatus, s.clock.Now(), true)
	}
	return tr.Order, nil
}

// orderChanged records, publishes and optionally syncs an order status move.
// Derived moves are not patched upstream: the back office derives them from
// item updates itself.
func (s *Service) orderChanged(ctx context.Context, order models.KitchenOrder, prev models.OrderStatus, at time.Time, explicit bool) {
	metrics.OrderTransitions.WithLabelValues(string(prev), string(order.Status)).Inc()
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"from":         prev,
		"to":           order.Status,
	}).Info("Order status changed")

	s.publish(ctx, events.EventKitchenOrderStatusChange, events.KitchenOrderStatusChangedEvent{
		KitchenOrderEventMetadata: events.Metadata(events.EventKitchenOrderStatusChange, order, at),
		NewStatus:                 order.Status,
		PreviousStatus:            prev,
		ActualCompletionTime:      order.ActualCompletionTime,
	})

	if explicit && s.syncer != nil {
		orderID, status := order.ID, order.Status
		s.sync(ctx, "patch_order_status", orderID, func(ctx context.Context) error {
			return s.syncer.PatchOrderStatus(ctx, orderID, status)
		})
	}
}

// Restore seeds the store with the back office's orders after a restart.
// Orders already in the store, orders that are served and paid, and
// malformed orders are skipped. It returns how many orders were added.
func (s *Service) Restore(ctx context.Context, source OrderSource) (int, error) {
	orders, err := source.FetchKitchenOrders(ctx)
	if err != nil {
		return 0, fmt.Errorf("cannot restore kitchen orders: %w", err)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].OrderTime.Before(orders[j].OrderTime)
	})

	now := s.clock.Now()
	restored := 0
	for _, o := range orders {
		if o.Paid && o.Status == models.OrderStatusServed {
			continue
		}
		if o.ID == "" || !o.Status.Valid() || len(o.Items) == 0 {
			s.logger.WithField("order_id", o.ID).Warn("Skipping malformed order from back office")
			continue
		}
		if o.Version < 1 {
			o.Version = 1
		}
		o.ElapsedTime = ElapsedMinutes(o.OrderTime, now)

		if err := s.store.Add(o); err != nil {
			if errors.Is(err, ErrDuplicateOrder) {
				continue
			}
			return restored, err
		}
		restored++
	}

	s.logger.WithFields(log.Fields{
		"fetched":  len(orders),
		"restored": restored,
	}).Info("Kitchen orders restored")
	return restored, nil
}

// Get returns the display view of one order
func (s *Service) Get(orderID string) (models.KitchenOrderView, error) {
	order, ok := s.store.Get(orderID)
	if !ok {
		return models.KitchenOrderView{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return View(order, s.clock.Now()), nil
}

// List returns display views of matching orders, rushed and higher priority
// first, then oldest first.
func (s *Service) List(filter Filter) ([]models.KitchenOrderView, error) {
	if filter.Station != "" && !ValidStation(filter.Station) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStation, filter.Station)
	}
	switch filter.Status {
	case "", FilterAll, FilterActive, FilterCompleted, FilterUnpaid:
	default:
		if !models.OrderStatus(filter.Status).Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
		}
	}

	now := s.clock.Now()
	orders := s.store.List(filter)
	sort.SliceStable(orders, func(i, j int) bool {
		ri, rj := PriorityRank(orders[i]), PriorityRank(orders[j])
		if ri != rj {
			return ri > rj
		}
		return orders[i].OrderTime.Before(orders[j].OrderTime)
	})

	views := make([]models.KitchenOrderView, len(orders))
	for i, o := range orders {
		views[i] = View(o, now)
	}
	return views, nil
}

// Wait blocks until in-flight back-office syncs have finished
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) publish(ctx context.Context, eventType string, evt interface{}) {
	if err := events.PublishJSON(ctx, s.publisher, evt); err != nil {
		metrics.EventPublishFailures.WithLabelValues(eventType).Inc()
		s.logger.WithField("event_type", eventType).Error("Failed to publish event: ", err)
	}
}

// sync runs fn in the background. Failures are logged and counted; the
// local store stays the source of truth.
func (s *Service) sync(ctx context.Context, operation, orderID string, fn func(ctx context.Context) error) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := patterns.WithTimeout(context.WithoutCancel(ctx), patterns.SyncTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.BackendSyncFailures.WithLabelValues(operation).Inc()
			s.logger.WithFields(log.Fields{
				"operation": operation,
				"order_id":  orderID,
			}).Error("Back-office sync failed: ", err)
		}
	}()
}

func (s *Service) itemName(c models.CartItem) string {
	if c.Name != "" {
		return c.Name
	}
	if s.menu != nil {
		if mi, ok := s.menu.Lookup(c.MenuItemID); ok && mi.Name != "" {
			return mi.Name
		}
	}
	return c.MenuItemID
}

// OrderNumber is the short display number of an order placed at t
func OrderNumber(t time.Time) string {
	return fmt.Sprintf("%03d", t.UnixMilli()%1000)
}

func validateCart(req models.CreateKitchenOrderRequest) error {
	switch req.OrderType {
	case models.OrderTypeDineIn, models.OrderTypeDelivery, models.OrderTypeTakeaway:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrderType, req.OrderType)
	}
	if len(req.Items) == 0 {
		return ErrEmptyOrder
	}
	if req.OrderType == models.OrderTypeDineIn && req.TableNumber == nil {
		return ErrTableRequired
	}
	for i, item := range req.Items {
		if item.MenuItemID == "" {
			return fmt.Errorf("%w: item %d: menu_item_id is required", ErrInvalidItem, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d: quantity must be greater than 0", ErrInvalidItem, i)
		}
	}
	return nil
}
