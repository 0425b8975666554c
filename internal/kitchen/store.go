package kitchen

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrItemNotFound   = errors.New("item not found")
	ErrInvalidStatus  = errors.New("invalid status")
	ErrDuplicateOrder = errors.New("order already exists")
)

// Status filter values understood by List besides plain order statuses
const (
	FilterAll       = "all"
	FilterActive    = "active"
	FilterCompleted = "completed"
	FilterUnpaid    = "unpaid"
)

// Filter narrows List results
type Filter struct {
	Status  string
	Station models.Station
}

func (f Filter) matches(o *models.KitchenOrder) bool {
	if f.Station != "" && !o.HasStation(f.Station) {
		return false
	}
	switch f.Status {
	case "", FilterAll:
		return true
	case FilterActive:
		return o.Status == models.OrderStatusNew ||
			o.Status == models.OrderStatusAcknowledged ||
			o.Status == models.OrderStatusPreparing
	case FilterCompleted:
		return o.Status == models.OrderStatusServed
	case FilterUnpaid:
		return !o.Paid && (o.Status == models.OrderStatusReady || o.Status == models.OrderStatusServed)
	default:
		return string(o.Status) == f.Status
	}
}

// ItemTransition describes the outcome of an item status change
type ItemTransition struct {
	Order               models.KitchenOrder
	Item                models.KitchenOrderItem
	PreviousItemStatus  models.ItemStatus
	PreviousOrderStatus models.OrderStatus
}

// OrderChanged reports whether the item change moved the order status
func (t ItemTransition) OrderChanged() bool {
	return t.PreviousOrderStatus != t.Order.Status
}

// OrderTransition describes the outcome of an explicit order status change
type OrderTransition struct {
	Order          models.KitchenOrder
	PreviousStatus models.OrderStatus
}

// Changed reports whether the status actually moved
func (t OrderTransition) Changed() bool {
	return t.PreviousStatus != t.Order.Status
}

// Store holds kitchen orders in memory. All mutations are serialized by one
// lock and every read returns a copy.
type Store struct {
	mu       sync.RWMutex
	orders   map[string]*models.KitchenOrder
	sequence []string
	clock    Clock
}

// NewStore creates an empty order store
func NewStore(clock Clock) *Store {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Store{
		orders: make(map[string]*models.KitchenOrder),
		clock:  clock,
	}
}

// Add stores a new order
func (s *Store) Add(order models.KitchenOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, order.ID)
	}
	o := order.Clone()
	s.orders[o.ID] = &o
	s.sequence = append(s.sequence, o.ID)
	return nil
}

// Get returns a copy of the order
func (s *Store) Get(id string) (models.KitchenOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[id]
	if !ok {
		return models.KitchenOrder{}, false
	}
	return o.Clone(), true
}

// List returns matching orders in creation order
func (s *Store) List(filter Filter) []models.KitchenOrder {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]models.KitchenOrder, 0, len(s.sequence))
	for _, id := range s.sequence {
		o := s.orders[id]
		if filter.matches(o) {
			result = append(result, o.Clone())
		}
	}
	return result
}

// Count returns the number of stored orders
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

// TransitionItemStatus moves one item to status and re-derives the order
// status. Entering preparing stamps the start time once; entering ready
// stamps completion and the actual preparation minutes. Unknown ids leave
// the store untouched.
func (s *Store) TransitionItemStatus(orderID, itemID string, status models.ItemStatus) (ItemTransition, error) {
	if !status.Valid() {
		return ItemTransition{}, fmt.Errorf("%w: item status %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return ItemTransition{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	item := order.Item(itemID)
	if item == nil {
		return ItemTransition{}, fmt.Errorf("%w: %s in order %s", ErrItemNotFound, itemID, orderID)
	}

	now := s.clock.Now()
	prevItem := item.Status
	prevOrder := order.Status
	changed := prevItem != status

	item.Status = status
	if status == models.ItemStatusPreparing && item.StartTime == nil {
		item.StartTime = timePtr(now)
		changed = true
	}
	if status == models.ItemStatusReady && prevItem != models.ItemStatusReady {
		item.CompletionTime = timePtr(now)
		if item.StartTime != nil {
			minutes := int(now.Sub(*item.StartTime) / time.Minute)
			item.ActualTime = &minutes
		}
	}

	next := NextOrderStatus(prevOrder, order.ItemStatuses())
	if next != prevOrder {
		order.Status = next
		if next == models.OrderStatusReady {
			order.ActualCompletionTime = timePtr(now)
		}
		changed = true
	}
	if changed {
		order.Version++
	}

	snapshot := order.Clone()
	return ItemTransition{
		Order:               snapshot,
		Item:                *snapshot.Item(itemID),
		PreviousItemStatus:  prevItem,
		PreviousOrderStatus: prevOrder,
	}, nil
}

// TransitionOrderStatus overwrites the order status for the explicit
// acknowledge, complete and serve actions. When from is given the current
// status must be one of them, checked under the same lock as the write.
// Entering ready stamps the actual completion time. An order can never be
// moved back to new.
func (s *Store) TransitionOrderStatus(orderID string, status models.OrderStatus, from ...models.OrderStatus) (OrderTransition, error) {
	if !status.Valid() || status == models.OrderStatusNew {
		return OrderTransition{}, fmt.Errorf("%w: order status %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return OrderTransition{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	prev := order.Status
	if len(from) > 0 && !statusIn(prev, from) {
		return OrderTransition{}, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, prev, status)
	}
	if prev != status {
		order.Status = status
		if status == models.OrderStatusReady {
			order.ActualCompletionTime = timePtr(s.clock.Now())
		}
		order.Version++
	}

	return OrderTransition{Order: order.Clone(), PreviousStatus: prev}, nil
}

// Update runs fn against the stored order under the store lock. When fn
// returns an error the order is left exactly as it was.
func (s *Store) Update(orderID string, fn func(order *models.KitchenOrder) error) (models.KitchenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok {
		return models.KitchenOrder{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	working := order.Clone()
	if err := fn(&working); err != nil {
		return models.KitchenOrder{}, err
	}
	working.ID = order.ID
	working.Version = order.Version + 1
	*order = working

	return order.Clone(), nil
}

// RefreshElapsed recomputes the elapsed-minutes display value of every
// order. It touches nothing else.
func (s *Store) RefreshElapsed(now time.Time) []models.KitchenOrder {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]models.KitchenOrder, 0, len(s.sequence))
	for _, id := range s.sequence {
		o := s.orders[id]
		o.ElapsedTime = ElapsedMinutes(o.OrderTime, now)
		result = append(result, o.Clone())
	}
	return result
}

func statusIn(s models.OrderStatus, set []models.OrderStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

func timePtr(t time.Time) *time.Time {
	return &t
}
