package kitchen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 42*int(time.Millisecond), time.UTC)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// MockMenu is a map-backed MenuLookup
type MockMenu map[string]models.MenuItem

func (m MockMenu) Lookup(id string) (models.MenuItem, bool) {
	item, ok := m[id]
	return item, ok
}

type syncCall struct {
	Op      string
	OrderID string
	ItemID  string
	Status  string
}

// MockSyncer records back-office sync calls
type MockSyncer struct {
	mu    sync.Mutex
	calls []syncCall

	PushOrderFunc        func(ctx context.Context, order models.KitchenOrder) error
	PatchItemStatusFunc  func(ctx context.Context, orderID, itemID string, status models.ItemStatus) error
	PatchOrderStatusFunc func(ctx context.Context, orderID string, status models.OrderStatus) error
}

func (m *MockSyncer) record(c syncCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *MockSyncer) Calls() []syncCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]syncCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockSyncer) PushOrder(ctx context.Context, order models.KitchenOrder) error {
	m.record(syncCall{Op: "push_order", OrderID: order.ID, Status: string(order.Status)})
	if m.PushOrderFunc != nil {
		return m.PushOrderFunc(ctx, order)
	}
	return nil
}

func (m *MockSyncer) PatchItemStatus(ctx context.Context, orderID, itemID string, status models.ItemStatus) error {
	m.record(syncCall{Op: "patch_item_status", OrderID: orderID, ItemID: itemID, Status: string(status)})
	if m.PatchItemStatusFunc != nil {
		return m.PatchItemStatusFunc(ctx, orderID, itemID, status)
	}
	return nil
}

func (m *MockSyncer) PatchOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	m.record(syncCall{Op: "patch_order_status", OrderID: orderID, Status: string(status)})
	if m.PatchOrderStatusFunc != nil {
		return m.PatchOrderStatusFunc(ctx, orderID, status)
	}
	return nil
}

// sequentialIDs returns an id generator yielding prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// newTestOrder builds a new order at baseTime with pending items
func newTestOrder(id string, itemIDs ...string) models.KitchenOrder {
	items := make([]models.KitchenOrderItem, 0, len(itemIDs))
	for _, itemID := range itemIDs {
		items = append(items, models.KitchenOrderItem{
			ID:            itemID,
			MenuItemID:    "MENU-001",
			Name:          "Margherita Pizza",
			Quantity:      1,
			Status:        models.ItemStatusPending,
			Station:       models.StationMain,
			EstimatedTime: 15,
		})
	}
	return models.KitchenOrder{
		ID:                 id,
		OrderNumber:        "042",
		OrderType:          models.OrderTypeTakeaway,
		Items:              items,
		Status:             models.OrderStatusNew,
		Priority:           models.PriorityNormal,
		OrderTime:          baseTime,
		TotalEstimatedTime: TotalEstimatedTime(items),
		Version:            1,
	}
}
