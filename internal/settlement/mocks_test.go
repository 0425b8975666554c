package settlement

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// priceTable is a map-backed PriceLookup
type priceTable map[string]string

func (p priceTable) Price(id string) (decimal.Decimal, bool) {
	v, ok := p[id]
	if !ok {
		return decimal.Zero, false
	}
	return decimal.RequireFromString(v), true
}

var testPrices = priceTable{
	"MENU-001": "18.99",
	"MENU-002": "14.99",
	"MENU-003": "15.99",
	"MENU-007": "3.49",
}

// MockPoster records transactions posted to the back office
type MockPoster struct {
	mu     sync.Mutex
	posted []models.Transaction
	Err    error
}

func (m *MockPoster) PostTransaction(_ context.Context, tx models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, tx)
	return m.Err
}

func (m *MockPoster) Posted() []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transaction, len(m.posted))
	copy(out, m.posted)
	return out
}

// failingLedger rejects every append
type failingLedger struct {
	err error
}

func (l failingLedger) Append(context.Context, models.Transaction) error { return l.err }

func (l failingLedger) Remove(context.Context, string) error { return nil }

func (l failingLedger) List(context.Context) ([]models.Transaction, error) { return nil, nil }

func (l failingLedger) FindByOrderID(context.Context, string) (*models.Transaction, error) {
	return nil, nil
}

// blockingLedger holds each append until release is closed
type blockingLedger struct {
	*MemoryLedger
	entered chan struct{}
	release chan struct{}
}

func newBlockingLedger() *blockingLedger {
	return &blockingLedger{
		MemoryLedger: NewMemoryLedger(),
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
}

func (l *blockingLedger) Append(ctx context.Context, tx models.Transaction) error {
	l.entered <- struct{}{}
	select {
	case <-l.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return l.MemoryLedger.Append(ctx, tx)
}

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

// orderLine is a menu item id with its quantity
type orderLine struct {
	menuItemID string
	quantity   int
}

func newOrder(id string, status models.OrderStatus, lines ...orderLine) models.KitchenOrder {
	items := make([]models.KitchenOrderItem, 0, len(lines))
	for i, l := range lines {
		items = append(items, models.KitchenOrderItem{
			ID:            fmt.Sprintf("%s-item-%d", id, i+1),
			MenuItemID:    l.menuItemID,
			Name:          l.menuItemID,
			Quantity:      l.quantity,
			Status:        models.ItemStatusReady,
			Station:       models.StationMain,
			EstimatedTime: 10,
		})
	}
	return models.KitchenOrder{
		ID:                 id,
		OrderNumber:        "007",
		OrderType:          models.OrderTypeTakeaway,
		Items:              items,
		Status:             status,
		Priority:           models.PriorityNormal,
		OrderTime:          baseTime,
		TotalEstimatedTime: 10,
		Version:            1,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s %v", want, got, msgAndArgs)
}
