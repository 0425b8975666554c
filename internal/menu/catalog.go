package menu

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// Source fetches the menu from wherever it is owned
type Source interface {
	FetchMenuItems(ctx context.Context) ([]models.MenuItem, error)
}

// Catalog is a read-through copy of the back-office menu. The kitchen never
// edits it; Refresh replaces it wholesale.
type Catalog struct {
	mu     sync.RWMutex
	items  map[string]models.MenuItem
	source Source
	logger log.FieldLogger
}

func NewCatalog(source Source, logger log.FieldLogger) *Catalog {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Catalog{
		items:  make(map[string]models.MenuItem),
		source: source,
		logger: logger,
	}
}

// Refresh reloads the menu from the source. The previous menu is kept when
// the fetch fails.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.source == nil {
		return nil
	}

	items, err := c.source.FetchMenuItems(ctx)
	if err != nil {
		return fmt.Errorf("cannot refresh menu: %w", err)
	}

	c.Set(items)
	c.logger.WithField("items", len(items)).Info("Menu catalog refreshed")
	return nil
}

// RetryUntilLoaded refreshes every interval until one refresh succeeds or
// ctx is done.
func (c *Catalog) RetryUntilLoaded(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		err := c.Refresh(ctx)
		if err == nil {
			return nil
		}
		c.logger.WithField("attempt", attempt).Warn("Menu catalog still not loaded: ", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Set replaces the catalog contents
func (c *Catalog) Set(items []models.MenuItem) {
	next := make(map[string]models.MenuItem, len(items))
	for _, item := range items {
		next[item.ID] = item
	}

	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
}

func (c *Catalog) Lookup(menuItemID string) (models.MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[menuItemID]
	return item, ok
}

// Price returns the unit price of a menu item. Unavailable items still
// have a price: availability gates ordering, not settlement.
func (c *Catalog) Price(menuItemID string) (decimal.Decimal, bool) {
	item, ok := c.Lookup(menuItemID)
	if !ok {
		return decimal.Zero, false
	}
	return item.Price, true
}

// All returns the menu sorted by id
func (c *Catalog) All() []models.MenuItem {
	c.mu.RLock()
	out := make([]models.MenuItem, 0, len(c.items))
	for _, item := range c.items {
		out = append(out, item)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
