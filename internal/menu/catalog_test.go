package menu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	items    []models.MenuItem
	err      error
	failures int
	calls    int
}

func (s *fakeSource) FetchMenuItems(context.Context) ([]models.MenuItem, error) {
	s.calls++
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("back office unreachable")
	}
	return s.items, s.err
}

func menuItem(id, name, price string, available bool) models.MenuItem {
	return models.MenuItem{ID: id, Name: name, Price: decimal.RequireFromString(price), Available: available}
}

func TestCatalogRefresh(t *testing.T) {
	logger, hook := test.NewNullLogger()
	source := &fakeSource{items: []models.MenuItem{
		menuItem("MENU-002", "Caesar Salad", "14.99", true),
		menuItem("MENU-001", "Margherita Pizza", "18.99", true),
		menuItem("MENU-004", "Pasta Carbonara", "19.99", false),
	}}
	catalog := NewCatalog(source, logger)

	require.NoError(t, catalog.Refresh(context.Background()))
	assert.Equal(t, 3, catalog.Len())
	assert.Equal(t, "Menu catalog refreshed", hook.LastEntry().Message)

	item, ok := catalog.Lookup("MENU-001")
	require.True(t, ok)
	assert.Equal(t, "Margherita Pizza", item.Name)

	price, ok := catalog.Price("MENU-004")
	require.True(t, ok)
	assert.True(t, price.Equal(decimal.RequireFromString("19.99")))

	_, ok = catalog.Price("MENU-999")
	assert.False(t, ok)

	var ids []string
	for _, mi := range catalog.All() {
		ids = append(ids, mi.ID)
	}
	assert.Equal(t, []string{"MENU-001", "MENU-002", "MENU-004"}, ids)
}

func TestCatalogKeepsMenuWhenRefreshFails(t *testing.T) {
	logger, _ := test.NewNullLogger()
	source := &fakeSource{items: []models.MenuItem{menuItem("MENU-001", "Margherita Pizza", "18.99", true)}}
	catalog := NewCatalog(source, logger)
	require.NoError(t, catalog.Refresh(context.Background()))

	source.items = nil
	source.err = errors.New("back office down")
	err := catalog.Refresh(context.Background())
	assert.ErrorIs(t, err, source.err)
	assert.Equal(t, 2, source.calls)

	_, ok := catalog.Lookup("MENU-001")
	assert.True(t, ok)
}

func TestCatalogWithoutSource(t *testing.T) {
	catalog := NewCatalog(nil, nil)
	require.NoError(t, catalog.Refresh(context.Background()))
	assert.Equal(t, 0, catalog.Len())

	catalog.Set([]models.MenuItem{menuItem("MENU-007", "Soft Drink", "3.49", true)})
	price, ok := catalog.Price("MENU-007")
	require.True(t, ok)
	assert.Equal(t, "3.49", price.StringFixed(2))

	catalog.Set(nil)
	assert.Equal(t, 0, catalog.Len())
}

func TestCatalogRetryUntilLoaded(t *testing.T) {
	logger, hook := test.NewNullLogger()
	source := &fakeSource{
		items:    []models.MenuItem{menuItem("MENU-001", "Margherita Pizza", "18.99", true)},
		failures: 2,
	}
	catalog := NewCatalog(source, logger)

	require.NoError(t, catalog.RetryUntilLoaded(context.Background(), time.Millisecond))
	assert.Equal(t, 3, source.calls)
	assert.Equal(t, 1, catalog.Len())

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Message == "Menu catalog still not loaded: cannot refresh menu: back office unreachable" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestCatalogRetryStopsWithContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	source := &fakeSource{err: errors.New("back office down")}
	catalog := NewCatalog(source, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := catalog.RetryUntilLoaded(ctx, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, source.calls, 1)
	assert.Equal(t, 0, catalog.Len())
}
