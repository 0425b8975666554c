package backend

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ashendes/kitchen-pos/internal/models"
)

// FetchMenuItems loads the menu catalog
func (c *Client) FetchMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := c.Get(ctx, "/menu/items", &items); err != nil {
		return nil, fmt.Errorf("cannot fetch menu items: %w", err)
	}
	return items, nil
}

// FetchKitchenOrders loads every kitchen order the back office holds
func (c *Client) FetchKitchenOrders(ctx context.Context) ([]models.KitchenOrder, error) {
	var orders []models.KitchenOrder
	if err := c.Get(ctx, "/kitchen-orders", &orders); err != nil {
		return nil, fmt.Errorf("cannot fetch kitchen orders: %w", err)
	}
	return orders, nil
}

// PushOrder sends a newly created kitchen order
func (c *Client) PushOrder(ctx context.Context, order models.KitchenOrder) error {
	return c.Post(ctx, "/kitchen-orders", order, nil)
}

// PatchItemStatus mirrors an item status change
func (c *Client) PatchItemStatus(ctx context.Context, orderID, itemID string, status models.ItemStatus) error {
	path := fmt.Sprintf("/kitchen-orders/%s/menu/items/%s", url.PathEscape(orderID), url.PathEscape(itemID))
	return c.Patch(ctx, path, models.ItemStatusSync{Status: status}, nil)
}

// PatchOrderStatus mirrors an explicit order status change
func (c *Client) PatchOrderStatus(ctx context.Context, orderID string, status models.OrderStatus) error {
	path := fmt.Sprintf("/kitchen-orders/%s", url.PathEscape(orderID))
	return c.Patch(ctx, path, models.OrderStatusSync{Status: status}, nil)
}

// PostTransaction records a settled transaction
func (c *Client) PostTransaction(ctx context.Context, tx models.Transaction) error {
	return c.Post(ctx, "/transactions", tx, nil)
}
