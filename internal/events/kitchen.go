package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/shopspring/decimal"
)

const (
	KitchenOrdersTopic            = "kitchen.orders"
	EventKitchenOrderCreated      = "kitchen.order.created"
	EventKitchenItemStatusChange  = "kitchen.order.item_status_changed"
	EventKitchenOrderStatusChange = "kitchen.order.status_changed"
	EventTransactionSettled       = "kitchen.transaction.settled"
)

type KitchenOrderEventMetadata struct {
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	TableNumber *int      `json:"table_number,omitempty"`
}

type KitchenOrderCreatedEvent struct {
	KitchenOrderEventMetadata
	OrderType          models.OrderType `json:"order_type"`
	Priority           models.Priority  `json:"priority"`
	IsRushed           bool             `json:"is_rushed"`
	ItemCount          int              `json:"item_count"`
	TotalEstimatedTime int              `json:"total_estimated_time"`
}

type KitchenItemStatusChangedEvent struct {
	KitchenOrderEventMetadata
	ItemID         string            `json:"item_id"`
	MenuItemID     string            `json:"menu_item_id"`
	Station        models.Station    `json:"station"`
	NewStatus      models.ItemStatus `json:"new_status"`
	PreviousStatus models.ItemStatus `json:"previous_status"`
	StartTime      *time.Time        `json:"start_time,omitempty"`
	CompletionTime *time.Time        `json:"completion_time,omitempty"`
	ActualTime     *int              `json:"actual_time,omitempty"`
}

type KitchenOrderStatusChangedEvent struct {
	KitchenOrderEventMetadata
	NewStatus            models.OrderStatus `json:"new_status"`
	PreviousStatus       models.OrderStatus `json:"previous_status"`
	ActualCompletionTime *time.Time         `json:"actual_completion_time,omitempty"`
}

type TransactionSettledEvent struct {
	KitchenOrderEventMetadata
	TransactionID string          `json:"transaction_id"`
	PaymentMethod string          `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
}

// Metadata builds the common event header for an order
func Metadata(eventType string, order models.KitchenOrder, at time.Time) KitchenOrderEventMetadata {
	return KitchenOrderEventMetadata{
		EventType:   eventType,
		OccurredAt:  at,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		TableNumber: order.TableNumber,
	}
}

// PublishJSON encodes evt and publishes it on the kitchen orders topic
func PublishJSON(ctx context.Context, p Publisher, evt interface{}) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("cannot encode event: %w", err)
	}
	return p.Publish(ctx, KitchenOrdersTopic, data)
}
