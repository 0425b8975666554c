package models

import "time"

// ItemStatus is the preparation state of a single kitchen order item
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusPreparing ItemStatus = "preparing"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusServed    ItemStatus = "served"
)

// Valid reports whether s is one of the known item statuses
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusPending, ItemStatusPreparing, ItemStatusReady, ItemStatusServed:
		return true
	}
	return false
}

// OrderStatus is the order-level status. It is mostly derived from item
// statuses; acknowledged and served are set explicitly.
type OrderStatus string

const (
	OrderStatusNew          OrderStatus = "new"
	OrderStatusAcknowledged OrderStatus = "acknowledged"
	OrderStatusPreparing    OrderStatus = "preparing"
	OrderStatusReady        OrderStatus = "ready"
	OrderStatusServed       OrderStatus = "served"
)

// Valid reports whether s is one of the known order statuses
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusAcknowledged, OrderStatusPreparing, OrderStatusReady, OrderStatusServed:
		return true
	}
	return false
}

// Station is the kitchen area an item is prepared at
type Station string

const (
	StationGrill    Station = "grill"
	StationFryer    Station = "fryer"
	StationSalad    Station = "salad"
	StationDessert  Station = "dessert"
	StationBeverage Station = "beverage"
	StationMain     Station = "main"
)

// Priority of an order on the kitchen display
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// OrderType is how the order leaves the kitchen
type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine-in"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeTakeaway OrderType = "takeaway"
)

// Modifiers maps a modifier category to its selection. Multiple selections
// are joined with ", ".
type Modifiers map[string]string

// Clone returns an independent copy. A nil map stays nil.
func (m Modifiers) Clone() Modifiers {
	if m == nil {
		return nil
	}
	out := make(Modifiers, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// KitchenOrderItem represents one line of a kitchen order
type KitchenOrderItem struct {
	ID                  string     `json:"id"`
	MenuItemID          string     `json:"menu_item_id"`
	Name                string     `json:"name"`
	Quantity            int        `json:"quantity"`
	Status              ItemStatus `json:"status"`
	Station             Station    `json:"station"`
	EstimatedTime       int        `json:"estimated_time"`
	StartTime           *time.Time `json:"start_time,omitempty"`
	CompletionTime      *time.Time `json:"completion_time,omitempty"`
	ActualTime          *int       `json:"actual_time,omitempty"`
	Modifiers           Modifiers  `json:"modifiers,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
}

// KitchenOrder is an aggregate of items sent to the kitchen
type KitchenOrder struct {
	ID                      string             `json:"id"`
	OrderNumber             string             `json:"order_number"`
	TableNumber             *int               `json:"table_number,omitempty"`
	CustomerName            string             `json:"customer_name,omitempty"`
	OrderType               OrderType          `json:"order_type"`
	Items                   []KitchenOrderItem `json:"items"`
	Status                  OrderStatus        `json:"status"`
	Priority                Priority           `json:"priority"`
	IsRushed                bool               `json:"is_rushed"`
	OrderTime               time.Time          `json:"order_time"`
	EstimatedCompletionTime *time.Time         `json:"estimated_completion_time,omitempty"`
	ActualCompletionTime    *time.Time         `json:"actual_completion_time,omitempty"`
	TotalEstimatedTime      int                `json:"total_estimated_time"`
	ElapsedTime             int                `json:"elapsed_time"`
	SpecialNotes            string             `json:"special_notes,omitempty"`
	Paid                    bool               `json:"paid"`
	Version                 int                `json:"version"`
}

// Item returns the item with the given id, or nil
func (o *KitchenOrder) Item(id string) *KitchenOrderItem {
	for i := range o.Items {
		if o.Items[i].ID == id {
			return &o.Items[i]
		}
	}
	return nil
}

// ItemStatuses returns the item statuses in order
func (o *KitchenOrder) ItemStatuses() []ItemStatus {
	statuses := make([]ItemStatus, len(o.Items))
	for i, item := range o.Items {
		statuses[i] = item.Status
	}
	return statuses
}

// HasStation reports whether any item is prepared at the given station
func (o *KitchenOrder) HasStation(station Station) bool {
	for _, item := range o.Items {
		if item.Station == station {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate stored state
func (o KitchenOrder) Clone() KitchenOrder {
	out := o
	out.TableNumber = cloneInt(o.TableNumber)
	out.EstimatedCompletionTime = cloneTime(o.EstimatedCompletionTime)
	out.ActualCompletionTime = cloneTime(o.ActualCompletionTime)
	out.Items = make([]KitchenOrderItem, len(o.Items))
	for i, item := range o.Items {
		item.StartTime = cloneTime(item.StartTime)
		item.CompletionTime = cloneTime(item.CompletionTime)
		item.ActualTime = cloneInt(item.ActualTime)
		item.Modifiers = item.Modifiers.Clone()
		out.Items[i] = item
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

// CartItem is one line of the cart sent to the kitchen
type CartItem struct {
	MenuItemID          string    `json:"menu_item_id" binding:"required"`
	Name                string    `json:"name"`
	Quantity            int       `json:"quantity" binding:"required,gt=0"`
	Modifiers           Modifiers `json:"modifiers"`
	SpecialInstructions string    `json:"special_instructions"`
}

// CreateKitchenOrderRequest represents the request to send a cart to the kitchen
type CreateKitchenOrderRequest struct {
	OrderType    OrderType  `json:"order_type" binding:"required,oneof=dine-in delivery takeaway"`
	TableNumber  *int       `json:"table_number"`
	CustomerName string     `json:"customer_name"`
	Priority     Priority   `json:"priority" binding:"omitempty,oneof=low normal high urgent"`
	IsRushed     bool       `json:"is_rushed"`
	SpecialNotes string     `json:"special_notes"`
	Items        []CartItem `json:"items" binding:"required,dive"`
}

// UpdateItemStatusRequest represents an item status change from the kitchen display
type UpdateItemStatusRequest struct {
	Status ItemStatus `json:"status" binding:"required"`
}

// KitchenOrderView is an order as rendered on the kitchen display
type KitchenOrderView struct {
	KitchenOrder
	IsOverdue bool    `json:"is_overdue"`
	Progress  float64 `json:"progress"`
}
