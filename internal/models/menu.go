package models

import "github.com/shopspring/decimal"

// MenuItem is a catalog record served by the back-office API
type MenuItem struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	CategoryID string          `json:"category_id"`
	Available  bool            `json:"available"`
}

// ItemStatusSync is the body of an item status update sent to the back office
type ItemStatusSync struct {
	Status ItemStatus `json:"status" binding:"required"`
}

// OrderStatusSync is the body of an order status update sent to the back office
type OrderStatusSync struct {
	Status OrderStatus `json:"status" binding:"required"`
}
