package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionStatus constants
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusPaid     TransactionStatus = "paid"
	TransactionStatusRefunded TransactionStatus = "refunded"
)

// Known payment methods. Other values are accepted as free text.
const (
	PaymentMethodCash   = "cash"
	PaymentMethodCard   = "card"
	PaymentMethodMobile = "mobile"
)

// DiscountType selects how a discount amount is interpreted
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// TransactionItem is an immutable snapshot of an order line at payment time
type TransactionItem struct {
	ID                  string          `json:"id"`
	MenuItemID          string          `json:"menu_item_id"`
	Name                string          `json:"name"`
	Price               decimal.Decimal `json:"price"`
	Quantity            int             `json:"quantity"`
	Modifiers           Modifiers       `json:"modifiers,omitempty"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Station             Station         `json:"station"`
	EstimatedTime       int             `json:"estimated_time"`
}

// Transaction represents a settled payment for a kitchen order
type Transaction struct {
	ID            string            `json:"id"`
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	TableNumber   *int              `json:"table_number,omitempty"`
	CustomerName  string            `json:"customer_name,omitempty"`
	OrderType     OrderType         `json:"order_type"`
	Items         []TransactionItem `json:"items"`
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Discount      decimal.Decimal   `json:"discount"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         decimal.Decimal   `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
}

// QuoteRequest asks for the totals of an order without settling it
type QuoteRequest struct {
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	DiscountType   DiscountType    `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
}

// PaymentRequest represents the request to settle a kitchen order
type PaymentRequest struct {
	PaymentMethod   string          `json:"payment_method" binding:"required"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	DiscountType    DiscountType    `json:"discount_type" binding:"omitempty,oneof=percentage fixed"`
	ExpectedVersion *int            `json:"expected_version"`
}

// TotalsResponse carries exact amounts and their two-decimal display form
type TotalsResponse struct {
	Subtotal      decimal.Decimal   `json:"subtotal"`
	Discount      decimal.Decimal   `json:"discount"`
	AfterDiscount decimal.Decimal   `json:"after_discount"`
	Tax           decimal.Decimal   `json:"tax"`
	Total         decimal.Decimal   `json:"total"`
	Display       map[string]string `json:"display"`
}

// PaymentResponse represents the response after settling an order
type PaymentResponse struct {
	TransactionID string      `json:"transaction_id"`
	Status        string      `json:"status"`
	Message       string      `json:"message,omitempty"`
	Transaction   Transaction `json:"transaction"`
	Display       string      `json:"display_total"`
}
