package settlement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/shopspring/decimal"
)

var ErrInvalidDiscount = errors.New("invalid discount")

// DefaultTaxRate is applied to the post-discount subtotal
var DefaultTaxRate = decimal.RequireFromString("0.10")

var hundred = decimal.NewFromInt(100)

// PriceLookup resolves the current unit price of a menu item
type PriceLookup interface {
	Price(menuItemID string) (decimal.Decimal, bool)
}

// MissingPriceError lists the menu items that could not be priced
type MissingPriceError struct {
	MenuItemIDs []string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no catalog price for menu items: %s", strings.Join(e.MenuItemIDs, ", "))
}

// Totals are the exact amounts of a settlement
type Totals struct {
	Subtotal      decimal.Decimal
	Discount      decimal.Decimal
	AfterDiscount decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
}

// Display formats every amount with two decimals
func (t Totals) Display() map[string]string {
	return map[string]string{
		"subtotal":       t.Subtotal.StringFixed(2),
		"discount":       t.Discount.StringFixed(2),
		"after_discount": t.AfterDiscount.StringFixed(2),
		"tax":            t.Tax.StringFixed(2),
		"total":          t.Total.StringFixed(2),
	}
}

// Response converts the totals to their API shape
func (t Totals) Response() models.TotalsResponse {
	return models.TotalsResponse{
		Subtotal:      t.Subtotal,
		Discount:      t.Discount,
		AfterDiscount: t.AfterDiscount,
		Tax:           t.Tax,
		Total:         t.Total,
		Display:       t.Display(),
	}
}

// Calculator prices orders against the menu catalog
type Calculator struct {
	prices        PriceLookup
	taxRate       decimal.Decimal
	allowUnpriced bool
}

type CalculatorOption func(*Calculator)

func WithTaxRate(rate decimal.Decimal) CalculatorOption {
	return func(c *Calculator) { c.taxRate = rate }
}

// AllowUnpriced prices unknown menu items at zero instead of failing
func AllowUnpriced(allow bool) CalculatorOption {
	return func(c *Calculator) { c.allowUnpriced = allow }
}

func NewCalculator(prices PriceLookup, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		prices:  prices,
		taxRate: DefaultTaxRate,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TaxRate returns the configured tax rate
func (c *Calculator) TaxRate() decimal.Decimal {
	return c.taxRate
}

// ComputeTotals prices order and applies the discount and tax
func (c *Calculator) ComputeTotals(order models.KitchenOrder, amount decimal.Decimal, discountType models.DiscountType) (Totals, error) {
	_, totals, err := c.Settle(order, amount, discountType)
	return totals, err
}

// Settle returns the priced item snapshot together with the totals
func (c *Calculator) Settle(order models.KitchenOrder, amount decimal.Decimal, discountType models.DiscountType) ([]models.TransactionItem, Totals, error) {
	items, subtotal, err := c.PriceItems(order)
	if err != nil {
		return nil, Totals{}, err
	}

	discount, err := ResolveDiscount(subtotal, amount, discountType)
	if err != nil {
		return nil, Totals{}, err
	}

	after := subtotal.Sub(discount)
	tax := after.Mul(c.taxRate)

	return items, Totals{
		Subtotal:      subtotal,
		Discount:      discount,
		AfterDiscount: after,
		Tax:           tax,
		Total:         after.Add(tax),
	}, nil
}

// PriceItems snapshots every order line with its catalog price and returns
// the subtotal. Unpriced lines fail with a *MissingPriceError unless the
// calculator allows them.
func (c *Calculator) PriceItems(order models.KitchenOrder) ([]models.TransactionItem, decimal.Decimal, error) {
	items := make([]models.TransactionItem, 0, len(order.Items))
	subtotal := decimal.Zero
	var missing []string

	for _, item := range order.Items {
		var price decimal.Decimal
		ok := false
		if c.prices != nil {
			price, ok = c.prices.Price(item.MenuItemID)
		}
		if !ok {
			missing = append(missing, item.MenuItemID)
			price = decimal.Zero
		}

		subtotal = subtotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, models.TransactionItem{
			ID:                  item.ID,
			MenuItemID:          item.MenuItemID,
			Name:                item.Name,
			Price:               price,
			Quantity:            item.Quantity,
			Modifiers:           item.Modifiers.Clone(),
			SpecialInstructions: item.SpecialInstructions,
			Station:             item.Station,
			EstimatedTime:       item.EstimatedTime,
		})
	}

	if len(missing) > 0 && !c.allowUnpriced {
		return nil, decimal.Zero, &MissingPriceError{MenuItemIDs: missing}
	}
	return items, subtotal, nil
}

// ResolveDiscount turns the discount input into a currency amount.
// Percentages are capped at 100 and fixed amounts at the subtotal, so the
// post-discount subtotal never goes negative. An empty type is a percentage.
func ResolveDiscount(subtotal, amount decimal.Decimal, discountType models.DiscountType) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative amount %s", ErrInvalidDiscount, amount)
	}

	switch discountType {
	case "", models.DiscountTypePercentage:
		return subtotal.Mul(decimal.Min(amount, hundred)).Shift(-2), nil
	case models.DiscountTypeFixed:
		return decimal.Min(amount, subtotal), nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, discountType)
}
