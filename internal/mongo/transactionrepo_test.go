package mongo

import (
	"testing"
	"time"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func sampleTransaction() models.Transaction {
	table := 12
	created := time.Date(2024, 3, 1, 12, 25, 0, 0, time.UTC)
	paid := created.Add(time.Second)
	return models.Transaction{
		ID:           "txn-1",
		OrderID:      "order-1",
		OrderNumber:  "042",
		TableNumber:  &table,
		CustomerName: "Ada",
		OrderType:    models.OrderTypeDineIn,
		Items: []models.TransactionItem{
			{
				ID:            "item-1",
				MenuItemID:    "MENU-003",
				Name:          "Beef Burger",
				Price:         decimal.RequireFromString("15.99"),
				Quantity:      2,
				Modifiers:     map[string]string{"Doneness": "Medium"},
				Station:       models.StationGrill,
				EstimatedTime: 12,
			},
		},
		Subtotal:      decimal.RequireFromString("31.98"),
		Discount:      decimal.RequireFromString("3.20"),
		Tax:           decimal.RequireFromString("2.878"),
		Total:         decimal.RequireFromString("31.658"),
		PaymentMethod: "card",
		Status:        models.TransactionStatusPaid,
		CreatedAt:     created,
		PaidAt:        &paid,
	}
}

func TestTransactionDocRoundTripIsExact(t *testing.T) {
	tx := sampleTransaction()

	doc, err := newTransactionDoc(tx)
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var decoded transactionDoc
	require.NoError(t, bson.Unmarshal(raw, &decoded))

	got, err := decoded.transaction()
	require.NoError(t, err)

	assert.True(t, tx.Subtotal.Equal(got.Subtotal))
	assert.True(t, tx.Discount.Equal(got.Discount))
	assert.True(t, tx.Tax.Equal(got.Tax))
	assert.True(t, tx.Total.Equal(got.Total), "total %s", got.Total)
	assert.Equal(t, "31.658", got.Total.String())

	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(decimal.RequireFromString("15.99")))
	assert.Equal(t, "Medium", got.Items[0].Modifiers["Doneness"])
	assert.Equal(t, models.StationGrill, got.Items[0].Station)

	assert.Equal(t, 12, *got.TableNumber)
	assert.True(t, tx.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, tx.PaidAt.Equal(*got.PaidAt))
	assert.Equal(t, models.OrderTypeDineIn, got.OrderType)
	assert.Equal(t, models.TransactionStatusPaid, got.Status)
}

func TestTransactionDocUsesOrderIDField(t *testing.T) {
	doc, err := newTransactionDoc(sampleTransaction())
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var m bson.M
	require.NoError(t, bson.Unmarshal(raw, &m))
	assert.Equal(t, "txn-1", m["_id"])
	assert.Equal(t, "order-1", m["order_id"])
	assert.NotContains(t, m, "customer")
}

func TestDecimal128Conversion(t *testing.T) {
	for _, s := range []string{"0", "0.01", "18.8001", "-3.20", "123456789.123456789"} {
		v, err := toDecimal128(decimal.RequireFromString(s))
		require.NoError(t, err, s)

		back, err := fromDecimal128(v)
		require.NoError(t, err, s)
		assert.True(t, decimal.RequireFromString(s).Equal(back), "%s became %s", s, back)
	}
}

func TestNewTransactionRepoDefaults(t *testing.T) {
	repo := NewTransactionRepo("", "", nil)
	assert.Equal(t, defaultURL, repo.url)
	assert.Equal(t, defaultDatabase, repo.dbName)
	assert.NotNil(t, repo.logger)
}
