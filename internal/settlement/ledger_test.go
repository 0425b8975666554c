package settlement

import (
	"context"
	"testing"

	"github.com/ashendes/kitchen-pos/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	require.NoError(t, ledger.Append(ctx, models.Transaction{ID: "txn-1", OrderID: "order-1"}))
	require.NoError(t, ledger.Append(ctx, models.Transaction{ID: "txn-2", OrderID: "order-2"}))
	assert.ErrorIs(t, ledger.Append(ctx, models.Transaction{ID: "txn-1"}), ErrDuplicateTransaction)

	list, err := ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "txn-1", list[0].ID)
	assert.Equal(t, "txn-2", list[1].ID)

	list[0].ID = "mutated"
	again, _ := ledger.List(ctx)
	assert.Equal(t, "txn-1", again[0].ID)
}

func TestMemoryLedgerHonoursContext(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, ledger.Append(ctx, models.Transaction{ID: "txn-1"}), context.Canceled)
	_, err := ledger.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	list, err := ledger.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryLedgerOneTransactionPerOrder(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	require.NoError(t, ledger.Append(ctx, models.Transaction{ID: "txn-1", OrderID: "order-1"}))
	assert.ErrorIs(t, ledger.Append(ctx, models.Transaction{ID: "txn-2", OrderID: "order-1"}), ErrDuplicateTransaction)

	found, err := ledger.FindByOrderID(ctx, "order-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "txn-1", found.ID)

	missing, err := ledger.FindByOrderID(ctx, "order-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryLedgerRemove(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	require.NoError(t, ledger.Append(ctx, models.Transaction{ID: "txn-1", OrderID: "order-1"}))
	require.NoError(t, ledger.Append(ctx, models.Transaction{ID: "txn-2", OrderID: "order-2"}))
	require.NoError(t, ledger.Remove(ctx, "txn-1"))
	require.NoError(t, ledger.Remove(ctx, "unknown"))

	list, err := ledger.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "txn-2", list[0].ID)

	found, err := ledger.FindByOrderID(ctx, "order-1")
	require.NoError(t, err)
	assert.Nil(t, found)

	// the order can be settled again once its transaction is voided
	assert.NoError(t, ledger.Append(ctx, models.Transaction{ID: "txn-3", OrderID: "order-1"}))
}
