package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ashendes/kitchen-pos/internal/models"
)

var ErrDuplicateTransaction = errors.New("transaction already recorded")

// Ledger records settled transactions. An order is settled by at most one
// transaction.
type Ledger interface {
	Append(ctx context.Context, tx models.Transaction) error
	// Remove voids a transaction whose order could not be committed
	Remove(ctx context.Context, transactionID string) error
	List(ctx context.Context) ([]models.Transaction, error)
	// FindByOrderID returns nil when the order has no transaction
	FindByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
}

// MemoryLedger keeps transactions in process memory
type MemoryLedger struct {
	mu           sync.RWMutex
	transactions []models.Transaction
	ids          map[string]struct{}
	orders       map[string]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		ids:    make(map[string]struct{}),
		orders: make(map[string]string),
	}
}

func (l *MemoryLedger) Append(ctx context.Context, tx models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.ids[tx.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.ID)
	}
	if tx.OrderID != "" {
		if _, ok := l.orders[tx.OrderID]; ok {
			return fmt.Errorf("%w: order %s", ErrDuplicateTransaction, tx.OrderID)
		}
		l.orders[tx.OrderID] = tx.ID
	}
	l.ids[tx.ID] = struct{}{}
	l.transactions = append(l.transactions, tx)
	return nil
}

// Remove deletes a transaction. Unknown ids are ignored.
func (l *MemoryLedger) Remove(ctx context.Context, transactionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for i, tx := range l.transactions {
		if tx.ID != transactionID {
			continue
		}
		l.transactions = append(l.transactions[:i], l.transactions[i+1:]...)
		delete(l.ids, tx.ID)
		if tx.OrderID != "" {
			delete(l.orders, tx.OrderID)
		}
		return nil
	}
	return nil
}

// List returns transactions in the order they were recorded
func (l *MemoryLedger) List(ctx context.Context) ([]models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Transaction, len(l.transactions))
	copy(out, l.transactions)
	return out, nil
}

func (l *MemoryLedger) FindByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.orders[orderID]
	if !ok {
		return nil, nil
	}
	for _, tx := range l.transactions {
		if tx.ID == id {
			found := tx
			return &found, nil
		}
	}
	return nil, nil
}
