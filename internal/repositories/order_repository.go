package repositories

import (
	"context"
	"errors"
	"time"

	"adforge/internal/models"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrStatusConflict = errors.New("order is not pending")
)

// OrderRepository defines the interface for order persistence
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Order, error)
	CountByUser(ctx context.Context, userID string) (int64, error)

	// MarkTerminal moves a pending order to status. ErrStatusConflict if the
	// order is no longer pending, ErrOrderNotFound if it does not exist.
	MarkTerminal(ctx context.Context, id string, status models.OrderStatus, output models.JSON, errMsg string, at time.Time) error

	ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error)

	// GetPendingForUpdate row-locks a pending order. ErrStatusConflict if it
	// already reached a terminal status.
	GetPendingForUpdate(ctx context.Context, id string) (*models.Order, error)
	// FindDebit returns the ledger debit recorded for the order,
	// ErrEntryNotFound if it was never charged.
	FindDebit(ctx context.Context, orderID string) (*models.WalletEntry, error)

	ExecuteInTransaction(ctx context.Context, fn func(OrderRepository) error) error
}
