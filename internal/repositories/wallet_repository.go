package repositories

import (
	"context"
	"errors"
	"time"

	"adforge/internal/models"
)

var (
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrEntryNotFound   = errors.New("ledger entry not found")
	ErrBalanceConflict = errors.New("balance would become negative")
	ErrDuplicateEntry  = errors.New("ledger entry already exists")
)

// BalanceState is the wallet row right after a balance write.
type BalanceState struct {
	Balance int64
	Version int64
}

// WalletRepository defines the interface for wallet and ledger persistence
type WalletRepository interface {
	// Wallet documents
	CreateIfAbsent(ctx context.Context, wallet *models.Wallet) (bool, error)
	GetByUserID(ctx context.Context, userID string) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, userID string) (*models.Wallet, error)
	UpdateAccount(ctx context.Context, userID, accountType string, isAdmin bool, at time.Time) error
	GetVersion(ctx context.Context, userID string) (int64, error)

	// ApplyDelta adds delta to the balance only if the result stays >= 0 and
	// returns the new balance and wallet version. ErrBalanceConflict otherwise.
	ApplyDelta(ctx context.Context, userID string, delta int64, at time.Time) (BalanceState, error)

	// LockOrder row-locks the order being charged and returns its status.
	// ErrOrderNotFound when no such order is tracked.
	LockOrder(ctx context.Context, orderID string) (models.OrderStatus, error)

	// Ledger entries
	CreateEntry(ctx context.Context, entry *models.WalletEntry) error
	EntryExists(ctx context.Context, idempotencyKey string) (bool, error)
	GetDebitByOrder(ctx context.Context, orderID string) (*models.WalletEntry, error)
	ListEntries(ctx context.Context, userID string, limit, offset int) ([]models.WalletEntry, error)

	// Policy counters
	UsageSince(ctx context.Context, userID, toolType string, since time.Time) (int64, error)
	LastDebitAt(ctx context.Context, userID, toolType string) (*time.Time, error)

	ExecuteInTransaction(ctx context.Context, fn func(WalletRepository) error) error
}
