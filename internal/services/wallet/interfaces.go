package wallet

import (
	"context"

	"adforge/internal/models"
	"adforge/internal/services/notification"
)

// Service defines the ledger operations
type Service interface {
	// Wallet lifecycle
	InitializeWallet(ctx context.Context, identity models.Identity) (*models.Wallet, bool, error)
	GetProfile(ctx context.Context, userID string) (*models.Wallet, error)
	SetAccount(ctx context.Context, userID, accountType string, isAdmin bool) error

	// Balance mutations
	DeductPoints(ctx context.Context, req DeductRequest) (*models.WalletEntry, error)
	CreditPoints(ctx context.Context, req CreditRequest) (*models.WalletEntry, error)

	// Ledger reads
	ListEntries(ctx context.Context, userID string, limit, offset int) ([]models.WalletEntry, error)
	DebitForOrder(ctx context.Context, orderID string) (*models.WalletEntry, error)

	// Observation
	SubscribeToBalance(ctx context.Context, userID string, onChange notification.Handler) (*notification.Subscription, error)
}

// ProfileCache is the read-through cache in front of GetProfile.
type ProfileCache interface {
	GetWallet(ctx context.Context, userID string) (*models.Wallet, bool, error)
	SetWallet(ctx context.Context, wallet *models.Wallet) error
	InvalidateWallet(ctx context.Context, userID string) error
}

// BalanceFeed carries committed balance changes to subscribers.
type BalanceFeed interface {
	Publish(ctx context.Context, evt notification.BalanceEvent) error
	Subscribe(userID string, handler notification.Handler) *notification.Subscription
}
