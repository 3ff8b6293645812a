package wallet

import (
	"context"
	"errors"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"
	"adforge/internal/repositories"
)

func (s *service) GetProfile(ctx context.Context, userID string) (*models.Wallet, error) {
	// Try cache first
	if wallet, ok := s.cachedProfile(ctx, userID); ok {
		return wallet, nil
	}

	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapRepoError("failed to get wallet", err)
	}

	s.storeProfile(ctx, wallet)
	return wallet, nil
}

// ListEntries returns the user's ledger newest first.
func (s *service) ListEntries(ctx context.Context, userID string, limit, offset int) ([]models.WalletEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.repo.ListEntries(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapRepoError("failed to list ledger entries", err)
	}
	return entries, nil
}

// DebitForOrder returns the debit recorded for orderID, NOT_FOUND if the
// order was never charged.
func (s *service) DebitForOrder(ctx context.Context, orderID string) (*models.WalletEntry, error) {
	entry, err := s.repo.GetDebitByOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrEntryNotFound) {
			return nil, apperrors.New(apperrors.KindNotFound, "no debit recorded for order %s", orderID)
		}
		return nil, mapRepoError("failed to get order debit", err)
	}
	return entry, nil
}
