package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"
	"adforge/internal/repositories"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DeductPoints charges req.Amount for one order. Checks run in order:
// duplicate charge, funds, daily limit, cooldown. Any failure leaves the
// balance unchanged.
func (s *service) DeductPoints(ctx context.Context, req DeductRequest) (*models.WalletEntry, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("deduct", time.Since(start)) }()

	if req.UserID == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "user id is required")
	}
	if req.Amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}
	if req.Count < 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "count must not be negative")
	}
	if req.Count == 0 {
		req.Count = 1
	}

	entryID := uuid.NewString()
	key := debitKeyPrefix + entryID
	if req.OrderID != "" {
		key = debitKeyPrefix + req.OrderID
	}

	var entry *models.WalletEntry
	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.WalletRepository) error {
		wallet, err := tx.GetForUpdate(ctx, req.UserID)
		if err != nil {
			return mapRepoError("failed to lock wallet", err)
		}
		now := s.now()

		if req.OrderID != "" {
			charged, err := tx.EntryExists(ctx, key)
			if err != nil {
				return mapRepoError("failed to check order charge", err)
			}
			if charged {
				return duplicateCharge(req.OrderID)
			}

			// A settled order takes no charge. Orders the tracker does not
			// know about are charged as given.
			status, err := tx.LockOrder(ctx, req.OrderID)
			switch {
			case errors.Is(err, repositories.ErrOrderNotFound):
			case err != nil:
				return mapRepoError("failed to lock order", err)
			case status != models.OrderPending:
				return orderNotPending(req.OrderID, status)
			}
		}

		if wallet.Balance < req.Amount {
			return insufficientFunds(wallet.Balance, req.Amount)
		}
		if err := s.checkPolicy(ctx, tx, req, now); err != nil {
			return err
		}

		state, err := tx.ApplyDelta(ctx, req.UserID, -req.Amount, now)
		if errors.Is(err, repositories.ErrBalanceConflict) {
			return insufficientFunds(wallet.Balance, req.Amount)
		}
		if err != nil {
			return mapRepoError("failed to debit wallet", err)
		}

		entry = &models.WalletEntry{
			ID:             entryID,
			UserID:         req.UserID,
			OrderID:        req.OrderID,
			Kind:           models.EntryDebit,
			ToolType:       req.ToolType,
			Delta:          -req.Amount,
			BalanceAfter:   state.Balance,
			Version:        state.Version,
			Count:          req.Count,
			Description:    req.Description,
			IdempotencyKey: key,
			CreatedAt:      now,
		}
		if err := tx.CreateEntry(ctx, entry); err != nil {
			if errors.Is(err, repositories.ErrDuplicateEntry) {
				return duplicateCharge(req.OrderID)
			}
			return mapRepoError("failed to record debit", err)
		}
		return nil
	})
	if err != nil {
		s.recordFailure("deduct", err)
		logrus.WithFields(logrus.Fields{
			"user_id":  req.UserID,
			"order_id": req.OrderID,
			"amount":   req.Amount,
			"kind":     apperrors.KindOf(err),
		}).Info("points deduction rejected")
		return nil, err
	}

	s.afterCommit(ctx, "deduct", entry)
	logrus.WithFields(logrus.Fields{
		"user_id":  req.UserID,
		"order_id": req.OrderID,
		"amount":   req.Amount,
		"balance":  entry.BalanceAfter,
	}).Info("points deducted")
	return entry, nil
}

// checkPolicy enforces the tool's daily item limit and cooldown. It runs
// under the wallet row lock, so the counters it reads cannot move.
func (s *service) checkPolicy(ctx context.Context, tx repositories.WalletRepository, req DeductRequest, now time.Time) error {
	if req.ToolType == "" {
		return nil
	}
	policy := s.config.PolicyFor(req.ToolType)

	if policy.DailyLimit > 0 {
		used, err := tx.UsageSince(ctx, req.UserID, req.ToolType, startOfDay(now))
		if err != nil {
			return mapRepoError("failed to read daily usage", err)
		}
		if used+int64(req.Count) > int64(policy.DailyLimit) {
			return dailyLimitReached(req.ToolType, int64(policy.DailyLimit), used, now)
		}
	}

	if policy.Cooldown > 0 {
		last, err := tx.LastDebitAt(ctx, req.UserID, req.ToolType)
		if err != nil {
			return mapRepoError("failed to read last use", err)
		}
		if last != nil {
			readyAt := last.UTC().Add(policy.Cooldown)
			if now.Before(readyAt) {
				return coolingDown(req.ToolType, readyAt, now)
			}
		}
	}
	return nil
}

// CreditPoints adds req.Amount to the wallet.
func (s *service) CreditPoints(ctx context.Context, req CreditRequest) (*models.WalletEntry, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("credit", time.Since(start)) }()

	if req.UserID == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "user id is required")
	}
	if req.Amount <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	entryID := uuid.NewString()
	key := creditKeyPrefix + entryID
	if req.Reference != "" {
		key = req.Reference
	}

	var entry *models.WalletEntry
	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.WalletRepository) error {
		if _, err := tx.GetForUpdate(ctx, req.UserID); err != nil {
			return mapRepoError("failed to lock wallet", err)
		}
		now := s.now()

		if req.Reference != "" {
			applied, err := tx.EntryExists(ctx, key)
			if err != nil {
				return mapRepoError("failed to check credit reference", err)
			}
			if applied {
				return &apperrors.DomainError{
					Code:    apperrors.KindDuplicateCharge,
					Message: fmt.Sprintf("credit %s already applied", req.Reference),
				}
			}
		}

		state, err := tx.ApplyDelta(ctx, req.UserID, req.Amount, now)
		if err != nil {
			return mapRepoError("failed to credit wallet", err)
		}

		entry = &models.WalletEntry{
			ID:             entryID,
			UserID:         req.UserID,
			OrderID:        req.OrderID,
			Kind:           models.EntryCredit,
			Delta:          req.Amount,
			BalanceAfter:   state.Balance,
			Version:        state.Version,
			Count:          1,
			Description:    req.Description,
			IdempotencyKey: key,
			CreatedAt:      now,
		}
		if err := tx.CreateEntry(ctx, entry); err != nil {
			if errors.Is(err, repositories.ErrDuplicateEntry) {
				return &apperrors.DomainError{
					Code:    apperrors.KindDuplicateCharge,
					Message: fmt.Sprintf("credit %s already applied", req.Reference),
				}
			}
			return mapRepoError("failed to record credit", err)
		}
		return nil
	})
	if err != nil {
		s.recordFailure("credit", err)
		return nil, err
	}

	s.afterCommit(ctx, "credit", entry)
	logrus.WithFields(logrus.Fields{
		"user_id":   req.UserID,
		"amount":    req.Amount,
		"reference": req.Reference,
		"balance":   entry.BalanceAfter,
	}).Info("points credited")
	return entry, nil
}
