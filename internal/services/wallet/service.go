package wallet

import (
	"context"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"
	"adforge/internal/repositories"
	"adforge/internal/services/notification"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type service struct {
	repo    repositories.WalletRepository
	cache   ProfileCache
	feed    BalanceFeed
	config  Config
	metrics MetricsCollector
}

// NewService creates a new ledger service. cache may be nil; a nil feed
// keeps balance events in process.
func NewService(
	repo repositories.WalletRepository,
	cache ProfileCache,
	feed BalanceFeed,
	config Config,
	metrics MetricsCollector,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if feed == nil {
		feed = notification.NewBroker(nil, nil)
	}
	if config.TrialBalance < 0 {
		config.TrialBalance = 0
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	// Metrics is optional, create no-op collector if nil
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		repo:    repo,
		cache:   cache,
		feed:    feed,
		config:  config,
		metrics: metrics,
	}
}

func (s *service) now() time.Time {
	return s.config.Clock().UTC()
}

// InitializeWallet creates the wallet with the trial grant unless one
// already exists. An existing wallet is returned untouched.
func (s *service) InitializeWallet(ctx context.Context, identity models.Identity) (*models.Wallet, bool, error) {
	if identity.UserID == "" {
		return nil, false, apperrors.New(apperrors.KindInvalidArgument, "user id is required")
	}

	now := s.now()
	wallet := &models.Wallet{
		UserID:        identity.UserID,
		Email:         identity.Email,
		DisplayName:   identity.DisplayName,
		AvatarRef:     identity.AvatarRef,
		EmailVerified: identity.EmailVerified,
		Balance:       s.config.TrialBalance,
		AccountType:   models.AccountTrial,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var created bool
	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.WalletRepository) error {
		var err error
		created, err = tx.CreateIfAbsent(ctx, wallet)
		if err != nil || !created || wallet.Balance == 0 {
			return err
		}
		return tx.CreateEntry(ctx, &models.WalletEntry{
			ID:             uuid.NewString(),
			UserID:         wallet.UserID,
			Kind:           models.EntryCredit,
			Delta:          wallet.Balance,
			BalanceAfter:   wallet.Balance,
			Version:        wallet.Version,
			Count:          1,
			Description:    "trial grant",
			IdempotencyKey: grantKeyPrefix + wallet.UserID,
			CreatedAt:      now,
		})
	})
	if err != nil {
		s.recordFailure("initialize", err)
		return nil, false, mapRepoError("failed to initialize wallet", err)
	}

	if !created {
		existing, err := s.repo.GetByUserID(ctx, identity.UserID)
		if err != nil {
			return nil, false, mapRepoError("failed to get wallet", err)
		}
		return existing, false, nil
	}

	logrus.WithFields(logrus.Fields{
		"user_id": wallet.UserID,
		"balance": wallet.Balance,
	}).Info("wallet initialized")
	s.metrics.RecordOperationResult("initialize", "created")
	return wallet, true, nil
}

func (s *service) SetAccount(ctx context.Context, userID, accountType string, isAdmin bool) error {
	if accountType != models.AccountTrial && accountType != models.AccountPaid {
		return apperrors.New(apperrors.KindInvalidArgument, "unknown account type %q", accountType)
	}
	if err := s.repo.UpdateAccount(ctx, userID, accountType, isAdmin, s.now()); err != nil {
		return mapRepoError("failed to update account", err)
	}
	s.invalidate(context.WithoutCancel(ctx), userID)

	logrus.WithFields(logrus.Fields{
		"user_id":      userID,
		"account_type": accountType,
		"is_admin":     isAdmin,
	}).Info("wallet account updated")
	return nil
}

// SubscribeToBalance registers onChange for userID. The current balance is
// delivered first. The subscription is read-only and never takes part in
// the write transaction.
func (s *service) SubscribeToBalance(ctx context.Context, userID string, onChange notification.Handler) (*notification.Subscription, error) {
	if onChange == nil {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "onChange handler is required")
	}

	// Subscribe before reading so no change between the two is missed.
	sub := s.feed.Subscribe(userID, onChange)
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		sub.Close()
		return nil, mapRepoError("failed to get wallet", err)
	}

	sub.Push(notification.BalanceEvent{
		UserID:  userID,
		Balance: wallet.Balance,
		Version: wallet.Version,
		At:      wallet.UpdatedAt,
	})
	return sub, nil
}

// afterCommit runs the side effects of a committed mutation. Their
// failures are logged; the mutation itself already happened.
func (s *service) afterCommit(ctx context.Context, op string, entry *models.WalletEntry) {
	ctx = context.WithoutCancel(ctx)
	s.invalidate(ctx, entry.UserID)

	evt := notification.BalanceEvent{
		UserID:  entry.UserID,
		Balance: entry.BalanceAfter,
		Delta:   entry.Delta,
		OrderID: entry.OrderID,
		Version: entry.Version,
		At:      entry.CreatedAt,
	}
	if err := s.feed.Publish(ctx, evt); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": entry.UserID,
			"error":   err.Error(),
		}).Warn("failed to publish balance change")
	}

	s.metrics.RecordBalanceChange(entry.UserID, entry.BalanceAfter-entry.Delta, entry.BalanceAfter)
	s.metrics.RecordOperationResult(op, "success")
}

func (s *service) recordFailure(op string, err error) {
	s.metrics.RecordError(op, string(apperrors.KindOf(err)))
	s.metrics.RecordOperationResult(op, "failure")
}
