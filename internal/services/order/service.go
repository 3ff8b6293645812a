// Package order tracks generation attempts. An order is created pending and
// moves exactly once to completed or failed; cost and input never change.
package order

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

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Service defines the order tracker operations
type Service interface {
	CreateOrder(ctx context.Context, userID, toolType string, input models.JSON, cost int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, output models.JSON, errorMessage string) (*models.Order, error)
	GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error)
	CountUserOrders(ctx context.Context, userID string) (int64, error)
	GetOrderByID(ctx context.Context, orderID string) (*models.Order, error)
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error)
	Settle(ctx context.Context, orderID string, decide SettleFunc) (*models.Order, error)
}

// SettleFunc picks the terminal state of a pending order given the debit
// recorded for it, nil when it was never charged.
type SettleFunc func(debit *models.WalletEntry) (status models.OrderStatus, output models.JSON, errorMessage string)

type service struct {
	repo  repositories.OrderRepository
	clock func() time.Time
}

// NewService creates an order tracker. A nil clock means time.Now.
func NewService(repo repositories.OrderRepository, clock func() time.Time) Service {
	if repo == nil {
		panic("repo is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &service{repo: repo, clock: clock}
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

// CreateOrder records a pending order. It does not look at the wallet.
func (s *service) CreateOrder(ctx context.Context, userID, toolType string, input models.JSON, cost int64) (*models.Order, error) {
	if userID == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "user id is required")
	}
	if toolType == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "tool type is required")
	}
	if cost < 0 {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "cost must not be negative")
	}

	now := s.now()
	order := &models.Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		ToolType:  toolType,
		Status:    models.OrderPending,
		InputData: models.NewJSON(input),
		Cost:      cost,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, mapRepoError("failed to create order", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id":  order.ID,
		"user_id":   userID,
		"tool_type": toolType,
		"cost":      cost,
	}).Debug("order created")
	return order, nil
}

// UpdateOrderStatus moves a pending order to a terminal status. The write is
// conditional on the order still being pending, so of two racing updates
// only one wins; the other gets INVALID_TRANSITION.
func (s *service) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, output models.JSON, errorMessage string) (*models.Order, error) {
	if !status.IsTerminal() {
		return nil, &apperrors.DomainError{
			Code:    apperrors.KindInvalidArgument,
			Message: fmt.Sprintf("%q is not a terminal status", status),
		}
	}

	err := s.repo.MarkTerminal(ctx, orderID, status, models.NewJSON(output), errorMessage, s.now())
	if err != nil {
		return nil, mapRepoError("failed to update order status", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("order finished")

	return s.GetOrderByID(ctx, orderID)
}

// GetUserOrders returns the user's orders newest first.
func (s *service) GetUserOrders(ctx context.Context, userID string, limit, offset int) ([]models.Order, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	orders, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapRepoError("failed to list orders", err)
	}
	return orders, nil
}

func (s *service) CountUserOrders(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return 0, mapRepoError("failed to count orders", err)
	}
	return count, nil
}

func (s *service) GetOrderByID(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapRepoError("failed to get order", err)
	}
	return order, nil
}

// ListStalePending returns pending orders created more than olderThan ago,
// oldest first.
func (s *service) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = MaxListLimit
	}
	orders, err := s.repo.ListStalePending(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return nil, mapRepoError("failed to list stale orders", err)
	}
	return orders, nil
}

// Settle finishes a pending order from what the ledger holds for it. The
// order row stays locked from the debit lookup to the status write, and a
// debit takes the same lock, so the decision cannot go stale.
func (s *service) Settle(ctx context.Context, orderID string, decide SettleFunc) (*models.Order, error) {
	var status models.OrderStatus
	err := s.repo.ExecuteInTransaction(ctx, func(tx repositories.OrderRepository) error {
		if _, err := tx.GetPendingForUpdate(ctx, orderID); err != nil {
			return err
		}

		debit, err := tx.FindDebit(ctx, orderID)
		if errors.Is(err, repositories.ErrEntryNotFound) {
			debit, err = nil, nil
		}
		if err != nil {
			return err
		}

		var (
			output models.JSON
			msg    string
		)
		status, output, msg = decide(debit)
		if !status.IsTerminal() {
			return &apperrors.DomainError{
				Code:    apperrors.KindInvalidArgument,
				Message: fmt.Sprintf("%q is not a terminal status", status),
			}
		}
		return tx.MarkTerminal(ctx, orderID, status, models.NewJSON(output), msg, s.now())
	})
	if err != nil {
		return nil, mapRepoError("failed to settle order", err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("order settled")

	return s.GetOrderByID(ctx, orderID)
}

func mapRepoError(op string, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repositories.ErrOrderNotFound):
		return apperrors.ErrOrderNotFound
	case errors.Is(err, repositories.ErrStatusConflict):
		return apperrors.ErrOrderTerminal
	}
	return fmt.Errorf("%s: %w", op, err)
}
