// Package spend runs the order lifecycle around a ledger debit:
// create the order, charge it, then mark it completed or failed. The
// reconciler settles orders a crashed caller left pending.
package spend

import (
	"context"
	"fmt"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"
	"adforge/internal/services/order"
	"adforge/internal/services/wallet"

	"github.com/sirupsen/logrus"
)

// Output result codes
const (
	ResultSuccess    = "SUCCESS"
	ResultReconciled = "RECONCILED"

	abandonedMessage = "abandoned before charge"
	refundKeyPrefix  = "refund:"
)

// Request describes one paid generation.
type Request struct {
	UserID      string
	ToolType    string
	Input       models.JSON
	Cost        int64
	Description string
	Count       int
}

type Service struct {
	orders order.Service
	ledger wallet.Service
}

func NewService(orders order.Service, ledger wallet.Service) *Service {
	return &Service{orders: orders, ledger: ledger}
}

// Spend creates an order and charges it. The returned order is the final
// state; the returned error is the deduction failure, if any, for callers
// to branch on. Nothing is retried.
func (s *Service) Spend(ctx context.Context, req Request) (*models.Order, error) {
	if req.Cost <= 0 {
		return nil, apperrors.ErrInvalidAmount
	}

	o, err := s.orders.CreateOrder(ctx, req.UserID, req.ToolType, req.Input, req.Cost)
	if err != nil {
		return nil, err
	}

	entry, err := s.ledger.DeductPoints(ctx, wallet.DeductRequest{
		UserID:      req.UserID,
		Amount:      req.Cost,
		Description: req.Description,
		OrderID:     o.ID,
		ToolType:    req.ToolType,
		Count:       req.Count,
	})
	if err != nil {
		// The debit may or may not have committed; the reconciler decides.
		if apperrors.IsRetryable(err) {
			return o, err
		}
		failed, uerr := s.orders.UpdateOrderStatus(ctx, o.ID, models.OrderFailed, nil, err.Error())
		if uerr != nil {
			// Already settled by the reconciler, which refused the charge.
			if apperrors.KindOf(uerr) != apperrors.KindInvalidTransition {
				logrus.WithFields(logrus.Fields{
					"order_id": o.ID,
					"error":    uerr.Error(),
				}).Error("failed to mark order failed")
			}
			return s.current(ctx, o), err
		}
		return failed, err
	}

	done, err := s.orders.UpdateOrderStatus(ctx, o.ID, models.OrderCompleted, models.JSON{
		"resultCode": ResultSuccess,
		"balance":    entry.BalanceAfter,
	}, "")
	if err == nil {
		return done, nil
	}

	// The reconciler may have completed the order after seeing our debit.
	current := s.current(ctx, o)
	if current.Status == models.OrderCompleted {
		return current, nil
	}

	logrus.WithFields(logrus.Fields{
		"order_id": o.ID,
		"error":    err.Error(),
	}).Error("order charged but not completed, left for reconciliation")
	return current, err
}

// current re-reads o, falling back to the copy we hold.
func (s *Service) current(ctx context.Context, o *models.Order) *models.Order {
	latest, err := s.orders.GetOrderByID(ctx, o.ID)
	if err != nil {
		return o
	}
	return latest
}

// Refund credits the charge of a completed order back to its owner. The
// order keeps its status.
func (s *Service) Refund(ctx context.Context, orderID, reason string) (*models.WalletEntry, error) {
	o, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != models.OrderCompleted {
		return nil, &apperrors.DomainError{
			Code:    apperrors.KindInvalidTransition,
			Message: fmt.Sprintf("only completed orders can be refunded, order is %s", o.Status),
		}
	}

	debit, err := s.ledger.DebitForOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.refund(ctx, orderID, o.UserID, -debit.Delta, reason)
}

func (s *Service) refund(ctx context.Context, orderID, userID string, amount int64, reason string) (*models.WalletEntry, error) {
	description := "refund"
	if reason != "" {
		description = "refund: " + reason
	}
	entry, err := s.ledger.CreditPoints(ctx, wallet.CreditRequest{
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Reference:   refundKeyPrefix + orderID,
		OrderID:     orderID,
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"user_id":  userID,
		"amount":   amount,
	}).Info("order refunded")
	return entry, nil
}
