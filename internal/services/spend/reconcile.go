package spend

import (
	"context"
	"errors"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"

	"github.com/sirupsen/logrus"
)

const reconcileBatch = 200

// errSkip marks an order another writer settled first.
var errSkip = errors.New("order already settled")

// ReconcileResult counts what one sweep did.
type ReconcileResult struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Reconcile settles pending orders older than olderThan. An order with a
// recorded debit is completed; one without is failed.
func (s *Service) Reconcile(ctx context.Context, olderThan time.Duration) (ReconcileResult, error) {
	var result ReconcileResult

	stale, err := s.orders.ListStalePending(ctx, olderThan, reconcileBatch)
	if err != nil {
		return result, err
	}

	for _, o := range stale {
		status, err := s.settle(ctx, o)
		switch {
		case errors.Is(err, errSkip):
			result.Skipped++
		case err != nil:
			return result, err
		case status == models.OrderCompleted:
			result.Completed++
		default:
			result.Failed++
		}
	}

	if len(stale) > 0 {
		logrus.WithFields(logrus.Fields{
			"completed": result.Completed,
			"failed":    result.Failed,
			"skipped":   result.Skipped,
		}).Info("reconciled stale orders")
	}
	return result, nil
}

func (s *Service) settle(ctx context.Context, o models.Order) (models.OrderStatus, error) {
	settled, err := s.orders.Settle(ctx, o.ID, func(debit *models.WalletEntry) (models.OrderStatus, models.JSON, string) {
		if debit == nil {
			return models.OrderFailed, nil, abandonedMessage
		}
		return models.OrderCompleted, models.JSON{"resultCode": ResultReconciled, "balance": debit.BalanceAfter}, ""
	})
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInvalidTransition {
			return "", errSkip
		}
		return "", err
	}
	return settled.Status, nil
}

// RunReconciler sweeps every interval until ctx is done.
func (s *Service) RunReconciler(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Reconcile(ctx, olderThan); err != nil {
				logrus.WithField("error", err.Error()).Warn("order reconciliation failed")
			}
		}
	}
}
