package wallet

import (
	"errors"
	"fmt"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"
	"adforge/internal/repositories"
)

func insufficientFunds(available, requested int64) error {
	return &apperrors.DomainError{
		Code:      apperrors.KindInsufficientFunds,
		Message:   fmt.Sprintf("insufficient points: %d available, %d requested", available, requested),
		Available: available,
		Requested: requested,
	}
}

func dailyLimitReached(toolType string, limit, used int64, now time.Time) error {
	reset := nextMidnight(now)
	return &apperrors.DomainError{
		Code:       apperrors.KindDailyLimit,
		Message:    fmt.Sprintf("daily limit of %d reached for %s", limit, toolType),
		Limit:      limit,
		Used:       used,
		ResetAt:    &reset,
		RetryAfter: reset.Sub(now),
	}
}

func coolingDown(toolType string, readyAt, now time.Time) error {
	wait := readyAt.Sub(now)
	return &apperrors.DomainError{
		Code:       apperrors.KindCooldown,
		Message:    fmt.Sprintf("%s is cooling down, retry in %s", toolType, wait.Round(time.Second)),
		ResetAt:    &readyAt,
		RetryAfter: wait,
	}
}

func duplicateCharge(orderID string) error {
	return &apperrors.DomainError{
		Code:    apperrors.KindDuplicateCharge,
		Message: fmt.Sprintf("order %s already charged", orderID),
	}
}

func orderNotPending(orderID string, status models.OrderStatus) error {
	return &apperrors.DomainError{
		Code:    apperrors.KindInvalidTransition,
		Message: fmt.Sprintf("order %s is already %s", orderID, status),
	}
}

// mapRepoError turns repository sentinels into domain errors. Domain errors
// raised by the repository (storage unavailable) pass through untouched.
func mapRepoError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, repositories.ErrWalletNotFound) {
		return apperrors.ErrWalletNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}

// nextMidnight is the start of the UTC day after t.
func nextMidnight(t time.Time) time.Time {
	return startOfDay(t).Add(24 * time.Hour)
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
