package wallet

import (
	"context"

	"adforge/internal/models"

	"github.com/sirupsen/logrus"
)

func (s *service) cachedProfile(ctx context.Context, userID string) (*models.Wallet, bool) {
	if s.cache == nil {
		return nil, false
	}
	wallet, found, err := s.cache.GetWallet(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).Debugf("profile cache read failed: %v", err)
		return nil, false
	}
	if !found {
		s.metrics.RecordCacheMiss(userID)
		return nil, false
	}
	s.metrics.RecordCacheHit(userID)
	return wallet, true
}

// storeProfile fills the cache with a wallet read from the store. A write
// that commits between that read and the fill has already invalidated, so
// the fill is checked against the stored version and dropped if it moved.
func (s *service) storeProfile(ctx context.Context, wallet *models.Wallet) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetWallet(ctx, wallet); err != nil {
		logrus.WithField("user_id", wallet.UserID).Debugf("profile cache write failed: %v", err)
		return
	}

	current, err := s.repo.GetVersion(ctx, wallet.UserID)
	if err != nil || current != wallet.Version {
		logrus.WithFields(logrus.Fields{
			"user_id": wallet.UserID,
			"version": wallet.Version,
		}).Debug("profile changed while caching, dropping entry")
		s.invalidate(context.WithoutCancel(ctx), wallet.UserID)
	}
}

func (s *service) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateWallet(ctx, userID); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"error":   err.Error(),
		}).Warn("failed to invalidate wallet cache")
	}
}
