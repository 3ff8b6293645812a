package repositories

import (
	"context"
	"errors"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{
		db: db,
	}
}

func (r *walletRepository) CreateIfAbsent(ctx context.Context, wallet *models.Wallet) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet)
	if result.Error != nil {
		return false, storageErr("failed to create wallet", result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, storageErr("failed to get wallet", err)
	}
	return &wallet, nil
}

// GetForUpdate reads the wallet row with a row lock. On SQLite the lock
// clause is dropped by the dialect and the single writer serializes instead.
func (r *walletRepository) GetForUpdate(ctx context.Context, userID string) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, storageErr("failed to lock wallet", err)
	}
	return &wallet, nil
}

func (r *walletRepository) UpdateAccount(ctx context.Context, userID, accountType string, isAdmin bool, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"account_type": accountType,
			"is_admin":     isAdmin,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   at,
		})
	if result.Error != nil {
		return storageErr("failed to update wallet account", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) GetVersion(ctx context.Context, userID string) (int64, error) {
	var versions []int64
	if err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Limit(1).
		Pluck("version", &versions).Error; err != nil {
		return 0, storageErr("failed to read wallet version", err)
	}
	if len(versions) == 0 {
		return 0, ErrWalletNotFound
	}
	return versions[0], nil
}

func (r *walletRepository) ApplyDelta(ctx context.Context, userID string, delta int64, at time.Time) (BalanceState, error) {
	updates := map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", delta),
		"version":    gorm.Expr("version + 1"),
		"updated_at": at,
	}
	if delta < 0 {
		updates["last_deduction_at"] = at
	}

	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ? AND balance + ? >= 0", userID, delta).
		Updates(updates)
	if result.Error != nil {
		return BalanceState{}, storageErr("failed to apply balance delta", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByUserID(ctx, userID); err != nil {
			return BalanceState{}, err
		}
		return BalanceState{}, ErrBalanceConflict
	}

	var state BalanceState
	if err := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("user_id = ?", userID).
		Select("balance", "version").
		Scan(&state).Error; err != nil {
		return BalanceState{}, storageErr("failed to read balance", err)
	}
	return state, nil
}

// LockOrder shares the ledger transaction so a debit and a concurrent
// settlement of the same order serialize on the order row.
func (r *walletRepository) LockOrder(ctx context.Context, orderID string) (models.OrderStatus, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("seq", "id", "status").
		Where("id = ?", orderID).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrOrderNotFound
		}
		return "", storageErr("failed to lock order", err)
	}
	return order.Status, nil
}

func (r *walletRepository) CreateEntry(ctx context.Context, entry *models.WalletEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEntry
		}
		return storageErr("failed to create ledger entry", err)
	}
	return nil
}

func (r *walletRepository) EntryExists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.WalletEntry{}).
		Where("idempotency_key = ?", idempotencyKey).
		Count(&count).Error; err != nil {
		return false, storageErr("failed to check ledger entry", err)
	}
	return count > 0, nil
}

func (r *walletRepository) GetDebitByOrder(ctx context.Context, orderID string) (*models.WalletEntry, error) {
	return findOrderDebit(ctx, r.db, orderID)
}

func findOrderDebit(ctx context.Context, db *gorm.DB, orderID string) (*models.WalletEntry, error) {
	var entry models.WalletEntry
	if err := db.WithContext(ctx).
		Where("order_id = ? AND kind = ?", orderID, models.EntryDebit).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, storageErr("failed to get order debit", err)
	}
	return &entry, nil
}

func (r *walletRepository) ListEntries(ctx context.Context, userID string, limit, offset int) ([]models.WalletEntry, error) {
	var entries []models.WalletEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("version DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, storageErr("failed to list ledger entries", err)
	}
	return entries, nil
}

func (r *walletRepository) UsageSince(ctx context.Context, userID, toolType string, since time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletEntry{}).
		Where("user_id = ? AND tool_type = ? AND kind = ? AND created_at >= ?", userID, toolType, models.EntryDebit, since).
		Select("COALESCE(SUM(count), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, storageErr("failed to sum daily usage", err)
	}
	return total, nil
}

func (r *walletRepository) LastDebitAt(ctx context.Context, userID, toolType string) (*time.Time, error) {
	var entry models.WalletEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND tool_type = ? AND kind = ?", userID, toolType, models.EntryDebit).
		Order("version DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, storageErr("failed to get last debit", err)
	}
	return &entry.CreatedAt, nil
}

func (r *walletRepository) ExecuteInTransaction(ctx context.Context, fn func(WalletRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &walletRepository{db: tx}
		return fn(txRepo)
	})
	// BEGIN and COMMIT can fail on their own when the store goes away.
	if err != nil && isUnreachable(err) && !apperrors.IsRetryable(err) {
		return apperrors.Unavailable("wallet transaction", err)
	}
	return err
}
