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

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{
		db: db,
	}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return storageErr("failed to create order", err)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, storageErr("failed to get order", err)
	}
	return &order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, storageErr("failed to list orders", err)
	}
	return orders, nil
}

func (r *orderRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, storageErr("failed to count orders", err)
	}
	return count, nil
}

func (r *orderRepository) MarkTerminal(ctx context.Context, id string, status models.OrderStatus, output models.JSON, errMsg string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderPending).
		Updates(map[string]interface{}{
			"status":        status,
			"output_data":   output,
			"error_message": errMsg,
			"updated_at":    at,
		})
	if result.Error != nil {
		return storageErr("failed to update order status", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *orderRepository) ListStalePending(ctx context.Context, before time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.OrderPending, before).
		Order("created_at ASC").
		Order("seq ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, storageErr("failed to list stale orders", err)
	}
	return orders, nil
}

func (r *orderRepository) GetPendingForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, storageErr("failed to lock order", err)
	}
	if order.Status != models.OrderPending {
		return nil, ErrStatusConflict
	}
	return &order, nil
}

func (r *orderRepository) FindDebit(ctx context.Context, orderID string) (*models.WalletEntry, error) {
	return findOrderDebit(ctx, r.db, orderID)
}

func (r *orderRepository) ExecuteInTransaction(ctx context.Context, fn func(OrderRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&orderRepository{db: tx})
	})
	if err != nil && isUnreachable(err) && !apperrors.IsRetryable(err) {
		return apperrors.Unavailable("order transaction", err)
	}
	return err
}
