package order

import (
	"context"
	"testing"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"
	"adforge/internal/repositories"
	"adforge/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *testutil.Clock) {
	t.Helper()
	svc, clock, _ := newTestServiceDB(t)
	return svc, clock
}

func newTestServiceDB(t *testing.T) (Service, *testutil.Clock, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	return NewService(repositories.NewOrderRepository(db), clock.Now), clock, db
}

func TestService_CreateAndComplete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, "u", "social", models.JSON{"prompt": "spring sale"}, 30)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, created.Status)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	done, err := svc.UpdateOrderStatus(ctx, created.ID, models.OrderCompleted, models.JSON{"resultCode": "SUCCESS"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, done.Status)

	got, err := svc.GetOrderByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, got.Status)
	assert.Equal(t, "SUCCESS", got.OutputData["resultCode"])
	assert.Equal(t, "spring sale", got.InputData["prompt"])
	assert.Equal(t, int64(30), got.Cost)
	assert.True(t, got.CreatedAt.Equal(created.CreatedAt))
}

func TestService_UpdateOrderStatus(t *testing.T) {
	tests := []struct {
		name     string
		first    models.OrderStatus
		second   models.OrderStatus
		wantKind apperrors.Kind
	}{
		{name: "completed is final", first: models.OrderCompleted, second: models.OrderFailed, wantKind: apperrors.KindInvalidTransition},
		{name: "failed is final", first: models.OrderFailed, second: models.OrderCompleted, wantKind: apperrors.KindInvalidTransition},
		{name: "pending is not a target", first: models.OrderPending, wantKind: apperrors.KindInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			ctx := context.Background()

			o, err := svc.CreateOrder(ctx, "u", "ads", nil, 10)
			require.NoError(t, err)

			_, err = svc.UpdateOrderStatus(ctx, o.ID, tt.first, nil, "boom")
			if tt.second == "" {
				assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
				return
			}
			require.NoError(t, err)

			_, err = svc.UpdateOrderStatus(ctx, o.ID, tt.second, nil, "")
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))

			got, err := svc.GetOrderByID(ctx, o.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.first, got.Status)
		})
	}
}

func TestService_FailedOrderKeepsMessage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u", "ads", nil, 10)
	require.NoError(t, err)

	failed, err := svc.UpdateOrderStatus(ctx, o.ID, models.OrderFailed, nil, "INSUFFICIENT_FUNDS: insufficient points")
	require.NoError(t, err)
	assert.Equal(t, models.OrderFailed, failed.Status)
	assert.Equal(t, "INSUFFICIENT_FUNDS: insufficient points", failed.ErrorMessage)
	assert.Nil(t, failed.OutputData)
}

func TestService_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.GetOrderByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)

	_, err = svc.UpdateOrderStatus(ctx, "missing", models.OrderCompleted, nil, "")
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

func TestService_CreateOrderValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, "", "ads", nil, 1)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	_, err = svc.CreateOrder(ctx, "u", "", nil, 1)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	_, err = svc.CreateOrder(ctx, "u", "ads", nil, -5)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

func TestService_GetUserOrders_NewestFirst(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		o, err := svc.CreateOrder(ctx, "u", "ads", nil, int64(i))
		require.NoError(t, err)
		ids = append(ids, o.ID)
		clock.Advance(time.Minute)
	}
	_, err := svc.CreateOrder(ctx, "someone-else", "ads", nil, 1)
	require.NoError(t, err)

	orders, err := svc.GetUserOrders(ctx, "u", 0, 0)
	require.NoError(t, err)
	require.Len(t, orders, 5)
	for i, o := range orders {
		assert.Equal(t, ids[len(ids)-1-i], o.ID)
	}

	page, err := svc.GetUserOrders(ctx, "u", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	count, err := svc.CountUserOrders(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestService_ListStalePending(t *testing.T) {
	svc, clock := newTestService(t)
	ctx := context.Background()

	old, err := svc.CreateOrder(ctx, "u", "ads", nil, 1)
	require.NoError(t, err)
	finished, err := svc.CreateOrder(ctx, "u", "ads", nil, 1)
	require.NoError(t, err)
	_, err = svc.UpdateOrderStatus(ctx, finished.ID, models.OrderCompleted, nil, "")
	require.NoError(t, err)

	clock.Advance(15 * time.Minute)
	_, err = svc.CreateOrder(ctx, "u", "ads", nil, 1)
	require.NoError(t, err)

	stale, err := svc.ListStalePending(ctx, 10*time.Minute, 0)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}

func TestService_GetUserOrders_SameInstant(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		o, err := svc.CreateOrder(ctx, "u", "ads", nil, int64(i))
		require.NoError(t, err)
		ids = append(ids, o.ID)
	}

	orders, err := svc.GetUserOrders(ctx, "u", 0, 0)
	require.NoError(t, err)
	require.Len(t, orders, 5)
	for i, o := range orders {
		assert.Equal(t, ids[len(ids)-1-i], o.ID)
	}
}

func TestService_Settle(t *testing.T) {
	svc, clock, db := newTestServiceDB(t)
	ctx := context.Background()

	charged, err := svc.CreateOrder(ctx, "u", "ads", nil, 10)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.WalletEntry{
		ID:             "entry-1",
		UserID:         "u",
		OrderID:        charged.ID,
		Kind:           models.EntryDebit,
		Delta:          -10,
		BalanceAfter:   90,
		Version:        1,
		Count:          1,
		IdempotencyKey: "debit:" + charged.ID,
		CreatedAt:      clock.Now(),
	}).Error)
	abandoned, err := svc.CreateOrder(ctx, "u", "ads", nil, 5)
	require.NoError(t, err)

	decide := func(debit *models.WalletEntry) (models.OrderStatus, models.JSON, string) {
		if debit == nil {
			return models.OrderFailed, nil, "no charge"
		}
		return models.OrderCompleted, models.JSON{"balance": debit.BalanceAfter}, ""
	}

	got, err := svc.Settle(ctx, charged.ID, decide)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, got.Status)
	assert.EqualValues(t, 90, got.OutputData["balance"])

	got, err = svc.Settle(ctx, abandoned.ID, decide)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFailed, got.Status)
	assert.Equal(t, "no charge", got.ErrorMessage)

	_, err = svc.Settle(ctx, charged.ID, decide)
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	_, err = svc.Settle(ctx, "missing", decide)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_Settle_RejectsNonTerminalDecision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	o, err := svc.CreateOrder(ctx, "u", "ads", nil, 5)
	require.NoError(t, err)

	_, err = svc.Settle(ctx, o.ID, func(*models.WalletEntry) (models.OrderStatus, models.JSON, string) {
		return models.OrderPending, nil, ""
	})
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))

	got, err := svc.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)
}
