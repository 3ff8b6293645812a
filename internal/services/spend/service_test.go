package spend

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "adforge/internal/errors"
	"adforge/internal/models"
	"adforge/internal/repositories"
	"adforge/internal/services/order"
	"adforge/internal/services/wallet"
	"adforge/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	clock  *testutil.Clock
	orders order.Service
	ledger wallet.Service
	svc    *Service
}

func newFixture(t *testing.T, cfg wallet.Config) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	clock := testutil.NewClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	cfg.Clock = clock.Now

	f := &fixture{clock: clock}
	f.orders = order.NewService(repositories.NewOrderRepository(db), clock.Now)
	f.ledger = wallet.NewService(repositories.NewWalletRepository(db), nil, nil, cfg, nil)
	f.svc = NewService(f.orders, f.ledger)
	return f
}

func (f *fixture) seed(t *testing.T, userID string, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, _, err := f.ledger.InitializeWallet(ctx, models.Identity{UserID: userID})
	require.NoError(t, err)
	_, err = f.ledger.CreditPoints(ctx, wallet.CreditRequest{UserID: userID, Amount: balance})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	t.Helper()
	w, err := f.ledger.GetProfile(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

// assertConsistent checks that every completed order has exactly one debit
// of its cost and every failed order has none.
func (f *fixture) assertConsistent(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()

	orders, err := f.orders.GetUserOrders(ctx, userID, order.MaxListLimit, 0)
	require.NoError(t, err)
	entries, err := f.ledger.ListEntries(ctx, userID, wallet.MaxListLimit, 0)
	require.NoError(t, err)

	debits := map[string][]models.WalletEntry{}
	for _, e := range entries {
		if e.Kind == models.EntryDebit {
			debits[e.OrderID] = append(debits[e.OrderID], e)
		}
	}

	for _, o := range orders {
		switch o.Status {
		case models.OrderCompleted:
			if assert.Len(t, debits[o.ID], 1, "order %s", o.ID) {
				assert.Equal(t, -o.Cost, debits[o.ID][0].Delta)
			}
		case models.OrderFailed:
			assert.Empty(t, debits[o.ID], "order %s", o.ID)
		}
	}
}

func TestService_Spend(t *testing.T) {
	f := newFixture(t, wallet.Config{})
	f.seed(t, "u", 50)
	ctx := context.Background()

	o, err := f.svc.Spend(ctx, Request{UserID: "u", ToolType: "social", Cost: 30, Input: models.JSON{"prompt": "launch"}})
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, o.Status)
	assert.Equal(t, ResultSuccess, o.OutputData["resultCode"])
	assert.Equal(t, int64(20), f.balance(t, "u"))

	debit, err := f.ledger.DebitForOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-30), debit.Delta)
}

func TestService_Spend_Failures(t *testing.T) {
	tests := []struct {
		name     string
		balance  int64
		cost     int64
		policy   wallet.Policy
		prior    int
		wantKind apperrors.Kind
	}{
		{name: "insufficient funds", balance: 10, cost: 30, wantKind: apperrors.KindInsufficientFunds},
		{name: "daily limit", balance: 100, cost: 5, policy: wallet.Policy{DailyLimit: 1}, prior: 1, wantKind: apperrors.KindDailyLimit},
		{name: "cooldown", balance: 100, cost: 5, policy: wallet.Policy{Cooldown: time.Minute}, prior: 1, wantKind: apperrors.KindCooldown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, wallet.Config{DefaultPolicy: tt.policy})
			f.seed(t, "u", tt.balance)
			ctx := context.Background()

			for i := 0; i < tt.prior; i++ {
				_, err := f.svc.Spend(ctx, Request{UserID: "u", ToolType: "ads", Cost: tt.cost})
				require.NoError(t, err)
			}
			before := f.balance(t, "u")

			o, err := f.svc.Spend(ctx, Request{UserID: "u", ToolType: "ads", Cost: tt.cost})
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, apperrors.KindOf(err))
			require.NotNil(t, o)
			assert.Equal(t, models.OrderFailed, o.Status)
			assert.Contains(t, o.ErrorMessage, string(tt.wantKind))
			assert.Equal(t, before, f.balance(t, "u"))

			f.assertConsistent(t, "u")
		})
	}
}

func TestService_Spend_ConcurrentConsistency(t *testing.T) {
	f := newFixture(t, wallet.Config{})
	f.seed(t, "u", 100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.svc.Spend(context.Background(), Request{
				UserID:   "u",
				ToolType: "ads",
				Cost:     int64(15 + i),
			})
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, f.balance(t, "u"), int64(0))
	f.assertConsistent(t, "u")

	orders, err := f.orders.GetUserOrders(context.Background(), "u", 0, 0)
	require.NoError(t, err)
	require.Len(t, orders, 10)
	var spent int64
	for _, o := range orders {
		assert.True(t, o.Status.IsTerminal())
		if o.Status == models.OrderCompleted {
			spent += o.Cost
		}
	}
	assert.Equal(t, int64(100)-spent, f.balance(t, "u"))
}

func TestService_Spend_InvalidCost(t *testing.T) {
	f := newFixture(t, wallet.Config{})

	o, err := f.svc.Spend(context.Background(), Request{UserID: "u", ToolType: "ads", Cost: 0})
	assert.Nil(t, o)
	assert.Equal(t, apperrors.KindInvalidArgument, apperrors.KindOf(err))
}

// sweepingOrders runs a reconciliation settle on the order at a chosen
// point of the spend, the way a concurrent sweep would.
type sweepingOrders struct {
	order.Service
	svc          *Service
	afterCreate  bool
	beforeFinish bool
}

func (s *sweepingOrders) CreateOrder(ctx context.Context, userID, toolType string, input models.JSON, cost int64) (*models.Order, error) {
	o, err := s.Service.CreateOrder(ctx, userID, toolType, input, cost)
	if err == nil && s.afterCreate {
		_, _ = s.svc.settle(ctx, *o)
	}
	return o, err
}

func (s *sweepingOrders) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, output models.JSON, msg string) (*models.Order, error) {
	if s.beforeFinish && status == models.OrderCompleted {
		o, err := s.Service.GetOrderByID(ctx, id)
		if err != nil {
			return nil, err
		}
		_, _ = s.svc.settle(ctx, *o)
	}
	return s.Service.UpdateOrderStatus(ctx, id, status, output, msg)
}

func TestService_Spend_SweptBeforeCharge(t *testing.T) {
	f := newFixture(t, wallet.Config{})
	f.seed(t, "u", 50)

	orders := &sweepingOrders{Service: f.orders, svc: f.svc, afterCreate: true}
	svc := NewService(orders, f.ledger)

	o, err := svc.Spend(context.Background(), Request{UserID: "u", ToolType: "ads", Cost: 20})
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))
	require.NotNil(t, o)
	assert.Equal(t, models.OrderFailed, o.Status)
	assert.Equal(t, abandonedMessage, o.ErrorMessage)
	assert.Equal(t, int64(50), f.balance(t, "u"))

	_, err = f.ledger.DebitForOrder(context.Background(), o.ID)
	assert.True(t, apperrors.IsNotFound(err))
	f.assertConsistent(t, "u")
}

func TestService_Spend_SweptAfterCharge(t *testing.T) {
	f := newFixture(t, wallet.Config{})
	f.seed(t, "u", 50)

	orders := &sweepingOrders{Service: f.orders, svc: f.svc, beforeFinish: true}
	svc := NewService(orders, f.ledger)

	o, err := svc.Spend(context.Background(), Request{UserID: "u", ToolType: "ads", Cost: 20})
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, o.Status)
	assert.Equal(t, ResultReconciled, o.OutputData["resultCode"])
	assert.Equal(t, int64(30), f.balance(t, "u"))
	f.assertConsistent(t, "u")
}

func TestService_Reconcile(t *testing.T) {
	f := newFixture(t, wallet.Config{})
	f.seed(t, "u", 100)
	ctx := context.Background()

	// abandoned before the debit
	abandoned, err := f.orders.CreateOrder(ctx, "u", "ads", nil, 10)
	require.NoError(t, err)

	// charged, then the caller went away
	charged, err := f.orders.CreateOrder(ctx, "u", "ads", nil, 25)
	require.NoError(t, err)
	_, err = f.ledger.DeductPoints(ctx, wallet.DeductRequest{UserID: "u", Amount: 25, OrderID: charged.ID})
	require.NoError(t, err)

	f.clock.Advance(20 * time.Minute)
	fresh, err := f.orders.CreateOrder(ctx, "u", "ads", nil, 5)
	require.NoError(t, err)

	result, err := f.svc.Reconcile(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Completed: 1, Failed: 1}, result)

	got, err := f.orders.GetOrderByID(ctx, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderFailed, got.Status)
	assert.Equal(t, abandonedMessage, got.ErrorMessage)

	got, err = f.orders.GetOrderByID(ctx, charged.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, got.Status)
	assert.Equal(t, ResultReconciled, got.OutputData["resultCode"])

	got, err = f.orders.GetOrderByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, got.Status)

	f.assertConsistent(t, "u")

	// a second sweep has nothing left to do
	result, err = f.svc.Reconcile(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, result)
}

func TestService_Refund(t *testing.T) {
	f := newFixture(t, wallet.Config{})
	f.seed(t, "u", 50)
	ctx := context.Background()

	o, err := f.svc.Spend(ctx, Request{UserID: "u", ToolType: "ads", Cost: 30})
	require.NoError(t, err)

	entry, err := f.svc.Refund(ctx, o.ID, "generation was blank")
	require.NoError(t, err)
	assert.Equal(t, int64(30), entry.Delta)
	assert.Equal(t, int64(50), f.balance(t, "u"))

	_, err = f.svc.Refund(ctx, o.ID, "again")
	assert.Equal(t, apperrors.KindDuplicateCharge, apperrors.KindOf(err))
	assert.Equal(t, int64(50), f.balance(t, "u"))

	got, err := f.orders.GetOrderByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, got.Status)

	failed, err := f.svc.Spend(ctx, Request{UserID: "u", ToolType: "ads", Cost: 500})
	require.Error(t, err)
	_, err = f.svc.Refund(ctx, failed.ID, "")
	assert.Equal(t, apperrors.KindInvalidTransition, apperrors.KindOf(err))

	_, err = f.svc.Refund(ctx, "missing", "")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_RunReconciler(t *testing.T) {
	f := newFixture(t, wallet.Config{})
	f.seed(t, "u", 10)

	o, err := f.orders.CreateOrder(context.Background(), "u", "ads", nil, 5)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunReconciler(ctx, 10*time.Millisecond, time.Minute)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		got, err := f.orders.GetOrderByID(context.Background(), o.ID)
		return err == nil && got.Status == models.OrderFailed
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
