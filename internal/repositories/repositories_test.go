package repositories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"adforge/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testStart = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []interface{}{&models.Wallet{}, &models.WalletEntry{}, &models.Order{}} {
		assert.True(t, db.Migrator().HasTable(table), "%T", table)
	}
	assert.True(t, db.Migrator().HasColumn(&models.Wallet{}, "version"))
	assert.True(t, db.Migrator().HasColumn(&models.Order{}, "seq"))

	// running it again is a no-op
	require.NoError(t, Migrate(db))
}

func TestOrderRepository_JSONColumns(t *testing.T) {
	repo := NewOrderRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Order{
		ID:        "o1",
		UserID:    "u",
		ToolType:  "social",
		Status:    models.OrderPending,
		InputData: models.JSON{"prompt": "spring sale", "variants": float64(3)},
		Cost:      5,
		CreatedAt: testStart,
		UpdatedAt: testStart,
	}))
	require.NoError(t, repo.MarkTerminal(ctx, "o1", models.OrderCompleted, models.JSON{"resultCode": "SUCCESS"}, "", testStart))

	got, err := repo.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "spring sale", got.InputData["prompt"])
	assert.Equal(t, float64(3), got.InputData["variants"])
	assert.Equal(t, "SUCCESS", got.OutputData["resultCode"])
	assert.NotZero(t, got.Seq)
}

func TestOrderRepository_ListByUser_SameInstant(t *testing.T) {
	repo := NewOrderRepository(openTestDB(t))
	ctx := context.Background()

	// ids sort in the opposite order of insertion
	ids := []string{"e", "d", "c", "b", "a"}
	for _, id := range ids {
		require.NoError(t, repo.Create(ctx, &models.Order{
			ID:        id,
			UserID:    "u",
			ToolType:  "ads",
			Status:    models.OrderPending,
			CreatedAt: testStart,
			UpdatedAt: testStart,
		}))
	}

	orders, err := repo.ListByUser(ctx, "u", 10, 0)
	require.NoError(t, err)
	require.Len(t, orders, len(ids))
	for i, o := range orders {
		assert.Equal(t, ids[len(ids)-1-i], o.ID)
	}
}

func TestWalletRepository_Versions(t *testing.T) {
	db := openTestDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	created, err := repo.CreateIfAbsent(ctx, &models.Wallet{UserID: "u", Balance: 10, AccountType: models.AccountTrial, CreatedAt: testStart, UpdatedAt: testStart})
	require.NoError(t, err)
	require.True(t, created)

	version, err := repo.GetVersion(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	state, err := repo.ApplyDelta(ctx, "u", -4, testStart)
	require.NoError(t, err)
	assert.Equal(t, BalanceState{Balance: 6, Version: 1}, state)

	_, err = repo.ApplyDelta(ctx, "u", -7, testStart)
	assert.ErrorIs(t, err, ErrBalanceConflict)

	at := testStart.Add(time.Hour)
	require.NoError(t, repo.UpdateAccount(ctx, "u", models.AccountPaid, false, at))
	w, err := repo.GetByUserID(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, int64(2), w.Version)
	assert.Equal(t, int64(6), w.Balance)
	assert.True(t, w.UpdatedAt.Equal(at))

	_, err = repo.GetVersion(ctx, "ghost")
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletRepository_LockOrder(t *testing.T) {
	db := openTestDB(t)
	wallets := NewWalletRepository(db)
	orders := NewOrderRepository(db)
	ctx := context.Background()

	require.NoError(t, orders.Create(ctx, &models.Order{ID: "o1", UserID: "u", ToolType: "ads", Status: models.OrderPending, CreatedAt: testStart, UpdatedAt: testStart}))

	err := wallets.ExecuteInTransaction(ctx, func(tx WalletRepository) error {
		status, err := tx.LockOrder(ctx, "o1")
		require.NoError(t, err)
		assert.Equal(t, models.OrderPending, status)

		_, err = tx.LockOrder(ctx, "missing")
		assert.ErrorIs(t, err, ErrOrderNotFound)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, orders.MarkTerminal(ctx, "o1", models.OrderFailed, nil, "gone", testStart))
	_, err = orders.GetPendingForUpdate(ctx, "o1")
	assert.ErrorIs(t, err, ErrStatusConflict)
}
