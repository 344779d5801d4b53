package database

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
)

// 需要MySQL，未设置PHARMATECH_TEST_MYSQL_DSN时跳过
// 例: root:root@tcp(127.0.0.1:3306)/pharmatech_test?charset=utf8mb4&parseTime=True&loc=UTC
func openTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("PHARMATECH_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("未设置PHARMATECH_TEST_MYSQL_DSN，跳过数据库测试")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return db
}

// 每个测试用独立的经销商ID，避免互相干扰
func uniqueKey() inventory.Key {
	return inventory.Key{DistributorID: uint(time.Now().UnixNano()%1_000_000_000) + 1, ProductID: 1}
}

func seedStock(t *testing.T, db *gorm.DB, key inventory.Key, qty int) {
	require.NoError(t, db.Create(&InventoryModel{DistributorID: key.DistributorID, ProductID: key.ProductID, Quantity: qty}).Error)
	t.Cleanup(func() {
		db.Where("distributor_id = ? AND product_id = ?", key.DistributorID, key.ProductID).Delete(&InventoryModel{})
	})
}

func TestLedger_GuardedDecrement(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	l := NewLedger(db)
	key := uniqueKey()
	seedStock(t, db, key, 5)

	rows, err := l.Decrement(ctx, key, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "库存不足时不应扣减")

	rows, err = l.Decrement(ctx, key, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	stock, err := l.Lock(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, stock.Quantity)

	require.NoError(t, l.Increment(ctx, key, 3))
	stock, err = l.Lock(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 3, stock.Quantity)

	_, err = l.Lock(ctx, inventory.Key{DistributorID: key.DistributorID, ProductID: 999})
	assert.ErrorIs(t, err, inventory.ErrStockNotFound)
}

// TestLedger_ConcurrentDecrement 行锁下并发扣减不会超卖
func TestLedger_ConcurrentDecrement(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	l := NewLedger(db)
	txm := NewTxManager(db)
	key := uniqueKey()
	seedStock(t, db, key, 10)

	const workers = 8
	var (
		wg      sync.WaitGroup
		success int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := txm.Transaction(ctx, func(ctx context.Context) error {
				stock, err := l.Lock(ctx, key)
				if err != nil {
					return err
				}
				if stock.Quantity < 3 {
					return fmt.Errorf("库存不足: %d", stock.Quantity)
				}
				rows, err := l.Decrement(ctx, key, 3)
				if err != nil {
					return err
				}
				if rows == 0 {
					return fmt.Errorf("扣减失败")
				}
				return nil
			})
			if err == nil {
				atomic.AddInt32(&success, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), success)
	stock, err := l.Lock(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 1, stock.Quantity)
}

func TestDiscount_UsageGuard(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewDiscountRepository(db)

	maxUses := 1
	model := &DiscountModel{
		Code:     "IT-" + uuid.NewString()[:8],
		Type:     "fixed",
		Value:    decimal.NewFromInt(10),
		StartAt:  time.Now().Add(-time.Hour),
		EndAt:    time.Now().Add(time.Hour),
		MaxUses:  &maxUses,
		IsActive: true,
	}
	require.NoError(t, db.Create(model).Error)
	t.Cleanup(func() { db.Delete(&DiscountModel{}, model.ID) })

	rows, err := repo.IncrementUsage(ctx, model.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.IncrementUsage(ctx, model.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "达到上限后不能再核销")

	require.NoError(t, repo.DecrementUsage(ctx, model.ID))
	d, err := repo.FindByCode(ctx, model.Code)
	require.NoError(t, err)
	assert.Equal(t, 0, d.UsesCount)
}

func TestOrderAndPayment(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	orders := NewOrderRepository(db)
	payments := NewPaymentRepository(db)
	txm := NewTxManager(db)

	code := "ORDER-" + uuid.NewString()[:8]
	o := order.NewOrder(code, 7, []order.Item{
		{ProductID: 1, DistributorID: 10, ProductName: "Paracetamol 500mg", Quantity: 2, Price: decimal.NewFromInt(100)},
	}, nil, decimal.NewFromInt(20))
	require.NoError(t, orders.Create(ctx, o))
	t.Cleanup(func() { _ = orders.Delete(context.Background(), o.ID) })
	require.NotZero(t, o.ID)
	require.NotZero(t, o.Items[0].ID)

	dup := order.NewOrder(code, 7, []order.Item{{ProductID: 1, DistributorID: 10, ProductName: "x", Quantity: 1, Price: decimal.NewFromInt(1)}}, nil, decimal.Zero)
	assert.ErrorIs(t, orders.Create(ctx, dup), order.ErrDuplicateCode)

	got, err := orders.FindByCode(ctx, code)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(180).Equal(got.TotalAmount()))
	require.Len(t, got.Items, 1)

	now := time.Now().UTC()
	p := &payment.Payment{
		OrderID:       o.ID,
		UserID:        7,
		Amount:        got.TotalAmount(),
		Method:        payment.MethodSandbox,
		Status:        payment.StatusPending,
		TransactionID: uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, payments.Create(ctx, p))
	t.Cleanup(func() { db.Delete(&PaymentModel{}, p.ID) })

	// 事务内重复创建：保存点回滚后事务仍可用
	err = txm.Transaction(ctx, func(ctx context.Context) error {
		again := *p
		again.ID = 0
		again.TransactionID = uuid.NewString()
		err := payments.Create(ctx, &again)

		var dupErr *payment.DuplicatePaymentError
		require.ErrorAs(t, err, &dupErr)
		assert.Equal(t, payment.StatusPending, dupErr.Status)

		locked, err := payments.LockByID(ctx, p.ID)
		if err != nil {
			return err
		}
		locked.Status = payment.StatusCompleted
		locked.PaidAt = &now
		return payments.Update(ctx, locked)
	})
	require.NoError(t, err)

	stored, err := payments.FindByTransactionID(ctx, p.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, stored.Status)
	assert.NotNil(t, stored.PaidAt)

	list, total, err := orders.ListByUserID(ctx, 7, 1, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, int64(1))
	assert.NotEmpty(t, list)
}
