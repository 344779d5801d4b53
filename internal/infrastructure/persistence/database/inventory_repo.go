package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// ledger 库存台账
type ledger struct {
	db *gorm.DB
}

// NewLedger 创建库存台账
func NewLedger(db *gorm.DB) inventory.Ledger {
	return &ledger{db: db}
}

// Lock SELECT * FROM inventories WHERE distributor_id = ? AND product_id = ? FOR UPDATE
// 其他事务必须等待当前事务COMMIT或ROLLBACK后才能锁定同一行
func (l *ledger) Lock(ctx context.Context, key inventory.Key) (*inventory.Stock, error) {
	var model InventoryModel
	err := conn(ctx, l.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("distributor_id = ? AND product_id = ?", key.DistributorID, key.ProductID).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, inventory.ErrStockNotFound
		}
		return nil, apperrors.Persistence(err, "锁定库存失败")
	}
	return &inventory.Stock{
		ID:            model.ID,
		DistributorID: model.DistributorID,
		ProductID:     model.ProductID,
		Quantity:      model.Quantity,
	}, nil
}

// Decrement UPDATE inventories SET quantity = quantity - ? WHERE ... AND quantity >= ?
// 条件更新保证数量不为负，影响行数为0表示库存不足
func (l *ledger) Decrement(ctx context.Context, key inventory.Key, qty int) (int64, error) {
	result := conn(ctx, l.db).Model(&InventoryModel{}).
		Where("distributor_id = ? AND product_id = ? AND quantity >= ?", key.DistributorID, key.ProductID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		return 0, apperrors.Persistence(result.Error, "扣减库存失败")
	}
	return result.RowsAffected, nil
}

// Increment 加回库存，行不存在时插入
// MySQL: INSERT ... ON DUPLICATE KEY UPDATE；PostgreSQL: INSERT ... ON CONFLICT DO UPDATE
func (l *ledger) Increment(ctx context.Context, key inventory.Key, qty int) error {
	model := &InventoryModel{DistributorID: key.DistributorID, ProductID: key.ProductID, Quantity: qty}
	err := conn(ctx, l.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "distributor_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("inventories.quantity + ?", qty),
			"updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(model).Error
	if err != nil {
		return apperrors.Persistence(err, "回补库存失败")
	}
	return nil
}
