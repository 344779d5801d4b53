package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/FongFus/Pharmatech/internal/domain/discount"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// discountRepository 优惠码仓储
type discountRepository struct {
	db *gorm.DB
}

// NewDiscountRepository 创建优惠码仓储
func NewDiscountRepository(db *gorm.DB) discount.Repository {
	return &discountRepository{db: db}
}

func (r *discountRepository) FindByCode(ctx context.Context, code string) (*discount.Discount, error) {
	var m DiscountModel
	if err := conn(ctx, r.db).Where("code = ?", code).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, discount.ErrDiscountNotFound
		}
		return nil, apperrors.Persistence(err, "查询优惠码失败")
	}
	return &discount.Discount{
		ID:                m.ID,
		Code:              m.Code,
		Type:              discount.Type(m.Type),
		Value:             m.Value,
		MaxDiscountAmount: m.MaxDiscountAmount,
		MinOrderValue:     m.MinOrderValue,
		StartAt:           m.StartAt,
		EndAt:             m.EndAt,
		MaxUses:           m.MaxUses,
		UsesCount:         m.UsesCount,
		IsActive:          m.IsActive,
	}, nil
}

// IncrementUsage UPDATE discounts SET uses_count = uses_count + 1
// WHERE id = ? AND (max_uses IS NULL OR uses_count < max_uses)
// 并发核销同一个码时，行锁让这条语句串行执行，超出上限的影响行数为0
func (r *discountRepository) IncrementUsage(ctx context.Context, id uint) (int64, error) {
	result := conn(ctx, r.db).Model(&DiscountModel{}).
		Where("id = ? AND (max_uses IS NULL OR uses_count < max_uses)", id).
		Update("uses_count", gorm.Expr("uses_count + 1"))
	if result.Error != nil {
		return 0, apperrors.Persistence(result.Error, "核销优惠码失败")
	}
	return result.RowsAffected, nil
}

func (r *discountRepository) DecrementUsage(ctx context.Context, id uint) error {
	err := conn(ctx, r.db).Model(&DiscountModel{}).
		Where("id = ? AND uses_count > 0", id).
		Update("uses_count", gorm.Expr("uses_count - 1")).Error
	if err != nil {
		return apperrors.Persistence(err, "归还优惠码次数失败")
	}
	return nil
}
