package database

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/FongFus/Pharmatech/internal/domain/order"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// orderRepository 订单仓储
// Order和OrderItem是聚合关系，必须一起保存；查询时Preload明细，避免N+1
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepository{db: db}
}

// Create 插入订单及明细，order_code冲突返回order.ErrDuplicateCode
func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	model := toOrderModel(o)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		if isDuplicateError(err) {
			return order.ErrDuplicateCode
		}
		return apperrors.Persistence(err, "创建订单失败")
	}

	o.ID = model.ID
	for i := range o.Items {
		o.Items[i].ID = model.Items[i].ID
		o.Items[i].OrderID = model.ID
	}
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*order.Order, error) {
	var model OrderModel
	if err := conn(ctx, r.db).Preload("Items").First(&model, id).Error; err != nil {
		return nil, r.notFound(err)
	}
	return toOrderEntity(&model), nil
}

func (r *orderRepository) FindByCode(ctx context.Context, code string) (*order.Order, error) {
	var model OrderModel
	if err := conn(ctx, r.db).Preload("Items").Where("order_code = ?", code).First(&model).Error; err != nil {
		return nil, r.notFound(err)
	}
	return toOrderEntity(&model), nil
}

// LockByCode SELECT ... FOR UPDATE，必须在事务内调用
func (r *orderRepository) LockByCode(ctx context.Context, code string) (*order.Order, error) {
	var model OrderModel
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items").
		Where("order_code = ?", code).
		First(&model).Error
	if err != nil {
		return nil, r.notFound(err)
	}
	return toOrderEntity(&model), nil
}

// UpdateStatus 只更新状态，明细创建后不再变化
func (r *orderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	result := conn(ctx, r.db).Model(&OrderModel{}).Where("id = ?", o.ID).Updates(map[string]interface{}{
		"status":     string(o.Status),
		"updated_at": o.UpdatedAt,
	})
	if result.Error != nil {
		return apperrors.Persistence(result.Error, "更新订单失败")
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// Delete 删除订单及明细（结算补偿）
func (r *orderRepository) Delete(ctx context.Context, id uint) error {
	db := conn(ctx, r.db)
	if err := db.Where("order_id = ?", id).Delete(&OrderItemModel{}).Error; err != nil {
		return apperrors.Persistence(err, "删除订单明细失败")
	}
	if err := db.Delete(&OrderModel{}, id).Error; err != nil {
		return apperrors.Persistence(err, "删除订单失败")
	}
	return nil
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID uint, page, pageSize int) ([]*order.Order, int64, error) {
	var (
		models []OrderModel
		total  int64
	)
	query := conn(ctx, r.db).Model(&OrderModel{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Persistence(err, "查询订单总数失败")
	}

	err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, apperrors.Persistence(err, "查询订单列表失败")
	}

	orders := make([]*order.Order, len(models))
	for i := range models {
		orders[i] = toOrderEntity(&models[i])
	}
	return orders, total, nil
}

func (r *orderRepository) notFound(err error) error {
	if isNotFound(err) {
		return order.ErrOrderNotFound
	}
	return apperrors.Persistence(err, "查询订单失败")
}

func toOrderModel(o *order.Order) *OrderModel {
	items := make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemModel{
			ID:            item.ID,
			OrderID:       item.OrderID,
			ProductID:     item.ProductID,
			DistributorID: item.DistributorID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			Price:         item.Price,
		}
	}
	return &OrderModel{
		ID:             o.ID,
		OrderCode:      o.Code,
		UserID:         o.UserID,
		Status:         string(o.Status),
		DiscountID:     o.DiscountID,
		DiscountAmount: o.DiscountAmount,
		Items:          items,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrderEntity(m *OrderModel) *order.Order {
	items := make([]order.Item, len(m.Items))
	for i, item := range m.Items {
		items[i] = order.Item{
			ID:            item.ID,
			OrderID:       item.OrderID,
			ProductID:     item.ProductID,
			DistributorID: item.DistributorID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			Price:         item.Price,
		}
	}
	return &order.Order{
		ID:             m.ID,
		Code:           m.OrderCode,
		UserID:         m.UserID,
		Status:         order.Status(m.Status),
		DiscountID:     m.DiscountID,
		DiscountAmount: m.DiscountAmount,
		Items:          items,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
