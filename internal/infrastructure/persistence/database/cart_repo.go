package database

import (
	"context"

	"gorm.io/gorm"

	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// cartRepository 购物车仓储
type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepository{db: db}
}

func (r *cartRepository) FindByID(ctx context.Context, id uint) (*cart.Cart, error) {
	var model CartModel
	err := conn(ctx, r.db).Preload("Items").First(&model, id).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cart.ErrCartNotFound
		}
		return nil, apperrors.Persistence(err, "查询购物车失败")
	}
	return toCartEntity(&model), nil
}

// ClearItems 删除购物车全部条目，购物车本身保留
func (r *cartRepository) ClearItems(ctx context.Context, cartID uint) error {
	if err := conn(ctx, r.db).Where("cart_id = ?", cartID).Delete(&CartItemModel{}).Error; err != nil {
		return apperrors.Persistence(err, "清空购物车失败")
	}
	return nil
}

// RestoreItems 结算补偿：把条目写回购物车
func (r *cartRepository) RestoreItems(ctx context.Context, cartID uint, items []cart.Item) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]CartItemModel, len(items))
	for i, item := range items {
		models[i] = CartItemModel{CartID: cartID, ProductID: item.ProductID, Quantity: item.Quantity}
	}
	if err := conn(ctx, r.db).Create(&models).Error; err != nil {
		return apperrors.Persistence(err, "恢复购物车失败")
	}
	return nil
}

func toCartEntity(m *CartModel) *cart.Cart {
	items := make([]cart.Item, len(m.Items))
	for i, item := range m.Items {
		items[i] = cart.Item{ID: item.ID, CartID: item.CartID, ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return &cart.Cart{ID: m.ID, UserID: m.UserID, Items: items, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

// catalogReader 商品目录（只读协作方）
type catalogReader struct {
	db *gorm.DB
}

// NewCatalogReader 创建商品读取器
func NewCatalogReader(db *gorm.DB) catalog.Reader {
	return &catalogReader{db: db}
}

// FindByIDs 一次查询，避免N+1
func (r *catalogReader) FindByIDs(ctx context.Context, ids []uint) (map[uint]*catalog.Product, error) {
	out := make(map[uint]*catalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var models []ProductModel
	if err := conn(ctx, r.db).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, apperrors.Persistence(err, "查询商品失败")
	}
	for _, m := range models {
		out[m.ID] = &catalog.Product{
			ID:            m.ID,
			DistributorID: m.DistributorID,
			Name:          m.Name,
			Price:         m.Price,
			IsApproved:    m.IsApproved,
		}
	}
	return out, nil
}
