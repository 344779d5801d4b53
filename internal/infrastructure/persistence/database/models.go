package database

import (
	"time"

	"github.com/shopspring/decimal"
)

// GORM模型，只在infrastructure层使用
// 金额统一decimal(12,2)，状态用varchar存储字符串值

type CartModel struct {
	ID        uint            `gorm:"primaryKey"`
	UserID    uint            `gorm:"index;not null;comment:所属用户"`
	Items     []CartItemModel `gorm:"foreignKey:CartID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CartModel) TableName() string { return "carts" }

type CartItemModel struct {
	ID        uint `gorm:"primaryKey"`
	CartID    uint `gorm:"index;not null"`
	ProductID uint `gorm:"not null"`
	Quantity  int  `gorm:"not null"`
}

func (CartItemModel) TableName() string { return "cart_items" }

// ProductModel 商品目录（只读）
type ProductModel struct {
	ID            uint            `gorm:"primaryKey"`
	DistributorID uint            `gorm:"index;not null;comment:经销商"`
	Name          string          `gorm:"size:200;not null"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IsApproved    bool            `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (ProductModel) TableName() string { return "products" }

// InventoryModel 库存，(distributor_id, product_id)唯一
type InventoryModel struct {
	ID            uint `gorm:"primaryKey"`
	DistributorID uint `gorm:"uniqueIndex:uk_inventory_key;not null"`
	ProductID     uint `gorm:"uniqueIndex:uk_inventory_key;not null"`
	Quantity      int  `gorm:"not null;default:0;check:quantity >= 0"`
	UpdatedAt     time.Time
}

func (InventoryModel) TableName() string { return "inventories" }

type DiscountModel struct {
	ID                uint             `gorm:"primaryKey"`
	Code              string           `gorm:"uniqueIndex;size:50;not null"`
	Type              string           `gorm:"size:20;not null;comment:percentage|fixed"`
	Value             decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	MaxDiscountAmount *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MinOrderValue     *decimal.Decimal `gorm:"type:decimal(12,2)"`
	StartAt           time.Time        `gorm:"not null"`
	EndAt             time.Time        `gorm:"not null"`
	MaxUses           *int
	UsesCount         int  `gorm:"not null;default:0"`
	IsActive          bool `gorm:"not null;default:true"`
}

func (DiscountModel) TableName() string { return "discounts" }

type OrderModel struct {
	ID             uint             `gorm:"primaryKey"`
	OrderCode      string           `gorm:"uniqueIndex;size:20;not null;comment:业务单号"`
	UserID         uint             `gorm:"index;not null"`
	Status         string           `gorm:"index;size:20;not null;default:pending"`
	DiscountID     *uint            `gorm:"index"`
	DiscountAmount decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	Items          []OrderItemModel `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time        `gorm:"index"`
	UpdatedAt      time.Time
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 价格是下单时的快照
type OrderItemModel struct {
	ID            uint            `gorm:"primaryKey"`
	OrderID       uint            `gorm:"index;not null"`
	ProductID     uint            `gorm:"index;not null"`
	DistributorID uint            `gorm:"not null"`
	ProductName   string          `gorm:"size:200;not null"`
	Quantity      int             `gorm:"not null"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// PaymentModel 与订单一对一（order_id唯一）
type PaymentModel struct {
	ID            uint            `gorm:"primaryKey"`
	OrderID       uint            `gorm:"uniqueIndex;not null"`
	UserID        uint            `gorm:"index;not null"`
	Amount        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Method        string          `gorm:"size:20;not null"`
	Status        string          `gorm:"index;size:20;not null"`
	TransactionID string          `gorm:"uniqueIndex;size:64;not null"`
	ExternalRef   string          `gorm:"index;size:255"`
	CheckoutURL   string          `gorm:"size:1024"`
	PaidAt        *time.Time
	RefundedAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (PaymentModel) TableName() string { return "payments" }
