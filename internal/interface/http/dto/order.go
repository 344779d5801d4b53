package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
)

const timeLayout = "2006-01-02 15:04:05"

// CheckoutRequest HTTP结算请求
// 幂等键通过请求头Idempotency-Key传递
type CheckoutRequest struct {
	CartID        uint   `json:"cart_id" binding:"required,min=1" example:"1"`
	DiscountCode  string `json:"discount_code" binding:"omitempty,max=50" example:"SAVE10"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=vnpay momo stripe sandbox" example:"vnpay"`
}

// CancelOrderRequest HTTP取消订单请求
type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=255" example:"不想要了"`
}

// ListOrdersRequest 我的订单分页参数
type ListOrdersRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
}

// OrderItemResponse 订单明细
type OrderItemResponse struct {
	ProductID     uint            `json:"product_id" example:"1"`
	DistributorID uint            `json:"distributor_id" example:"10"`
	ProductName   string          `json:"product_name" example:"Paracetamol 500mg"`
	Quantity      int             `json:"quantity" example:"2"`
	Price         decimal.Decimal `json:"price" swaggertype:"string" example:"100.00"`
	Amount        decimal.Decimal `json:"amount" swaggertype:"string" example:"200.00"`
}

// OrderResponse 订单详情
// 金额以字符串输出，避免前端浮点误差
type OrderResponse struct {
	ID             uint                `json:"id" example:"1"`
	Code           string              `json:"code" example:"ORDER-1A2B3C4D"`
	Status         string              `json:"status" example:"pending"`
	Subtotal       decimal.Decimal     `json:"subtotal" swaggertype:"string" example:"300.00"`
	DiscountAmount decimal.Decimal     `json:"discount_amount" swaggertype:"string" example:"30.00"`
	TotalAmount    decimal.Decimal     `json:"total_amount" swaggertype:"string" example:"270.00"`
	Items          []OrderItemResponse `json:"items,omitempty"`
	Payment        *PaymentResponse    `json:"payment,omitempty"`
	CreatedAt      string              `json:"created_at" example:"2026-03-01 12:00:00"`
	UpdatedAt      string              `json:"updated_at" example:"2026-03-01 12:00:00"`
}

// NewOrderResponse 领域订单 → 响应，p可以为nil
func NewOrderResponse(o *order.Order, p *payment.Payment) *OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			ProductID:     item.ProductID,
			DistributorID: item.DistributorID,
			ProductName:   item.ProductName,
			Quantity:      item.Quantity,
			Price:         item.Price,
			Amount:        item.Amount(),
		}
	}

	resp := &OrderResponse{
		ID:             o.ID,
		Code:           o.Code,
		Status:         string(o.Status),
		Subtotal:       o.Subtotal(),
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount(),
		Items:          items,
		CreatedAt:      formatTime(o.CreatedAt),
		UpdatedAt:      formatTime(o.UpdatedAt),
	}
	if p != nil {
		resp.Payment = NewPaymentResponse(p)
	}
	return resp
}

// OrderListItem 列表项不返回明细
type OrderListItem struct {
	Code        string          `json:"code" example:"ORDER-1A2B3C4D"`
	Status      string          `json:"status" example:"completed"`
	ItemCount   int             `json:"item_count" example:"3"`
	TotalAmount decimal.Decimal `json:"total_amount" swaggertype:"string" example:"270.00"`
	CreatedAt   string          `json:"created_at" example:"2026-03-01 12:00:00"`
}

// NewOrderList 订单列表转换
func NewOrderList(orders []*order.Order) []OrderListItem {
	list := make([]OrderListItem, len(orders))
	for i, o := range orders {
		list[i] = OrderListItem{
			Code:        o.Code,
			Status:      string(o.Status),
			ItemCount:   len(o.Items),
			TotalAmount: o.TotalAmount(),
			CreatedAt:   formatTime(o.CreatedAt),
		}
	}
	return list
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
