package order

import (
	"context"
	"errors"

	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
)

// GetOrderUseCase 订单详情
type GetOrderUseCase struct {
	orders   order.Repository
	payments payment.Repository
}

// NewGetOrderUseCase 创建订单详情用例
func NewGetOrderUseCase(orders order.Repository, payments payment.Repository) *GetOrderUseCase {
	return &GetOrderUseCase{orders: orders, payments: payments}
}

// OrderView 订单及其支付（可能还没有支付）
type OrderView struct {
	Order   *order.Order
	Payment *payment.Payment
}

// Execute 只能查看自己的订单
func (uc *GetOrderUseCase) Execute(ctx context.Context, code string, userID uint) (*OrderView, error) {
	o, err := uc.orders.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !o.IsOwnedBy(userID) {
		return nil, order.ErrNotOwner
	}

	view := &OrderView{Order: o}
	p, err := uc.payments.FindByOrderID(ctx, o.ID)
	switch {
	case err == nil:
		view.Payment = p
	case !errors.Is(err, payment.ErrPaymentNotFound):
		return nil, err
	}
	return view, nil
}

// ListOrdersUseCase 我的订单
type ListOrdersUseCase struct {
	orders order.Repository
}

// NewListOrdersUseCase 创建订单列表用例
func NewListOrdersUseCase(orders order.Repository) *ListOrdersUseCase {
	return &ListOrdersUseCase{orders: orders}
}

// ListOrdersRequest 分页参数
type ListOrdersRequest struct {
	UserID   uint
	Page     int
	PageSize int
}

// ListOrdersResponse 分页结果
type ListOrdersResponse struct {
	Orders   []*order.Order
	Total    int64
	Page     int
	PageSize int
}

// Execute 按创建时间倒序
func (uc *ListOrdersUseCase) Execute(ctx context.Context, req ListOrdersRequest) (*ListOrdersResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		req.PageSize = 20
	}

	orders, total, err := uc.orders.ListByUserID(ctx, req.UserID, req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	return &ListOrdersResponse{
		Orders:   orders,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}
