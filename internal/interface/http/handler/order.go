package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	apporder "github.com/FongFus/Pharmatech/internal/application/order"
	"github.com/FongFus/Pharmatech/internal/domain/order"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/interface/http/dto"
	"github.com/FongFus/Pharmatech/internal/interface/http/middleware"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/response"
)

const headerIdempotencyKey = "Idempotency-Key"

// 用例接口，测试中替换为mock
type (
	checkoutExecutor interface {
		Execute(ctx context.Context, req apporder.CheckoutRequest) (*apporder.CheckoutResponse, error)
	}
	orderGetter interface {
		Execute(ctx context.Context, code string, userID uint) (*apporder.OrderView, error)
	}
	orderLister interface {
		Execute(ctx context.Context, req apporder.ListOrdersRequest) (*apporder.ListOrdersResponse, error)
	}
	orderCanceller interface {
		Execute(ctx context.Context, req apporder.CancelOrderRequest) (*order.Order, error)
	}
)

// OrderHandler 订单HTTP处理器
type OrderHandler struct {
	checkout checkoutExecutor
	get      orderGetter
	list     orderLister
	cancel   orderCanceller
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(
	checkout *apporder.CheckoutUseCase,
	get *apporder.GetOrderUseCase,
	list *apporder.ListOrdersUseCase,
	cancel *apporder.CancelOrderUseCase,
) *OrderHandler {
	return &OrderHandler{checkout: checkout, get: get, list: list, cancel: cancel}
}

// Checkout 结算
// @Summary      结算下单
// @Description  购物车快照 → 校验优惠码 → 锁库存扣减 → 写订单 → 发起支付。携带Idempotency-Key时重复提交返回同一结果
// @Tags         订单模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key header string false "幂等键"
// @Param        request body dto.CheckoutRequest true "结算信息"
// @Success      200 {object} response.Response{data=apporder.CheckoutResponse} "下单成功"
// @Failure      40001 {object} response.Response "库存不足，data为不足的商品明细"
// @Failure      40006 {object} response.Response "优惠码不可用"
// @Failure      40008 {object} response.Response "相同幂等键的请求正在处理"
// @Failure      50003 {object} response.Response "支付网关调用失败"
// @Router       /orders/checkout [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	result, err := h.checkout.Execute(c.Request.Context(), apporder.CheckoutRequest{
		CartID:         req.CartID,
		UserID:         middleware.MustGetUserID(c),
		DiscountCode:   req.DiscountCode,
		Method:         payment.Method(req.PaymentMethod),
		ClientIP:       c.ClientIP(),
		IdempotencyKey: c.GetHeader(headerIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetOrder 订单详情
// @Summary      订单详情
// @Tags         订单模块
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "订单号"
// @Success      200 {object} response.Response{data=dto.OrderResponse}
// @Failure      40104 {object} response.Response "不是自己的订单"
// @Failure      40403 {object} response.Response "订单不存在"
// @Router       /orders/{code} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	view, err := h.get.Execute(c.Request.Context(), c.Param("code"), middleware.MustGetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewOrderResponse(view.Order, view.Payment))
}

// ListOrders 我的订单
// @Summary      我的订单
// @Tags         订单模块
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.OrderListItem}}
// @Router       /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	result, err := h.list.Execute(c.Request.Context(), apporder.ListOrdersRequest{
		UserID:   middleware.MustGetUserID(c),
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithPage(c, dto.NewOrderList(result.Orders), result.Total, result.Page, result.PageSize)
}

// CancelOrder 取消订单
// @Summary      取消订单
// @Description  未付款订单直接取消并加回库存；已付款订单先退款
// @Tags         订单模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        code path string true "订单号"
// @Param        request body dto.CancelOrderRequest false "取消原因"
// @Success      200 {object} response.Response{data=dto.OrderResponse}
// @Failure      40002 {object} response.Response "当前状态不能取消"
// @Router       /orders/{code}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	// body可选
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
			return
		}
	}

	o, err := h.cancel.Execute(c.Request.Context(), apporder.CancelOrderRequest{
		OrderCode: c.Param("code"),
		UserID:    middleware.MustGetUserID(c),
		Reason:    req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewOrderResponse(o, nil))
}
