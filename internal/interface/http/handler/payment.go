package handler

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	apppayment "github.com/FongFus/Pharmatech/internal/application/payment"
	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/gateway"
	"github.com/FongFus/Pharmatech/internal/interface/http/dto"
	"github.com/FongFus/Pharmatech/internal/interface/http/middleware"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/response"
)

type (
	paymentCreator interface {
		Execute(ctx context.Context, req apppayment.CreatePaymentRequest) (*payment.Payment, error)
	}
	paymentConfirmer interface {
		Execute(ctx context.Context, req apppayment.ConfirmPaymentRequest) (*payment.Payment, error)
	}
	paymentRefunder interface {
		Execute(ctx context.Context, req apppayment.RefundPaymentRequest) (*payment.Payment, error)
	}
	returnVerifier interface {
		VerifyReturn(query url.Values) (*gateway.ReturnResult, error)
	}
)

// PaymentHandler 支付HTTP处理器
type PaymentHandler struct {
	create  paymentCreator
	confirm paymentConfirmer
	refund  paymentRefunder
	vnpay   returnVerifier // 未启用VNPay时为nil
}

// NewPaymentHandler 创建支付处理器
func NewPaymentHandler(
	create *apppayment.CreatePaymentUseCase,
	confirm *apppayment.ConfirmPaymentUseCase,
	refund *apppayment.RefundPaymentUseCase,
	gateways *gateway.Registry,
) *PaymentHandler {
	h := &PaymentHandler{create: create, confirm: confirm, refund: refund}
	if v := gateways.VNPay(); v != nil {
		h.vnpay = v
	}
	return h
}

// CreatePayment 为待支付订单发起支付
// @Summary      发起支付
// @Description  订单已有失败的支付时重新发起，其他情况返回40007
// @Tags         支付模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreatePaymentRequest true "支付信息"
// @Success      200 {object} response.Response{data=dto.PaymentResponse}
// @Failure      40007 {object} response.Response "订单已存在支付"
// @Failure      50003 {object} response.Response "支付网关调用失败"
// @Router       /payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req dto.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "参数错误: "+err.Error())
		return
	}

	p, err := h.create.Execute(c.Request.Context(), apppayment.CreatePaymentRequest{
		OrderCode: req.OrderCode,
		UserID:    middleware.MustGetUserID(c),
		Method:    payment.Method(req.PaymentMethod),
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewPaymentResponse(p))
}

// ConfirmPayment 主动确认支付结果
// @Summary      确认支付
// @Description  向网关查询结果并推进状态，已完成的支付重复确认无副作用
// @Tags         支付模块
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "支付ID"
// @Success      200 {object} response.Response{data=dto.PaymentResponse}
// @Failure      40404 {object} response.Response "支付记录不存在"
// @Failure      50004 {object} response.Response "支付网关超时"
// @Router       /payments/{id}/confirm [post]
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	p, err := h.confirm.Execute(c.Request.Context(), apppayment.ConfirmPaymentRequest{
		PaymentID: id,
		UserID:    middleware.MustGetUserID(c),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewPaymentResponse(p))
}

// RefundPayment 退款
// @Summary      退款
// @Description  退款成功后订单取消、库存加回。管理员可以退任意支付
// @Tags         支付模块
// @Produce      json
// @Security     BearerAuth
// @Param        id path int true "支付ID"
// @Success      200 {object} response.Response{data=dto.PaymentResponse}
// @Failure      40002 {object} response.Response "支付不是已完成状态"
// @Failure      40008 {object} response.Response "该支付正在退款"
// @Router       /payments/{id}/refund [post]
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	id, ok := paymentID(c)
	if !ok {
		return
	}

	userID := middleware.MustGetUserID(c)
	if middleware.GetRole(c) == middleware.RoleAdmin {
		userID = 0
	}

	p, err := h.refund.Execute(c.Request.Context(), apppayment.RefundPaymentRequest{
		PaymentID: id,
		UserID:    userID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto.NewPaymentResponse(p))
}

// VNPayReturn VNPay支付完成后的浏览器回跳
// @Summary      VNPay回跳
// @Description  校验签名后以网关查询结果为准确认支付，回跳参数本身只用来定位交易
// @Tags         支付模块
// @Produce      json
// @Success      200 {object} response.Response{data=dto.VNPayReturnResponse}
// @Failure      40900 {object} response.Response "签名校验失败"
// @Router       /payments/vnpay/return [get]
func (h *PaymentHandler) VNPayReturn(c *gin.Context) {
	if h.vnpay == nil {
		response.ErrorWithCode(c, apperrors.ErrCodeNotFound, "VNPay未启用")
		return
	}

	result, err := h.vnpay.VerifyReturn(c.Request.URL.Query())
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, err.Error())
			return
		}
		response.Error(c, err)
		return
	}

	p, err := h.confirm.Execute(c.Request.Context(), apppayment.ConfirmPaymentRequest{
		TransactionID: result.TxnRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &dto.VNPayReturnResponse{
		TxnRef:       result.TxnRef,
		ResponseCode: result.ResponseCode,
		Status:       string(p.Status),
	})
}

func paymentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithCode(c, apperrors.ErrCodeInvalidParams, "支付ID格式错误")
		return 0, false
	}
	return uint(id), true
}
