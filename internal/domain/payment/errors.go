package payment

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

var (
	// ErrPaymentNotFound 支付记录不存在
	ErrPaymentNotFound = apperrors.New(apperrors.ErrCodePaymentNotFound, "支付记录不存在")

	// ErrNotOwner 支付不属于当前用户
	ErrNotOwner = apperrors.New(apperrors.ErrCodeForbidden, "无权操作该支付")

	// ErrUnsupportedMethod 渠道与当前网关不一致
	ErrUnsupportedMethod = apperrors.New(apperrors.ErrCodeInvalidParams, "不支持的支付方式")

	// ErrOrderNotPayable 订单不是待支付状态
	ErrOrderNotPayable = apperrors.New(apperrors.ErrCodeBusinessError, "订单当前状态不能发起支付")

	// ErrRefundInProgress 同一笔支付正在退款
	ErrRefundInProgress = apperrors.New(apperrors.ErrCodeRequestInFlight, "退款正在处理中")

	// ErrPaymentUnsettled 网关尚未给出支付结果，稍后重试
	ErrPaymentUnsettled = apperrors.New(apperrors.ErrCodePaymentUnsettled, "支付结果未确定，请稍后重试")

	// ErrInvalidSignature 网关回调签名错误
	ErrInvalidSignature = apperrors.New(apperrors.ErrCodeInvalidParams, "回调签名校验失败")
)

// DuplicatePaymentError 订单已存在支付
type DuplicatePaymentError struct {
	OrderID uint
	Status  Status
}

func (e *DuplicatePaymentError) Error() string {
	return fmt.Sprintf("订单%d已存在支付记录(状态:%s)", e.OrderID, e.Status)
}

// AppError 转换为统一错误
func (e *DuplicatePaymentError) AppError() *apperrors.AppError {
	return &apperrors.AppError{Code: apperrors.ErrCodeDuplicatePayment, Message: e.Error(), Err: e}
}

// GatewayError 网关调用失败，可重试
type GatewayError struct {
	Provider string
	Op       string // create_checkout | confirm | refund
	Timeout  bool
	Err      error
}

func (e *GatewayError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("支付网关%s调用%s超时: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("支付网关%s调用%s失败: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// AppError 转换为统一错误
func (e *GatewayError) AppError() *apperrors.AppError {
	code := apperrors.ErrCodeGatewayError
	msg := "支付网关暂不可用，请稍后重试"
	if e.Timeout {
		code = apperrors.ErrCodeGatewayTimeout
		msg = "支付网关响应超时，请稍后重试"
	}
	return &apperrors.AppError{Code: code, Message: msg, Err: e}
}

// NewGatewayError 包装网关错误，ctx超时标记为Timeout
func NewGatewayError(provider, op string, err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &GatewayError{
		Provider: provider,
		Op:       op,
		Timeout:  errors.Is(err, context.DeadlineExceeded),
		Err:      err,
	}
}
