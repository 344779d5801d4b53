package discount

import (
	"fmt"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// Reason 优惠码不可用的原因
type Reason string

const (
	ReasonInactive     Reason = "inactive"
	ReasonNotStarted   Reason = "not_started"
	ReasonExpired      Reason = "expired"
	ReasonExhausted    Reason = "exhausted"
	ReasonBelowMinimum Reason = "below_minimum"
	ReasonInvalidValue Reason = "invalid_value"
)

var reasonMessages = map[Reason]string{
	ReasonInactive:     "优惠码已停用",
	ReasonNotStarted:   "优惠码尚未生效",
	ReasonExpired:      "优惠码已过期",
	ReasonExhausted:    "优惠码使用次数已达上限",
	ReasonBelowMinimum: "订单金额未达到优惠码最低消费",
	ReasonInvalidValue: "优惠码配置无效",
}

// ErrDiscountNotFound 优惠码不存在
var ErrDiscountNotFound = apperrors.New(apperrors.ErrCodeDiscountNotFound, "优惠码不存在")

// DiscountInvalidError 优惠码校验失败，Reason指明哪条规则
type DiscountInvalidError struct {
	Code   string
	Reason Reason
}

// Invalid 构造校验错误
func Invalid(code string, reason Reason) *DiscountInvalidError {
	return &DiscountInvalidError{Code: code, Reason: reason}
}

func (e *DiscountInvalidError) Error() string {
	msg, ok := reasonMessages[e.Reason]
	if !ok {
		msg = "优惠码不可用"
	}
	return fmt.Sprintf("%s(%s)", msg, e.Code)
}

// AppError 转换为统一错误
func (e *DiscountInvalidError) AppError() *apperrors.AppError {
	return &apperrors.AppError{Code: apperrors.ErrCodeDiscountInvalid, Message: e.Error(), Err: e}
}

// Detail 响应data字段
func (e *DiscountInvalidError) Detail() interface{} {
	return map[string]string{"code": e.Code, "reason": string(e.Reason)}
}
