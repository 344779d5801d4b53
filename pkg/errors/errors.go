package errors

import (
	"errors"
	"fmt"
)

// AppError 自定义应用错误
// 设计说明：
// 1. Code用于客户端判断错误类型（不要直接暴露HTTP状态码）
// 2. Message是用户友好的提示信息
// 3. Err是内部错误，仅记录到日志，不返回给客户端
type AppError struct {
	Code    int    `json:"code"`    // 业务错误码
	Message string `json:"message"` // 用户友好的错误提示
	Err     error  `json:"-"`       // 内部错误（不序列化）
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持errors.Is和errors.As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind 按错误码归类
func (e *AppError) Kind() Kind {
	return KindOfCode(e.Code)
}

// New 创建新的AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装系统错误（如数据库错误、网络错误）
// 用途：将底层错误转换为业务错误，隐藏实现细节
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// Wrapf 格式化包装错误
func Wrapf(err error, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// WrapCode 以指定错误码包装底层错误
func WrapCode(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Persistence 包装存储层错误（数据库、Redis）
func Persistence(err error, message string) *AppError {
	return WrapCode(err, ErrCodeDatabaseError, message)
}

// =========================================
// 错误码定义
// =========================================
// 规范：
// - 4xxxx: 客户端错误（参数错误、业务规则校验失败）
// - 5xxxx: 服务端错误（数据库异常、外部服务调用失败）

const (
	// 系统级错误码（50000-50099）
	ErrCodeInternal       = 50000 // 内部错误
	ErrCodeDatabaseError  = 50001 // 数据库错误
	ErrCodeRedisError     = 50002 // Redis错误
	ErrCodeGatewayError   = 50003 // 支付网关调用失败（可重试）
	ErrCodeGatewayTimeout = 50004 // 支付网关超时（可重试）

	// 认证授权错误（40100-40199）
	ErrCodeUnauthorized = 40100 // 未登录
	ErrCodeInvalidToken = 40101 // Token无效
	ErrCodeTokenExpired = 40102 // Token过期
	ErrCodeForbidden    = 40104 // 无权限

	// 资源错误（40400-40499）
	ErrCodeNotFound         = 40400 // 资源不存在(通用)
	ErrCodeCartNotFound     = 40401 // 购物车不存在
	ErrCodeProductNotFound  = 40402 // 商品不存在
	ErrCodeOrderNotFound    = 40403 // 订单不存在
	ErrCodePaymentNotFound  = 40404 // 支付记录不存在
	ErrCodeDiscountNotFound = 40405 // 优惠码不存在

	// 业务规则错误（40000-40099）
	ErrCodeBusinessError     = 40000 // 业务错误(通用)
	ErrCodeInsufficientStock = 40001 // 库存不足
	ErrCodeInvalidTransition = 40002 // 状态流转非法
	ErrCodeDiscountInvalid   = 40006 // 优惠码不可用
	ErrCodeDuplicatePayment  = 40007 // 订单已存在支付
	ErrCodeRequestInFlight   = 40008 // 相同幂等键的请求正在处理
	ErrCodeDuplicateEntry    = 40009 // 重复记录(通用)
	ErrCodePaymentUnsettled  = 40010 // 网关尚未给出支付结果（可重试）

	// 参数错误（40900-40999）
	ErrCodeInvalidParams = 40900 // 参数错误
	ErrCodeBindError     = 40901 // 参数绑定失败
	ErrCodeEmptyCart     = 40902 // 购物车为空
)

// =========================================
// 错误分类
// =========================================

// Kind 错误类别，调用方按类别决定是否重试、如何展示
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindPermission
	KindUnauthorized
	KindInsufficientStock
	KindDiscountInvalid
	KindDuplicatePayment
	KindInvalidTransition
	KindConflict
	KindGateway
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindPermission:
		return "permission"
	case KindUnauthorized:
		return "unauthorized"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindDiscountInvalid:
		return "discount_invalid"
	case KindDuplicatePayment:
		return "duplicate_payment"
	case KindInvalidTransition:
		return "invalid_transition"
	case KindConflict:
		return "conflict"
	case KindGateway:
		return "gateway"
	case KindPersistence:
		return "persistence"
	default:
		return "internal"
	}
}

// KindOfCode 错误码 → 类别
func KindOfCode(code int) Kind {
	switch {
	case code == ErrCodeInsufficientStock:
		return KindInsufficientStock
	case code == ErrCodeDiscountInvalid:
		return KindDiscountInvalid
	case code == ErrCodeDuplicatePayment:
		return KindDuplicatePayment
	case code == ErrCodeInvalidTransition:
		return KindInvalidTransition
	case code == ErrCodeDuplicateEntry, code == ErrCodeRequestInFlight:
		return KindConflict
	case code == ErrCodeForbidden:
		return KindPermission
	case code == ErrCodeGatewayError, code == ErrCodeGatewayTimeout, code == ErrCodePaymentUnsettled:
		return KindGateway
	case code == ErrCodeDatabaseError, code == ErrCodeRedisError:
		return KindPersistence
	case code >= 40100 && code < 40200:
		return KindUnauthorized
	case code >= 40400 && code < 40500:
		return KindNotFound
	case code >= 40900 && code < 41000:
		return KindValidation
	case code >= 40000 && code < 40100:
		return KindValidation
	default:
		return KindInternal
	}
}

// =========================================
// 预定义错误（避免每次都New）
// =========================================

var (
	// 系统错误
	ErrInternal      = New(ErrCodeInternal, "系统内部错误")
	ErrDatabaseError = New(ErrCodeDatabaseError, "数据库错误")
	ErrRedisError    = New(ErrCodeRedisError, "缓存服务错误")

	// 认证授权
	ErrUnauthorized = New(ErrCodeUnauthorized, "请先登录")
	ErrInvalidToken = New(ErrCodeInvalidToken, "无效的Token")
	ErrTokenExpired = New(ErrCodeTokenExpired, "Token已过期")
	ErrForbidden    = New(ErrCodeForbidden, "无权限访问")

	// 参数错误
	ErrInvalidParams = New(ErrCodeInvalidParams, "参数错误")
	ErrBindError     = New(ErrCodeBindError, "参数格式错误")

	// 幂等
	ErrRequestInFlight = New(ErrCodeRequestInFlight, "请求正在处理中，请勿重复提交")
)

// =========================================
// 状态机错误
// =========================================

// InvalidTransitionError 状态机拒绝的(状态,事件)组合
type InvalidTransitionError struct {
	Entity string // order | payment
	From   string
	Event  string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s状态%s不允许执行%s", e.Entity, e.From, e.Event)
}

// AppError 转换为统一错误
func (e *InvalidTransitionError) AppError() *AppError {
	return &AppError{Code: ErrCodeInvalidTransition, Message: e.Error(), Err: e}
}

// Coder 领域错误实现此接口即可参与统一错误响应
type Coder interface {
	AppError() *AppError
}

// =========================================
// 辅助函数
// =========================================

// IsAppError 判断是否为AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError 提取AppError
// 顺序：AppError → 领域错误(Coder) → 包装成Internal错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var coder Coder
	if errors.As(err, &coder) {
		return coder.AppError()
	}
	return Wrap(err, "系统内部错误")
}

// KindOf 任意错误的类别
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return GetAppError(err).Kind()
}

// IsRetryable 网关类错误允许调用方稍后重试
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindGateway
}
