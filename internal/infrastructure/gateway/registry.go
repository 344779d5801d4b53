package gateway

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// Registry 支付方式 → 网关
type Registry struct {
	gateways map[payment.Method]payment.Gateway
	fallback payment.Method
	vnpay    *VNPay
}

// NewRegistry 按配置注册已启用的渠道，每个渠道包一层Guard
// sandbox只在非release模式下注册
func NewRegistry(cfg *config.Config, log *zap.Logger) (*Registry, error) {
	r := &Registry{
		gateways: make(map[payment.Method]payment.Gateway),
		fallback: payment.Method(cfg.Payment.Provider),
	}
	cb := cfg.CircuitBreaker

	if cfg.Payment.VNPay.Enabled() {
		r.vnpay = NewVNPay(cfg.Payment.VNPay)
		r.Register(payment.MethodVNPay, NewGuard(r.vnpay, cb, log))
	}
	if cfg.Payment.MoMo.Enabled() {
		r.Register(payment.MethodMoMo, NewGuard(NewMoMo(cfg.Payment.MoMo), cb, log))
	}
	if cfg.Payment.Stripe.Enabled() {
		r.Register(payment.MethodStripe, NewGuard(NewStripe(cfg.Payment.Stripe, nil), cb, log))
	}
	if cfg.Server.Mode != "release" {
		r.Register(payment.MethodSandbox, NewGuard(NewSandbox(payment.ConfirmPaid), cb, log))
	}

	if _, ok := r.gateways[r.fallback]; !ok {
		return nil, fmt.Errorf("默认支付渠道%s未启用", r.fallback)
	}

	methods := make([]string, 0, len(r.gateways))
	for m := range r.gateways {
		methods = append(methods, string(m))
	}
	log.Info("payment_gateways_ready", zap.Strings("methods", methods), zap.String("default", string(r.fallback)))
	return r, nil
}

// Register 注册或替换渠道
func (r *Registry) Register(method payment.Method, gw payment.Gateway) {
	r.gateways[method] = gw
}

// Gateway 未启用的渠道返回参数错误
func (r *Registry) Gateway(method payment.Method) (payment.Gateway, error) {
	gw, ok := r.gateways[method]
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeInvalidParams, fmt.Sprintf("支付方式%s未启用", method))
	}
	return gw, nil
}

func (r *Registry) Default() payment.Method { return r.fallback }

// VNPay 回跳签名校验使用，未启用时为nil
func (r *Registry) VNPay() *VNPay { return r.vnpay }
