package gateway

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
)

// 无小数位的币种，金额直接按整数提交
var zeroDecimalCurrencies = map[string]bool{"vnd": true, "jpy": true, "krw": true}

// Stripe 渠道（Checkout Session）
// ExternalRef为Session ID
type Stripe struct {
	cfg config.StripeConfig
	api *client.API
}

// NewStripe 创建Stripe渠道，backends为nil时使用官方API地址
func NewStripe(cfg config.StripeConfig, backends *stripe.Backends) *Stripe {
	if cfg.Currency == "" {
		cfg.Currency = "vnd"
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	return &Stripe{cfg: cfg, api: client.New(cfg.SecretKey, backends)}
}

func (s *Stripe) Provider() string { return string(payment.MethodStripe) }

func (s *Stripe) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	successURL := s.cfg.SuccessURL
	if successURL == "" {
		successURL = req.ReturnURL
	}
	cancelURL := s.cfg.CancelURL
	if cancelURL == "" {
		cancelURL = req.ReturnURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(req.TransactionID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.cfg.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(s.amount(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_code", req.OrderCode)
	params.AddMetadata("transaction_id", req.TransactionID)
	// 同一交易号重复提交时Stripe返回同一个会话
	params.SetIdempotencyKey("checkout-" + req.TransactionID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, s.translate(err)
	}
	return &payment.CheckoutSession{CheckoutURL: sess.URL, ExternalRef: sess.ID}, nil
}

func (s *Stripe) Confirm(ctx context.Context, externalRef string) (payment.ConfirmStatus, error) {
	sess, err := s.session(ctx, externalRef)
	if err != nil {
		return "", err
	}
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		return payment.ConfirmPaid, nil
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		return payment.ConfirmFailed, nil
	default:
		return payment.ConfirmPending, nil
	}
}

func (s *Stripe) Refund(ctx context.Context, externalRef string, amount decimal.Decimal) error {
	sess, err := s.session(ctx, externalRef)
	if err != nil {
		return err
	}
	if sess.PaymentIntent == nil || sess.PaymentIntent.ID == "" {
		return &ResponseError{Provider: s.Provider(), Code: "no_payment_intent", Message: externalRef}
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
		Amount:        stripe.Int64(s.amount(amount)),
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + externalRef)

	if _, err := s.api.Refunds.New(params); err != nil {
		return s.translate(err)
	}
	return nil
}

func (s *Stripe) session(ctx context.Context, id string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, s.translate(err)
	}
	return sess, nil
}

func (s *Stripe) amount(v decimal.Decimal) int64 {
	if zeroDecimalCurrencies[s.cfg.Currency] {
		return minorUnits(v, 0)
	}
	return minorUnits(v, 2)
}

// translate 4xx（限流除外）视为业务错误，不计入熔断
func (s *Stripe) translate(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode < http.StatusInternalServerError && se.HTTPStatusCode != http.StatusTooManyRequests {
		return &ResponseError{Provider: s.Provider(), Code: string(se.Code), Message: se.Msg}
	}
	return err
}
