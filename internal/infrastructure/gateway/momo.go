package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
)

const (
	momoCreatePath = "/v2/gateway/api/create"
	momoQueryPath  = "/v2/gateway/api/query"
	momoRefundPath = "/v2/gateway/api/refund"
	momoSuccess    = 0
)

// MoMo 渠道（钱包支付 captureWallet）
// orderId使用本地交易号，ExternalRef即orderId
type MoMo struct {
	cfg    config.MoMoConfig
	client *http.Client
}

// NewMoMo 创建MoMo渠道
func NewMoMo(cfg config.MoMoConfig) *MoMo {
	return &MoMo{cfg: cfg, client: defaultHTTPClient}
}

func (m *MoMo) Provider() string { return string(payment.MethodMoMo) }

type momoCreateResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	PayURL     string `json:"payUrl"`
}

func (m *MoMo) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	requestID := uuid.NewString()
	amount := strconv.FormatInt(minorUnits(req.Amount, 0), 10)
	const requestType = "captureWallet"

	// 签名字段按key字母序拼接
	raw := fmt.Sprintf(
		"accessKey=%s&amount=%s&extraData=&ipnUrl=%s&orderId=%s&orderInfo=%s&partnerCode=%s&redirectUrl=%s&requestId=%s&requestType=%s",
		m.cfg.AccessKey, amount, m.cfg.IPNURL, req.TransactionID, req.Description,
		m.cfg.PartnerCode, req.ReturnURL, requestID, requestType,
	)

	body := map[string]interface{}{
		"partnerCode": m.cfg.PartnerCode,
		"requestId":   requestID,
		"amount":      minorUnits(req.Amount, 0),
		"orderId":     req.TransactionID,
		"orderInfo":   req.Description,
		"redirectUrl": req.ReturnURL,
		"ipnUrl":      m.cfg.IPNURL,
		"requestType": requestType,
		"extraData":   "",
		"lang":        "vi",
		"signature":   m.sign(raw),
	}

	var resp momoCreateResponse
	if err := postJSON(ctx, m.client, m.url(momoCreatePath), body, &resp); err != nil {
		return nil, err
	}
	if resp.ResultCode != momoSuccess {
		return nil, m.responseError(resp.ResultCode, resp.Message)
	}
	return &payment.CheckoutSession{CheckoutURL: resp.PayURL, ExternalRef: req.TransactionID}, nil
}

type momoQueryResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	TransID    int64  `json:"transId"`
	Amount     int64  `json:"amount"`
}

// momoDeclined 用户侧导致的交易失败：余额不足、发卡行拒绝、用户取消、超时未支付等
var momoDeclined = map[int]bool{
	1001: true, 1002: true, 1003: true, 1004: true, 1005: true,
	1006: true, 1007: true, 1017: true, 1026: true,
}

// Confirm 查询交易状态
// resultCode: 0成功；1000/7000/7002处理中；9000已授权待扣款；momoDeclined为失败。
// 系统错误、签名或参数错误等返回ResponseError，支付保持pending等待对账
func (m *MoMo) Confirm(ctx context.Context, externalRef string) (payment.ConfirmStatus, error) {
	resp, err := m.query(ctx, externalRef)
	if err != nil {
		return "", err
	}
	switch {
	case resp.ResultCode == momoSuccess:
		return payment.ConfirmPaid, nil
	case resp.ResultCode == 1000, resp.ResultCode == 7000, resp.ResultCode == 7002, resp.ResultCode == 9000:
		return payment.ConfirmPending, nil
	case momoDeclined[resp.ResultCode]:
		return payment.ConfirmFailed, nil
	default:
		return "", m.responseError(resp.ResultCode, resp.Message)
	}
}

func (m *MoMo) query(ctx context.Context, orderID string) (*momoQueryResponse, error) {
	requestID := uuid.NewString()
	raw := fmt.Sprintf("accessKey=%s&orderId=%s&partnerCode=%s&requestId=%s",
		m.cfg.AccessKey, orderID, m.cfg.PartnerCode, requestID)

	body := map[string]interface{}{
		"partnerCode": m.cfg.PartnerCode,
		"requestId":   requestID,
		"orderId":     orderID,
		"lang":        "vi",
		"signature":   m.sign(raw),
	}

	var resp momoQueryResponse
	if err := postJSON(ctx, m.client, m.url(momoQueryPath), body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type momoRefundResponse struct {
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
}

// Refund 先查询取得transId，再按transId退款
func (m *MoMo) Refund(ctx context.Context, externalRef string, amount decimal.Decimal) error {
	txn, err := m.query(ctx, externalRef)
	if err != nil {
		return err
	}
	if txn.ResultCode != momoSuccess {
		return m.responseError(txn.ResultCode, txn.Message)
	}

	requestID := uuid.NewString()
	refundOrderID := externalRef + "-R"
	value := minorUnits(amount, 0)
	description := "Hoan tien " + externalRef
	raw := fmt.Sprintf("accessKey=%s&amount=%d&description=%s&orderId=%s&partnerCode=%s&requestId=%s&transId=%d",
		m.cfg.AccessKey, value, description, refundOrderID, m.cfg.PartnerCode, requestID, txn.TransID)

	body := map[string]interface{}{
		"partnerCode": m.cfg.PartnerCode,
		"orderId":     refundOrderID,
		"requestId":   requestID,
		"amount":      value,
		"transId":     txn.TransID,
		"lang":        "vi",
		"description": description,
		"signature":   m.sign(raw),
	}

	var resp momoRefundResponse
	if err := postJSON(ctx, m.client, m.url(momoRefundPath), body, &resp); err != nil {
		return err
	}
	if resp.ResultCode != momoSuccess {
		return m.responseError(resp.ResultCode, resp.Message)
	}
	return nil
}

func (m *MoMo) sign(raw string) string {
	mac := hmac.New(sha256.New, []byte(m.cfg.SecretKey))
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

func (m *MoMo) url(path string) string {
	return strings.TrimRight(m.cfg.Endpoint, "/") + path
}

func (m *MoMo) responseError(code int, msg string) error {
	return &ResponseError{Provider: m.Provider(), Code: strconv.Itoa(code), Message: msg}
}
