package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
)

const (
	vnpVersion    = "2.1.0"
	vnpTimeLayout = "20060102150405"
	vnpSuccess    = "00"
)

// VNPay时间一律使用越南时区（GMT+7）
var vnpZone = time.FixedZone("ICT", 7*3600)

// ErrInvalidSignature 回调签名校验失败
var ErrInvalidSignature = errors.New("签名校验失败")

// VNPay 渠道
//
// ExternalRef格式为 "{vnp_TxnRef}:{vnp_CreateDate}"，
// 查询和退款接口都要求带上原交易的创建时间。
type VNPay struct {
	cfg    config.VNPayConfig
	client *http.Client
	now    func() time.Time
}

// NewVNPay 创建VNPay渠道
func NewVNPay(cfg config.VNPayConfig) *VNPay {
	return &VNPay{cfg: cfg, client: defaultHTTPClient, now: time.Now}
}

func (v *VNPay) Provider() string { return string(payment.MethodVNPay) }

// CreateCheckout 生成收银台跳转地址
// 参数按key排序后url编码拼接，HMAC-SHA512签名
func (v *VNPay) CreateCheckout(_ context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	created := v.now().In(vnpZone).Format(vnpTimeLayout)
	txnRef := req.TransactionID
	ip := req.ClientIP
	if ip == "" {
		ip = "127.0.0.1"
	}

	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", "pay")
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	// 金额单位：VND × 100
	params.Set("vnp_Amount", strconv.FormatInt(minorUnits(req.Amount, 2), 10))
	params.Set("vnp_CurrCode", "VND")
	params.Set("vnp_TxnRef", txnRef)
	params.Set("vnp_OrderInfo", req.Description)
	params.Set("vnp_OrderType", "pharmacy_order")
	params.Set("vnp_Locale", "vn")
	params.Set("vnp_ReturnUrl", req.ReturnURL)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_CreateDate", created)

	query := encodeNonEmpty(params)
	return &payment.CheckoutSession{
		CheckoutURL: v.cfg.PayURL + "?" + query + "&vnp_SecureHash=" + v.sign(query),
		ExternalRef: txnRef + ":" + created,
	}, nil
}

// ReturnResult 浏览器回跳参数
// TxnRef即本地交易号payment.TransactionID
type ReturnResult struct {
	TxnRef       string
	ResponseCode string
}

// Paid 回跳表示支付成功
func (r *ReturnResult) Paid() bool { return r.ResponseCode == vnpSuccess }

// VerifyReturn 校验回跳/IPN参数签名
// 回跳结果只作为触发确认的信号，最终状态以querydr为准
func (v *VNPay) VerifyReturn(query url.Values) (*ReturnResult, error) {
	got := strings.ToLower(query.Get("vnp_SecureHash"))
	params := url.Values{}
	for k, vs := range query {
		if k == "vnp_SecureHash" || k == "vnp_SecureHashType" || !strings.HasPrefix(k, "vnp_") {
			continue
		}
		params[k] = vs
	}
	want := v.sign(encodeNonEmpty(params))
	if got == "" || !hmac.Equal([]byte(got), []byte(want)) {
		return nil, ErrInvalidSignature
	}
	return &ReturnResult{TxnRef: query.Get("vnp_TxnRef"), ResponseCode: query.Get("vnp_ResponseCode")}, nil
}

type vnpQueryResponse struct {
	ResponseCode      string `json:"vnp_ResponseCode"`
	Message           string `json:"vnp_Message"`
	TransactionNo     string `json:"vnp_TransactionNo"`
	TransactionStatus string `json:"vnp_TransactionStatus"`
}

// Confirm 调用querydr查询交易状态
func (v *VNPay) Confirm(ctx context.Context, externalRef string) (payment.ConfirmStatus, error) {
	resp, err := v.query(ctx, externalRef)
	if err != nil {
		return "", err
	}
	switch resp.TransactionStatus {
	case "00":
		return payment.ConfirmPaid, nil
	case "01", "05", "06":
		// 01未完成，05/06处理中
		return payment.ConfirmPending, nil
	default:
		return payment.ConfirmFailed, nil
	}
}

func (v *VNPay) query(ctx context.Context, externalRef string) (*vnpQueryResponse, error) {
	txnRef, txnDate, err := splitVNPRef(externalRef)
	if err != nil {
		return nil, err
	}

	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")
	created := v.now().In(vnpZone).Format(vnpTimeLayout)
	const ip = "127.0.0.1"
	info := "Truy van giao dich " + txnRef

	req := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         vnpVersion,
		"vnp_Command":         "querydr",
		"vnp_TmnCode":         v.cfg.TmnCode,
		"vnp_TxnRef":          txnRef,
		"vnp_OrderInfo":       info,
		"vnp_TransactionDate": txnDate,
		"vnp_CreateDate":      created,
		"vnp_IpAddr":          ip,
	}
	req["vnp_SecureHash"] = v.sign(strings.Join([]string{
		requestID, vnpVersion, "querydr", v.cfg.TmnCode, txnRef, txnDate, created, ip, info,
	}, "|"))

	var resp vnpQueryResponse
	if err := postJSON(ctx, v.client, v.cfg.APIURL, req, &resp); err != nil {
		return nil, err
	}
	if resp.ResponseCode != vnpSuccess {
		return nil, &ResponseError{Provider: v.Provider(), Code: resp.ResponseCode, Message: resp.Message}
	}
	return &resp, nil
}

type vnpRefundResponse struct {
	ResponseCode string `json:"vnp_ResponseCode"`
	Message      string `json:"vnp_Message"`
}

// Refund 全额退款（vnp_TransactionType=02）
func (v *VNPay) Refund(ctx context.Context, externalRef string, amount decimal.Decimal) error {
	txn, err := v.query(ctx, externalRef)
	if err != nil {
		return err
	}
	txnRef, txnDate, _ := splitVNPRef(externalRef)

	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")
	created := v.now().In(vnpZone).Format(vnpTimeLayout)
	const (
		ip        = "127.0.0.1"
		txnType   = "02"
		createdBy = "pharmatech"
	)
	info := "Hoan tien giao dich " + txnRef
	vnpAmount := strconv.FormatInt(minorUnits(amount, 2), 10)

	req := map[string]string{
		"vnp_RequestId":       requestID,
		"vnp_Version":         vnpVersion,
		"vnp_Command":         "refund",
		"vnp_TmnCode":         v.cfg.TmnCode,
		"vnp_TransactionType": txnType,
		"vnp_TxnRef":          txnRef,
		"vnp_Amount":          vnpAmount,
		"vnp_TransactionNo":   txn.TransactionNo,
		"vnp_TransactionDate": txnDate,
		"vnp_CreateBy":        createdBy,
		"vnp_CreateDate":      created,
		"vnp_IpAddr":          ip,
		"vnp_OrderInfo":       info,
	}
	req["vnp_SecureHash"] = v.sign(strings.Join([]string{
		requestID, vnpVersion, "refund", v.cfg.TmnCode, txnType, txnRef, vnpAmount,
		txn.TransactionNo, txnDate, createdBy, created, ip, info,
	}, "|"))

	var resp vnpRefundResponse
	if err := postJSON(ctx, v.client, v.cfg.APIURL, req, &resp); err != nil {
		return err
	}
	if resp.ResponseCode != vnpSuccess {
		return &ResponseError{Provider: v.Provider(), Code: resp.ResponseCode, Message: resp.Message}
	}
	return nil
}

func (v *VNPay) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(v.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeNonEmpty 跳过空值，按key排序编码（空格编码为+）
func encodeNonEmpty(params url.Values) string {
	filtered := url.Values{}
	for k, vs := range params {
		if len(vs) > 0 && vs[0] != "" {
			filtered.Set(k, vs[0])
		}
	}
	return filtered.Encode()
}

func splitVNPRef(ref string) (txnRef, txnDate string, err error) {
	txnRef, txnDate, ok := strings.Cut(ref, ":")
	if !ok || txnRef == "" || len(txnDate) != len(vnpTimeLayout) {
		return "", "", fmt.Errorf("无效的VNPay交易引用: %q", ref)
	}
	return txnRef, txnDate, nil
}
