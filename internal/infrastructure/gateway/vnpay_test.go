package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
)

func newTestVNPay(apiURL string) *VNPay {
	v := NewVNPay(config.VNPayConfig{
		TmnCode:    "PHARMA01",
		HashSecret: "SECRETKEY",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		APIURL:     apiURL,
	})
	v.now = func() time.Time { return time.Date(2026, 3, 1, 5, 0, 0, 0, time.UTC) }
	return v
}

func TestVNPay_CreateCheckout(t *testing.T) {
	v := newTestVNPay("")

	sess, err := v.CreateCheckout(context.Background(), payment.CheckoutRequest{
		OrderCode:     "ORDER-ABC12345",
		TransactionID: "tx-1",
		Amount:        decimal.RequireFromString("180000"),
		Description:   "Thanh toan don hang ORDER-ABC12345",
		ClientIP:      "10.0.0.1",
		ReturnURL:     "https://pharmatech.local/payments/vnpay/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1:20260301120000", sess.ExternalRef, "创建时间使用GMT+7")

	u, err := url.Parse(sess.CheckoutURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "18000000", q.Get("vnp_Amount"), "金额乘以100")
	assert.Equal(t, "tx-1", q.Get("vnp_TxnRef"))
	assert.Equal(t, "PHARMA01", q.Get("vnp_TmnCode"))

	// 签名：排序后的查询串（不含签名本身）做HMAC-SHA512
	raw := sess.CheckoutURL[strings.Index(sess.CheckoutURL, "?")+1 : strings.Index(sess.CheckoutURL, "&vnp_SecureHash=")]
	mac := hmac.New(sha512.New, []byte("SECRETKEY"))
	mac.Write([]byte(raw))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), q.Get("vnp_SecureHash"))
	assert.Contains(t, raw, "vnp_OrderInfo=Thanh+toan+don+hang", "空格编码为+")
}

func TestVNPay_VerifyReturn(t *testing.T) {
	v := newTestVNPay("")

	params := url.Values{}
	params.Set("vnp_TxnRef", "tx-1")
	params.Set("vnp_Amount", "18000000")
	params.Set("vnp_ResponseCode", "00")
	params.Set("vnp_TmnCode", "PHARMA01")
	params.Set("vnp_BankCode", "")
	signed := url.Values{}
	for k, vs := range params {
		signed[k] = vs
	}
	signed.Set("vnp_SecureHash", strings.ToUpper(v.sign(encodeNonEmpty(params))))
	signed.Set("vnp_SecureHashType", "HmacSHA512")

	result, err := v.VerifyReturn(signed)
	require.NoError(t, err, "签名大小写不敏感")
	assert.Equal(t, "tx-1", result.TxnRef)
	assert.True(t, result.Paid())

	signed.Set("vnp_Amount", "1")
	_, err = v.VerifyReturn(signed)
	assert.ErrorIs(t, err, ErrInvalidSignature, "篡改金额")

	signed.Del("vnp_SecureHash")
	_, err = v.VerifyReturn(signed)
	assert.ErrorIs(t, err, ErrInvalidSignature, "缺少签名")
}

func TestVNPay_Confirm(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   payment.ConfirmStatus
	}{
		{"成功", "00", payment.ConfirmPaid},
		{"未完成", "01", payment.ConfirmPending},
		{"处理中", "05", payment.ConfirmPending},
		{"失败", "02", payment.ConfirmFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "querydr", req["vnp_Command"])
				assert.Equal(t, "tx-1", req["vnp_TxnRef"])
				assert.Equal(t, "20260301120000", req["vnp_TransactionDate"])
				assert.NotEmpty(t, req["vnp_SecureHash"])
				json.NewEncoder(w).Encode(map[string]string{
					"vnp_ResponseCode":      "00",
					"vnp_TransactionStatus": tt.status,
					"vnp_TransactionNo":     "14000001",
				})
			}))
			defer srv.Close()

			status, err := newTestVNPay(srv.URL).Confirm(context.Background(), "tx-1:20260301120000")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestVNPay_ConfirmErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"vnp_ResponseCode": "91", "vnp_Message": "Khong tim thay giao dich"})
	}))
	defer srv.Close()

	_, err := newTestVNPay(srv.URL).Confirm(context.Background(), "tx-1:20260301120000")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "91", respErr.Code)

	_, err = newTestVNPay(srv.URL).Confirm(context.Background(), "tx-1")
	assert.Error(t, err, "引用缺少交易时间")
}

func TestVNPay_Refund(t *testing.T) {
	var commands []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		commands = append(commands, req["vnp_Command"])
		switch req["vnp_Command"] {
		case "querydr":
			json.NewEncoder(w).Encode(map[string]string{"vnp_ResponseCode": "00", "vnp_TransactionStatus": "00", "vnp_TransactionNo": "14000001"})
		case "refund":
			assert.Equal(t, "14000001", req["vnp_TransactionNo"])
			assert.Equal(t, "18000000", req["vnp_Amount"])
			assert.Equal(t, "02", req["vnp_TransactionType"])
			json.NewEncoder(w).Encode(map[string]string{"vnp_ResponseCode": "00"})
		}
	}))
	defer srv.Close()

	err := newTestVNPay(srv.URL).Refund(context.Background(), "tx-1:20260301120000", decimal.RequireFromString("180000"))
	require.NoError(t, err)
	assert.Equal(t, []string{"querydr", "refund"}, commands)
}
