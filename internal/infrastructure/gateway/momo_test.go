package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FongFus/Pharmatech/internal/domain/payment"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
)

func newTestMoMo(endpoint string) *MoMo {
	return NewMoMo(config.MoMoConfig{
		PartnerCode: "MOMOPHARMA",
		AccessKey:   "ACCESS",
		SecretKey:   "SECRET",
		Endpoint:    endpoint + "/",
		IPNURL:      "https://pharmatech.local/payments/momo/ipn",
	})
}

func TestMoMo_CreateCheckout(t *testing.T) {
	m := newTestMoMo("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, momoCreatePath, r.URL.Path)

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(180000), req["amount"])
		assert.Equal(t, "tx-1", req["orderId"])

		raw := fmt.Sprintf(
			"accessKey=ACCESS&amount=180000&extraData=&ipnUrl=%s&orderId=tx-1&orderInfo=%s&partnerCode=MOMOPHARMA&redirectUrl=%s&requestId=%s&requestType=captureWallet",
			req["ipnUrl"], req["orderInfo"], req["redirectUrl"], req["requestId"],
		)
		assert.Equal(t, m.sign(raw), req["signature"])

		json.NewEncoder(w).Encode(map[string]interface{}{"resultCode": 0, "payUrl": "https://test-payment.momo.vn/pay/tx-1"})
	}))
	defer srv.Close()
	m.cfg.Endpoint = srv.URL

	sess, err := m.CreateCheckout(context.Background(), payment.CheckoutRequest{
		TransactionID: "tx-1",
		Amount:        decimal.RequireFromString("180000"),
		Description:   "Thanh toan don hang ORDER-1",
		ReturnURL:     "https://pharmatech.local/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "tx-1", sess.ExternalRef)
	assert.Equal(t, "https://test-payment.momo.vn/pay/tx-1", sess.CheckoutURL)
}

func TestMoMo_Confirm(t *testing.T) {
	tests := []struct {
		resultCode int
		want       payment.ConfirmStatus
	}{
		{0, payment.ConfirmPaid},
		{1000, payment.ConfirmPending},
		{7000, payment.ConfirmPending},
		{9000, payment.ConfirmPending},
		{1006, payment.ConfirmFailed},
		{1001, payment.ConfirmFailed},
		{1005, payment.ConfirmFailed},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.resultCode), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, momoQueryPath, r.URL.Path)
				json.NewEncoder(w).Encode(map[string]interface{}{"resultCode": tt.resultCode})
			}))
			defer srv.Close()

			status, err := newTestMoMo(srv.URL).Confirm(context.Background(), "tx-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, status)
		})
	}
}

// 系统错误、签名错误不能把支付判为失败
func TestMoMo_Confirm_SystemErrors(t *testing.T) {
	for _, code := range []int{10, 13, 99, 11007} {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]interface{}{"resultCode": code, "message": "system error"})
			}))
			defer srv.Close()

			status, err := newTestMoMo(srv.URL).Confirm(context.Background(), "tx-1")
			var respErr *ResponseError
			require.ErrorAs(t, err, &respErr)
			assert.Equal(t, fmt.Sprint(code), respErr.Code)
			assert.Empty(t, status)
		})
	}
}

func TestMoMo_Refund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case momoQueryPath:
			json.NewEncoder(w).Encode(map[string]interface{}{"resultCode": 0, "transId": 4088878653})
		case momoRefundPath:
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, float64(4088878653), req["transId"])
			assert.Equal(t, "tx-1-R", req["orderId"])
			json.NewEncoder(w).Encode(map[string]interface{}{"resultCode": 1002, "message": "Giao dich bi tu choi"})
		}
	}))
	defer srv.Close()

	err := newTestMoMo(srv.URL).Refund(context.Background(), "tx-1", decimal.RequireFromString("180000"))
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "1002", respErr.Code)
}

func TestMoMo_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestMoMo(srv.URL).Confirm(context.Background(), "tx-1")
	require.Error(t, err)
	var respErr *ResponseError
	assert.False(t, errors.As(err, &respErr), "5xx是网关故障")
	assert.False(t, isHealthy(err))
}
