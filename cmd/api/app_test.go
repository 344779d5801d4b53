package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FongFus/Pharmatech/internal/domain/cart"
	"github.com/FongFus/Pharmatech/internal/domain/catalog"
	"github.com/FongFus/Pharmatech/internal/domain/inventory"
	"github.com/FongFus/Pharmatech/internal/infrastructure/config"
	"github.com/FongFus/Pharmatech/internal/infrastructure/persistence/memory"
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// 端到端：真实路由、用例、memory存储、sandbox网关

func init() {
	gin.SetMode(gin.TestMode)
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type checkoutData struct {
	OrderCode     string `json:"order_code"`
	OrderStatus   string `json:"order_status"`
	TotalAmount   string `json:"total_amount"`
	PaymentID     uint   `json:"payment_id"`
	PaymentStatus string `json:"payment_status"`
	CheckoutURL   string `json:"checkout_url"`
	Replayed      bool   `json:"replayed"`
}

type testEnv struct {
	t      *testing.T
	cfg    *config.Config
	store  *memory.Store
	router *gin.Engine
	cartID uint
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Name: "pharmatech-test", Env: "test", Port: 8080, Mode: "test", ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{Driver: config.DriverMemory},
		JWT:      config.JWTConfig{Secret: "app-test-secret", Issuer: "pharmatech"},
		Payment: config.PaymentConfig{
			Provider:       "sandbox",
			Timeout:        5 * time.Second,
			ReconcileAfter: time.Minute,
			RefundLockTTL:  10 * time.Second,
		},
		Order:    config.OrderConfig{LockTimeout: 5 * time.Second, CodeAttempts: 5, CheckoutTimeout: 10 * time.Second, IdempotencyTTL: time.Hour},
		EventBus: config.EventBusConfig{QueueSize: 64, Concurrency: 2, HandlerTimeout: time.Second},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := testConfig()
	store := memory.NewStore()
	cartID := seedDemo(store)

	a, cleanup, err := assemble(cfg, zap.NewNop(), memoryStorage(store), func() {})
	require.NoError(t, err)
	t.Cleanup(cleanup)

	return &testEnv{t: t, cfg: cfg, store: store, router: a.router, cartID: cartID}
}

func (e *testEnv) token(userID uint, role string) string {
	tok, err := provideVerifier(e.cfg).Issue(userID, fmt.Sprintf("user%d@pharmatech.vn", userID), role, time.Hour)
	require.NoError(e.t, err)
	return tok
}

func (e *testEnv) do(method, path, token string, body interface{}, headers ...string) apiResponse {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	var resp apiResponse
	require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) checkout(token string, cartID uint, discountCode string, headers ...string) (apiResponse, checkoutData) {
	resp := e.do(http.MethodPost, "/api/v1/orders/checkout", token, map[string]interface{}{
		"cart_id":        cartID,
		"discount_code":  discountCode,
		"payment_method": "sandbox",
	}, headers...)

	var data checkoutData
	if resp.Code == 0 {
		require.NoError(e.t, json.Unmarshal(resp.Data, &data))
	}
	return resp, data
}

var paracetamol = inventory.Key{DistributorID: 10, ProductID: 1}

func TestCheckoutConfirmFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(1, "customer")

	resp, data := env.checkout(token, env.cartID, "SAVE10")
	require.Equal(t, 0, resp.Code, resp.Message)

	// 2×25000 + 1×120000 = 170000，九折 → 153000
	assert.Equal(t, "153000", data.TotalAmount)
	assert.Equal(t, "pending", data.OrderStatus)
	assert.Equal(t, "pending", data.PaymentStatus)
	assert.NotEmpty(t, data.CheckoutURL)
	assert.Equal(t, 98, env.store.StockOf(paracetamol))
	assert.Equal(t, 0, env.store.CartItems(env.cartID), "下单后清空购物车")

	resp = env.do(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/confirm", data.PaymentID), token, nil)
	require.Equal(t, 0, resp.Code, resp.Message)
	assert.Contains(t, string(resp.Data), `"status":"completed"`)

	// 重复确认没有副作用
	resp = env.do(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/confirm", data.PaymentID), token, nil)
	require.Equal(t, 0, resp.Code)

	resp = env.do(http.MethodGet, "/api/v1/orders/"+data.OrderCode, token, nil)
	require.Equal(t, 0, resp.Code)
	assert.Contains(t, string(resp.Data), `"status":"completed"`)

	// 别人看不到
	resp = env.do(http.MethodGet, "/api/v1/orders/"+data.OrderCode, env.token(2, "customer"), nil)
	assert.Equal(t, apperrors.ErrCodeForbidden, resp.Code)
}

func TestCheckout_IdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(1, "customer")

	_, first := env.checkout(token, env.cartID, "", "Idempotency-Key", "retry-1")
	resp, second := env.checkout(token, env.cartID, "", "Idempotency-Key", "retry-1")

	require.Equal(t, 0, resp.Code, resp.Message)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.OrderCode, second.OrderCode)
	assert.Equal(t, 1, env.store.CountOrders())
}

func TestCheckout_NoOversell(t *testing.T) {
	env := newTestEnv(t)

	product := catalog.Product{ID: 40, DistributorID: 30, Name: "Oseltamivir 75mg", Price: decimal.RequireFromString("95000"), IsApproved: true}
	key := inventory.Key{DistributorID: 30, ProductID: 40}
	env.store.PutProduct(product)
	env.store.PutStock(key, 10)

	const buyers = 8
	carts := make([]uint, buyers)
	tokens := make([]string, buyers)
	for i := 0; i < buyers; i++ {
		userID := uint(100 + i)
		carts[i] = env.store.PutCart(userID, cart.Item{ProductID: 40, Quantity: 3})
		tokens[i] = env.token(userID, "customer")
	}

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, _ := env.checkout(tokens[i], carts[i], "")
			mu.Lock()
			defer mu.Unlock()
			switch resp.Code {
			case 0:
				succeeded++
			case apperrors.ErrCodeInsufficientStock:
				insufficient++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded, "10件库存每单3件，只能成交3单")
	assert.Equal(t, buyers-3, insufficient)
	assert.Equal(t, 1, env.store.StockOf(key))
}

func TestCancelAndRefund(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(1, "customer")

	t.Run("待支付订单取消：网关已到账则退款，库存加回", func(t *testing.T) {
		_, data := env.checkout(token, env.cartID, "")
		require.Equal(t, 98, env.store.StockOf(paracetamol))

		resp := env.do(http.MethodPost, "/api/v1/orders/"+data.OrderCode+"/cancel", token, map[string]string{"reason": "下错单"})
		require.Equal(t, 0, resp.Code, resp.Message)
		assert.Contains(t, string(resp.Data), `"status":"cancelled"`)
		assert.Equal(t, 100, env.store.StockOf(paracetamol))

		resp = env.do(http.MethodPost, "/api/v1/orders/"+data.OrderCode+"/cancel", token, nil)
		assert.Equal(t, apperrors.ErrCodeInvalidTransition, resp.Code, "不能重复取消")
	})

	t.Run("管理员退款已付款订单", func(t *testing.T) {
		cartID := env.store.PutCart(1, cart.Item{ProductID: 1, Quantity: 4})
		_, data := env.checkout(token, cartID, "")
		resp := env.do(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/confirm", data.PaymentID), token, nil)
		require.Equal(t, 0, resp.Code, resp.Message)
		require.Equal(t, 96, env.store.StockOf(paracetamol))

		resp = env.do(http.MethodPost, fmt.Sprintf("/api/v1/payments/%d/refund", data.PaymentID), env.token(99, "admin"), nil)
		require.Equal(t, 0, resp.Code, resp.Message)
		assert.Contains(t, string(resp.Data), `"status":"refunded"`)
		assert.Equal(t, 100, env.store.StockOf(paracetamol))

		resp = env.do(http.MethodGet, "/api/v1/orders/"+data.OrderCode, token, nil)
		assert.Contains(t, string(resp.Data), `"status":"cancelled"`)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, 0, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
