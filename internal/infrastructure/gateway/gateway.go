// Package gateway 支付渠道适配：VNPay、MoMo、Stripe、Sandbox
//
// 每个渠道实现payment.Gateway，由Registry按支付方式分发；
// 所有外部调用都经过Guard（熔断 + 指标）。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// ResponseError 网关正常响应但业务失败（参数错误、签名错误、余额不足等）
// 网关本身可用，熔断器不计为失败
type ResponseError struct {
	Provider string
	Code     string
	Message  string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s返回错误[%s]: %s", e.Provider, e.Code, e.Message)
}

// 外部接口超时由调用方的ctx控制，这里只兜底
var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// postJSON 发送JSON请求并解析JSON响应
func postJSON(ctx context.Context, client *http.Client, url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("请求序列化失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("网关HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("响应解析失败(HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

// minorUnits 金额转为最小货币单位（四舍五入）
func minorUnits(amount decimal.Decimal, exp int32) int64 {
	return amount.Shift(exp).Round(0).IntPart()
}
