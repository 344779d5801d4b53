// Package response HTTP统一响应
//
// HTTP状态码固定200，业务结果看Code：0成功，其余见pkg/errors的错误码表
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/logger"
)

// CodeOK 成功
const CodeOK = 0

// Response 响应信封
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// detailer 领域错误附带的结构化明细，如库存不足的商品与可用数量、优惠码失效原因
type detailer interface {
	Detail() interface{}
}

func write(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: code, Message: message, Data: data})
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	write(c, CodeOK, "success", data)
}

// Error 按错误类别映射业务码，明细放入data
//
//	view, err := h.checkout.Execute(ctx, req)
//	if err != nil {
//	    response.Error(c, err)
//	    return
//	}
func Error(c *gin.Context, err error) {
	appErr := apperrors.GetAppError(err)
	if appErr.Err != nil {
		logFailure(c, appErr)
	}

	var data interface{}
	var d detailer
	if errors.As(err, &d) {
		data = d.Detail()
	}
	write(c, appErr.Code, appErr.Message, data)
}

// 底层错误只进日志，5xxxx按error级别
func logFailure(c *gin.Context, appErr *apperrors.AppError) {
	log := logger.FromContext(c.Request.Context()).With(
		zap.Int("code", appErr.Code),
		zap.String("kind", appErr.Kind().String()),
		zap.Error(appErr.Err),
	)
	if appErr.Code >= 50000 {
		log.Error("request_failed")
		return
	}
	log.Warn("request_rejected")
}

// ErrorWithCode 直接指定业务码
func ErrorWithCode(c *gin.Context, code int, message string) {
	write(c, code, message, nil)
}

// PageData 分页结果
type PageData struct {
	List       interface{} `json:"list"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
}

// NewPageData pageSize<=0时总页数为0
func NewPageData(list interface{}, total int64, page, pageSize int) *PageData {
	pd := &PageData{List: list, Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		pd.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return pd
}

// SuccessWithPage 分页成功响应
func SuccessWithPage(c *gin.Context, list interface{}, total int64, page, pageSize int) {
	Success(c, NewPageData(list, total, page, pageSize))
}
