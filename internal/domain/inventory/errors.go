package inventory

import (
	"fmt"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

// ErrStockNotFound 商品在该经销商下没有库存记录
var ErrStockNotFound = apperrors.New(apperrors.ErrCodeInsufficientStock, "商品无库存记录")

// InsufficientStockError 库存不足
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("商品%s库存不足，当前库存:%d，需要:%d", e.ProductName, e.Available, e.Requested)
}

// AppError 转换为统一错误
func (e *InsufficientStockError) AppError() *apperrors.AppError {
	return &apperrors.AppError{Code: apperrors.ErrCodeInsufficientStock, Message: e.Error(), Err: e}
}

// Detail 响应data字段
func (e *InsufficientStockError) Detail() interface{} {
	return map[string]interface{}{
		"product_id":   e.ProductID,
		"product_name": e.ProductName,
		"requested":    e.Requested,
		"available":    e.Available,
	}
}
