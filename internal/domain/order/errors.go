package order

import (
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = apperrors.New(apperrors.ErrCodeOrderNotFound, "订单不存在")

	// ErrNotOwner 订单不属于当前用户
	ErrNotOwner = apperrors.New(apperrors.ErrCodeForbidden, "无权访问该订单")

	// ErrCodeExhausted 订单号多次冲突
	ErrCodeExhausted = apperrors.New(apperrors.ErrCodeInternal, "订单号生成失败")

	// ErrDuplicateCode 订单号冲突（仓储层返回，由下单用例重试）
	ErrDuplicateCode = apperrors.New(apperrors.ErrCodeDuplicateEntry, "订单号已存在")
)
