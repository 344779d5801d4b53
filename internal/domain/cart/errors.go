package cart

import (
	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
)

var (
	// ErrCartNotFound 购物车不存在
	ErrCartNotFound = apperrors.New(apperrors.ErrCodeCartNotFound, "购物车不存在")

	// ErrNotOwner 购物车不属于当前用户
	ErrNotOwner = apperrors.New(apperrors.ErrCodeForbidden, "无权访问该购物车")

	// ErrEmptyCart 购物车为空
	ErrEmptyCart = apperrors.New(apperrors.ErrCodeEmptyCart, "购物车为空")
)
