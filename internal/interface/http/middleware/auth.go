package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/FongFus/Pharmatech/pkg/errors"
	"github.com/FongFus/Pharmatech/pkg/jwt"
	"github.com/FongFus/Pharmatech/pkg/response"
)

const (
	ctxUserID = "user_id"
	ctxEmail  = "email"
	ctxRole   = "role"

	// RoleAdmin 管理员可以操作任意用户的支付（退款）
	RoleAdmin = "admin"
)

// AuthMiddleware JWT认证中间件
// 设计说明：
// 1. 令牌由外部认证服务签发，这里只校验
// 2. 将用户信息注入Context
type AuthMiddleware struct {
	verifier *jwt.Verifier
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(verifier *jwt.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth 要求登录
// 使用方式：
//
//	orders := v1.Group("/orders")
//	orders.Use(authMiddleware.RequireAuth())
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 格式：Authorization: Bearer <token>
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.ErrorWithCode(c, apperrors.ErrCodeUnauthorized, "请先登录")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.ErrorWithCode(c, apperrors.ErrCodeInvalidToken, "Token格式错误")
			c.Abort()
			return
		}

		claims, err := m.verifier.Parse(parts[1])
		if err != nil {
			response.Error(c, err) // ErrTokenExpired、ErrInvalidToken
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxEmail, claims.Email)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// GetUserID 从Context获取当前登录用户ID，未登录返回0
func GetUserID(c *gin.Context) uint {
	if userID, exists := c.Get(ctxUserID); exists {
		if uid, ok := userID.(uint); ok {
			return uid
		}
	}
	return 0
}

// GetRole 当前用户角色
func GetRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

// MustGetUserID 从Context获取用户ID（如果不存在则panic）
// 说明：用于已经通过RequireAuth中间件的Handler
func MustGetUserID(c *gin.Context) uint {
	userID := GetUserID(c)
	if userID == 0 {
		panic("user_id not found in context")
	}
	return userID
}
