// Package middleware 提供了 Gin 框架的中间件。
package middleware

import (
	"net/http"
	"strings"

	"hamdars-go/pkg/database"
	"hamdars-go/pkg/token"

	"github.com/gin-gonic/gin"
)

const (
	// ContextUserIDKey 是存储在 Gin 上下文中的用户 ID 的键。
	ContextUserIDKey = "userID"
	// ContextPhoneKey 是存储在 Gin 上下文中的手机号的键。
	ContextPhoneKey = "phone"
	// ContextRoleKey 是存储在 Gin 上下文中的用户角色的键。
	ContextRoleKey = "role"
)

// ExtractToken 从请求中取出 JWT。优先读取 'token' Cookie（浏览器端登录后
// 由服务端种下），其次回退到 Authorization: Bearer 头（API 客户端使用）。
func ExtractToken(c *gin.Context) string {
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// AuthMiddleware 创建一个 Gin 中间件，用于验证 JWT。
// 验证通过后把用户信息注入上下文；登出后的 token 位于 Redis 黑名单中，一律拒绝。
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ExtractToken(c)
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "请求未携带 token",
			})
			c.Abort()
			return
		}

		// 登出时 token 会被写入黑名单，直到其自然过期
		blacklisted, err := database.RDB.Exists(c.Request.Context(), "jwt:blacklist:"+tokenString).Result()
		if err == nil && blacklisted > 0 {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "token 已失效",
			})
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "无效的 token",
			})
			c.Abort()
			return
		}

		// 将用户信息存入上下文，供后续的处理函数使用
		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextPhoneKey, claims.Phone)
		c.Set(ContextRoleKey, claims.Role)

		c.Next()
	}
}
