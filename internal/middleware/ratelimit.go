package middleware

import (
	"fmt"
	"net/http"
	"time"

	"hamdars-go/pkg/database"
	"hamdars-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// IPRateLimitMiddleware 基于客户端 IP 做固定窗口限流，计数存放在 Redis 中，
// 多实例部署时共享同一份计数。窗口内超过 maxRequests 次请求返回 429。
// Redis 不可用时放行请求：限流是保护措施，不应成为单点。
func IPRateLimitMiddleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := fmt.Sprintf("ratelimit:ip:%s", c.ClientIP())
		ctx := c.Request.Context()

		count, err := database.RDB.Incr(ctx, key).Result()
		if err != nil {
			log.Warnf("限流计数失败，放行请求: %v", err)
			c.Next()
			return
		}
		// 首次计数时设置窗口过期，窗口到期后计数自动清零
		if count == 1 {
			if err := database.RDB.Expire(ctx, key, window).Err(); err != nil {
				log.Warnf("设置限流窗口过期失败: %v", err)
			}
		}

		if count > int64(maxRequests) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
