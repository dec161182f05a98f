// Package ratelimit 提供了单连接消息频率的滑动窗口限制器。
package ratelimit

import "time"

// Window 是一个按固定锚点计数的消息频率窗口。
// 它由单个连接的处理协程独占持有，因此不做并发保护。
// 超出阈值是终止性事件：调用方必须关闭连接，而不是延迟消息。
type Window struct {
	limit    int
	interval time.Duration
	resetAt  time.Time
	count    int
}

// NewWindow 创建一个新的窗口限制器。
// limit: 窗口内允许的最大消息数；interval: 窗口长度；now: 连接建立时间。
func NewWindow(limit int, interval time.Duration, now time.Time) *Window {
	return &Window{
		limit:    limit,
		interval: interval,
		resetAt:  now,
	}
}

// Allow 记录一条消息并返回是否放行。
// 距上次窗口重置不足一个窗口长度时累加计数，超过阈值返回 false；
// 超过一个窗口长度则重置窗口，计数从 1 重新开始。
func (w *Window) Allow(now time.Time) bool {
	if now.Sub(w.resetAt) < w.interval {
		w.count++
		return w.count <= w.limit
	}
	w.resetAt = now
	w.count = 1
	return true
}
