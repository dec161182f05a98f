package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindowAllowsUpToLimit(t *testing.T) {
	base := time.Now()
	w := NewWindow(10, time.Second, base)

	for i := 0; i < 10; i++ {
		assert.True(t, w.Allow(base.Add(time.Duration(i)*time.Millisecond)), "message %d should pass", i+1)
	}
	assert.False(t, w.Allow(base.Add(11*time.Millisecond)), "11th message within window should be rejected")
}

func TestWindowAnchoredReset(t *testing.T) {
	base := time.Now()
	w := NewWindow(2, time.Second, base)

	assert.True(t, w.Allow(base.Add(100*time.Millisecond)))
	assert.True(t, w.Allow(base.Add(200*time.Millisecond)))
	assert.False(t, w.Allow(base.Add(300*time.Millisecond)))

	// 距锚点满一个窗口后重置，计数从 1 重新开始
	assert.True(t, w.Allow(base.Add(1100*time.Millisecond)))
	assert.True(t, w.Allow(base.Add(1200*time.Millisecond)))
	assert.False(t, w.Allow(base.Add(1300*time.Millisecond)))
}

func TestWindowRejectionIsNotSticky(t *testing.T) {
	base := time.Now()
	w := NewWindow(1, time.Second, base)

	assert.True(t, w.Allow(base.Add(10*time.Millisecond)))
	assert.False(t, w.Allow(base.Add(20*time.Millisecond)))
	assert.False(t, w.Allow(base.Add(30*time.Millisecond)))

	// 新窗口里照常放行
	assert.True(t, w.Allow(base.Add(2*time.Second)))
}

func TestWindowBoundaryExactInterval(t *testing.T) {
	base := time.Now()
	w := NewWindow(1, time.Second, base)

	assert.True(t, w.Allow(base.Add(time.Millisecond)))
	// 恰好等于窗口长度时视为新窗口
	assert.True(t, w.Allow(base.Add(time.Second)))
}
