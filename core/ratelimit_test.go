package core

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"

	"github.com/iuboy/alhena/config"
)

func TestRateLimiterNilAdmitsAll(t *testing.T) {
	r := newRateLimiter(nil, nil)
	assert.Nil(t, r)
	for i := 0; i < 100; i++ {
		assert.True(t, r.admit("any"))
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	mock := clock.NewMock()
	r := newRateLimiter([]config.RateLimitTier{{Max: 2, Window: time.Minute}}, mock)

	// 窗口内前两条放行，第三条压制
	assert.True(t, r.admit("id"))
	assert.True(t, r.admit("id"))
	assert.False(t, r.admit("id"))

	// 被压制的调用不计入窗口
	mock.Add(30 * time.Second)
	assert.False(t, r.admit("id"))

	// 首条滑出窗口后恢复放行
	mock.Add(31 * time.Second)
	assert.True(t, r.admit("id"))
	assert.False(t, r.admit("id"), "窗口内仍有两条")
}

func TestRateLimiterPerIdentity(t *testing.T) {
	mock := clock.NewMock()
	r := newRateLimiter([]config.RateLimitTier{{Max: 1, Window: time.Minute}}, mock)

	assert.True(t, r.admit("a"))
	assert.False(t, r.admit("a"))
	// 不同 identity 各自分桶
	assert.True(t, r.admit("b"))
}

func TestRateLimiterMultiTier(t *testing.T) {
	mock := clock.NewMock()
	// 10 秒内最多 2 条，且 1 分钟内最多 3 条
	r := newRateLimiter([]config.RateLimitTier{
		{Max: 2, Window: 10 * time.Second},
		{Max: 3, Window: time.Minute},
	}, mock)

	assert.True(t, r.admit("id"))
	assert.True(t, r.admit("id"))
	assert.False(t, r.admit("id"), "短窗口已满")

	mock.Add(11 * time.Second)
	assert.True(t, r.admit("id"), "短窗口滑出，长窗口还剩一条")
	assert.False(t, r.admit("id"), "长窗口已满")

	mock.Add(time.Minute)
	assert.True(t, r.admit("id"))
}

func TestRateLimiterSweep(t *testing.T) {
	mock := clock.NewMock()
	r := newRateLimiter([]config.RateLimitTier{{Max: 1, Window: time.Millisecond}}, mock)

	// 大量一次性 identity 触发空桶清理
	for i := 0; i < sweepEvery; i++ {
		r.admit(fmt.Sprintf("id-%d", i))
		mock.Add(2 * time.Millisecond)
	}
	r.mu.Lock()
	n := len(r.buckets)
	r.mu.Unlock()
	assert.Less(t, n, sweepEvery, "过期的空桶应被回收")
}

func TestRateLimiterConcurrent(t *testing.T) {
	mock := clock.NewMock()
	r := newRateLimiter([]config.RateLimitTier{{Max: 50, Window: time.Minute}}, mock)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if r.admit("shared") {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, admitted, "并发下放行数严格等于窗口上限")
}
