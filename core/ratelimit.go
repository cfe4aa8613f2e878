package core

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/iuboy/alhena/config"
)

// 每放行 sweepEvery 次做一次空桶清理，避免一次性 identity 泄漏内存
const sweepEvery = 1024

// rateLimiter 对单个 appender 做滑动窗口准入控制，
// 按 identity hash 分桶，多档 (max, window) 同时约束：
// 任一档超限即压制（静默丢弃，不计入任何档）。
// 并发安全；锁的范围仅限本 appender。
type rateLimiter struct {
	tiers []config.RateLimitTier
	clock clock.Clock

	mu      sync.Mutex
	buckets map[string][][]time.Time // identity -> 每档已放行时间
	admits  int
}

// newRateLimiter 无限流档位时返回 nil，表示无条件放行
func newRateLimiter(tiers []config.RateLimitTier, clk clock.Clock) *rateLimiter {
	if len(tiers) == 0 {
		return nil
	}
	if clk == nil {
		clk = clock.New()
	}
	return &rateLimiter{
		tiers:   tiers,
		clock:   clk,
		buckets: make(map[string][][]time.Time),
	}
}

// admit 判定 identity 对应的调用是否放行；放行则计入每一档。
// 摊还 O(1)：每档最多保留 max 条时间戳，过期项在检查时修剪。
func (r *rateLimiter) admit(id string) bool {
	if r == nil {
		return true
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.buckets[id]
	if !ok {
		bucket = make([][]time.Time, len(r.tiers))
		r.buckets[id] = bucket
	}

	for i, tier := range r.tiers {
		cutoff := now.Add(-tier.Window)
		times := bucket[i]
		trim := 0
		for trim < len(times) && !times[trim].After(cutoff) {
			trim++
		}
		if trim > 0 {
			times = append(times[:0], times[trim:]...)
			bucket[i] = times
		}
		if len(times) >= tier.Max {
			return false
		}
	}

	for i := range r.tiers {
		bucket[i] = append(bucket[i], now)
	}

	r.admits++
	if r.admits%sweepEvery == 0 {
		r.sweep(now)
	}
	return true
}

// sweep 删除所有档位都已过期清空的桶；调用方持锁
func (r *rateLimiter) sweep(now time.Time) {
	for id, bucket := range r.buckets {
		empty := true
		for i, tier := range r.tiers {
			cutoff := now.Add(-tier.Window)
			times := bucket[i]
			if len(times) > 0 && times[len(times)-1].After(cutoff) {
				empty = false
				break
			}
		}
		if empty {
			delete(r.buckets, id)
		}
	}
}
