// Package ratelimit 限制單一連線的訊息速率
//
// 每條連線一個令牌桶：容量決定允許的瞬間爆量，填充速率決定長期平均。
// 桶只被該連線的讀取 goroutine 使用，但仍以 Mutex 保護，方便在測試中並發呼叫。
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// TokenBucket 令牌桶
type TokenBucket struct {
	capacity   float64   // 桶容量
	tokens     float64   // 當前令牌數
	refillRate float64   // 每秒填充的令牌數
	lastRefill time.Time // 上次填充時間
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket 建立一個初始為滿的令牌桶
func NewTokenBucket(capacity int, refillRate float64) *TokenBucket {
	return newTokenBucket(capacity, refillRate, time.Now)
}

func newTokenBucket(capacity int, refillRate float64, now func() time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// Allow 嘗試取出一個令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.now())

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// Tokens 目前可用的令牌數
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.now())
	return tb.tokens
}

// refillLocked 依經過時間補充令牌，呼叫者持有 tb.mu
func (tb *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}
}
