package room

import (
	"sync"
	"time"
)

// Clock 時間來源
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// timer 可取消的週期計時器
//
// Cancel 只關閉 stop channel，不等待 goroutine 結束。
// 回呼執行時必須在對應的鎖內確認自己仍是目前的 handle，
// 這樣 Cancel 之後即使 ticker 已經觸發，回呼也不會產生任何效果。
type timer struct {
	stop chan struct{}
	once sync.Once
}

func newTimer() *timer {
	return &timer{stop: make(chan struct{})}
}

// Cancel 可重複呼叫
func (t *timer) Cancel() {
	if t == nil {
		return
	}
	t.once.Do(func() { close(t.stop) })
}

// run 啟動計時器 goroutine；fn 回傳 false 時停止
func (m *Manager) run(t *timer, interval time.Duration, fn func() bool) {
	m.timerMu.Lock()
	if m.stopped {
		m.timerMu.Unlock()
		t.Cancel()
		return
	}
	m.timers[t] = struct{}{}
	m.wg.Add(1)
	m.timerMu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.timerMu.Lock()
			delete(m.timers, t)
			m.timerMu.Unlock()
		}()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.stop:
				return
			case <-ticker.C:
				if !fn() {
					return
				}
			}
		}
	}()
}

// ActiveTimers 目前仍在執行的計時器數量
func (m *Manager) ActiveTimers() int {
	m.timerMu.Lock()
	defer m.timerMu.Unlock()
	return len(m.timers)
}
