package room

import "time"

// 定时器键：同键重新布防会先取消旧定时器
const (
	timerFirstMove  = "first_move" // 首步超时 → 和棋终局
	timerExpiration = "expiration" // 激活前过期 → 废弃
)

// timerDisconnect 掉线宽限定时器键，按座位区分
func timerDisconnect(seatID string) string {
	return "disconnect:" + seatID
}

// armTimerLocked 布防定时器，同键先取消；必须持有 r.mu
// 回调在独立 goroutine 中触发，回调方需自行按房间号重取房间并加锁
func (r *Room) armTimerLocked(key string, d time.Duration, fn func()) {
	r.cancelTimerLocked(key)
	r.timers[key] = time.AfterFunc(d, fn)
}

// cancelTimerLocked 取消指定键的定时器；必须持有 r.mu
func (r *Room) cancelTimerLocked(key string) {
	if t, ok := r.timers[key]; ok {
		t.Stop()
		delete(r.timers, key)
	}
}

// cancelAllTimersLocked 取消全部定时器；必须持有 r.mu
func (r *Room) cancelAllTimersLocked() {
	for key, t := range r.timers {
		t.Stop()
		delete(r.timers, key)
	}
}
