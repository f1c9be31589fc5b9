package room

import (
	"context"

	"chessarena/internal/game/rules"
	"chessarena/internal/logger"
)

// maybeScheduleBotLocked 轮到机器人座位时调度一次走子；必须持有 r.mu
// 走子来源查询在锁外进行，回来后按走子数校验棋局没被别的路径推进
func (m *Manager) maybeScheduleBotLocked(r *Room) {
	if m.oracle == nil || r.finalizedLocked() || r.Phase != PhaseActive {
		return
	}
	seat := r.seatByColor(r.State.Turn())
	if seat == nil || !seat.Automated {
		return
	}

	code := r.Code
	seatID := seat.ID
	difficulty := seat.Difficulty
	movesUCI := r.State.MovesUCI()
	plyCount := len(movesUCI)

	go func() {
		// 在独立的棋局副本上求着法，不碰房间状态
		state, err := rules.Restore(movesUCI)
		if err != nil {
			logger.LogError("房间 %s 机器人回放棋局失败: %v", code, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Oracle.OracleTimeout())
		move, err := m.oracle.SelectMove(ctx, state, difficulty)
		cancel()
		if err != nil {
			logger.LogError("房间 %s 机器人选子失败: %v", code, err)
			return
		}
		if move == "" {
			return
		}

		m.playBotMove(code, seatID, plyCount, move)
	}()
}

// playBotMove 把机器人选出的着法落回房间，过期结果直接丢弃
func (m *Manager) playBotMove(code, seatID string, plyCount int, move string) {
	r, ok := m.store.Get(code)
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() || r.Phase != PhaseActive {
		return
	}
	// 悔棋或别的走子路径推进过棋局，本次结果作废
	if len(r.State.MovesUCI()) != plyCount {
		return
	}
	seat := r.seatByID(seatID)
	if seat == nil || !seat.Automated || seat.Color != r.State.Turn() {
		return
	}

	if err := m.applyMoveLocked(r, seat, move); err != nil {
		logger.LogError("房间 %s 机器人走子 %s 被拒: %v", code, move, err)
	}
}
