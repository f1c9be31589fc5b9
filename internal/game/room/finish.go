package room

import (
	"context"
	"time"

	"chessarena/internal/game/rating"
	"chessarena/internal/game/rules"
	"chessarena/internal/logger"
	"chessarena/internal/protocol"
)

// ratedSeat 终局结算用的座位快照，脱离房间锁使用
type ratedSeat struct {
	Identity  string
	Name      string
	Color     rules.Color
	Rating    int
	Automated bool
}

// finishLocked 终局入口：所有结束路径（认输、超时、和棋、掉线、废弃、将杀）
// 都汇聚到这里，finalized 守卫保证只生效一次；必须持有 r.mu
func (m *Manager) finishLocked(r *Room, reason string, winner, loser rules.Color) {
	if r.finalizedLocked() {
		return
	}
	now := time.Now()
	r.Clock.stop(now)
	r.Phase = PhaseFinished
	r.DrawOffer = ""
	r.Finished = &Finished{
		Reason:    reason,
		Winner:    winner,
		Loser:     loser,
		At:        now,
		finalized: true,
	}
	r.cancelAllTimersLocked()

	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgGameOver, &protocol.GameOverPayload{
		RoomCode: r.Code,
		Finished: protocol.FinishedInfo{
			Reason: reason,
			Winner: string(winner),
			Loser:  string(loser),
			At:     now.UnixMilli(),
		},
	}))

	var seats []ratedSeat
	for _, s := range r.coloredSeats() {
		seats = append(seats, ratedSeat{
			Identity:  s.Identity,
			Name:      s.Name,
			Color:     s.Color,
			Rating:    s.Rating,
			Automated: s.Automated,
		})
	}

	var rec *FinishedGameRecord
	if r.everActive {
		rec = r.finishedRecordLocked()
	}
	data := r.snapshotLocked()

	// 持久化与积分结算是慢路径，放到锁外
	go m.finalize(r.Code, reason, winner, seats, rec, data)

	logger.LogInfo("🏁 房间 %s 对局结束: 原因=%s 胜方=%s", r.Code, reason, winner)
}

// finalize 锁外的终局结算：释放占位、存档、快照、积分
func (m *Manager) finalize(code, reason string, winner rules.Color, seats []ratedSeat, rec *FinishedGameRecord, data *SnapshotData) {
	for _, s := range seats {
		if !s.Automated {
			m.releaseIdentity(s.Identity, code)
		}
	}

	m.persistSnapshot(data)

	if m.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	// 从未激活的房间（等对手超时）没有对局内容，不存档
	if rec != nil {
		if err := m.persist.AppendFinishedGame(ctx, rec); err != nil {
			logger.LogError("房间 %s 终局存档失败: %v", code, err)
		}
	}

	m.settleRatings(ctx, code, reason, winner, seats)
}

// settleRatings 按 Elo 调整双方积分
// 和棋与废弃不动分；机器人或匿名对局不动分
func (m *Manager) settleRatings(ctx context.Context, code, reason string, winner rules.Color, seats []ratedSeat) {
	if winner == "" || reason == ReasonAbandoned {
		return
	}

	var winSeat, loseSeat *ratedSeat
	for i := range seats {
		if seats[i].Color == winner {
			winSeat = &seats[i]
		} else {
			loseSeat = &seats[i]
		}
	}
	if winSeat == nil || loseSeat == nil ||
		winSeat.Automated || loseSeat.Automated ||
		winSeat.Identity == "" || loseSeat.Identity == "" {
		return
	}

	delta := rating.FallbackDelta
	if winSeat.Rating > 0 && loseSeat.Rating > 0 {
		delta = rating.ComputeDelta(winSeat.Rating, loseSeat.Rating)
	}
	m.applyDelta(ctx, winSeat, delta)
	m.applyDelta(ctx, loseSeat, -delta)
	logger.LogInfo("✅ 房间 %s 积分结算: %s +%d / %s -%d", code, winSeat.Name, delta, loseSeat.Name, delta)
}

// applyDelta 落库单个玩家的积分变动并通知本人
func (m *Manager) applyDelta(ctx context.Context, s *ratedSeat, delta int) {
	newRating, err := m.persist.ApplyRatingDelta(ctx, s.Identity, s.Name, delta)
	if err != nil {
		// 落库失败时按本地估算通知，下次对局以存储为准
		logger.LogError("玩家 %s 积分落库失败: %v", s.Identity, err)
		newRating = s.Rating + delta
	}
	if m.notify != nil {
		m.notify.NotifyIdentity(s.Identity, protocol.MustNewMessage(protocol.MsgRatingChange, &protocol.RatingChangePayload{
			Identity:  s.Identity,
			OldRating: s.Rating,
			NewRating: newRating,
		}))
	}
}
