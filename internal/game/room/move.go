package room

import (
	"time"

	"chessarena/internal/apperrors"
	"chessarena/internal/game/rules"
	"chessarena/internal/logger"
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

// ApplyMove 处理玩家走子
func (m *Manager) ApplyMove(client types.ClientInterface, move string) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// playingSeat 到加锁之间房间可能已结束
	if r.finalizedLocked() {
		return apperrors.ErrRoomFinished
	}
	if r.Phase != PhaseActive {
		return apperrors.ErrGameNotStart
	}
	return m.applyMoveLocked(r, seat, move)
}

// applyMoveLocked 走子管线：校验 → 落子 → 结算时钟 → 记录 → 终局判定 → 广播
// 必须持有 r.mu，且调用方已确认房间处于 ACTIVE
func (m *Manager) applyMoveLocked(r *Room, seat *Seat, move string) error {
	if seat.Color != r.State.Turn() {
		return apperrors.ErrNotYourTurn
	}

	uci, san, err := r.State.Apply(move)
	if err != nil {
		return apperrors.ErrIllegalMove
	}

	now := time.Now()
	firstMove := len(r.Moves) == 0
	if firstMove {
		r.cancelTimerLocked(timerFirstMove)
	}

	// 结清走子方耗时，换边开表
	r.Clock.stop(now)
	// 只收回走子方自己的提和，对方的提和落子后仍可接受
	if r.DrawOffer == seat.Color {
		r.DrawOffer = ""
	}

	record := MoveRecord{
		Index: len(r.Moves) + 1,
		UCI:   uci,
		SAN:   san,
		Color: seat.Color,
		At:    now,
	}
	r.Moves = append(r.Moves, record)

	r.broadcastExceptLocked(seat.ID, protocol.MustNewMessage(protocol.MsgOpponentMove, &protocol.OpponentMovePayload{
		RoomCode: r.Code,
		Move: protocol.MoveInfo{
			Index: record.Index,
			UCI:   record.UCI,
			SAN:   record.SAN,
			Color: string(record.Color),
		},
		Clock: protocol.ClockInfo{
			WhiteMs:   r.Clock.remaining(rules.White, now).Milliseconds(),
			BlackMs:   r.Clock.remaining(rules.Black, now).Milliseconds(),
			Running:   string(seat.Color.Other()),
			UpdatedAt: now.UnixMilli(),
		},
		FEN:  r.State.FEN(),
		Turn: string(r.State.Turn()),
	}))

	if outcome := r.State.Classify(); outcome.Ending != rules.EndNone {
		loser := rules.Color("")
		if outcome.Winner != "" {
			loser = outcome.Winner.Other()
		}
		m.finishLocked(r, outcome.Ending.String(), outcome.Winner, loser)
		return nil
	}

	r.Clock.start(seat.Color.Other(), now)
	m.maybeScheduleBotLocked(r)

	data := r.snapshotLocked()
	m.persistSnapshot(data)
	return nil
}

// Resign 认输
func (m *Manager) Resign(client types.ClientInterface) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() {
		return apperrors.ErrRoomFinished
	}
	if r.Phase != PhaseActive && r.Phase != PhasePaused {
		return apperrors.ErrGameNotStart
	}
	logger.LogInfo("🏳️ 房间 %s 玩家 %s 认输", r.Code, seat.Name)
	m.finishLocked(r, ReasonResign, seat.Color.Other(), seat.Color)
	return nil
}

// Undo 悔棋：仅人机房间，回退双方各一步（最近两个半回合）
func (m *Manager) Undo(client types.ClientInterface) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() {
		return apperrors.ErrRoomFinished
	}
	if r.Phase != PhaseActive {
		return apperrors.ErrGameNotStart
	}
	if !r.Settings.VersusBot || seat.Automated {
		return apperrors.ErrUndoDenied
	}
	if len(r.Moves) < 2 || seat.Color != r.State.Turn() {
		return apperrors.ErrUndoDenied
	}

	moves := r.State.MovesUCI()
	state, err := rules.Restore(moves[:len(moves)-2])
	if err != nil {
		logger.LogError("房间 %s 悔棋回放失败: %v", r.Code, err)
		return apperrors.ErrUndoDenied
	}
	r.State = state
	r.Moves = r.Moves[:len(r.Moves)-2]

	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{Room: *r.infoLocked()}))
	data := r.snapshotLocked()
	m.persistSnapshot(data)
	logger.LogInfo("↩️ 房间 %s 玩家 %s 悔棋", r.Code, seat.Name)
	return nil
}

// playingSeat 解析客户端所在房间与执子座位
func (m *Manager) playingSeat(client types.ClientInterface) (*Room, *Seat, error) {
	code := client.GetRoom()
	if code == "" {
		return nil, nil, apperrors.ErrNotInRoom
	}
	r, ok := m.store.Get(code)
	if !ok {
		return nil, nil, apperrors.ErrRoomNotFound
	}

	r.mu.Lock()
	seat := r.seatByID(client.GetID())
	r.mu.Unlock()
	if seat == nil {
		return nil, nil, apperrors.ErrNotInRoom
	}
	if seat.IsSpectator() {
		return nil, nil, apperrors.ErrSpectator
	}
	return r, seat, nil
}
