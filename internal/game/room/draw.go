package room

import (
	"chessarena/internal/apperrors"
	"chessarena/internal/logger"
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

// OfferDraw 提和：自己落子会收回未响应的提和，对方的提和一直有效
func (m *Manager) OfferDraw(client types.ClientInterface) error {
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
	if r.DrawOffer == seat.Color {
		// 重复提和静默忽略
		return nil
	}
	if r.DrawOffer == seat.Color.Other() {
		// 双方同时提和视为达成一致
		m.finishLocked(r, ReasonDrawAgreed, "", "")
		return nil
	}

	r.DrawOffer = seat.Color
	r.broadcastExceptLocked(seat.ID, protocol.MustNewMessage(protocol.MsgDrawOffered, &protocol.DrawOfferedPayload{
		RoomCode: r.Code,
		ByColor:  string(seat.Color),
	}))
	logger.LogInfo("🤝 房间 %s %s 方提和", r.Code, seat.Color)
	return nil
}

// AcceptDraw 接受提和，对局以和棋结束
func (m *Manager) AcceptDraw(client types.ClientInterface) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() {
		return apperrors.ErrRoomFinished
	}
	if r.DrawOffer == "" || r.DrawOffer == seat.Color {
		return apperrors.ErrNoDrawOffer
	}

	logger.LogInfo("🤝 房间 %s 和棋达成", r.Code)
	m.finishLocked(r, ReasonDrawAgreed, "", "")
	return nil
}

// DeclineDraw 拒绝提和
func (m *Manager) DeclineDraw(client types.ClientInterface) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() {
		return apperrors.ErrRoomFinished
	}
	if r.DrawOffer == "" || r.DrawOffer == seat.Color {
		return apperrors.ErrNoDrawOffer
	}

	r.DrawOffer = ""
	r.broadcastExceptLocked(seat.ID, protocol.MustNewMessage(protocol.MsgDrawDeclined, nil))
	return nil
}
