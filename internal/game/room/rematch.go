package room

import (
	"chessarena/internal/apperrors"
	"chessarena/internal/logger"
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

// ProposeRematch 终局后发起再来一局；人机房间机器人总是同意
func (m *Manager) ProposeRematch(client types.ClientInterface) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalizedLocked() {
		return apperrors.ErrGameNotStart
	}
	if !r.everActive {
		return apperrors.ErrRoomFinished
	}

	if r.Rematch == nil {
		r.Rematch = &Rematch{
			ProposerSeatID: seat.ID,
			Accepted:       map[string]bool{seat.ID: true},
		}
	} else {
		r.Rematch.Accepted[seat.ID] = true
	}

	if m.allAcceptedLocked(r) {
		return m.spawnRematchLocked(r)
	}

	r.broadcastExceptLocked(seat.ID, protocol.MustNewMessage(protocol.MsgRematchOffered, &protocol.RematchOfferedPayload{
		RoomCode: r.Code,
		BySeatID: seat.ID,
	}))
	logger.LogInfo("🔁 房间 %s 玩家 %s 发起再来一局", r.Code, seat.Name)
	return nil
}

// AcceptRematch 同意再来一局，全部执子座位同意后开新房间
func (m *Manager) AcceptRematch(client types.ClientInterface) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.finalizedLocked() || r.Rematch == nil {
		return apperrors.ErrGameNotStart
	}

	r.Rematch.Accepted[seat.ID] = true
	if m.allAcceptedLocked(r) {
		return m.spawnRematchLocked(r)
	}
	return nil
}

// DeclineRematch 拒绝再来一局，清空协商记录
func (m *Manager) DeclineRematch(client types.ClientInterface) error {
	r, seat, err := m.playingSeat(client)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Rematch == nil {
		return apperrors.ErrGameNotStart
	}

	r.Rematch = nil
	r.broadcastExceptLocked(seat.ID, protocol.MustNewMessage(protocol.MsgRematchDeclined, nil))
	logger.LogInfo("🔁 房间 %s 玩家 %s 拒绝再来一局", r.Code, seat.Name)
	return nil
}

// allAcceptedLocked 全部在线执子座位是否都已同意；必须持有 r.mu
// 机器人座位视为总是同意；只剩一个执子座位时提议者一人即可
func (m *Manager) allAcceptedLocked(r *Room) bool {
	if r.Rematch == nil {
		return false
	}
	for _, s := range r.coloredSeats() {
		if s.Automated {
			continue
		}
		if !s.Connected || !r.Rematch.Accepted[s.ID] {
			return false
		}
	}
	return true
}

// spawnRematchLocked 开一间新房间：沿用时长设置与原有颜色，旧房间保持终局不变。
// 必须持有 r.mu；新房间的锁在此期间获取是安全的，此刻只有本协程能看到它
func (m *Manager) spawnRematchLocked(r *Room) error {
	code, err := m.generateRoomCode()
	if err != nil {
		return err
	}

	nr := newRoom(code, r.Settings)
	nr.Phase = PhaseWaiting
	for _, s := range r.coloredSeats() {
		seat := &Seat{
			Identity:   s.Identity,
			Name:       s.Name,
			Color:      s.Color,
			Client:     s.Client,
			Connected:  s.Connected,
			Automated:  s.Automated,
			Difficulty: s.Difficulty,
			Rating:     s.Rating,
		}
		if s.Automated {
			seat.ID = "bot-" + code
		} else {
			seat.ID = s.ID
		}
		nr.Seats = append(nr.Seats, seat)
	}

	r.Rematch = nil
	// 连接随新房间走，旧房间的执子座位视作离线以便回收
	for _, s := range r.coloredSeats() {
		s.Connected = false
		s.Client = nil
	}

	nr.mu.Lock()
	m.store.Put(nr)
	for _, s := range nr.Seats {
		if s.Client != nil && s.Connected {
			s.Client.SetRoom(code)
		}
		// 终局时已释放的占位在新房间号下重新占上
		if !s.Automated && s.Identity != "" {
			identity := s.Identity
			go func() {
				if err := m.reserveIdentity(identity, code); err != nil {
					logger.LogError("再来一局占位失败 identity=%s room=%s: %v", identity, code, err)
				}
			}()
		}
	}

	m.activateLocked(nr)
	nr.broadcastLocked(protocol.MustNewMessage(protocol.MsgRematchStarted, &protocol.RematchStartedPayload{
		OldRoomCode: r.Code,
		RoomCode:    code,
		Room:        *nr.infoLocked(),
	}))
	data := nr.snapshotLocked()
	nr.mu.Unlock()

	m.persistSnapshot(data)
	logger.LogInfo("🔁 房间 %s 再来一局 → 新房间 %s", r.Code, code)
	return nil
}
