package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"chessarena/internal/apperrors"
	"chessarena/internal/config"
	"chessarena/internal/game/oracle"
	"chessarena/internal/game/rating"
	"chessarena/internal/game/rules"
	"chessarena/internal/logger"
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

const (
	maxCodeAttempts = 64              // 房间号生成最大尝试次数
	persistTimeout  = 5 * time.Second // 单次持久化调用超时
	finishedRetain  = 5 * time.Minute // 终局房间在注册表中的保留时长
	cleanupInterval = time.Minute     // 清扫循环间隔
)

// Manager 房间生命周期管理器
// 房间状态的唯一写入方：所有状态迁移都经由这里并在房间锁内完成
type Manager struct {
	store   Store
	persist Persistence
	oracle  oracle.MoveOracle
	notify  Notifier
	cfg     *config.Config

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewManager 创建房间管理器，persist 和 notify 可为 nil（测试场景）
func NewManager(store Store, persist Persistence, orc oracle.MoveOracle, notify Notifier, cfg *config.Config) *Manager {
	return &Manager{
		store:   store,
		persist: persist,
		oracle:  orc,
		notify:  notify,
		cfg:     cfg,
		done:    make(chan struct{}),
	}
}

// Start 启动棋钟扫描与房间清扫循环
func (m *Manager) Start() {
	m.wg.Add(2)
	go m.clockLoop()
	go m.cleanupLoop()
}

// Stop 停止后台循环
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

// Get 按房间号查找房间
func (m *Manager) Get(code string) (*Room, bool) {
	return m.store.Get(code)
}

// RoomCount 注册表中的房间数
func (m *Manager) RoomCount() int {
	return m.store.Len()
}

// ActiveCount 进行中的对局数（含暂停等待重连的）
func (m *Manager) ActiveCount() int {
	count := 0
	m.store.Range(func(r *Room) bool {
		r.mu.Lock()
		if r.Phase == PhaseActive || r.Phase == PhasePaused {
			count++
		}
		r.mu.Unlock()
		return true
	})
	return count
}

// CreateRoom 创建房间并让创建者入座
func (m *Manager) CreateRoom(client types.ClientInterface, identity string, playerRating int, settings Settings) (*Room, error) {
	if settings.Minutes <= 0 {
		settings.Minutes = m.cfg.Game.DefaultMinutes
	}
	if settings.VersusBot && settings.Difficulty <= 0 {
		settings.Difficulty = m.cfg.Oracle.Difficulty
	}

	code, err := m.generateRoomCode()
	if err != nil {
		return nil, err
	}

	// 每个身份同时只能有一个活跃房间
	if err := m.reserveIdentity(identity, code); err != nil {
		return nil, err
	}

	color := creatorColor(settings.ColorPref)
	r := newRoom(code, settings)
	r.Phase = PhaseWaiting
	r.Seats = append(r.Seats, &Seat{
		ID:        client.GetID(),
		Identity:  identity,
		Name:      client.GetName(),
		Color:     color,
		Client:    client,
		Connected: true,
		Rating:    playerRating,
	})

	if settings.VersusBot {
		r.Seats = append(r.Seats, &Seat{
			ID:         "bot-" + code,
			Name:       botName(settings.Difficulty),
			Color:      color.Other(),
			Connected:  true,
			Automated:  true,
			Difficulty: settings.Difficulty,
			Rating:     rating.DefaultRating,
		})
	}

	m.store.Put(r)
	client.SetRoom(code)

	r.mu.Lock()
	if settings.VersusBot {
		m.activateLocked(r)
		r.broadcastLocked(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{Room: *r.infoLocked()}))
	} else {
		r.armTimerLocked(timerExpiration, m.cfg.Game.RoomExpirationDuration(), func() {
			m.onExpiration(code)
		})
	}
	data := r.snapshotLocked()
	r.mu.Unlock()

	m.persistSnapshot(data)
	logger.LogInfo("🏠 房间 %s 已创建: 玩家=%s 颜色=%s 时长=%d分钟 人机=%v",
		code, client.GetName(), color, settings.Minutes, settings.VersusBot)
	return r, nil
}

// JoinRoom 加入房间：已在房间内的身份重占原座位，有空位入座，否则观战
func (m *Manager) JoinRoom(client types.ClientInterface, identity string, playerRating int, code, seatHint string) (*Room, *Seat, error) {
	r, ok := m.store.Get(code)
	if !ok {
		return nil, nil, apperrors.ErrRoomNotFound
	}

	r.mu.Lock()

	// 身份重连：无论房间处于什么阶段都可以回到自己的座位
	if seat := r.seatByIdentity(identity); seat != nil {
		m.reattachLocked(r, seat, client)
		data := r.snapshotLocked()
		r.mu.Unlock()
		m.persistSnapshot(data)
		return r, seat, nil
	}

	if r.finalizedLocked() {
		r.mu.Unlock()
		return nil, nil, apperrors.ErrRoomFinished
	}

	// 座位提示：接管掉线的匿名座位（同一浏览器换了连接身份的场景）
	if seatHint != "" {
		if seat := r.seatByID(seatHint); seat != nil && !seat.Connected && !seat.Automated {
			if err := m.reserveIdentityLockedSafe(r, identity, code); err != nil {
				r.mu.Unlock()
				return nil, nil, err
			}
			seat.Identity = identity
			seat.Name = client.GetName()
			seat.Rating = playerRating
			m.reattachLocked(r, seat, client)
			data := r.snapshotLocked()
			r.mu.Unlock()
			m.persistSnapshot(data)
			return r, seat, nil
		}
	}

	var seat *Seat
	if len(r.coloredSeats()) < 2 {
		if err := m.reserveIdentityLockedSafe(r, identity, code); err != nil {
			r.mu.Unlock()
			return nil, nil, err
		}
		color := rules.White
		if r.seatByColor(rules.White) != nil {
			color = rules.Black
		}
		seat = &Seat{
			ID:        client.GetID(),
			Identity:  identity,
			Name:      client.GetName(),
			Color:     color,
			Client:    client,
			Connected: true,
			Rating:    playerRating,
		}
		r.Seats = append(r.Seats, seat)
		client.SetRoom(code)
		m.activateLocked(r)
	} else {
		// 执子座位已满，作为观战者加入
		seat = &Seat{
			ID:        client.GetID(),
			Identity:  identity,
			Name:      client.GetName(),
			Client:    client,
			Connected: true,
			Rating:    playerRating,
		}
		r.Seats = append(r.Seats, seat)
		client.SetRoom(code)
	}

	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{Room: *r.infoLocked()}))
	data := r.snapshotLocked()
	r.mu.Unlock()

	m.persistSnapshot(data)
	logger.LogInfo("🎮 玩家 %s 加入房间 %s: 颜色=%s", client.GetName(), code, seat.Color)
	return r, seat, nil
}

// LeaveRoom 主动离开房间：对局中等同认输，等待中撤座
func (m *Manager) LeaveRoom(client types.ClientInterface) error {
	code := client.GetRoom()
	if code == "" {
		return apperrors.ErrNotInRoom
	}
	r, ok := m.store.Get(code)
	if !ok {
		client.SetRoom("")
		return apperrors.ErrRoomNotFound
	}

	r.mu.Lock()
	seat := r.seatByID(client.GetID())
	if seat == nil {
		r.mu.Unlock()
		client.SetRoom("")
		return apperrors.ErrNotInRoom
	}
	client.SetRoom("")

	if seat.IsSpectator() {
		r.removeSeatLocked(seat.ID)
		r.broadcastLocked(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{Room: *r.infoLocked()}))
		r.mu.Unlock()
		return nil
	}

	if !r.finalizedLocked() && (r.Phase == PhaseActive || r.Phase == PhasePaused) {
		// 对局中离开 = 认输
		m.finishLocked(r, ReasonResign, seat.Color.Other(), seat.Color)
		r.mu.Unlock()
		return nil
	}

	identity := seat.Identity
	r.removeSeatLocked(seat.ID)
	empty := len(r.coloredSeats()) == 0
	if empty && !r.finalizedLocked() {
		r.cancelAllTimersLocked()
	}
	if !empty {
		r.broadcastLocked(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{Room: *r.infoLocked()}))
	}
	r.mu.Unlock()

	m.releaseIdentity(identity, code)
	if empty {
		m.dropRoom(code)
		logger.LogInfo("🏠 房间 %s 已无执子座位，移除", code)
	}
	return nil
}

// HandleDisconnect 连接断开：标记离线、停表暂停、布防宽限定时器
func (m *Manager) HandleDisconnect(client types.ClientInterface) {
	code := client.GetRoom()
	if code == "" {
		return
	}
	r, ok := m.store.Get(code)
	if !ok {
		return
	}

	r.mu.Lock()
	seat := r.seatByID(client.GetID())
	if seat == nil || !seat.Connected {
		r.mu.Unlock()
		return
	}
	now := time.Now()
	seat.Connected = false
	seat.DisconnectedAt = now
	seat.Client = nil

	if seat.IsSpectator() {
		// 观战座位不保留
		r.removeSeatLocked(seat.ID)
		r.broadcastLocked(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{Room: *r.infoLocked()}))
		r.mu.Unlock()
		return
	}

	grace := m.cfg.Game.DisconnectGraceDuration()
	if !r.finalizedLocked() && (r.Phase == PhaseActive || r.Phase == PhasePaused) {
		if r.Phase == PhaseActive {
			// 停表，等待重连
			r.Clock.stop(now)
			r.Phase = PhasePaused
			r.cancelTimerLocked(timerFirstMove)
		}
		sid := seat.ID
		r.armTimerLocked(timerDisconnect(sid), grace, func() {
			m.onDisconnectTimeout(code, sid)
		})
	}

	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgPlayerOffline, &protocol.PlayerOfflinePayload{
		SeatID:  seat.ID,
		Color:   string(seat.Color),
		Timeout: int(grace.Seconds()),
	}))
	data := r.snapshotLocked()
	r.mu.Unlock()

	m.persistSnapshot(data)
	logger.LogInfo("📴 玩家 %s 从房间 %s 掉线，等待重连 %v", seat.Name, code, grace)
}

// reattachLocked 把座位重新绑定到新连接并按需恢复对局；必须持有 r.mu
func (m *Manager) reattachLocked(r *Room, seat *Seat, client types.ClientInterface) {
	r.cancelTimerLocked(timerDisconnect(seat.ID))
	seat.ID = client.GetID()
	seat.Client = client
	seat.Connected = true
	seat.DisconnectedAt = time.Time{}
	client.SetRoom(r.Code)

	r.broadcastExceptLocked(seat.ID, protocol.MustNewMessage(protocol.MsgPlayerOnline, &protocol.PlayerOnlinePayload{
		SeatID: seat.ID,
		Color:  string(seat.Color),
	}))

	if !r.finalizedLocked() {
		// 双离线期间宽限定时器已空发过，对手仍离线则重新给一段宽限
		if r.everActive {
			code := r.Code
			for _, s := range r.coloredSeats() {
				if !s.Connected && !s.Automated {
					sid := s.ID
					r.armTimerLocked(timerDisconnect(sid), m.cfg.Game.DisconnectGraceDuration(), func() {
						m.onDisconnectTimeout(code, sid)
					})
				}
			}
		}
		m.activateLocked(r)
	}
	r.broadcastLocked(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{Room: *r.infoLocked()}))
	logger.LogInfo("✅ 玩家 %s 重连回房间 %s", seat.Name, r.Code)
}

// activateLocked 双方执子座位齐且在线时进入 ACTIVE 并开表；必须持有 r.mu
func (m *Manager) activateLocked(r *Room) {
	if r.finalizedLocked() || r.Phase == PhaseActive {
		return
	}
	if !r.bothColoredConnected() {
		return
	}

	code := r.Code
	firstActivation := !r.everActive
	r.Phase = PhaseActive
	r.everActive = true
	r.cancelTimerLocked(timerExpiration)
	r.Clock.start(r.State.Turn(), time.Now())
	// 首步超时只在首次进入对局时布防，重连不重置窗口
	if firstActivation && len(r.Moves) == 0 {
		r.armTimerLocked(timerFirstMove, m.cfg.Game.FirstMoveTimeoutDuration(), func() {
			m.onFirstMoveTimeout(code)
		})
	}
	m.maybeScheduleBotLocked(r)
	logger.LogInfo("🎮 房间 %s 进入对局，轮到 %s", code, r.State.Turn())
}

// onFirstMoveTimeout 首步超时：双方均未走子，按和棋结束
func (m *Manager) onFirstMoveTimeout(code string) {
	r, ok := m.store.Get(code)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() || r.Phase != PhaseActive || len(r.Moves) > 0 {
		return
	}
	logger.LogInfo("⚠️ 房间 %s 首步超时，判和", code)
	m.finishLocked(r, ReasonFirstMoveTimeout, "", "")
}

// onDisconnectTimeout 掉线宽限到期：掉线方判负
func (m *Manager) onDisconnectTimeout(code, seatID string) {
	r, ok := m.store.Get(code)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() {
		return
	}
	seat := r.seatByID(seatID)
	if seat == nil || seat.Connected || seat.IsSpectator() {
		return
	}
	// 对手也不在线就不判负：房间保持暂停，等任意一方重连或废弃清扫兜底
	opponent := r.seatByColor(seat.Color.Other())
	if opponent == nil || !opponent.Connected {
		logger.LogInfo("📴 房间 %s 双方均离线，保持暂停", code)
		return
	}
	logger.LogInfo("⚠️ 房间 %s 玩家 %s 宽限期内未重连，判负", code, seat.Name)
	m.finishLocked(r, ReasonDisconnected, seat.Color.Other(), seat.Color)
}

// onExpiration 激活前过期：房间始终没有凑齐对手，按废弃处理
func (m *Manager) onExpiration(code string) {
	r, ok := m.store.Get(code)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finalizedLocked() || r.everActive {
		return
	}
	logger.LogInfo("⚠️ 房间 %s 等待超时，废弃", code)
	m.finishLocked(r, ReasonAbandoned, "", "")
}

// clockLoop 周期扫描走表房间，剩余时间归零则超时判负
func (m *Manager) clockLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Game.ClockTickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.store.Range(func(r *Room) bool {
				r.mu.Lock()
				if !r.finalizedLocked() && r.Phase == PhaseActive && r.Clock.Running != "" {
					if r.Clock.remaining(r.Clock.Running, now) <= 0 {
						loser := r.Clock.Running
						logger.LogInfo("⚠️ 房间 %s %s 方超时", r.Code, loser)
						m.finishLocked(r, ReasonTimeout, loser.Other(), loser)
					}
				}
				r.mu.Unlock()
				return true
			})
		}
	}
}

// cleanupLoop 周期清扫：回收终局房间与双方长期离线的残留房间
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// sweep 单轮清扫
func (m *Manager) sweep(now time.Time) {
	var drop []string
	m.store.Range(func(r *Room) bool {
		r.mu.Lock()
		switch {
		case r.finalizedLocked():
			if now.Sub(r.Finished.At) > finishedRetain && !r.anyConnectedLocked() {
				drop = append(drop, r.Code)
			}
		case r.everActive && !r.anyConnectedLocked():
			// 双方都离线且超过清扫阈值：宽限定时器因进程重启等原因丢失时的兜底
			if oldest := r.oldestDisconnectLocked(); !oldest.IsZero() &&
				now.Sub(oldest) > m.cfg.Game.AbandonedSweepDuration() {
				logger.LogInfo("⚠️ 房间 %s 双方长期离线，废弃", r.Code)
				m.finishLocked(r, ReasonAbandoned, "", "")
			}
		}
		r.mu.Unlock()
		return true
	})

	for _, code := range drop {
		m.dropRoom(code)
		logger.LogInfo("🏠 终局房间 %s 已回收", code)
	}
}

// dropRoom 从注册表与持久化中移除房间
func (m *Manager) dropRoom(code string) {
	m.store.Delete(code)
	if m.persist == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.persist.DeleteRoomSnapshot(ctx, code); err != nil {
			logger.LogError("删除房间 %s 快照失败: %v", code, err)
		}
	}()
}

// persistSnapshot 异步保存房间快照
func (m *Manager) persistSnapshot(data *SnapshotData) {
	if m.persist == nil || data == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.persist.SaveRoomSnapshot(ctx, data); err != nil {
			logger.LogError("保存房间 %s 快照失败: %v", data.Code, err)
		}
	}()
}

// reserveIdentity 占用单一活跃房间名额
func (m *Manager) reserveIdentity(identity, code string) error {
	if identity == "" || m.persist == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	ok, err := m.persist.ReserveActiveRoom(ctx, identity, code)
	if err != nil {
		// 占位是约束而非存储，Redis 不可用时放行
		logger.LogError("活跃房间占位失败 identity=%s: %v", identity, err)
		return nil
	}
	if !ok {
		return apperrors.ErrAlreadySeat
	}
	return nil
}

// reserveIdentityLockedSafe 在持有房间锁时占位
// 占位是带超时的短调用，锁内等待上限即 persistTimeout
func (m *Manager) reserveIdentityLockedSafe(_ *Room, identity, code string) error {
	return m.reserveIdentity(identity, code)
}

// releaseIdentity 释放单一活跃房间名额
func (m *Manager) releaseIdentity(identity, code string) {
	if identity == "" || m.persist == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := m.persist.ReleaseActiveRoom(ctx, identity, code); err != nil {
			logger.LogError("释放活跃房间占位失败 identity=%s: %v", identity, err)
		}
	}()
}

// generateRoomCode 生成未占用的数字房间号
func (m *Manager) generateRoomCode() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		buf := make([]byte, roomCodeLength)
		for j := range buf {
			buf[j] = roomCodeChars[rand.IntN(len(roomCodeChars))]
		}
		code := string(buf)
		if _, exists := m.store.Get(code); !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("房间号空间耗尽，当前房间数 %d", m.store.Len())
}

// creatorColor 解析创建者颜色偏好
func creatorColor(pref string) rules.Color {
	switch pref {
	case "w", "white":
		return rules.White
	case "b", "black":
		return rules.Black
	default:
		if rand.IntN(2) == 0 {
			return rules.White
		}
		return rules.Black
	}
}

// botName 按难度给机器人座位起名
func botName(difficulty int) string {
	switch {
	case difficulty <= 1:
		return "小卒"
	case difficulty == 2:
		return "马师"
	default:
		return "棋圣"
	}
}

// removeSeatLocked 从座位表移除座位；必须持有 r.mu
func (r *Room) removeSeatLocked(seatID string) {
	for i, s := range r.Seats {
		if s.ID == seatID {
			r.Seats = append(r.Seats[:i], r.Seats[i+1:]...)
			return
		}
	}
}

// anyConnectedLocked 是否还有任何在线座位；必须持有 r.mu
func (r *Room) anyConnectedLocked() bool {
	for _, s := range r.Seats {
		if s.Connected && !s.Automated {
			return true
		}
	}
	return false
}

// oldestDisconnectLocked 返回最早的执子座位掉线时间；必须持有 r.mu
func (r *Room) oldestDisconnectLocked() time.Time {
	var oldest time.Time
	for _, s := range r.coloredSeats() {
		if s.Automated || s.Connected || s.DisconnectedAt.IsZero() {
			continue
		}
		if oldest.IsZero() || s.DisconnectedAt.Before(oldest) {
			oldest = s.DisconnectedAt
		}
	}
	return oldest
}
