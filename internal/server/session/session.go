package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

const (
	// 重连等待时间
	reconnectTimeout = 2 * time.Minute
	// 会话过期时间
	sessionExpireTime = 10 * time.Minute
)

// PlayerSession 玩家会话（用于断线重连）
type PlayerSession struct {
	PlayerID       string // 持久身份
	PlayerName     string
	ReconnectToken string
	RoomCode       string
	Rating         int

	DisconnectedAt time.Time
	IsOnline       bool

	mu sync.RWMutex
}

// Manager 会话管理器
type Manager struct {
	sessions map[string]*PlayerSession // playerID -> session
	tokens   map[string]string         // token -> playerID
	mu       sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
}

// NewManager 创建会话管理器
func NewManager() *Manager {
	sm := &Manager{
		sessions: make(map[string]*PlayerSession),
		tokens:   make(map[string]string),
		done:     make(chan struct{}),
	}

	go sm.cleanupLoop()

	return sm
}

// Stop 停止后台清理
func (sm *Manager) Stop() {
	sm.stopOnce.Do(func() { close(sm.done) })
}

// CreateSession 创建新会话
func (sm *Manager) CreateSession(playerID, playerName string, rating int) *PlayerSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	token := generateToken()

	session := &PlayerSession{
		PlayerID:       playerID,
		PlayerName:     playerName,
		ReconnectToken: token,
		Rating:         rating,
		IsOnline:       true,
	}

	sm.sessions[playerID] = session
	sm.tokens[token] = playerID

	return session
}

// GetSession 获取会话
func (sm *Manager) GetSession(playerID string) *PlayerSession {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[playerID]
}

// SetOffline 设置玩家离线
func (sm *Manager) SetOffline(playerID string) {
	sm.mu.RLock()
	session, ok := sm.sessions[playerID]
	sm.mu.RUnlock()

	if ok {
		session.mu.Lock()
		session.IsOnline = false
		session.DisconnectedAt = time.Now()
		session.mu.Unlock()
	}
}

// SetOnline 设置玩家上线
func (sm *Manager) SetOnline(playerID string) {
	sm.mu.RLock()
	session, ok := sm.sessions[playerID]
	sm.mu.RUnlock()

	if ok {
		session.mu.Lock()
		session.IsOnline = true
		session.DisconnectedAt = time.Time{}
		session.mu.Unlock()
	}
}

// SetRoom 设置玩家所在房间
func (sm *Manager) SetRoom(playerID, roomCode string) {
	sm.mu.RLock()
	session, ok := sm.sessions[playerID]
	sm.mu.RUnlock()

	if ok {
		session.mu.Lock()
		session.RoomCode = roomCode
		session.mu.Unlock()
	}
}

// SetRating 更新会话中缓存的积分
func (sm *Manager) SetRating(playerID string, rating int) {
	sm.mu.RLock()
	session, ok := sm.sessions[playerID]
	sm.mu.RUnlock()

	if ok {
		session.mu.Lock()
		session.Rating = rating
		session.mu.Unlock()
	}
}

// RoomOf 返回玩家会话记录的房间号
func (sm *Manager) RoomOf(playerID string) string {
	session := sm.GetSession(playerID)
	if session == nil {
		return ""
	}
	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.RoomCode
}

// DeleteSession 删除会话
func (sm *Manager) DeleteSession(playerID string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if session, ok := sm.sessions[playerID]; ok {
		delete(sm.tokens, session.ReconnectToken)
		delete(sm.sessions, playerID)
	}
}

// CanReconnect 检查重连令牌是否有效
func (sm *Manager) CanReconnect(token, playerID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	storedPlayerID, ok := sm.tokens[token]
	if !ok || storedPlayerID != playerID {
		return false
	}

	session, ok := sm.sessions[playerID]
	if !ok {
		return false
	}

	session.mu.RLock()
	defer session.mu.RUnlock()

	// 检查是否在重连时限内
	if !session.IsOnline && time.Since(session.DisconnectedAt) > reconnectTimeout {
		return false
	}

	return true
}

// IsOnline 检查玩家是否在线
func (sm *Manager) IsOnline(playerID string) bool {
	sm.mu.RLock()
	session, ok := sm.sessions[playerID]
	sm.mu.RUnlock()

	if !ok {
		return false
	}

	session.mu.RLock()
	defer session.mu.RUnlock()
	return session.IsOnline
}

// cleanupLoop 定期清理过期会话
func (sm *Manager) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-sm.done:
			return
		case <-ticker.C:
			sm.cleanup()
		}
	}
}

// cleanup 清理离线超过过期时间的会话
func (sm *Manager) cleanup() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for playerID, session := range sm.sessions {
		session.mu.RLock()
		expired := !session.IsOnline && !session.DisconnectedAt.IsZero() &&
			now.Sub(session.DisconnectedAt) > sessionExpireTime
		session.mu.RUnlock()

		if expired {
			delete(sm.tokens, session.ReconnectToken)
			delete(sm.sessions, playerID)
		}
	}
}

// generateToken 生成重连令牌
func generateToken() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))
	}
	return hex.EncodeToString(buf)
}
