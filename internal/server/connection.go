package server

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"chessarena/internal/protocol"
	"chessarena/internal/server/session"
	"chessarena/internal/server/storage"
)

// handleWebSocket 处理 WebSocket 连接
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	clientIP := getClientIP(r)

	// 维护模式检查
	if s.IsMaintenanceMode() {
		log.Printf("🔧 维护模式，拒绝新连接: %s", clientIP)
		http.Error(w, "Server is under maintenance, please try again later",
			http.StatusServiceUnavailable)
		return
	}

	// 连接数限制检查
	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	default:
		log.Printf("🚫 达到最大连接数限制 (%d), IP: %s", s.maxConnections, clientIP)
		http.Error(w, "Server Full", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket 升级失败: %v", err)
		return
	}

	client := NewClient(s, conn)
	client.IP = clientIP

	// 积分以存储为准
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if rating, err := s.redisStore.GetRating(ctx, client.Identity); err == nil {
		client.Rating = rating
	}
	cancel()

	s.registerClient(client)

	playerSession := s.sessionManager.CreateSession(client.Identity, client.Name, client.Rating)
	go s.persistSession(playerSession)

	// 发送连接成功消息（包含重连令牌）
	client.SendMessage(protocol.MustNewMessage(protocol.MsgConnected, protocol.ConnectedPayload{
		PlayerID:       client.Identity,
		PlayerName:     client.Name,
		ReconnectToken: playerSession.ReconnectToken,
		Rating:         client.Rating,
	}))

	log.Printf("✅ 玩家 %s (%s) 已连接", client.Name, client.Identity)

	go client.ReadPump()
	go client.WritePump()
}

// persistSession 把会话落到 Redis，便于跨重启排查
func (s *Server) persistSession(ps *session.PlayerSession) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.redisStore.SaveSession(ctx, &storage.PlayerSessionData{
		PlayerID:       ps.PlayerID,
		PlayerName:     ps.PlayerName,
		ReconnectToken: ps.ReconnectToken,
		RoomCode:       ps.RoomCode,
		IsOnline:       ps.IsOnline,
	}); err != nil {
		log.Printf("保存会话失败: %v", err)
	}
}

// handleHealth 健康检查接口
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"online": s.OnlineCount(),
		"rooms":  s.roomManager.RoomCount(),
		"active": s.roomManager.ActiveCount(),
		"queued": s.matchQueue.Len(),
	})
}

// getClientIP 获取真实客户端 IP（考虑反向代理）
func getClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
