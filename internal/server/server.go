package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"chessarena/internal/config"
	"chessarena/internal/game/match"
	"chessarena/internal/game/oracle"
	"chessarena/internal/game/room"
	"chessarena/internal/protocol"
	"chessarena/internal/server/handler"
	"chessarena/internal/server/session"
	"chessarena/internal/server/storage"
	"chessarena/internal/types"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，生产环境需要限制
	},
	EnableCompression: false,
}

// Server WebSocket 服务器
type Server struct {
	config         *config.Config
	redis          *redis.Client
	redisStore     *storage.RedisStore
	roomManager    *room.Manager
	matchQueue     *match.Queue
	sessionManager *session.Manager
	handler        *handler.Handler

	clients    map[string]*Client            // 连接 ID → 客户端
	identities map[string]map[string]*Client // 身份 → 连接集合
	clientsMu  sync.RWMutex

	// 连接控制
	maxConnections int
	semaphore      chan struct{}

	// 维护模式
	maintenanceMode bool
	maintenanceMu   sync.RWMutex
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) (*Server, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 测试 Redis 连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis 连接失败: %w", err)
	}

	s := &Server{
		config:         cfg,
		redis:          rdb,
		redisStore:     storage.NewRedisStore(rdb),
		sessionManager: session.NewManager(),
		clients:        make(map[string]*Client),
		identities:     make(map[string]map[string]*Client),
		maxConnections: cfg.Server.MaxConnections,
		semaphore:      make(chan struct{}, cfg.Server.MaxConnections),
	}

	// 机器人走子来源：进程内兜底
	moveOracle := oracle.WithFallback{
		Primary:  oracle.Local{},
		Fallback: oracle.Local{},
		Timeout:  cfg.Oracle.OracleTimeout(),
	}

	s.roomManager = room.NewManager(room.NewMemoryStore(), s.redisStore, moveOracle, s, cfg)
	s.matchQueue = match.NewQueue(cfg.Match.BucketSize, cfg.Match.MaxDelta)

	s.handler = handler.NewHandler(handler.Deps{
		Server:   s,
		Rooms:    s.roomManager,
		Queue:    s.matchQueue,
		Sessions: s.sessionManager,
		Store:    s.redisStore,
		Config:   cfg,
	})

	return s, nil
}

// Start 启动服务器
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.roomManager.Start()

	http.HandleFunc("/ws", s.handleWebSocket)
	http.HandleFunc("/health", s.handleHealth)

	go s.monitorStats()

	log.Printf("🚀 服务器启动在 ws://%s/ws (CPU核心数: %d)", addr, runtime.NumCPU())
	server := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadHeaderTimeout: 10 * time.Second, // 防止 Slowloris 攻击
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return server.ListenAndServe()
}

// monitorStats 定期监控服务器状态
func (s *Server) monitorStats() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		log.Printf("📊 [监控] 在线: %d | 房间: %d | 排队: %d | Goroutines: %d | 内存: %.2f MB",
			s.OnlineCount(),
			s.roomManager.RoomCount(),
			s.matchQueue.Len(),
			runtime.NumGoroutine(),
			float64(m.Alloc)/1024/1024)
	}
}

// EnterMaintenanceMode 进入维护模式：拒绝新连接与新房间
func (s *Server) EnterMaintenanceMode() {
	s.maintenanceMu.Lock()
	s.maintenanceMode = true
	s.maintenanceMu.Unlock()

	log.Println("🔧 进入维护模式：停止新连接和房间创建")
}

// IsMaintenanceMode 检查是否在维护模式
func (s *Server) IsMaintenanceMode() bool {
	s.maintenanceMu.RLock()
	defer s.maintenanceMu.RUnlock()
	return s.maintenanceMode
}

// GracefulShutdown 优雅关闭：等对局结束再关停
func (s *Server) GracefulShutdown(timeout time.Duration) {
	s.EnterMaintenanceMode()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		active := s.roomManager.ActiveCount()
		if active == 0 {
			log.Println("✅ 所有对局已结束，关闭服务器")
			break
		}
		log.Printf("⏳ 等待 %d 个对局结束...", active)
		<-ticker.C
	}

	if active := s.roomManager.ActiveCount(); active > 0 {
		log.Printf("⚠️ 超时，仍有 %d 个对局进行中，强制关闭", active)
	}

	s.Shutdown()
}

// Shutdown 关闭服务器
func (s *Server) Shutdown() {
	s.roomManager.Stop()
	s.sessionManager.Stop()

	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	_ = s.redis.Close()

	log.Println("服务器已关闭")
}

// --- room.Notifier ---

// NotifyIdentity 向身份的全部在线连接投递消息
func (s *Server) NotifyIdentity(identity string, msg *protocol.Message) {
	s.clientsMu.RLock()
	conns := make([]*Client, 0, len(s.identities[identity]))
	for _, c := range s.identities[identity] {
		conns = append(conns, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range conns {
		c.SendMessage(msg)
	}
}

// --- types.ServerInterface ---

// GetClientByID 按连接 ID 查找客户端
func (s *Server) GetClientByID(id string) types.ClientInterface {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	if c, ok := s.clients[id]; ok {
		return c
	}
	return nil
}

// BindIdentity 把连接挂到身份名下（重连换绑时调用）
func (s *Server) BindIdentity(identity string, client types.ClientInterface) {
	c, ok := client.(*Client)
	if !ok {
		return
	}

	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	// 先从旧身份摘除
	for id, conns := range s.identities {
		if _, bound := conns[c.ID]; bound && id != identity {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(s.identities, id)
			}
		}
	}
	if s.identities[identity] == nil {
		s.identities[identity] = make(map[string]*Client)
	}
	s.identities[identity][c.ID] = c
}

// UnbindIdentity 把连接从身份名下摘除
func (s *Server) UnbindIdentity(identity, clientID string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if conns, ok := s.identities[identity]; ok {
		delete(conns, clientID)
		if len(conns) == 0 {
			delete(s.identities, identity)
		}
	}
}

// OnlineCount 在线连接数
func (s *Server) OnlineCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// registerClient 注册客户端
func (s *Server) registerClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	s.clients[client.ID] = client
	if s.identities[client.Identity] == nil {
		s.identities[client.Identity] = make(map[string]*Client)
	}
	s.identities[client.Identity][client.ID] = client
}

// unregisterClient 注销客户端
func (s *Server) unregisterClient(client *Client) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	if _, ok := s.clients[client.ID]; ok {
		delete(s.clients, client.ID)
		log.Printf("❌ 玩家 %s (%s) 已断开", client.Name, client.ID)
	}
	identity := client.GetIdentity()
	if conns, ok := s.identities[identity]; ok {
		delete(conns, client.ID)
		if len(conns) == 0 {
			delete(s.identities, identity)
		}
	}
}
