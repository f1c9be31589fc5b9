package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chessarena/internal/protocol"
)

const (
	// 写入超时
	writeWait = 10 * time.Second

	// 读取超时（pong 等待时间）
	pongWait = 60 * time.Second

	// ping 发送间隔（必须小于 pongWait）
	pingPeriod = (pongWait * 9) / 10

	// 消息最大大小
	maxMessageSize = 4096
)

// Client 代表一个连接的玩家
type Client struct {
	ID       string // 连接唯一 ID（同时作为座位 ID）
	Identity string // 持久身份，重连后保持不变
	Name     string // 玩家昵称
	RoomID   string // 当前所在房间号
	IP       string // 客户端 IP 地址
	Rating   int    // 积分缓存

	server *Server
	conn   *websocket.Conn
	send   chan []byte

	mu     sync.RWMutex
	closed bool
}

// NewClient 创建新客户端，身份默认与连接同生，重连时被换绑
func NewClient(s *Server, conn *websocket.Conn) *Client {
	id := uuid.New().String()
	return &Client{
		ID:       id,
		Identity: id,
		Name:     GenerateNickname(),
		server:   s,
		conn:     conn,
		send:     make(chan []byte, 256),
	}
}

// ReadPump 从 WebSocket 读取消息
func (c *Client) ReadPump() {
	defer func() {
		c.handleDisconnect()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("读取错误: %v", err)
			}
			break
		}

		msg, err := protocol.Decode(message)
		if err != nil {
			log.Printf("消息解析错误: %v", err)
			c.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
			continue
		}

		c.server.handler.Handle(c, msg)
	}
}

// WritePump 向 WebSocket 写入消息
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// 通道已关闭
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage 发送消息给客户端
func (c *Client) SendMessage(msg *protocol.Message) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	data, err := msg.Encode()
	if err != nil {
		log.Printf("消息编码错误: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		// 发送缓冲区已满，关闭连接
		log.Printf("客户端 %s 发送缓冲区已满", c.ID)
		c.Close()
	}
}

// handleDisconnect 处理断开连接
func (c *Client) handleDisconnect() {
	// 标记会话离线
	c.server.sessionManager.SetOffline(c.GetIdentity())

	// 通知房间停表等待重连
	if c.GetRoom() != "" {
		c.server.roomManager.HandleDisconnect(c)
	}

	// 移出匹配队列
	c.server.matchQueue.Dequeue(c.GetIdentity())

	// 从连接注册表注销（会话保留，等待重连）
	c.server.unregisterClient(c)
}

// Close 关闭客户端连接
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// GetID 返回连接 ID
func (c *Client) GetID() string {
	return c.ID
}

// GetName 返回昵称
func (c *Client) GetName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Name
}

// SetName 更新昵称
func (c *Client) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Name = name
}

// SetRoom 设置客户端所在房间
func (c *Client) SetRoom(roomID string) {
	c.mu.Lock()
	c.RoomID = roomID
	identity := c.Identity
	c.mu.Unlock()

	c.server.sessionManager.SetRoom(identity, roomID)
}

// GetRoom 获取客户端所在房间
func (c *Client) GetRoom() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.RoomID
}

// GetIdentity 返回持久身份
func (c *Client) GetIdentity() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Identity
}

// SetIdentity 换绑持久身份（重连）
func (c *Client) SetIdentity(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Identity = identity
}

// GetRating 返回积分缓存
func (c *Client) GetRating() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Rating
}

// SetRating 更新积分缓存
func (c *Client) SetRating(rating int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Rating = rating
}
