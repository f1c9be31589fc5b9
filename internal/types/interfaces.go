package types

import (
	"chessarena/internal/protocol"
)

// ClientInterface 客户端接口 - 避免 room 包直接依赖 server 包
type ClientInterface interface {
	GetID() string
	GetName() string
	GetRoom() string
	SetRoom(roomCode string)
	SendMessage(msg *protocol.Message)
	Close()
}

// PlayerClient 带持久身份与积分缓存的客户端，handler 层使用
type PlayerClient interface {
	ClientInterface
	GetIdentity() string
	SetIdentity(identity string)
	SetName(name string)
	GetRating() int
	SetRating(rating int)
}

// ServerInterface 服务器接口 - 供 handler 层回调连接注册表
type ServerInterface interface {
	GetClientByID(id string) ClientInterface
	BindIdentity(identity string, client ClientInterface)
	UnbindIdentity(identity, clientID string)
	OnlineCount() int
}
