package handler

import (
	"errors"
	"log"

	"chessarena/internal/apperrors"
	"chessarena/internal/config"
	"chessarena/internal/game/match"
	"chessarena/internal/game/room"
	"chessarena/internal/protocol"
	"chessarena/internal/server/session"
	"chessarena/internal/server/storage"
	"chessarena/internal/types"
)

// Deps 处理器依赖
type Deps struct {
	Server   types.ServerInterface
	Rooms    *room.Manager
	Queue    *match.Queue
	Sessions *session.Manager
	Store    *storage.RedisStore
	Config   *config.Config
}

// Handler 消息处理器
type Handler struct {
	server   types.ServerInterface
	rooms    *room.Manager
	queue    *match.Queue
	sessions *session.Manager
	store    *storage.RedisStore
	cfg      *config.Config
	handlers map[protocol.MessageType]handlerFunc
}

// handlerFunc 统一的处理器函数签名
type handlerFunc func(client types.PlayerClient, msg *protocol.Message)

// NewHandler 创建处理器
func NewHandler(deps Deps) *Handler {
	h := &Handler{
		server:   deps.Server,
		rooms:    deps.Rooms,
		queue:    deps.Queue,
		sessions: deps.Sessions,
		store:    deps.Store,
		cfg:      deps.Config,
	}
	h.initHandlers()
	return h
}

// initHandlers 初始化消息处理器映射
func (h *Handler) initHandlers() {
	h.handlers = map[protocol.MessageType]handlerFunc{
		// 连接操作
		protocol.MsgPing:        h.handlePing,
		protocol.MsgReconnect:   h.handleReconnect,
		protocol.MsgRequestSync: func(c types.PlayerClient, _ *protocol.Message) { h.handleRequestSync(c) },

		// 房间操作
		protocol.MsgCreateRoom: h.handleCreateRoom,
		protocol.MsgJoinRoom:   h.handleJoinRoom,
		protocol.MsgLeaveRoom:  func(c types.PlayerClient, _ *protocol.Message) { h.handleLeaveRoom(c) },

		// 匹配操作
		protocol.MsgQuickMatch:  h.handleQuickMatch,
		protocol.MsgCancelMatch: func(c types.PlayerClient, _ *protocol.Message) { h.handleCancelMatch(c) },

		// 对局操作
		protocol.MsgMove:        h.handleMove,
		protocol.MsgOfferDraw:   func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.OfferDraw(c)) },
		protocol.MsgAcceptDraw:  func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.AcceptDraw(c)) },
		protocol.MsgDeclineDraw: func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.DeclineDraw(c)) },
		protocol.MsgResign:      func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.Resign(c)) },
		protocol.MsgUndo:        func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.Undo(c)) },

		// 再来一局
		protocol.MsgPlayAgain:        func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.ProposeRematch(c)) },
		protocol.MsgAcceptPlayAgain:  func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.AcceptRematch(c)) },
		protocol.MsgDeclinePlayAgain: func(c types.PlayerClient, _ *protocol.Message) { h.replyErr(c, h.rooms.DeclineRematch(c)) },

		// 信息查询
		protocol.MsgGetLeaderboard: h.handleGetLeaderboard,
		protocol.MsgGetHistory:     h.handleGetHistory,
	}
}

// Handle 处理消息
func (h *Handler) Handle(client types.PlayerClient, msg *protocol.Message) {
	if handler, ok := h.handlers[msg.Type]; ok {
		handler(client, msg)
		return
	}

	log.Printf("⚠️ 未知消息类型: '%s' (来自玩家: %s, ID: %s)", msg.Type, client.GetName(), client.GetID())
	client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
}

// replyErr 把业务错误回给客户端，nil 不回
func (h *Handler) replyErr(client types.PlayerClient, err error) {
	if err == nil {
		return
	}
	var gameErr *apperrors.GameError
	if errors.As(err, &gameErr) {
		client.SendMessage(protocol.NewErrorMessage(gameErr.Code))
		return
	}
	client.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeUnknown, err.Error()))
}
