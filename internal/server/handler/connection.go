package handler

import (
	"log"
	"time"

	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

// handlePing 处理心跳消息
func (h *Handler) handlePing(client types.PlayerClient, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.PingPayload](msg)
	if err != nil {
		return
	}

	// 立即回复 pong
	client.SendMessage(protocol.MustNewMessage(protocol.MsgPong, protocol.PongPayload{
		ClientTimestamp: payload.Timestamp,
		ServerTimestamp: time.Now().UnixMilli(),
	}))
}

// handleReconnect 处理断线重连：换绑身份、恢复座位
func (h *Handler) handleReconnect(client types.PlayerClient, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.ReconnectPayload](msg)
	if err != nil {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	// 验证重连令牌
	if !h.sessions.CanReconnect(payload.Token, payload.PlayerID) {
		client.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeUnknown, "重连令牌无效或已过期"))
		return
	}

	playerSession := h.sessions.GetSession(payload.PlayerID)
	if playerSession == nil {
		client.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeUnknown, "会话不存在"))
		return
	}

	// 丢弃连接时创建的临时会话，换绑到老身份
	h.sessions.DeleteSession(client.GetIdentity())
	client.SetIdentity(playerSession.PlayerID)
	client.SetRating(playerSession.Rating)
	client.SetName(playerSession.PlayerName)
	h.server.BindIdentity(playerSession.PlayerID, client)
	h.sessions.SetOnline(playerSession.PlayerID)

	reconnected := protocol.ReconnectedPayload{
		PlayerID:   playerSession.PlayerID,
		PlayerName: playerSession.PlayerName,
	}

	// 回到断线前所在的房间
	if roomCode := h.sessions.RoomOf(playerSession.PlayerID); roomCode != "" {
		if r, _, err := h.rooms.JoinRoom(client, playerSession.PlayerID, playerSession.Rating, roomCode, ""); err == nil {
			reconnected.RoomCode = roomCode
			reconnected.Room = r.Info()
		} else {
			log.Printf("重连回房间 %s 失败: %v", roomCode, err)
			h.sessions.SetRoom(playerSession.PlayerID, "")
		}
	}

	client.SendMessage(protocol.MustNewMessage(protocol.MsgReconnected, reconnected))
	log.Printf("🔄 玩家 %s (%s) 重连成功", playerSession.PlayerName, playerSession.PlayerID)
}

// handleRequestSync 回发完整房间快照
func (h *Handler) handleRequestSync(client types.PlayerClient) {
	code := client.GetRoom()
	if code == "" {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeNotInRoom))
		return
	}
	r, ok := h.rooms.Get(code)
	if !ok {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeRoomNotFound))
		return
	}

	client.SendMessage(protocol.MustNewMessage(protocol.MsgRoomUpdate, &protocol.RoomUpdatePayload{
		Room: *r.Info(),
	}))
}
