package handler

import (
	"log"
	"time"

	"chessarena/internal/game/match"
	"chessarena/internal/game/room"
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

// handleQuickMatch 处理快速匹配请求
func (h *Handler) handleQuickMatch(client types.PlayerClient, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.QuickMatchPayload](msg)
	if err != nil {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	minutes := payload.Minutes
	if minutes <= 0 {
		minutes = h.cfg.Game.DefaultMinutes
	}

	// 先退出当前房间，避免匹配成功后一人占两个对局
	if client.GetRoom() != "" {
		h.rooms.LeaveRoom(client)
		h.sessions.SetRoom(client.GetIdentity(), "")
	}

	ticket := &match.Ticket{
		Identity:   client.GetIdentity(),
		Client:     client,
		Rating:     client.GetRating(),
		Minutes:    minutes,
		EnqueuedAt: time.Now(),
	}

	opponent := h.queue.Enqueue(ticket)
	if opponent == nil {
		// 暂无对手，入队等待
		client.SendMessage(protocol.MustNewMessage(protocol.MsgQueued, protocol.QueuedPayload{
			Minutes: minutes,
			Rating:  ticket.Rating,
		}))
		return
	}

	h.pairUp(opponent, ticket)
}

// handleCancelMatch 处理取消匹配请求
func (h *Handler) handleCancelMatch(client types.PlayerClient) {
	h.queue.Dequeue(client.GetIdentity())
	client.SendMessage(protocol.MustNewMessage(protocol.MsgDequeued, nil))
}

// pairUp 为匹配成功的两张票建房：先到者执先创建，后到者加入
func (h *Handler) pairUp(first, second *match.Ticket) {
	r, err := h.rooms.CreateRoom(first.Client, first.Identity, first.Rating, room.Settings{
		Minutes: first.Minutes,
	})
	if err != nil {
		// 建房失败通知双方，不做静默重新入队
		log.Printf("⚠️ 匹配建房失败 (%s vs %s): %v", first.Identity, second.Identity, err)
		failed := protocol.NewErrorMessageWithText(protocol.ErrCodeUnknown, "匹配建房失败，请重新匹配")
		first.Client.SendMessage(failed)
		second.Client.SendMessage(failed)
		return
	}

	if _, _, err := h.rooms.JoinRoom(second.Client, second.Identity, second.Rating, r.Code, ""); err != nil {
		log.Printf("⚠️ 匹配入房失败 (%s → %s): %v", second.Identity, r.Code, err)
		h.rooms.LeaveRoom(first.Client)
		failed := protocol.NewErrorMessageWithText(protocol.ErrCodeUnknown, "匹配建房失败，请重新匹配")
		first.Client.SendMessage(failed)
		second.Client.SendMessage(failed)
		return
	}

	h.sessions.SetRoom(first.Identity, r.Code)
	h.sessions.SetRoom(second.Identity, r.Code)

	found := protocol.MustNewMessage(protocol.MsgMatchFound, protocol.MatchFoundPayload{RoomCode: r.Code})
	first.Client.SendMessage(found)
	second.Client.SendMessage(found)
	log.Printf("🤝 匹配成功: %s vs %s → 房间 %s", first.Identity, second.Identity, r.Code)
}
