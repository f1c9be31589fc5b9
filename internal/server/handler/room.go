package handler

import (
	"chessarena/internal/game/room"
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

// handleCreateRoom 处理创建房间请求
func (h *Handler) handleCreateRoom(client types.PlayerClient, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.CreateRoomPayload](msg)
	if err != nil {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	// 先退出当前房间，避免一人占多个座位
	if client.GetRoom() != "" {
		h.rooms.LeaveRoom(client)
	}
	h.queue.Dequeue(client.GetIdentity())

	r, err := h.rooms.CreateRoom(client, client.GetIdentity(), client.GetRating(), room.Settings{
		Minutes:    payload.Minutes,
		ColorPref:  payload.ColorPref,
		VersusBot:  payload.VersusBot,
		Difficulty: payload.Difficulty,
	})
	if err != nil {
		h.replyErr(client, err)
		return
	}

	h.sessions.SetRoom(client.GetIdentity(), r.Code)

	resp := protocol.RoomCreatedPayload{
		RoomCode: r.Code,
		Room:     *r.Info(),
	}
	for _, seat := range resp.Room.Seats {
		if seat.SeatID == client.GetID() {
			resp.Seat = seat
			break
		}
	}
	client.SendMessage(protocol.MustNewMessage(protocol.MsgRoomCreated, resp))
}

// handleJoinRoom 处理加入房间请求
func (h *Handler) handleJoinRoom(client types.PlayerClient, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.JoinRoomPayload](msg)
	if err != nil || payload.RoomCode == "" {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	if client.GetRoom() != "" && client.GetRoom() != payload.RoomCode {
		h.rooms.LeaveRoom(client)
	}
	h.queue.Dequeue(client.GetIdentity())

	r, seat, err := h.rooms.JoinRoom(client, client.GetIdentity(), client.GetRating(), payload.RoomCode, payload.SeatHint)
	if err != nil {
		h.replyErr(client, err)
		return
	}

	h.sessions.SetRoom(client.GetIdentity(), r.Code)

	resp := protocol.RoomJoinedPayload{
		RoomCode: r.Code,
		Room:     *r.Info(),
	}
	if seat != nil {
		resp.Seat = room.SeatInfoOf(seat)
	}
	client.SendMessage(protocol.MustNewMessage(protocol.MsgRoomJoined, resp))
}

// handleLeaveRoom 处理离开房间请求
func (h *Handler) handleLeaveRoom(client types.PlayerClient) {
	if err := h.rooms.LeaveRoom(client); err != nil {
		h.replyErr(client, err)
		return
	}
	h.sessions.SetRoom(client.GetIdentity(), "")
}
