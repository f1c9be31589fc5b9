package handler

import (
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

// handleMove 处理走子请求
func (h *Handler) handleMove(client types.PlayerClient, msg *protocol.Message) {
	payload, err := protocol.ParsePayload[protocol.MovePayload](msg)
	if err != nil || payload.Move == "" {
		client.SendMessage(protocol.NewErrorMessage(protocol.ErrCodeInvalidMsg))
		return
	}

	h.replyErr(client, h.rooms.ApplyMove(client, payload.Move))
}
