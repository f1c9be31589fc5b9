package handler

import (
	"context"
	"log"
	"time"

	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

const (
	queryTimeout        = 3 * time.Second
	defaultLeaderboard  = 10
	maxLeaderboard      = 100
	defaultHistoryGames = 20
	maxHistoryGames     = 50
)

// handleGetLeaderboard 处理排行榜查询
func (h *Handler) handleGetLeaderboard(client types.PlayerClient, msg *protocol.Message) {
	limit := defaultLeaderboard
	if payload, err := protocol.ParsePayload[protocol.GetLeaderboardPayload](msg); err == nil && payload.Limit > 0 {
		limit = min(payload.Limit, maxLeaderboard)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	entries, err := h.store.TopRatings(ctx, limit)
	if err != nil {
		log.Printf("⚠️ 查询排行榜失败: %v", err)
		client.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeUnknown, "排行榜暂不可用"))
		return
	}

	resp := protocol.LeaderboardPayload{}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, protocol.LeaderboardEntry{
			Rank:     e.Rank,
			Identity: e.Identity,
			Name:     e.Name,
			Rating:   e.Rating,
		})
	}
	if rank, err := h.store.RatingRank(ctx, client.GetIdentity()); err == nil {
		resp.SelfRank = rank
	}

	client.SendMessage(protocol.MustNewMessage(protocol.MsgLeaderboard, resp))
}

// handleGetHistory 处理个人对局历史查询
func (h *Handler) handleGetHistory(client types.PlayerClient, msg *protocol.Message) {
	limit := defaultHistoryGames
	if payload, err := protocol.ParsePayload[protocol.GetHistoryPayload](msg); err == nil && payload.Limit > 0 {
		limit = min(payload.Limit, maxHistoryGames)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	records, err := h.store.PlayerFinishedGames(ctx, client.GetIdentity(), limit)
	if err != nil {
		log.Printf("⚠️ 查询对局历史失败 (%s): %v", client.GetIdentity(), err)
		client.SendMessage(protocol.NewErrorMessageWithText(protocol.ErrCodeUnknown, "对局历史暂不可用"))
		return
	}

	resp := protocol.HistoryPayload{}
	for _, rec := range records {
		resp.Games = append(resp.Games, protocol.HistoryGame{
			RoomCode:  rec.RoomCode,
			WhiteName: rec.WhiteName,
			BlackName: rec.BlackName,
			Reason:    rec.Reason,
			Winner:    rec.Winner,
			Moves:     len(rec.MovesUCI),
			EndedAt:   rec.EndedAt.UnixMilli(),
		})
	}

	client.SendMessage(protocol.MustNewMessage(protocol.MsgHistory, resp))
}
