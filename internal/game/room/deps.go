package room

import (
	"context"
	"time"

	"chessarena/internal/protocol"
)

// Persistence 房间的外部持久化协作方
// 所有调用都是尽力而为：失败记录日志、不回滚内存状态
type Persistence interface {
	// 房间快照（按房间号 upsert）
	SaveRoomSnapshot(ctx context.Context, data *SnapshotData) error
	DeleteRoomSnapshot(ctx context.Context, code string) error

	// 终局存档（追加）
	AppendFinishedGame(ctx context.Context, rec *FinishedGameRecord) error

	// 单一活跃房间占位（test-and-set）
	ReserveActiveRoom(ctx context.Context, identity, code string) (bool, error)
	ReleaseActiveRoom(ctx context.Context, identity, code string) error

	// 积分
	GetRating(ctx context.Context, identity string) (int, error)
	ApplyRatingDelta(ctx context.Context, identity, name string, delta int) (int, error)
}

// Notifier 按身份推送消息（一个身份可能有多个连接）
type Notifier interface {
	NotifyIdentity(identity string, msg *protocol.Message)
}

// SnapshotData 房间快照（用于 Redis 序列化）
type SnapshotData struct {
	Code      string         `json:"code"`
	Phase     string         `json:"phase"`
	Seats     []SeatData     `json:"seats"`
	WhiteMs   int64          `json:"white_ms"`
	BlackMs   int64          `json:"black_ms"`
	Running   string         `json:"running"`
	MovesUCI  []string       `json:"moves_uci"`
	MovesSAN  []string       `json:"moves_san"`
	FEN       string         `json:"fen"`
	DrawOffer string         `json:"draw_offer,omitempty"`
	Finished  *FinishedData  `json:"finished,omitempty"`
	Minutes   int            `json:"minutes"`
	CreatedAt int64          `json:"created_at"`
}

// SeatData 座位快照
type SeatData struct {
	SeatID    string `json:"seat_id"`
	Identity  string `json:"identity,omitempty"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	Connected bool   `json:"connected"`
	Automated bool   `json:"automated,omitempty"`
	Rating    int    `json:"rating,omitempty"`
}

// FinishedData 终局快照
type FinishedData struct {
	Reason string `json:"reason"`
	Winner string `json:"winner,omitempty"`
	Loser  string `json:"loser,omitempty"`
	At     int64  `json:"at"`
}

// FinishedGameRecord 终局存档记录
type FinishedGameRecord struct {
	RoomCode  string    `json:"room_code"`
	WhiteID   string    `json:"white_id"`
	WhiteName string    `json:"white_name"`
	BlackID   string    `json:"black_id"`
	BlackName string    `json:"black_name"`
	Reason    string    `json:"reason"`
	Winner    string    `json:"winner,omitempty"` // w / b / 空 = 和棋
	MovesUCI  []string  `json:"moves_uci"`
	MovesSAN  []string  `json:"moves_san"`
	FEN       string    `json:"fen"`
	Minutes   int       `json:"minutes"`
	WhiteMs   int64     `json:"white_ms"`
	BlackMs   int64     `json:"black_ms"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}
