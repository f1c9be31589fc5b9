package protocol

// --- 客户端请求 Payloads ---

// ReconnectPayload 断线重连请求
type ReconnectPayload struct {
	Token    string `json:"token"`     // 重连令牌
	PlayerID string `json:"player_id"` // 玩家 ID
}

// PingPayload 心跳请求
type PingPayload struct {
	Timestamp int64 `json:"timestamp"` // 客户端时间戳（毫秒）
}

// CreateRoomPayload 创建房间请求
type CreateRoomPayload struct {
	Minutes    int    `json:"minutes"`               // 每方时长（分钟）
	ColorPref  string `json:"color_pref,omitempty"`  // w / b / 空 = 随机
	VersusBot  bool   `json:"versus_bot,omitempty"`  // 是否人机对局
	Difficulty int    `json:"difficulty,omitempty"`  // 人机难度 1-3
}

// JoinRoomPayload 加入房间请求
type JoinRoomPayload struct {
	RoomCode string `json:"room_code"`
	SeatHint string `json:"seat_hint,omitempty"` // 断线前的座位 ID
}

// MovePayload 走子请求
type MovePayload struct {
	Move string `json:"move"` // UCI 优先，SAN 兜底
}

// QuickMatchPayload 快速匹配请求
type QuickMatchPayload struct {
	Minutes   int    `json:"minutes"`
	ColorPref string `json:"color_pref,omitempty"`
}

// --- 服务端响应 Payloads ---

// ConnectedPayload 连接成功响应
type ConnectedPayload struct {
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	ReconnectToken string `json:"reconnect_token"` // 重连令牌
	Rating         int    `json:"rating"`
}

// ReconnectedPayload 重连成功响应
type ReconnectedPayload struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	RoomCode   string    `json:"room_code,omitempty"` // 如果在房间中
	Room       *RoomInfo `json:"room,omitempty"`      // 如果在对局中
}

// PongPayload 心跳响应
type PongPayload struct {
	ClientTimestamp int64 `json:"client_timestamp"` // 客户端发送的时间戳
	ServerTimestamp int64 `json:"server_timestamp"` // 服务器时间戳（毫秒）
}

// SeatInfo 座位信息
type SeatInfo struct {
	SeatID    string `json:"seat_id"`
	Identity  string `json:"identity,omitempty"` // 游客为空
	Name      string `json:"name"`
	Color     string `json:"color"` // w / b / spectator
	Connected bool   `json:"connected"`
	Automated bool   `json:"automated,omitempty"`
	Rating    int    `json:"rating,omitempty"`
}

// ClockInfo 棋钟信息
type ClockInfo struct {
	WhiteMs   int64  `json:"white_ms"` // 白方剩余（毫秒）
	BlackMs   int64  `json:"black_ms"` // 黑方剩余（毫秒）
	Running   string `json:"running"`  // w / b / 空 = 停表
	UpdatedAt int64  `json:"updated_at"`
}

// MoveInfo 走子记录
type MoveInfo struct {
	Index int    `json:"index"`
	UCI   string `json:"uci"`
	SAN   string `json:"san"`
	Color string `json:"color"`
}

// FinishedInfo 终局记录
type FinishedInfo struct {
	Reason string `json:"reason"`           // resign/timeout/checkmate/…
	Winner string `json:"winner,omitempty"` // w / b / 空 = 和棋
	Loser  string `json:"loser,omitempty"`
	At     int64  `json:"at"`
}

// RoomInfo 房间完整快照
type RoomInfo struct {
	RoomCode  string        `json:"room_code"`
	Phase     string        `json:"phase"`
	Seats     []SeatInfo    `json:"seats"`
	Clock     ClockInfo     `json:"clock"`
	Moves     []MoveInfo    `json:"moves"`
	FEN       string        `json:"fen"`
	Turn      string        `json:"turn"`
	DrawOffer string        `json:"draw_offer,omitempty"` // 提和方颜色
	Finished  *FinishedInfo `json:"finished,omitempty"`
	Minutes   int           `json:"minutes"`
}

// RoomCreatedPayload 房间创建成功响应
type RoomCreatedPayload struct {
	RoomCode string   `json:"room_code"`
	Seat     SeatInfo `json:"seat"`
	Room     RoomInfo `json:"room"`
}

// RoomJoinedPayload 加入房间成功响应
type RoomJoinedPayload struct {
	RoomCode string   `json:"room_code"`
	Seat     SeatInfo `json:"seat"`
	Room     RoomInfo `json:"room"`
}

// RoomUpdatePayload 房间快照广播
type RoomUpdatePayload struct {
	Room RoomInfo `json:"room"`
}

// OpponentMovePayload 增量走子通知
type OpponentMovePayload struct {
	RoomCode string    `json:"room_code"`
	Move     MoveInfo  `json:"move"`
	Clock    ClockInfo `json:"clock"`
	FEN      string    `json:"fen"`
	Turn     string    `json:"turn"`
}

// GameOverPayload 对局结束通知
type GameOverPayload struct {
	RoomCode string       `json:"room_code"`
	Finished FinishedInfo `json:"finished"`
}

// DrawOfferedPayload 提和通知
type DrawOfferedPayload struct {
	RoomCode string `json:"room_code"`
	ByColor  string `json:"by_color"`
}

// RatingChangePayload 积分变动通知
type RatingChangePayload struct {
	Identity  string `json:"identity"`
	OldRating int    `json:"old_rating"`
	NewRating int    `json:"new_rating"`
}

// RematchOfferedPayload 对手发起再来一局
type RematchOfferedPayload struct {
	RoomCode string `json:"room_code"`
	BySeatID string `json:"by_seat_id"`
}

// RematchStartedPayload 再来一局已开始（新房间，沿用时长与颜色）
type RematchStartedPayload struct {
	OldRoomCode string   `json:"old_room_code"`
	RoomCode    string   `json:"room_code"` // 新房间号
	Room        RoomInfo `json:"room"`
}

// QueuedPayload 匹配入队响应
type QueuedPayload struct {
	Minutes int `json:"minutes"`
	Rating  int `json:"rating"`
}

// MatchFoundPayload 匹配成功响应
type MatchFoundPayload struct {
	RoomCode string `json:"room_code"`
}

// PlayerOfflinePayload 对手掉线通知
type PlayerOfflinePayload struct {
	SeatID  string `json:"seat_id"`
	Color   string `json:"color"`
	Timeout int    `json:"timeout"` // 等待重连超时（秒）
}

// PlayerOnlinePayload 对手重连通知
type PlayerOnlinePayload struct {
	SeatID string `json:"seat_id"`
	Color  string `json:"color"`
}

// GetLeaderboardPayload 排行榜查询请求
type GetLeaderboardPayload struct {
	Limit int `json:"limit,omitempty"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Rating   int    `json:"rating"`
}

// LeaderboardPayload 排行榜响应
type LeaderboardPayload struct {
	Entries  []LeaderboardEntry `json:"entries"`
	SelfRank int                `json:"self_rank,omitempty"` // 查询者名次，未上榜为 0
}

// GetHistoryPayload 对局历史查询请求
type GetHistoryPayload struct {
	Limit int `json:"limit,omitempty"`
}

// HistoryGame 对局历史条目
type HistoryGame struct {
	RoomCode  string `json:"room_code"`
	WhiteName string `json:"white_name"`
	BlackName string `json:"black_name"`
	Reason    string `json:"reason"`
	Winner    string `json:"winner,omitempty"`
	Moves     int    `json:"moves"`
	EndedAt   int64  `json:"ended_at"`
}

// HistoryPayload 对局历史响应
type HistoryPayload struct {
	Games []HistoryGame `json:"games"`
}

// ErrorPayload 错误消息
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
