package protocol

import "encoding/json"

// Message 基础消息结构
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessageType 消息类型
type MessageType string

// 客户端 → 服务端 消息类型
const (
	// 连接操作
	MsgReconnect MessageType = "reconnect" // 断线重连
	MsgPing      MessageType = "ping"      // 心跳 ping

	// 房间操作
	MsgCreateRoom  MessageType = "create_room"  // 创建房间
	MsgJoinRoom    MessageType = "join_room"    // 加入房间（含重连重占座位）
	MsgLeaveRoom   MessageType = "leave_room"   // 离开房间
	MsgRequestSync MessageType = "request_sync" // 请求完整房间快照

	// 匹配操作
	MsgQuickMatch  MessageType = "quick_match"  // 按积分快速匹配
	MsgCancelMatch MessageType = "cancel_match" // 取消匹配

	// 对局操作
	MsgMove        MessageType = "move"         // 走子
	MsgOfferDraw   MessageType = "offer_draw"   // 提和
	MsgAcceptDraw  MessageType = "accept_draw"  // 接受提和
	MsgDeclineDraw MessageType = "decline_draw" // 拒绝提和
	MsgResign      MessageType = "resign"       // 认输
	MsgUndo        MessageType = "undo"         // 悔棋（仅人机房间）

	// 再来一局
	MsgPlayAgain        MessageType = "play_again"         // 发起再来一局
	MsgAcceptPlayAgain  MessageType = "accept_play_again"  // 接受再来一局
	MsgDeclinePlayAgain MessageType = "decline_play_again" // 拒绝再来一局

	// 信息查询
	MsgGetLeaderboard MessageType = "get_leaderboard" // 查询积分排行榜
	MsgGetHistory     MessageType = "get_history"     // 查询个人对局历史
)

// 服务端 → 客户端 消息类型
const (
	// 连接相关
	MsgConnected     MessageType = "connected"      // 连接成功
	MsgReconnected   MessageType = "reconnected"    // 重连成功
	MsgPong          MessageType = "pong"           // 心跳 pong
	MsgPlayerOffline MessageType = "player_offline" // 对手掉线通知
	MsgPlayerOnline  MessageType = "player_online"  // 对手重连通知

	// 房间相关
	MsgRoomCreated  MessageType = "room_created"  // 房间创建成功
	MsgRoomJoined   MessageType = "room_joined"   // 加入房间成功
	MsgRoomUpdate   MessageType = "room_update"   // 房间完整快照
	MsgOpponentMove MessageType = "opponent_move" // 增量走子通知
	MsgGameOver     MessageType = "game_over"     // 对局结束
	MsgDrawOffered  MessageType = "draw_offered"  // 对手提和
	MsgDrawDeclined MessageType = "draw_declined" // 对手拒绝提和
	MsgRatingChange MessageType = "rating_change" // 积分变动

	// 再来一局
	MsgRematchOffered  MessageType = "rematch_offered"  // 对手发起再来一局
	MsgRematchDeclined MessageType = "rematch_declined" // 对手拒绝
	MsgRematchStarted  MessageType = "rematch_started"  // 新房间已建立

	// 匹配相关
	MsgQueued     MessageType = "queued"      // 已入队等待
	MsgMatchFound MessageType = "match_found" // 匹配成功
	MsgDequeued   MessageType = "dequeued"    // 已取消匹配

	// 信息查询
	MsgLeaderboard MessageType = "leaderboard" // 排行榜数据
	MsgHistory     MessageType = "history"     // 对局历史数据

	// 错误
	MsgError MessageType = "error" // 错误消息
)
