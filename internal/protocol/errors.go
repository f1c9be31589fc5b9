package protocol

// 错误码
const (
	ErrCodeUnknown    = 1000
	ErrCodeInvalidMsg = 1001

	ErrCodeRoomNotFound = 2001
	ErrCodeRoomFull     = 2002
	ErrCodeNotInRoom    = 2003
	ErrCodeRoomFinished = 2004 // 对局已结束
	ErrCodeAlreadySeat  = 2005 // 已占用其他对局座位

	ErrCodeGameNotStart = 3001
	ErrCodeNotYourTurn  = 3002
	ErrCodeIllegalMove  = 3003
	ErrCodeSpectator    = 3004 // 观战者不能走子
	ErrCodeNoDrawOffer  = 3005 // 没有待处理的提和
	ErrCodeUndoDenied   = 3006 // 仅人机房间可悔棋
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:      "未知错误",
	ErrCodeInvalidMsg:   "无效的消息格式",
	ErrCodeRoomNotFound: "房间不存在",
	ErrCodeRoomFull:     "房间已满",
	ErrCodeNotInRoom:    "您不在房间中",
	ErrCodeRoomFinished: "对局已结束",
	ErrCodeAlreadySeat:  "您已在其他对局中",
	ErrCodeGameNotStart: "对局尚未开始",
	ErrCodeNotYourTurn:  "还没轮到您",
	ErrCodeIllegalMove:  "不合法的着法",
	ErrCodeSpectator:    "观战者不能执行该操作",
	ErrCodeNoDrawOffer:  "当前没有提和请求",
	ErrCodeUndoDenied:   "只有人机房间才能悔棋",
}
