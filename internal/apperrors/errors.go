package apperrors

import (
	"chessarena/internal/protocol"
)

// GameError 对局错误（房间与匹配共享）
type GameError struct {
	Code    int
	Message string
}

func (e *GameError) Error() string {
	return e.Message
}

// 预定义错误
var (
	ErrRoomNotFound = &GameError{Code: protocol.ErrCodeRoomNotFound, Message: "房间不存在"}
	ErrRoomFull     = &GameError{Code: protocol.ErrCodeRoomFull, Message: "房间已满"}
	ErrNotInRoom    = &GameError{Code: protocol.ErrCodeNotInRoom, Message: "您不在房间中"}
	ErrRoomFinished = &GameError{Code: protocol.ErrCodeRoomFinished, Message: "对局已结束"}
	ErrAlreadySeat  = &GameError{Code: protocol.ErrCodeAlreadySeat, Message: "您已在其他对局中"}
	ErrGameNotStart = &GameError{Code: protocol.ErrCodeGameNotStart, Message: "对局尚未开始"}
	ErrNotYourTurn  = &GameError{Code: protocol.ErrCodeNotYourTurn, Message: "还没轮到您"}
	ErrIllegalMove  = &GameError{Code: protocol.ErrCodeIllegalMove, Message: "不合法的着法"}
	ErrSpectator    = &GameError{Code: protocol.ErrCodeSpectator, Message: "观战者不能执行该操作"}
	ErrNoDrawOffer  = &GameError{Code: protocol.ErrCodeNoDrawOffer, Message: "当前没有提和请求"}
	ErrUndoDenied   = &GameError{Code: protocol.ErrCodeUndoDenied, Message: "只有人机房间才能悔棋"}
)
