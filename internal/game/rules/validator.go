package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Color 棋方
type Color string

const (
	White Color = "w"
	Black Color = "b"
)

// Other 返回对方棋色
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// Ending 终局分类
type Ending int

const (
	EndNone Ending = iota
	EndCheckmate
	EndStalemate
	EndThreefold
	EndFiftyMove
	EndInsufficient
	EndOtherDraw // 五次重复 / 75 回合等自动和棋
)

// String 返回终局原因的协议标识
func (e Ending) String() string {
	switch e {
	case EndCheckmate:
		return "checkmate"
	case EndStalemate:
		return "stalemate"
	case EndThreefold:
		return "threefold"
	case EndFiftyMove:
		return "fifty_move"
	case EndInsufficient:
		return "insufficient_material"
	case EndOtherDraw:
		return "draw"
	default:
		return "none"
	}
}

// IsDraw 是否为和棋类终局
func (e Ending) IsDraw() bool {
	switch e {
	case EndStalemate, EndThreefold, EndFiftyMove, EndInsufficient, EndOtherDraw:
		return true
	}
	return false
}

// Outcome 终局分类结果；Winner 为空表示和棋或未结束
type Outcome struct {
	Ending Ending
	Winner Color
}

// State 一盘棋的当前局面，由 UCI 着法序列唯一确定
type State struct {
	game     *nchess.Game
	movesUCI []string
	movesSAN []string
}

// NewState 返回初始局面
func NewState() *State {
	return &State{game: nchess.NewGame()}
}

// Restore 从 UCI 着法序列重建局面
// 始终从初始局面重放，避免 FEN 与着法列表双重应用
func Restore(movesUCI []string) (*State, error) {
	s := NewState()
	for _, mv := range movesUCI {
		if _, _, err := s.Apply(mv); err != nil {
			return nil, fmt.Errorf("重放着法 %q 失败: %w", mv, err)
		}
	}
	return s, nil
}

// Turn 当前轮到的棋方
func (s *State) Turn() Color {
	if s.game.Position().Turn() == nchess.White {
		return White
	}
	return Black
}

// FEN 当前局面的 FEN 串
func (s *State) FEN() string {
	return s.game.FEN()
}

// MovesUCI 已应用的 UCI 着法序列（副本）
func (s *State) MovesUCI() []string {
	return append([]string(nil), s.movesUCI...)
}

// MovesSAN 已应用的 SAN 着法序列（副本）
func (s *State) MovesSAN() []string {
	return append([]string(nil), s.movesSAN...)
}

// LastSAN 最后一步的 SAN 记法，无着法时为空
func (s *State) LastSAN() string {
	if len(s.movesSAN) == 0 {
		return ""
	}
	return s.movesSAN[len(s.movesSAN)-1]
}

// Apply 应用一步着法，UCI 优先，SAN 兜底
func (s *State) Apply(move string) (uci, san string, err error) {
	raw := strings.TrimSpace(move)
	if raw == "" {
		return "", "", fmt.Errorf("空着法")
	}

	pos := s.game.Position()
	notationUCI := nchess.UCINotation{}
	if mv, derr := notationUCI.Decode(pos, strings.ToLower(raw)); derr == nil {
		if merr := s.game.Move(mv, nil); merr != nil {
			return "", "", merr
		}
		uci = strings.ToLower(raw)
		san = nchess.AlgebraicNotation{}.Encode(pos, mv)
	} else {
		if perr := s.game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); perr != nil {
			return "", "", perr
		}
		last := s.lastMove()
		if last == nil {
			return "", "", fmt.Errorf("着法未被记录")
		}
		uci = last.String()
		san = nchess.AlgebraicNotation{}.Encode(pos, last)
	}

	s.movesUCI = append(s.movesUCI, uci)
	s.movesSAN = append(s.movesSAN, san)
	return uci, san, nil
}

// Legal 当前局面的全部合法着法（UCI）
func (s *State) Legal() []string {
	valid := s.game.ValidMoves()
	moves := make([]string, 0, len(valid))
	for i := range valid {
		moves = append(moves, valid[i].String())
	}
	return moves
}

// Classify 终局分类
// 三次重复与 50 回合规则由服务端代为申请和棋，不要求客户端声明
func (s *State) Classify() Outcome {
	switch s.game.Outcome() {
	case nchess.WhiteWon:
		return Outcome{Ending: s.endingFromMethod(), Winner: White}
	case nchess.BlackWon:
		return Outcome{Ending: s.endingFromMethod(), Winner: Black}
	case nchess.Draw:
		return Outcome{Ending: s.endingFromMethod()}
	}

	for _, m := range s.game.EligibleDraws() {
		switch m {
		case nchess.ThreefoldRepetition:
			_ = s.game.Draw(m)
			return Outcome{Ending: EndThreefold}
		case nchess.FiftyMoveRule:
			_ = s.game.Draw(m)
			return Outcome{Ending: EndFiftyMove}
		}
	}

	// 兜底：库未给出结论但无合法回应时，按最后一步是否将军判断
	if len(s.game.ValidMoves()) == 0 {
		last := s.LastSAN()
		if strings.ContainsAny(last, "#+") {
			return Outcome{Ending: EndCheckmate, Winner: s.Turn().Other()}
		}
		return Outcome{Ending: EndStalemate}
	}

	return Outcome{Ending: EndNone}
}

// endingFromMethod 将库的终局方式映射到协议分类
func (s *State) endingFromMethod() Ending {
	switch s.game.Method() {
	case nchess.Checkmate:
		return EndCheckmate
	case nchess.Stalemate:
		return EndStalemate
	case nchess.ThreefoldRepetition:
		return EndThreefold
	case nchess.FiftyMoveRule:
		return EndFiftyMove
	case nchess.InsufficientMaterial:
		return EndInsufficient
	default:
		return EndOtherDraw
	}
}

func (s *State) lastMove() *nchess.Move {
	moves := s.game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

// MaterialBalance 以 FEN 计算白方减黑方的子力差（兵=1 马象=3 车=5 后=9）
// 供本地走子源做简单贪心评估用，不依赖引擎
func MaterialBalance(fen string) int {
	board := fen
	if idx := strings.IndexByte(fen, ' '); idx > 0 {
		board = fen[:idx]
	}

	values := map[rune]int{'p': 1, 'n': 3, 'b': 3, 'r': 5, 'q': 9}
	balance := 0
	for _, r := range board {
		lower := r | 0x20
		v, ok := values[lower]
		if !ok {
			continue
		}
		if r == lower {
			balance -= v // 小写为黑方
		} else {
			balance += v
		}
	}
	return balance
}
