package room

import (
	"sync"
	"time"

	"chessarena/internal/game/rules"
	"chessarena/internal/protocol"
	"chessarena/internal/types"
)

const (
	roomCodeLength = 6            // 房间号长度
	roomCodeChars  = "0123456789" // 房间号字符集
)

// Phase 房间阶段
type Phase int

const (
	PhaseCreated Phase = iota
	PhaseWaiting
	PhaseActive
	PhasePaused
	PhaseFinished // 终态
)

// String 返回阶段的协议标识
func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseWaiting:
		return "waiting"
	case PhaseActive:
		return "active"
	case PhasePaused:
		return "paused"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// 终局原因
const (
	ReasonResign           = "resign"
	ReasonTimeout          = "timeout"
	ReasonDrawAgreed       = "draw_agreed"
	ReasonFirstMoveTimeout = "first_move_timeout"
	ReasonDisconnected     = "opponent_disconnected"
	ReasonAbandoned        = "abandoned"
)

// Seat 房间中的一个座位：执子座位或观战座位
type Seat struct {
	ID             string              // 绑定当前连接
	Identity       string              // 持久身份，观战游客可为空
	Name           string              // 昵称
	Color          rules.Color         // w / b，空串表示观战
	Client         types.ClientInterface
	Connected      bool
	DisconnectedAt time.Time
	Automated      bool // 机器人座位
	Difficulty     int  // 机器人难度
	Rating         int
}

// IsSpectator 是否观战座位
func (s *Seat) IsSpectator() bool {
	return s.Color == ""
}

// Clock 棋钟：仅在 ACTIVE 且双方在线时走表
type Clock struct {
	WhiteLeft time.Duration
	BlackLeft time.Duration
	Running   rules.Color // 空串表示停表
	LastTick  time.Time
}

// remaining 返回指定棋方剩余时间，走表方计入自上次结算以来的消耗
func (c *Clock) remaining(color rules.Color, now time.Time) time.Duration {
	left := c.BlackLeft
	if color == rules.White {
		left = c.WhiteLeft
	}
	if c.Running == color {
		left -= now.Sub(c.LastTick)
	}
	if left < 0 {
		left = 0
	}
	return left
}

// charge 从指定棋方扣除时长，下限为零
func (c *Clock) charge(color rules.Color, d time.Duration) {
	if color == rules.White {
		c.WhiteLeft -= d
		if c.WhiteLeft < 0 {
			c.WhiteLeft = 0
		}
	} else {
		c.BlackLeft -= d
		if c.BlackLeft < 0 {
			c.BlackLeft = 0
		}
	}
}

// stop 停表：先结清走表方已消耗的时间
func (c *Clock) stop(now time.Time) {
	if c.Running == "" {
		return
	}
	c.charge(c.Running, now.Sub(c.LastTick))
	c.Running = ""
}

// start 为指定棋方开表
func (c *Clock) start(color rules.Color, now time.Time) {
	c.Running = color
	c.LastTick = now
}

// MoveRecord 走子记录，索引严格递增
type MoveRecord struct {
	Index int
	UCI   string
	SAN   string
	Color rules.Color
	At    time.Time
}

// Finished 终局记录；finalized 置位后房间不可再变（换局除外）
type Finished struct {
	Reason    string
	Winner    rules.Color // 空串 = 和棋
	Loser     rules.Color
	At        time.Time
	finalized bool
}

// Rematch 再来一局协商记录
type Rematch struct {
	ProposerSeatID string
	Accepted       map[string]bool // seatID 集合
}

// Settings 房间设置
type Settings struct {
	Minutes    int
	ColorPref  string // 创建者颜色偏好
	VersusBot  bool
	Difficulty int
}

// Room 对局房间聚合根
type Room struct {
	Code      string
	Phase     Phase
	Seats     []*Seat
	Clock     Clock
	Moves     []MoveRecord
	State     *rules.State
	DrawOffer rules.Color // 提和方颜色，空串表示无
	Rematch   *Rematch
	Finished  *Finished
	Settings  Settings
	CreatedAt time.Time

	everActive bool                   // 是否经历过第一次 ACTIVE
	timers     map[string]*time.Timer // 按类别键入的可取消定时器

	mu sync.Mutex
}

// newRoom 创建空房间
func newRoom(code string, settings Settings) *Room {
	return &Room{
		Code:      code,
		Phase:     PhaseCreated,
		State:     rules.NewState(),
		Settings:  settings,
		CreatedAt: time.Now(),
		timers:    make(map[string]*time.Timer),
		Clock: Clock{
			WhiteLeft: time.Duration(settings.Minutes) * time.Minute,
			BlackLeft: time.Duration(settings.Minutes) * time.Minute,
		},
	}
}

// finalizedLocked 终局守卫；必须持有 r.mu
func (r *Room) finalizedLocked() bool {
	return r.Finished != nil && r.Finished.finalized
}

// seatByID 按座位 ID 查找；必须持有 r.mu
func (r *Room) seatByID(seatID string) *Seat {
	for _, s := range r.Seats {
		if s.ID == seatID {
			return s
		}
	}
	return nil
}

// seatByIdentity 按持久身份查找；必须持有 r.mu
func (r *Room) seatByIdentity(identity string) *Seat {
	if identity == "" {
		return nil
	}
	for _, s := range r.Seats {
		if s.Identity == identity {
			return s
		}
	}
	return nil
}

// seatByColor 按棋色查找执子座位；必须持有 r.mu
func (r *Room) seatByColor(color rules.Color) *Seat {
	for _, s := range r.Seats {
		if s.Color == color {
			return s
		}
	}
	return nil
}

// coloredSeats 返回全部执子座位；必须持有 r.mu
func (r *Room) coloredSeats() []*Seat {
	var out []*Seat
	for _, s := range r.Seats {
		if !s.IsSpectator() {
			out = append(out, s)
		}
	}
	return out
}

// bothColoredConnected 双方执子座位是否同时在线；必须持有 r.mu
func (r *Room) bothColoredConnected() bool {
	w, b := r.seatByColor(rules.White), r.seatByColor(rules.Black)
	return w != nil && b != nil && w.Connected && b.Connected
}

// broadcastLocked 向房间内所有在线座位发送消息；必须持有 r.mu
// 发送是非阻塞的（客户端带缓冲发送队列），持锁广播安全
func (r *Room) broadcastLocked(msg *protocol.Message) {
	for _, s := range r.Seats {
		if s.Connected && s.Client != nil {
			s.Client.SendMessage(msg)
		}
	}
}

// broadcastExceptLocked 向除指定座位外的在线座位发送消息；必须持有 r.mu
func (r *Room) broadcastExceptLocked(seatID string, msg *protocol.Message) {
	for _, s := range r.Seats {
		if s.ID != seatID && s.Connected && s.Client != nil {
			s.Client.SendMessage(msg)
		}
	}
}

// Broadcast 向房间内所有在线座位发送消息
func (r *Room) Broadcast(msg *protocol.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastLocked(msg)
}
