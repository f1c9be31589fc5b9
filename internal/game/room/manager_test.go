package room

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chessarena/internal/apperrors"
	"chessarena/internal/config"
	"chessarena/internal/game/oracle"
	"chessarena/internal/game/rules"
	"chessarena/internal/protocol"
	"chessarena/internal/testutil"
)

// fakePersist 内存版持久化 + 通知，测试用
type fakePersist struct {
	mu            sync.Mutex
	snapshots     map[string]*SnapshotData
	finished      []*FinishedGameRecord
	reservations  map[string]string
	ratings       map[string]int
	notifications map[string][]*protocol.Message
}

func newFakePersist() *fakePersist {
	return &fakePersist{
		snapshots:     make(map[string]*SnapshotData),
		reservations:  make(map[string]string),
		ratings:       make(map[string]int),
		notifications: make(map[string][]*protocol.Message),
	}
}

func (p *fakePersist) SaveRoomSnapshot(_ context.Context, data *SnapshotData) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots[data.Code] = data
	return nil
}

func (p *fakePersist) DeleteRoomSnapshot(_ context.Context, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.snapshots, code)
	return nil
}

func (p *fakePersist) AppendFinishedGame(_ context.Context, rec *FinishedGameRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, rec)
	return nil
}

func (p *fakePersist) ReserveActiveRoom(_ context.Context, identity, code string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.reservations[identity]; ok && existing != code {
		return false, nil
	}
	p.reservations[identity] = code
	return true, nil
}

func (p *fakePersist) ReleaseActiveRoom(_ context.Context, identity, code string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reservations[identity] == code {
		delete(p.reservations, identity)
	}
	return nil
}

func (p *fakePersist) GetRating(_ context.Context, identity string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.ratings[identity]; ok {
		return r, nil
	}
	return 1200, nil
}

func (p *fakePersist) ApplyRatingDelta(_ context.Context, identity, _ string, delta int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.ratings[identity]
	if !ok {
		r = 1200
	}
	r += delta
	p.ratings[identity] = r
	return r, nil
}

func (p *fakePersist) NotifyIdentity(identity string, msg *protocol.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications[identity] = append(p.notifications[identity], msg)
}

func (p *fakePersist) finishedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.finished)
}

func (p *fakePersist) rating(identity string) (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.ratings[identity]
	return r, ok
}

func (p *fakePersist) reservation(identity string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	code, ok := p.reservations[identity]
	return code, ok
}

func testManager(t *testing.T) (*Manager, *fakePersist) {
	t.Helper()
	p := newFakePersist()
	m := NewManager(NewMemoryStore(), p, oracle.Local{}, p, config.Default())
	return m, p
}

// newActiveRoom 建一个双人已激活的房间
func newActiveRoom(t *testing.T, m *Manager) (*Room, *testutil.SimpleClient, *testutil.SimpleClient) {
	t.Helper()
	alice := &testutil.SimpleClient{ID: "conn-a", Name: "Alice"}
	bob := &testutil.SimpleClient{ID: "conn-b", Name: "Bob"}

	r, err := m.CreateRoom(alice, "id-alice", 1300, Settings{Minutes: 5, ColorPref: "w"})
	require.NoError(t, err)
	_, _, err = m.JoinRoom(bob, "id-bob", 1100, r.Code, "")
	require.NoError(t, err)

	r.mu.Lock()
	require.Equal(t, PhaseActive, r.Phase)
	r.mu.Unlock()
	return r, alice, bob
}

func roomPhase(r *Room) Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Phase
}

func moveCount(r *Room) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Moves)
}

func TestCreateRoom_Defaults(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	alice := &testutil.SimpleClient{ID: "conn-a", Name: "Alice"}

	r, err := m.CreateRoom(alice, "id-alice", 1200, Settings{})
	require.NoError(t, err)

	assert.Len(t, r.Code, roomCodeLength)
	assert.Equal(t, PhaseWaiting, roomPhase(r))
	assert.Equal(t, 5, r.Settings.Minutes)
	assert.Equal(t, r.Code, alice.RoomCode)

	r.mu.Lock()
	require.Len(t, r.Seats, 1)
	assert.Equal(t, 5*time.Minute, r.Clock.WhiteLeft)
	assert.False(t, r.Seats[0].IsSpectator())
	r.mu.Unlock()
}

func TestCreateRoom_SingleActiveRoom(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)

	_, err := m.CreateRoom(&testutil.SimpleClient{ID: "c1", Name: "Alice"}, "id-alice", 1200, Settings{})
	require.NoError(t, err)

	_, err = m.CreateRoom(&testutil.SimpleClient{ID: "c2", Name: "Alice"}, "id-alice", 1200, Settings{})
	assert.ErrorIs(t, err, apperrors.ErrAlreadySeat)
}

func TestCreateRoom_VersusBotActivates(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	alice := &testutil.SimpleClient{ID: "conn-a", Name: "Alice"}

	r, err := m.CreateRoom(alice, "id-alice", 1200, Settings{ColorPref: "b", VersusBot: true})
	require.NoError(t, err)
	assert.Equal(t, PhaseActive, roomPhase(r))

	r.mu.Lock()
	require.Len(t, r.Seats, 2)
	bot := r.seatByColor(rules.White)
	require.NotNil(t, bot)
	assert.True(t, bot.Automated)
	r.mu.Unlock()

	// 机器人执白先行
	require.Eventually(t, func() bool {
		return moveCount(r) >= 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestJoinRoom_NotFound(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	_, _, err := m.JoinRoom(&testutil.SimpleClient{ID: "c", Name: "Bob"}, "id-bob", 1200, "000000", "")
	assert.ErrorIs(t, err, apperrors.ErrRoomNotFound)
}

func TestJoinRoom_ActivatesAndStartsClock(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, _, _ := newActiveRoom(t, m)

	r.mu.Lock()
	assert.Equal(t, rules.White, r.Clock.Running)
	assert.True(t, r.bothColoredConnected())
	_, hasFirstMove := r.timers[timerFirstMove]
	_, hasExpiration := r.timers[timerExpiration]
	r.mu.Unlock()

	assert.True(t, hasFirstMove, "首步超时定时器应已布防")
	assert.False(t, hasExpiration, "激活后过期定时器应已取消")
}

func TestJoinRoom_ThirdPlayerSpectates(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, _, _ := newActiveRoom(t, m)

	carol := &testutil.SimpleClient{ID: "conn-c", Name: "Carol"}
	_, seat, err := m.JoinRoom(carol, "id-carol", 1200, r.Code, "")
	require.NoError(t, err)
	assert.True(t, seat.IsSpectator())

	// 观战者不能走子
	err = m.ApplyMove(carol, "e2e4")
	assert.ErrorIs(t, err, apperrors.ErrSpectator)
}

func TestJoinRoom_ReattachSameIdentity(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	m.HandleDisconnect(alice)
	assert.Equal(t, PhasePaused, roomPhase(r))

	alice2 := &testutil.SimpleClient{ID: "conn-a2", Name: "Alice"}
	_, seat, err := m.JoinRoom(alice2, "id-alice", 1300, r.Code, "")
	require.NoError(t, err)

	assert.Equal(t, "conn-a2", seat.ID)
	assert.Equal(t, rules.White, seat.Color)
	assert.Equal(t, PhaseActive, roomPhase(r))
}

func TestApplyMove_Pipeline(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	// 黑方先走会被拒
	err := m.ApplyMove(bob, "e7e5")
	assert.ErrorIs(t, err, apperrors.ErrNotYourTurn)

	require.NoError(t, m.ApplyMove(alice, "e2e4"))
	require.NoError(t, m.ApplyMove(bob, "e7e5"))

	r.mu.Lock()
	require.Len(t, r.Moves, 2)
	assert.Equal(t, 1, r.Moves[0].Index)
	assert.Equal(t, 2, r.Moves[1].Index)
	assert.Equal(t, "e4", r.Moves[0].SAN)
	assert.Equal(t, rules.White, r.State.Turn())
	assert.Equal(t, rules.White, r.Clock.Running)
	_, hasFirstMove := r.timers[timerFirstMove]
	r.mu.Unlock()

	assert.False(t, hasFirstMove, "首步落子后定时器应已取消")

	// 对手收到增量走子通知
	assert.NotNil(t, bob.LastOfType(protocol.MsgOpponentMove))

	err = m.ApplyMove(alice, "e1e8")
	assert.ErrorIs(t, err, apperrors.ErrIllegalMove)
}

func TestApplyMove_WithdrawsOwnDrawOffer(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	require.NoError(t, m.OfferDraw(alice))
	require.NoError(t, m.ApplyMove(alice, "e2e4"))

	r.mu.Lock()
	assert.Empty(t, r.DrawOffer)
	r.mu.Unlock()
}

func TestApplyMove_OpponentDrawOfferSurvives(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	// Bob 的提和不随 Alice 落子消失，落子后仍可接受
	require.NoError(t, m.OfferDraw(bob))
	require.NoError(t, m.ApplyMove(alice, "e2e4"))

	r.mu.Lock()
	assert.Equal(t, rules.Black, r.DrawOffer)
	r.mu.Unlock()

	require.NoError(t, m.AcceptDraw(alice))
	r.mu.Lock()
	assert.Equal(t, ReasonDrawAgreed, r.Finished.Reason)
	r.mu.Unlock()
}

func TestApplyMove_CheckmateFinishes(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	// 迅雷杀
	require.NoError(t, m.ApplyMove(alice, "f2f3"))
	require.NoError(t, m.ApplyMove(bob, "e7e5"))
	require.NoError(t, m.ApplyMove(alice, "g2g4"))
	require.NoError(t, m.ApplyMove(bob, "d8h4"))

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, "checkmate", r.Finished.Reason)
	assert.Equal(t, rules.Black, r.Finished.Winner)
	assert.Equal(t, PhaseFinished, r.Phase)
	r.mu.Unlock()

	// 终局后禁走
	err := m.ApplyMove(alice, "e2e4")
	assert.ErrorIs(t, err, apperrors.ErrRoomFinished)
}

func TestResign_FinalizesOnce(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	require.NoError(t, m.Resign(alice))

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, ReasonResign, r.Finished.Reason)
	assert.Equal(t, rules.Black, r.Finished.Winner)
	firstAt := r.Finished.At
	r.mu.Unlock()

	// 重复认输与兜底路径都不能二次终局
	err := m.Resign(alice)
	assert.ErrorIs(t, err, apperrors.ErrRoomFinished)

	r.mu.Lock()
	m.finishLocked(r, ReasonTimeout, rules.White, rules.Black)
	assert.Equal(t, ReasonResign, r.Finished.Reason)
	assert.Equal(t, firstAt, r.Finished.At)
	r.mu.Unlock()
}

func TestDraw_OfferAcceptDecline(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	// 没有提和时不能应答
	assert.ErrorIs(t, m.AcceptDraw(bob), apperrors.ErrNoDrawOffer)

	require.NoError(t, m.OfferDraw(alice))
	assert.NotNil(t, bob.LastOfType(protocol.MsgDrawOffered))

	// 提和方自己不能接受
	assert.ErrorIs(t, m.AcceptDraw(alice), apperrors.ErrNoDrawOffer)

	require.NoError(t, m.DeclineDraw(bob))
	r.mu.Lock()
	assert.Empty(t, r.DrawOffer)
	r.mu.Unlock()

	require.NoError(t, m.OfferDraw(alice))
	require.NoError(t, m.AcceptDraw(bob))

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, ReasonDrawAgreed, r.Finished.Reason)
	assert.Empty(t, r.Finished.Winner)
	r.mu.Unlock()
}

func TestDisconnect_PausesClock(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	m.HandleDisconnect(alice)

	r.mu.Lock()
	assert.Equal(t, PhasePaused, r.Phase)
	assert.Empty(t, r.Clock.Running)
	seat := r.seatByColor(rules.White)
	_, armed := r.timers[timerDisconnect(seat.ID)]
	r.mu.Unlock()

	assert.True(t, armed, "掉线宽限定时器应已布防")
	assert.NotNil(t, bob.LastOfType(protocol.MsgPlayerOffline))

	// 暂停期间禁走
	err := m.ApplyMove(bob, "e2e4")
	assert.ErrorIs(t, err, apperrors.ErrGameNotStart)
}

func TestDisconnectTimeout_OpponentWins(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	seatID := alice.ID
	m.HandleDisconnect(alice)
	m.onDisconnectTimeout(r.Code, seatID)

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, ReasonDisconnected, r.Finished.Reason)
	assert.Equal(t, rules.Black, r.Finished.Winner)
	r.mu.Unlock()
}

func TestDisconnectTimeout_NoopAfterReconnect(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	oldID := alice.ID
	m.HandleDisconnect(alice)

	alice2 := &testutil.SimpleClient{ID: "conn-a2", Name: "Alice"}
	_, _, err := m.JoinRoom(alice2, "id-alice", 1300, r.Code, "")
	require.NoError(t, err)

	// 旧座位 ID 的过期回调不应生效
	m.onDisconnectTimeout(r.Code, oldID)
	assert.Equal(t, PhaseActive, roomPhase(r))
}

func TestDisconnectTimeout_BothOffline_StaysPaused(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	aliceSeatID, bobSeatID := alice.ID, bob.ID
	m.HandleDisconnect(alice)
	m.HandleDisconnect(bob)

	// 双方都离线：宽限到期不判负，房间保持暂停
	m.onDisconnectTimeout(r.Code, aliceSeatID)
	m.onDisconnectTimeout(r.Code, bobSeatID)

	r.mu.Lock()
	assert.Equal(t, PhasePaused, r.Phase)
	assert.Nil(t, r.Finished)
	r.mu.Unlock()

	// 任意一方重连后对局可以继续，离线对手重新进入宽限期
	alice2 := &testutil.SimpleClient{ID: "conn-a2", Name: "Alice"}
	_, _, err := m.JoinRoom(alice2, "id-alice", 1300, r.Code, "")
	require.NoError(t, err)
	assert.Equal(t, PhasePaused, roomPhase(r), "对手仍离线时继续等待")

	r.mu.Lock()
	_, rearmed := r.timers[timerDisconnect(bobSeatID)]
	r.mu.Unlock()
	assert.True(t, rearmed, "重连方回来后离线对手应重新计宽限")

	bob2 := &testutil.SimpleClient{ID: "conn-b2", Name: "Bob"}
	_, _, err = m.JoinRoom(bob2, "id-bob", 1100, r.Code, "")
	require.NoError(t, err)
	assert.Equal(t, PhaseActive, roomPhase(r))
}

func TestReconnect_DoesNotRearmFirstMoveTimer(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	m.HandleDisconnect(alice)

	alice2 := &testutil.SimpleClient{ID: "conn-a2", Name: "Alice"}
	_, _, err := m.JoinRoom(alice2, "id-alice", 1300, r.Code, "")
	require.NoError(t, err)
	require.Equal(t, PhaseActive, roomPhase(r))

	// 首步超时窗口只给一次，重连不重新计时
	r.mu.Lock()
	_, armed := r.timers[timerFirstMove]
	r.mu.Unlock()
	assert.False(t, armed)
}

func TestFirstMoveTimeout_Draw(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, _, _ := newActiveRoom(t, m)

	m.onFirstMoveTimeout(r.Code)

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, ReasonFirstMoveTimeout, r.Finished.Reason)
	assert.Empty(t, r.Finished.Winner)
	r.mu.Unlock()
}

func TestFirstMoveTimeout_NoopAfterMove(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	require.NoError(t, m.ApplyMove(alice, "e2e4"))
	m.onFirstMoveTimeout(r.Code)
	assert.Equal(t, PhaseActive, roomPhase(r))
}

func TestExpiration_AbandonsWaitingRoom(t *testing.T) {
	t.Parallel()
	m, p := testManager(t)
	alice := &testutil.SimpleClient{ID: "conn-a", Name: "Alice"}
	r, err := m.CreateRoom(alice, "id-alice", 1200, Settings{})
	require.NoError(t, err)

	m.onExpiration(r.Code)

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, ReasonAbandoned, r.Finished.Reason)
	r.mu.Unlock()

	// 从未激活的房间不存档，占位释放
	require.Eventually(t, func() bool {
		_, reserved := p.reservation("id-alice")
		return !reserved
	}, 3*time.Second, 10*time.Millisecond)
	assert.Zero(t, p.finishedCount())
}

func TestExpiration_NoopAfterActivation(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, _, _ := newActiveRoom(t, m)

	m.onExpiration(r.Code)
	assert.Equal(t, PhaseActive, roomPhase(r))
}

func TestClockLoop_FlagFall(t *testing.T) {
	t.Parallel()
	p := newFakePersist()
	cfg := config.Default()
	cfg.Game.ClockTickMs = 10
	m := NewManager(NewMemoryStore(), p, oracle.Local{}, p, cfg)
	m.Start()
	defer m.Stop()

	r, _, _ := newActiveRoom(t, m)

	r.mu.Lock()
	r.Clock.WhiteLeft = 20 * time.Millisecond
	r.mu.Unlock()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return r.Finished != nil && r.Finished.Reason == ReasonTimeout
	}, 3*time.Second, 10*time.Millisecond)

	r.mu.Lock()
	assert.Equal(t, rules.Black, r.Finished.Winner)
	assert.Zero(t, r.Clock.WhiteLeft)
	r.mu.Unlock()
}

func TestFinish_ArchivesAndSettlesRatings(t *testing.T) {
	t.Parallel()
	m, p := testManager(t)
	_, alice, _ := newActiveRoom(t, m)

	require.NoError(t, m.ApplyMove(alice, "e2e4"))
	require.NoError(t, m.Resign(alice))

	// Alice 1300 负于 Bob 1100：低分胜高分拿大分
	require.Eventually(t, func() bool {
		return p.finishedCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, ok := p.rating("id-bob")
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	bobRating, _ := p.rating("id-bob")
	aliceRating, _ := p.rating("id-alice")
	assert.Greater(t, bobRating, 1200)
	assert.Less(t, aliceRating, 1200)
	assert.Equal(t, bobRating-1200, 1200-aliceRating, "积分转移应零和")

	// 占位释放
	require.Eventually(t, func() bool {
		_, a := p.reservation("id-alice")
		_, b := p.reservation("id-bob")
		return !a && !b
	}, 3*time.Second, 10*time.Millisecond)
}

func TestFinish_DrawSkipsRatings(t *testing.T) {
	t.Parallel()
	m, p := testManager(t)
	_, alice, bob := newActiveRoom(t, m)

	require.NoError(t, m.OfferDraw(alice))
	require.NoError(t, m.AcceptDraw(bob))

	require.Eventually(t, func() bool {
		return p.finishedCount() == 1
	}, 3*time.Second, 10*time.Millisecond)

	_, aok := p.rating("id-alice")
	_, bok := p.rating("id-bob")
	assert.False(t, aok, "和棋不动分")
	assert.False(t, bok, "和棋不动分")
}

func TestRematch_SpawnsNewRoom(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	require.NoError(t, m.ApplyMove(alice, "e2e4"))
	require.NoError(t, m.Resign(bob))

	require.NoError(t, m.ProposeRematch(alice))
	assert.NotNil(t, bob.LastOfType(protocol.MsgRematchOffered))
	require.NoError(t, m.AcceptRematch(bob))

	started := alice.LastOfType(protocol.MsgRematchStarted)
	require.NotNil(t, started)
	payload, err := protocol.ParsePayload[protocol.RematchStartedPayload](started)
	require.NoError(t, err)
	assert.Equal(t, r.Code, payload.OldRoomCode)
	assert.NotEqual(t, r.Code, payload.RoomCode, "再来一局必须换新房间号")

	// 旧房间保持终局且协商记录清空
	r.mu.Lock()
	assert.Equal(t, PhaseFinished, r.Phase)
	assert.NotNil(t, r.Finished)
	assert.Nil(t, r.Rematch)
	r.mu.Unlock()

	// 新房间：棋局复位、沿用时长与颜色、立即开局
	nr, ok := m.Get(payload.RoomCode)
	require.True(t, ok)
	nr.mu.Lock()
	assert.Equal(t, PhaseActive, nr.Phase)
	assert.Nil(t, nr.Finished)
	assert.Empty(t, nr.Moves)
	assert.Equal(t, rules.White, nr.State.Turn())
	assert.Equal(t, 5*time.Minute, nr.Clock.BlackLeft)
	assert.Equal(t, rules.White, nr.seatByID(alice.ID).Color)
	assert.Equal(t, rules.Black, nr.seatByID(bob.ID).Color)
	nr.mu.Unlock()

	assert.Equal(t, payload.RoomCode, alice.GetRoom())
	assert.Equal(t, payload.RoomCode, bob.GetRoom())
}

func TestRematch_DeclineClears(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	require.NoError(t, m.Resign(bob))
	require.NoError(t, m.ProposeRematch(alice))
	require.NoError(t, m.DeclineRematch(bob))

	r.mu.Lock()
	assert.Nil(t, r.Rematch)
	assert.Equal(t, PhaseFinished, r.Phase)
	r.mu.Unlock()
	assert.NotNil(t, alice.LastOfType(protocol.MsgRematchDeclined))
}

func TestRematch_BeforeFinishRejected(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	_, alice, _ := newActiveRoom(t, m)

	err := m.ProposeRematch(alice)
	assert.ErrorIs(t, err, apperrors.ErrGameNotStart)
}

func TestUndo_BotRoom(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	alice := &testutil.SimpleClient{ID: "conn-a", Name: "Alice"}

	r, err := m.CreateRoom(alice, "id-alice", 1200, Settings{ColorPref: "w", VersusBot: true, Difficulty: 1})
	require.NoError(t, err)

	// 不足两步不能悔
	assert.ErrorIs(t, m.Undo(alice), apperrors.ErrUndoDenied)

	require.NoError(t, m.ApplyMove(alice, "e2e4"))
	require.Eventually(t, func() bool {
		return moveCount(r) == 2
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, m.Undo(alice))

	r.mu.Lock()
	assert.Empty(t, r.Moves)
	assert.Equal(t, rules.White, r.State.Turn())
	r.mu.Unlock()
}

func TestUndo_HumanRoomRejected(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	_, alice, bob := newActiveRoom(t, m)

	require.NoError(t, m.ApplyMove(alice, "e2e4"))
	require.NoError(t, m.ApplyMove(bob, "e7e5"))
	assert.ErrorIs(t, m.Undo(alice), apperrors.ErrUndoDenied)
}

func TestLeaveRoom_DuringGameResigns(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, _ := newActiveRoom(t, m)

	require.NoError(t, m.LeaveRoom(alice))

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, ReasonResign, r.Finished.Reason)
	assert.Equal(t, rules.Black, r.Finished.Winner)
	r.mu.Unlock()
	assert.Empty(t, alice.RoomCode)
}

func TestLeaveRoom_WaitingRemovesRoom(t *testing.T) {
	t.Parallel()
	m, p := testManager(t)
	alice := &testutil.SimpleClient{ID: "conn-a", Name: "Alice"}
	r, err := m.CreateRoom(alice, "id-alice", 1200, Settings{})
	require.NoError(t, err)

	require.NoError(t, m.LeaveRoom(alice))

	_, exists := m.Get(r.Code)
	assert.False(t, exists)
	require.Eventually(t, func() bool {
		_, reserved := p.reservation("id-alice")
		return !reserved
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSweep_RecyclesFinishedRoom(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	require.NoError(t, m.Resign(alice))
	m.HandleDisconnect(alice)
	m.HandleDisconnect(bob)

	m.sweep(time.Now().Add(finishedRetain + time.Minute))

	_, exists := m.Get(r.Code)
	assert.False(t, exists)
}

func TestSweep_AbandonsDeadRoom(t *testing.T) {
	t.Parallel()
	m, _ := testManager(t)
	r, alice, bob := newActiveRoom(t, m)

	m.HandleDisconnect(alice)
	m.HandleDisconnect(bob)

	// 清扫阈值之外的双离线房间按废弃收场
	m.sweep(time.Now().Add(2 * time.Hour))

	r.mu.Lock()
	require.NotNil(t, r.Finished)
	assert.Equal(t, ReasonAbandoned, r.Finished.Reason)
	r.mu.Unlock()
}
