package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chessarena/internal/game/rating"
	"chessarena/internal/game/room"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return NewRedisStore(client), mr
}

func TestRedisStore_SaveLoadDeleteSnapshot(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	snapshot := &room.SnapshotData{
		Code:     "123456",
		Phase:    "active",
		WhiteMs:  300000,
		BlackMs:  295000,
		Running:  "b",
		MovesUCI: []string{"e2e4", "e7e5"},
		MovesSAN: []string{"e4", "e5"},
		FEN:      "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2",
		Minutes:  5,
	}

	require.NoError(t, store.SaveRoomSnapshot(ctx, snapshot))

	loaded, err := store.LoadRoomSnapshot(ctx, "123456")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, snapshot.Phase, loaded.Phase)
	assert.Equal(t, snapshot.MovesUCI, loaded.MovesUCI)
	assert.Equal(t, snapshot.WhiteMs, loaded.WhiteMs)

	require.NoError(t, store.DeleteRoomSnapshot(ctx, "123456"))

	loaded, err = store.LoadRoomSnapshot(ctx, "123456")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStore_LoadSnapshotMissing(t *testing.T) {
	store, _ := newTestRedisStore(t)

	loaded, err := store.LoadRoomSnapshot(context.Background(), "000000")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestRedisStore_FinishedGames(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	rec := &room.FinishedGameRecord{
		RoomCode: "123456",
		WhiteID:  "id-alice",
		BlackID:  "id-bob",
		Reason:   "checkmate",
		Winner:   "b",
		MovesUCI: []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		EndedAt:  time.Now(),
	}
	require.NoError(t, store.AppendFinishedGame(ctx, rec))

	recent, err := store.RecentFinishedGames(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "checkmate", recent[0].Reason)
	assert.Equal(t, "b", recent[0].Winner)

	// 双方的个人历史都有记录
	for _, identity := range []string{"id-alice", "id-bob"} {
		games, err := store.PlayerFinishedGames(ctx, identity, 10)
		require.NoError(t, err)
		require.Len(t, games, 1)
		assert.Equal(t, "123456", games[0].RoomCode)
	}

	games, err := store.PlayerFinishedGames(ctx, "id-nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestRedisStore_ReserveActiveRoom(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	ok, err := store.ReserveActiveRoom(ctx, "id-alice", "111111")
	require.NoError(t, err)
	assert.True(t, ok)

	// 同一身份换房间被拒
	ok, err = store.ReserveActiveRoom(ctx, "id-alice", "222222")
	require.NoError(t, err)
	assert.False(t, ok)

	// 同一房间重占（重连）放行
	ok, err = store.ReserveActiveRoom(ctx, "id-alice", "111111")
	require.NoError(t, err)
	assert.True(t, ok)

	code, err := store.ActiveRoomOf(ctx, "id-alice")
	require.NoError(t, err)
	assert.Equal(t, "111111", code)

	// 释放必须指向同一房间
	require.NoError(t, store.ReleaseActiveRoom(ctx, "id-alice", "222222"))
	code, _ = store.ActiveRoomOf(ctx, "id-alice")
	assert.Equal(t, "111111", code)

	require.NoError(t, store.ReleaseActiveRoom(ctx, "id-alice", "111111"))
	code, _ = store.ActiveRoomOf(ctx, "id-alice")
	assert.Empty(t, code)

	// 释放后可占新房间
	ok, err = store.ReserveActiveRoom(ctx, "id-alice", "222222")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisStore_Ratings(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	// 未上榜返回初始积分
	r, err := store.GetRating(ctx, "id-alice")
	require.NoError(t, err)
	assert.Equal(t, rating.DefaultRating, r)

	// 首次变动从初始积分起算
	newRating, err := store.ApplyRatingDelta(ctx, "id-alice", "Alice", 16)
	require.NoError(t, err)
	assert.Equal(t, rating.DefaultRating+16, newRating)

	newRating, err = store.ApplyRatingDelta(ctx, "id-bob", "Bob", -16)
	require.NoError(t, err)
	assert.Equal(t, rating.DefaultRating-16, newRating)

	r, err = store.GetRating(ctx, "id-alice")
	require.NoError(t, err)
	assert.Equal(t, rating.DefaultRating+16, r)
}

func TestRedisStore_Leaderboard(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.ApplyRatingDelta(ctx, "id-alice", "Alice", 30)
	require.NoError(t, err)
	_, err = store.ApplyRatingDelta(ctx, "id-bob", "Bob", 10)
	require.NoError(t, err)
	_, err = store.ApplyRatingDelta(ctx, "id-carol", "Carol", -20)
	require.NoError(t, err)

	top, err := store.TopRatings(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "id-alice", top[0].Identity)
	assert.Equal(t, "Alice", top[0].Name)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "id-bob", top[1].Identity)

	rank, err := store.RatingRank(ctx, "id-carol")
	require.NoError(t, err)
	assert.Equal(t, 3, rank)

	rank, err = store.RatingRank(ctx, "id-nobody")
	require.NoError(t, err)
	assert.Zero(t, rank)
}

func TestRedisStore_Sessions(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	session := &PlayerSessionData{
		PlayerID:       "id-alice",
		PlayerName:     "Alice",
		ReconnectToken: "token-123",
		RoomCode:       "123456",
		IsOnline:       true,
	}
	require.NoError(t, store.SaveSession(ctx, session))

	loaded, err := store.LoadSession(ctx, "id-alice")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "token-123", loaded.ReconnectToken)
	assert.Equal(t, "123456", loaded.RoomCode)
	assert.True(t, loaded.IsOnline)

	require.NoError(t, store.DeleteSession(ctx, "id-alice"))
	loaded, err = store.LoadSession(ctx, "id-alice")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
