package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chessarena/internal/game/room"
)

const (
	// Redis key 前缀
	roomKeyPrefix    = "room:"
	sessionKeyPrefix = "session:"
	activeKeyPrefix  = "active:"
	finishedGamesKey = "games:finished"
	playerGamesKey   = "games:player:"

	// 过期时间
	roomExpiration    = 2 * time.Hour
	activeExpiration  = 12 * time.Hour
	sessionExpiration = 24 * time.Hour

	// 终局存档保留条数
	finishedGamesKeep = 1000
	playerGamesKeep   = 100
)

// RedisStore Redis 存储，实现 room.Persistence
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// --- 房间快照 ---

// SaveRoomSnapshot 保存房间快照
func (rs *RedisStore) SaveRoomSnapshot(ctx context.Context, data *room.SnapshotData) error {
	if data == nil {
		return nil
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化房间快照失败: %w", err)
	}

	key := roomKeyPrefix + data.Code
	return rs.client.Set(ctx, key, jsonData, roomExpiration).Err()
}

// LoadRoomSnapshot 加载房间快照（仅返回数据，需要外部重建）
func (rs *RedisStore) LoadRoomSnapshot(ctx context.Context, code string) (*room.SnapshotData, error) {
	key := roomKeyPrefix + code
	data, err := rs.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // 快照不存在
		}
		return nil, err
	}

	var snapshot room.SnapshotData
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("反序列化房间快照失败: %w", err)
	}

	return &snapshot, nil
}

// DeleteRoomSnapshot 删除房间快照
func (rs *RedisStore) DeleteRoomSnapshot(ctx context.Context, code string) error {
	return rs.client.Del(ctx, roomKeyPrefix+code).Err()
}

// --- 终局存档 ---

// AppendFinishedGame 追加终局存档：全局最近榜 + 双方个人历史
func (rs *RedisStore) AppendFinishedGame(ctx context.Context, rec *room.FinishedGameRecord) error {
	if rec == nil {
		return nil
	}

	jsonData, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("序列化终局存档失败: %w", err)
	}

	pipe := rs.client.Pipeline()
	pipe.LPush(ctx, finishedGamesKey, jsonData)
	pipe.LTrim(ctx, finishedGamesKey, 0, finishedGamesKeep-1)
	for _, identity := range []string{rec.WhiteID, rec.BlackID} {
		if identity == "" {
			continue
		}
		key := playerGamesKey + identity
		pipe.LPush(ctx, key, jsonData)
		pipe.LTrim(ctx, key, 0, playerGamesKeep-1)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// RecentFinishedGames 返回最近的终局存档
func (rs *RedisStore) RecentFinishedGames(ctx context.Context, limit int) ([]*room.FinishedGameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	items, err := rs.client.LRange(ctx, finishedGamesKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*room.FinishedGameRecord, 0, len(items))
	for _, item := range items {
		var rec room.FinishedGameRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// PlayerFinishedGames 返回指定玩家的对局历史
func (rs *RedisStore) PlayerFinishedGames(ctx context.Context, identity string, limit int) ([]*room.FinishedGameRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	items, err := rs.client.LRange(ctx, playerGamesKey+identity, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*room.FinishedGameRecord, 0, len(items))
	for _, item := range items {
		var rec room.FinishedGameRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// --- 单一活跃房间占位 ---

// ReserveActiveRoom 为身份占用活跃房间名额
// SetNX 占位；已占时若指向同一房间视为成功（重连重占）
func (rs *RedisStore) ReserveActiveRoom(ctx context.Context, identity, code string) (bool, error) {
	key := activeKeyPrefix + identity
	ok, err := rs.client.SetNX(ctx, key, code, activeExpiration).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	existing, err := rs.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// 占位刚好过期，重试一次
			return rs.client.SetNX(ctx, key, code, activeExpiration).Result()
		}
		return false, err
	}
	return existing == code, nil
}

// ReleaseActiveRoom 释放活跃房间名额，仅当占位确实指向该房间
func (rs *RedisStore) ReleaseActiveRoom(ctx context.Context, identity, code string) error {
	key := activeKeyPrefix + identity
	existing, err := rs.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if existing != code {
		return nil
	}
	return rs.client.Del(ctx, key).Err()
}

// ActiveRoomOf 查询身份当前占用的房间号，没有返回空串
func (rs *RedisStore) ActiveRoomOf(ctx context.Context, identity string) (string, error) {
	code, err := rs.client.Get(ctx, activeKeyPrefix+identity).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return code, err
}

// --- 会话存储 ---

// PlayerSessionData 玩家会话数据（用于 Redis 序列化）
type PlayerSessionData struct {
	PlayerID       string `json:"player_id"`
	PlayerName     string `json:"player_name"`
	ReconnectToken string `json:"token"`
	RoomCode       string `json:"room_code"`
	IsOnline       bool   `json:"is_online"`
	DisconnectedAt int64  `json:"disconnected_at,omitempty"`
}

// SaveSession 保存会话
func (rs *RedisStore) SaveSession(ctx context.Context, session *PlayerSessionData) error {
	data := map[string]any{
		"player_id":   session.PlayerID,
		"player_name": session.PlayerName,
		"token":       session.ReconnectToken,
		"room_code":   session.RoomCode,
		"is_online":   session.IsOnline,
	}
	if session.DisconnectedAt != 0 {
		data["disconnected_at"] = session.DisconnectedAt
	}

	key := sessionKeyPrefix + session.PlayerID
	pipe := rs.client.Pipeline()
	pipe.HSet(ctx, key, data)
	pipe.Expire(ctx, key, sessionExpiration)
	_, err := pipe.Exec(ctx)
	return err
}

// LoadSession 加载会话
func (rs *RedisStore) LoadSession(ctx context.Context, playerID string) (*PlayerSessionData, error) {
	data, err := rs.client.HGetAll(ctx, sessionKeyPrefix+playerID).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	return &PlayerSessionData{
		PlayerID:       data["player_id"],
		PlayerName:     data["player_name"],
		ReconnectToken: data["token"],
		RoomCode:       data["room_code"],
		IsOnline:       data["is_online"] == "1",
	}, nil
}

// DeleteSession 删除会话
func (rs *RedisStore) DeleteSession(ctx context.Context, playerID string) error {
	return rs.client.Del(ctx, sessionKeyPrefix+playerID).Err()
}
