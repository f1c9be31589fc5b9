package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"chessarena/internal/game/rating"
)

const (
	leaderboardKey = "leaderboard:rating"
	playerNameKey  = "player:names"
)

// RatingEntry 排行榜条目
type RatingEntry struct {
	Rank     int    `json:"rank"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Rating   int    `json:"rating"`
}

// GetRating 查询玩家积分，未上榜返回初始积分
func (rs *RedisStore) GetRating(ctx context.Context, identity string) (int, error) {
	score, err := rs.client.ZScore(ctx, leaderboardKey, identity).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return rating.DefaultRating, nil
		}
		return rating.DefaultRating, err
	}
	return int(score), nil
}

// ApplyRatingDelta 应用积分变动并返回新积分，首次变动从初始积分起算
func (rs *RedisStore) ApplyRatingDelta(ctx context.Context, identity, name string, delta int) (int, error) {
	current, err := rs.client.ZScore(ctx, leaderboardKey, identity).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return 0, err
		}
		current = float64(rating.DefaultRating)
	}

	newRating := int(current) + delta
	pipe := rs.client.Pipeline()
	pipe.ZAdd(ctx, leaderboardKey, redis.Z{Score: float64(newRating), Member: identity})
	if name != "" {
		pipe.HSet(ctx, playerNameKey, identity, name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return newRating, nil
}

// TopRatings 返回积分排行榜前 limit 名
func (rs *RedisStore) TopRatings(ctx context.Context, limit int) ([]RatingEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	members, err := rs.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	identities := make([]string, len(members))
	for i, m := range members {
		identities[i] = m.Member.(string)
	}
	names, err := rs.client.HMGet(ctx, playerNameKey, identities...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]RatingEntry, len(members))
	for i, m := range members {
		name := ""
		if i < len(names) && names[i] != nil {
			name, _ = names[i].(string)
		}
		entries[i] = RatingEntry{
			Rank:     i + 1,
			Identity: identities[i],
			Name:     name,
			Rating:   int(m.Score),
		}
	}
	return entries, nil
}

// RatingRank 返回玩家名次（从 1 开始），未上榜返回 0
func (rs *RedisStore) RatingRank(ctx context.Context, identity string) (int, error) {
	rank, err := rs.client.ZRevRank(ctx, leaderboardKey, identity).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return int(rank) + 1, nil
}
