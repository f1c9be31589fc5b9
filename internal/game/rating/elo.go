package rating

import "math"

const (
	// K 系数：每局最大可转移积分
	kFactor = 32
	// DefaultRating 新玩家初始积分
	DefaultRating = 1200
	// FallbackDelta 积分查询失败时的兜底变动
	FallbackDelta = 8
)

// expected 按 Elo 公式返回 a 对 b 的期望胜率（0.5 = 势均力敌）
func expected(ra, rb int) float64 {
	return 1 / (1 + math.Pow(10, float64(rb-ra)/400))
}

// round 四舍五入，0.5 远离零
func round(f float64) float64 {
	if f >= 0 {
		return math.Floor(f + 0.5)
	}
	return math.Ceil(f - 0.5)
}

// ComputeDelta 计算胜者应从败者处获得的积分，至少为 1
func ComputeDelta(winnerRating, loserRating int) int {
	delta := int(round(kFactor * (1 - expected(winnerRating, loserRating))))
	if delta < 1 {
		delta = 1
	}
	return delta
}
