package oracle

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"chessarena/internal/game/rules"
)

// MoveOracle 自动座位的走子来源
// 返回空串表示放弃本次走子（不视为错误）
type MoveOracle interface {
	SelectMove(ctx context.Context, state *rules.State, difficulty int) (string, error)
}

// Local 进程内走子源，按难度在合法着法中选择
// 难度 1 随机；2 优先吃子；3 贪心子力评估
type Local struct{}

// SelectMove 实现 MoveOracle
func (Local) SelectMove(_ context.Context, state *rules.State, difficulty int) (string, error) {
	legal := state.Legal()
	if len(legal) == 0 {
		return "", nil
	}

	switch {
	case difficulty <= 1:
		return legal[rand.IntN(len(legal))], nil
	case difficulty == 2:
		if captures := filterByGain(state, legal, 1); len(captures) > 0 {
			return captures[rand.IntN(len(captures))], nil
		}
		return legal[rand.IntN(len(legal))], nil
	default:
		return bestByMaterial(state, legal), nil
	}
}

// moveGain 返回走完 move 后走子方的子力变化
func moveGain(state *rules.State, move string) int {
	before := rules.MaterialBalance(state.FEN())
	next, err := rules.Restore(append(state.MovesUCI(), move))
	if err != nil {
		return 0
	}
	gain := rules.MaterialBalance(next.FEN()) - before
	if state.Turn() == rules.Black {
		gain = -gain
	}
	return gain
}

// filterByGain 过滤出子力收益不低于 min 的着法
func filterByGain(state *rules.State, legal []string, min int) []string {
	var out []string
	for _, mv := range legal {
		if moveGain(state, mv) >= min {
			out = append(out, mv)
		}
	}
	return out
}

// bestByMaterial 贪心选择子力收益最大的着法，同分随机
func bestByMaterial(state *rules.State, legal []string) string {
	best := []string{legal[0]}
	bestGain := moveGain(state, legal[0])
	for _, mv := range legal[1:] {
		gain := moveGain(state, mv)
		if gain > bestGain {
			best, bestGain = []string{mv}, gain
		} else if gain == bestGain {
			best = append(best, mv)
		}
	}
	return best[rand.IntN(len(best))]
}

// WithFallback 包装外部走子源：超时或出错时退回本地走子源
type WithFallback struct {
	Primary  MoveOracle
	Fallback MoveOracle
	Timeout  time.Duration
}

// SelectMove 实现 MoveOracle
func (o WithFallback) SelectMove(ctx context.Context, state *rules.State, difficulty int) (string, error) {
	if o.Primary == nil {
		return o.Fallback.SelectMove(ctx, state, difficulty)
	}

	tctx, cancel := context.WithTimeout(ctx, o.Timeout)
	defer cancel()

	type result struct {
		move string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		mv, err := o.Primary.SelectMove(tctx, state, difficulty)
		ch <- result{mv, err}
	}()

	select {
	case r := <-ch:
		if r.err == nil {
			return r.move, nil
		}
		log.Printf("⚠️ 外部走子源出错，退回本地: %v", r.err)
	case <-tctx.Done():
		log.Printf("⚠️ 外部走子源超时，退回本地")
	}
	return o.Fallback.SelectMove(ctx, state, difficulty)
}
