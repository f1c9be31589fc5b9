package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chessarena/internal/game/rules"
)

func TestLocal_ReturnsLegalMove(t *testing.T) {
	t.Parallel()

	state := rules.NewState()
	for difficulty := 1; difficulty <= 3; difficulty++ {
		mv, err := Local{}.SelectMove(context.Background(), state, difficulty)
		require.NoError(t, err)
		assert.Contains(t, state.Legal(), mv)
	}
}

func TestLocal_PrefersCapture(t *testing.T) {
	t.Parallel()

	// Black pawn on d5 is free for the taking
	state, err := rules.Restore([]string{"e2e4", "d7d5"})
	require.NoError(t, err)

	mv, err := Local{}.SelectMove(context.Background(), state, 3)
	require.NoError(t, err)
	assert.Equal(t, "e4d5", mv)
}

func TestLocal_NoLegalMoves(t *testing.T) {
	t.Parallel()

	// Fool's mate: white has no reply
	state, err := rules.Restore([]string{"f2f3", "e7e5", "g2g4", "d8h4"})
	require.NoError(t, err)

	mv, err := Local{}.SelectMove(context.Background(), state, 2)
	require.NoError(t, err)
	assert.Empty(t, mv)
}

type stubOracle struct {
	move  string
	err   error
	delay time.Duration
}

func (s stubOracle) SelectMove(ctx context.Context, _ *rules.State, _ int) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return s.move, s.err
}

func TestWithFallback_UsesPrimary(t *testing.T) {
	t.Parallel()

	o := WithFallback{
		Primary:  stubOracle{move: "e2e4"},
		Fallback: Local{},
		Timeout:  time.Second,
	}
	mv, err := o.SelectMove(context.Background(), rules.NewState(), 1)
	require.NoError(t, err)
	assert.Equal(t, "e2e4", mv)
}

func TestWithFallback_TimeoutFallsBack(t *testing.T) {
	t.Parallel()

	o := WithFallback{
		Primary:  stubOracle{move: "e2e4", delay: time.Second},
		Fallback: Local{},
		Timeout:  20 * time.Millisecond,
	}
	state := rules.NewState()
	mv, err := o.SelectMove(context.Background(), state, 1)
	require.NoError(t, err)
	assert.Contains(t, state.Legal(), mv)
}

func TestWithFallback_ErrorFallsBack(t *testing.T) {
	t.Parallel()

	o := WithFallback{
		Primary:  stubOracle{err: errors.New("engine crashed")},
		Fallback: Local{},
		Timeout:  time.Second,
	}
	state := rules.NewState()
	mv, err := o.SelectMove(context.Background(), state, 1)
	require.NoError(t, err)
	assert.Contains(t, state.Legal(), mv)
}
