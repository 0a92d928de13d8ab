package uci

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-gamecenter/internal/opponent/uci/ucitest"
)

func TestMain(m *testing.M) {
	ucitest.MaybeServe()
	os.Exit(m.Run())
}

func TestParseInfo(t *testing.T) {
	idx, cand, ok := parseInfo("info depth 12 seldepth 14 multipv 2 score cp -35 nodes 1000 pv d7d5 e4d5 d8d5")
	require.True(t, ok)
	require.Equal(t, 2, idx)
	require.Equal(t, "d7d5", cand.Move)
	require.Equal(t, -35, cand.EvalCP)
	require.Len(t, cand.Principal, 3)

	_, cand, ok = parseInfo("info depth 5 score mate -2 pv h7h6")
	require.True(t, ok)
	require.Equal(t, -mateScore, cand.EvalCP)

	_, _, ok = parseInfo("info string NNUE enabled")
	require.False(t, ok)
}

func TestPositionAndGoCommands(t *testing.T) {
	require.Equal(t, "position startpos", positionCommand("", nil))
	require.Equal(t, "position startpos moves e2e4 e7e5", positionCommand("startpos", []string{"e2e4", "e7e5"}))
	require.Equal(t, "position fen 8/8/8/8/8/8/8/k6K w - - 0 1", positionCommand("8/8/8/8/8/8/8/k6K w - - 0 1", nil))

	cmd, err := Limits{Depth: 8, MoveTimeMillis: 200}.goCommand()
	require.NoError(t, err)
	require.Equal(t, "go depth 8 movetime 200", cmd)
	_, err = Limits{}.goCommand()
	require.Error(t, err)
}

func TestLimitsTimeoutBounds(t *testing.T) {
	require.Equal(t, 6*time.Second, Limits{Depth: 1}.timeout())
	require.Equal(t, 20*time.Second, Limits{Depth: 200}.timeout())
}

func TestPoolSearchWithFakeEngine(t *testing.T) {
	t.Setenv(ucitest.EnvVar, "1")
	t.Setenv(ucitest.MoveVar, "g8f6")

	pool, err := NewPool(PoolConfig{BinaryPath: os.Args[0], PerOptions: 1})
	require.NoError(t, err)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opt := Options{Threads: 1, SkillLevel: 5, HashMB: 16, MultiPV: 1}
	proc, err := pool.Acquire(ctx, opt)
	require.NoError(t, err)
	res, err := proc.Search(ctx, "", []string{"e2e4"}, Limits{MoveTimeMillis: 50})
	require.NoError(t, err)
	require.Equal(t, "g8f6", res.BestMove)
	require.Len(t, res.Candidates, 1)
	pool.Release(proc, nil)

	again, err := pool.Acquire(ctx, opt)
	require.NoError(t, err)
	require.Same(t, proc, again, "released process should be reused")
	pool.Release(again, nil)
}

func TestPoolAcquireWaitsForCapacity(t *testing.T) {
	t.Setenv(ucitest.EnvVar, "1")

	pool, err := NewPool(PoolConfig{BinaryPath: os.Args[0], PerOptions: 1})
	require.NoError(t, err)
	defer pool.Close()

	opt := Options{Threads: 1, HashMB: 16, MultiPV: 1}
	proc, err := pool.Acquire(context.Background(), opt)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx, opt)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	pool.Release(proc, nil)
}

func TestNewPoolRequiresBinary(t *testing.T) {
	_, err := NewPool(PoolConfig{})
	require.Error(t, err)
	_, err = NewPool(PoolConfig{BinaryPath: "/nonexistent/stockfish"})
	require.Error(t, err)
}
