package opponent

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-gamecenter/internal/opponent/uci"
	"github.com/park285/cheese-gamecenter/internal/opponent/uci/ucitest"
	"github.com/park285/cheese-gamecenter/internal/rules"
)

func TestMain(m *testing.M) {
	ucitest.MaybeServe()
	os.Exit(m.Run())
}

func mustMove(t *testing.T, u string) rules.Move {
	t.Helper()
	from, _ := rules.ParseSquare(u[:2])
	to, _ := rules.ParseSquare(u[2:4])
	return rules.Move{From: from, To: to}
}

func TestRandomPicksAmongBlackReplies(t *testing.T) {
	eng := rules.NewStandard()
	pos, _, err := eng.Apply(eng.Start(), mustMove(t, "e2e4"))
	require.NoError(t, err)

	legal := map[string]bool{}
	for _, m := range eng.LegalMoves(pos) {
		legal[m.UCI] = true
	}
	require.Len(t, legal, 20)

	r := NewRandom(eng, 7)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		mv, err := r.ChooseMove(context.Background(), pos)
		require.NoError(t, err)
		require.True(t, legal[mv.UCI], "illegal reply %s", mv.UCI)
		seen[mv.UCI] = true
	}
	require.Greater(t, len(seen), 1, "policy should not be deterministic")
}

func TestRandomPrefersCaptures(t *testing.T) {
	eng := rules.NewStandard()
	pos, err := eng.Parse("4k3/8/8/3p4/4P3/8/8/4K3 w - - 0 1")
	require.NoError(t, err)
	r := NewRandom(eng, 1)
	for i := 0; i < 20; i++ {
		mv, err := r.ChooseMove(context.Background(), pos)
		require.NoError(t, err)
		require.Equal(t, "e4d5", mv.UCI)
	}
}

func TestRandomNoMoves(t *testing.T) {
	eng := rules.NewStandard()
	pos, err := eng.Parse("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	require.NoError(t, err)
	_, err = NewRandom(eng, 1).ChooseMove(context.Background(), pos)
	require.ErrorIs(t, err, ErrNoLegalMoves)
}

func TestLookupLevelAliases(t *testing.T) {
	l, ok := LookupLevel("Master")
	require.True(t, ok)
	require.Equal(t, "level8", l.Name)
	for name := range levels {
		l, _ := LookupLevel(name)
		require.NoError(t, l.validate(), name)
	}
	_, ok = LookupLevel("grandmaster")
	require.False(t, ok)
}

func TestForDifficultyFallsBackToRandom(t *testing.T) {
	eng := rules.NewStandard()
	require.IsType(t, &Random{}, ForDifficulty("random", eng, nil, nil, 1))
	require.IsType(t, &Random{}, ForDifficulty("level5", eng, nil, nil, 1))
	require.IsType(t, &Random{}, ForDifficulty("nope", eng, nil, nil, 1))
}

func TestEnginePolicyUsesUCIBestMove(t *testing.T) {
	t.Setenv(ucitest.EnvVar, "1")
	t.Setenv(ucitest.MoveVar, "c7c5")

	pool, err := uci.NewPool(uci.PoolConfig{BinaryPath: os.Args[0], PerOptions: 1})
	require.NoError(t, err)
	defer pool.Close()

	eng := rules.NewStandard()
	p := ForDifficulty("level8", eng, pool, nil, 1)
	require.IsType(t, &Engine{}, p)

	pos, _, err := eng.Apply(eng.Start(), mustMove(t, "e2e4"))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mv, err := p.ChooseMove(ctx, pos)
	require.NoError(t, err)
	require.Equal(t, "c7c5", mv.UCI)
}

func TestEnginePolicyFallsBackOnIllegalBestMove(t *testing.T) {
	t.Setenv(ucitest.EnvVar, "1")
	t.Setenv(ucitest.MoveVar, "a1a8")

	pool, err := uci.NewPool(uci.PoolConfig{BinaryPath: os.Args[0], PerOptions: 1})
	require.NoError(t, err)
	defer pool.Close()

	eng := rules.NewStandard()
	pos, _, err := eng.Apply(eng.Start(), mustMove(t, "e2e4"))
	require.NoError(t, err)

	p := ForDifficulty("level8", eng, pool, nil, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mv, err := p.ChooseMove(ctx, pos)
	require.NoError(t, err)
	require.NotEqual(t, "a1a8", mv.UCI)
}
