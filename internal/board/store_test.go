package board

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/rules"
)

func uciMove(t *testing.T, u string) rules.Move {
	t.Helper()
	from, ok1 := rules.ParseSquare(u[:2])
	to, ok2 := rules.ParseSquare(u[2:4])
	require.True(t, ok1 && ok2, "bad move %q", u)
	return rules.Move{From: from, To: to, Promotion: rules.ParsePromotion(u[4:])}
}

func fenAfter(t *testing.T, ucis ...string) string {
	t.Helper()
	eng := rules.NewStandard()
	pos := eng.Start()
	for _, u := range ucis {
		next, _, err := eng.Apply(pos, uciMove(t, u))
		require.NoError(t, err)
		pos = next
	}
	return pos.FEN()
}

func newStore() *Store { return New(rules.NewStandard(), nil) }

func TestTallyMatchesRecomputeEveryStep(t *testing.T) {
	s := newStore()
	for _, u := range []string{"e2e4", "d7d5", "e4d5", "d8d5", "b1c3", "d5a2", "a1a2"} {
		_, err := s.Apply(uciMove(t, u))
		require.NoError(t, err, u)
		require.True(t, s.Tally().Equal(ComputeTally(s.Plies())), "tally drift after %s", u)
	}
	tally := s.Tally()
	require.Equal(t, 1, tally.Count(nchess.White, nchess.Pawn))
	require.Equal(t, 1, tally.Count(nchess.White, nchess.Queen))
	require.Equal(t, 2, tally.Count(nchess.Black, nchess.Pawn))
	require.Equal(t, 8, s.Material().Delta)
}

func TestCuePriority(t *testing.T) {
	s := newStore()
	ch, err := s.Apply(uciMove(t, "e2e4"))
	require.NoError(t, err)
	require.Equal(t, CueMove, ch.Cue)

	_, err = s.Apply(uciMove(t, "d7d5"))
	require.NoError(t, err)
	ch, err = s.Apply(uciMove(t, "e4d5"))
	require.NoError(t, err)
	require.Equal(t, CueCapture, ch.Cue)

	s = newStore()
	for _, u := range []string{"e2e4", "f7f6"} {
		_, err := s.Apply(uciMove(t, u))
		require.NoError(t, err)
	}
	ch, err = s.Apply(uciMove(t, "d1h5"))
	require.NoError(t, err)
	require.Equal(t, CueCheck, ch.Cue)
}

func TestAuthoritativeTwiceIsIdempotent(t *testing.T) {
	s := newStore()
	snap := Snapshot{FEN: fenAfter(t, "e2e4")}

	first, err := s.ApplyAuthoritative(snap)
	require.NoError(t, err)
	require.True(t, first.Changed)
	require.NotNil(t, first.Ply)
	require.Equal(t, CueMove, first.Cue)

	second, err := s.ApplyAuthoritative(snap)
	require.NoError(t, err)
	require.False(t, second.Changed)
	require.Equal(t, CueNone, second.Cue)
	require.Len(t, s.Plies(), 1)
}

func TestEchoOfOwnMoveChangesNothing(t *testing.T) {
	s := newStore()
	_, err := s.Apply(uciMove(t, "e2e4"))
	require.NoError(t, err)
	tally := s.Tally()

	ch, err := s.ApplyAuthoritative(Snapshot{FEN: s.FEN(), Moves: []string{"e2e4"}})
	require.NoError(t, err)
	require.False(t, ch.Changed)
	require.Len(t, s.Plies(), 1)
	require.True(t, tally.Equal(s.Tally()))
}

func TestEchoWithDifferentEnPassantFieldIsNoop(t *testing.T) {
	for _, fen := range []string{
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1",
	} {
		s := newStore()
		_, err := s.Apply(uciMove(t, "e2e4"))
		require.NoError(t, err)
		tally := s.Tally()

		ch, err := s.ApplyAuthoritative(Snapshot{FEN: fen})
		require.NoError(t, err)
		require.False(t, ch.Changed, fen)
		require.False(t, ch.Desync, fen)
		require.Equal(t, CueNone, ch.Cue, fen)
		require.Equal(t, []string{"e2e4"}, s.UCIHistory())
		require.True(t, tally.Equal(s.Tally()))
	}
}

func TestOpponentMoveInferredDespiteEnPassantField(t *testing.T) {
	s := newStore()
	_, err := s.Apply(uciMove(t, "g1f3"))
	require.NoError(t, err)

	// the library writes d6 after d7d5 but no white pawn can take there
	ch, err := s.ApplyAuthoritative(Snapshot{FEN: "rnbqkbnr/ppp1pppp/8/3p4/8/5N2/PPPPPPPP/RNBQKB1R w KQkq d6 0 2"})
	require.NoError(t, err)
	require.True(t, ch.Changed)
	require.False(t, ch.Desync)
	require.NotNil(t, ch.Ply)
	require.Equal(t, []string{"g1f3", "d7d5"}, s.UCIHistory())
}

func TestAuthoritativeOpponentMoveAppendsPly(t *testing.T) {
	s := newStore()
	_, err := s.Apply(uciMove(t, "e2e4"))
	require.NoError(t, err)

	ch, err := s.ApplyAuthoritative(Snapshot{FEN: fenAfter(t, "e2e4", "e7e5")})
	require.NoError(t, err)
	require.True(t, ch.Changed)
	require.False(t, ch.Desync)
	require.Equal(t, []string{"e2e4", "e7e5"}, s.UCIHistory())
	require.True(t, s.Highlight().Valid)
}

func TestAuthoritativeHistoryReplay(t *testing.T) {
	s := newStore()
	moves := []string{"e2e4", "e7e5", "g1f3"}
	ch, err := s.ApplyAuthoritative(Snapshot{FEN: fenAfter(t, moves...), Moves: moves})
	require.NoError(t, err)
	require.True(t, ch.Changed)
	require.Equal(t, moves, s.UCIHistory())
	hl := s.Highlight()
	require.Equal(t, "g1", hl.From.String())
	require.Equal(t, "f3", hl.To.String())
}

func TestAuthoritativeDivergentPushOverwrites(t *testing.T) {
	s := newStore()
	_, err := s.Apply(uciMove(t, "d2d4"))
	require.NoError(t, err)

	target := fenAfter(t, "e2e4", "b8c6")
	ch, err := s.ApplyAuthoritative(Snapshot{FEN: target})
	require.NoError(t, err)
	require.True(t, ch.Changed)
	require.True(t, ch.Desync)
	require.Equal(t, target, s.FEN())
	require.Empty(t, s.Plies())
}

func TestCheckmateConcludesOnce(t *testing.T) {
	s := newStore()
	var last Change
	for _, u := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		ch, err := s.Apply(uciMove(t, u))
		require.NoError(t, err)
		last = ch
	}
	require.NotNil(t, last.Terminal)
	require.Equal(t, domain.ReasonCheckmate, last.Terminal.Reason)
	require.Equal(t, nchess.Black, last.Terminal.Winner)

	_, err := s.Apply(uciMove(t, "a2a3"))
	require.True(t, errors.Is(err, ErrConcluded))
	require.False(t, s.Conclude(domain.TerminalResult{Reason: domain.ReasonResignation, Winner: nchess.White}))
	require.Equal(t, domain.ReasonCheckmate, s.Result().Reason)
}

func TestIllegalMoveLeavesStateAlone(t *testing.T) {
	s := newStore()
	before := s.FEN()
	_, err := s.Apply(uciMove(t, "e2e5"))
	require.ErrorIs(t, err, rules.ErrIllegalMove)
	require.Equal(t, before, s.FEN())
	require.Empty(t, s.Plies())
}

func TestOpeningLabel(t *testing.T) {
	s := newStore()
	for _, u := range []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1b5"} {
		_, err := s.Apply(uciMove(t, u))
		require.NoError(t, err)
	}
	require.NotEmpty(t, s.Opening().Code)
}

func TestRestoreReplaysHistory(t *testing.T) {
	s := newStore()
	require.NoError(t, s.Restore([]string{"e2e4", "e7e5"}))
	require.Equal(t, fenAfter(t, "e2e4", "e7e5"), s.FEN())
	require.Len(t, s.Plies(), 2)
	require.Error(t, s.Restore([]string{"e2e5"}))
}
