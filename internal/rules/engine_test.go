package rules

import (
	"errors"
	"strings"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func sq(t *testing.T, s string) nchess.Square {
	t.Helper()
	out, ok := ParseSquare(s)
	if !ok {
		t.Fatalf("bad square %q", s)
	}
	return out
}

func play(t *testing.T, eng Engine, pos *Position, ucis ...string) *Position {
	t.Helper()
	for _, u := range ucis {
		next, _, err := eng.Apply(pos, Move{From: sq(t, u[:2]), To: sq(t, u[2:4]), Promotion: ParsePromotion(u[4:])})
		if err != nil {
			t.Fatalf("apply %s: %v", u, err)
		}
		pos = next
	}
	return pos
}

func TestStartHasTwentyMoves(t *testing.T) {
	eng := NewStandard()
	pos := eng.Start()
	if got := len(eng.LegalMoves(pos)); got != 20 {
		t.Fatalf("legal moves = %d, want 20", got)
	}
	if got := len(eng.LegalMovesFrom(pos, sq(t, "e2"))); got != 2 {
		t.Fatalf("e2 moves = %d, want 2", got)
	}
	if pos.Turn() != nchess.White {
		t.Fatalf("turn = %v", pos.Turn())
	}
}

func TestApplyLeavesOriginalUntouched(t *testing.T) {
	eng := NewStandard()
	start := eng.Start()
	before := start.FEN()
	next, mv, err := eng.Apply(start, Move{From: sq(t, "e2"), To: sq(t, "e4")})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if start.FEN() != before {
		t.Fatalf("original position mutated")
	}
	if next.Turn() != nchess.Black {
		t.Fatalf("turn after e4 = %v", next.Turn())
	}
	if mv.SAN != "e4" || mv.UCI != "e2e4" {
		t.Fatalf("notation = %q %q", mv.SAN, mv.UCI)
	}
	if !mv.IsDoublePush() {
		t.Fatalf("e2e4 should be a double push")
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	eng := NewStandard()
	_, _, err := eng.Apply(eng.Start(), Move{From: sq(t, "e2"), To: sq(t, "e5")})
	if !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("err = %v, want ErrIllegalMove", err)
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	eng := NewStandard()
	pos, err := eng.Parse("8/P7/8/8/8/8/8/k6K w - - 0 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	next, mv, err := eng.Apply(pos, Move{From: sq(t, "a7"), To: sq(t, "a8")})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if mv.Promotion != nchess.Queen {
		t.Fatalf("promotion = %v", mv.Promotion)
	}
	if next.PieceAt(sq(t, "a8")).Type() != nchess.Queen {
		t.Fatalf("a8 holds %v", next.PieceAt(sq(t, "a8")))
	}
}

func TestCheckmateAndCheck(t *testing.T) {
	eng := NewStandard()
	pos := play(t, eng, eng.Start(), "f2f3", "e7e5", "g2g4", "d8h4")
	if !eng.IsCheckmate(pos) {
		t.Fatalf("fool's mate not detected")
	}
	if !eng.InCheck(pos) {
		t.Fatalf("mated side should be in check")
	}
}

func TestInCheckFromFEN(t *testing.T) {
	eng := NewStandard()
	pos, err := eng.Parse("4k3/8/8/8/8/8/8/4R2K b - - 0 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !eng.InCheck(pos) {
		t.Fatalf("rook on e-file should give check")
	}
	quiet, _ := eng.Parse("4k3/8/8/8/8/8/8/3R3K b - - 0 1")
	if eng.InCheck(quiet) {
		t.Fatalf("no check expected")
	}
	// the checking bishop is itself pinned against its own king
	pinned, err := eng.Parse("8/8/8/8/kb5R/8/8/4K3 w - - 0 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !eng.InCheck(pinned) {
		t.Fatalf("pinned bishop on b4 still checks e1")
	}
	knight, _ := eng.Parse("4k3/8/3N4/8/8/8/8/4K3 b - - 0 1")
	if !eng.InCheck(knight) {
		t.Fatalf("knight on d6 should give check")
	}
	pawn, _ := eng.Parse("4k3/8/8/8/8/8/3p4/4K3 w - - 0 1")
	if !eng.InCheck(pawn) {
		t.Fatalf("black pawn on d2 should give check")
	}
	behind, _ := eng.Parse("4k3/8/8/8/8/8/8/4K3 w - - 0 1")
	if eng.InCheck(behind) {
		t.Fatalf("bare kings are not in check")
	}
}

func TestFENDropsUnusableEnPassant(t *testing.T) {
	eng := NewStandard()
	pos := play(t, eng, eng.Start(), "e2e4")
	want := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	if pos.FEN() != want {
		t.Fatalf("fen = %q, want %q", pos.FEN(), want)
	}
	parsed, err := eng.Parse("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.FEN() != want {
		t.Fatalf("parsed fen = %q, want %q", parsed.FEN(), want)
	}

	live := play(t, eng, eng.Start(), "e2e4", "a7a6", "e4e5", "d7d5")
	if fields := strings.Fields(live.FEN()); fields[3] != "d6" {
		t.Fatalf("capturable en passant square dropped: %q", live.FEN())
	}
}

func TestThreefoldRepetition(t *testing.T) {
	eng := NewStandard()
	shuffle := []string{"g1f3", "g8f6", "f3g1", "f6g8"}
	pos := play(t, eng, eng.Start(), shuffle...)
	if eng.IsThreefoldRepetition(pos) {
		t.Fatalf("two occurrences reported as threefold")
	}
	pos = play(t, eng, pos, shuffle...)
	if !eng.IsThreefoldRepetition(pos) {
		t.Fatalf("third occurrence not detected")
	}
}

func TestInsufficientMaterial(t *testing.T) {
	eng := NewStandard()
	cases := []struct {
		fen  string
		want bool
	}{
		{"8/8/8/8/8/8/8/k6K w - - 0 1", true},
		{"8/8/8/8/8/8/8/kb5K w - - 0 1", true},
		{"8/8/8/8/8/8/8/kr5K w - - 0 1", false},
		{"8/8/8/8/8/8/p7/k6K w - - 0 1", false},
		{"8/8/8/8/8/8/8/knn4K w - - 0 1", false},
	}
	for _, tc := range cases {
		pos, err := eng.Parse(tc.fen)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.fen, err)
		}
		if got := eng.IsInsufficientMaterial(pos); got != tc.want {
			t.Fatalf("%s: insufficient = %v, want %v", tc.fen, got, tc.want)
		}
	}
}

func TestCaptureIntoInsufficientMaterial(t *testing.T) {
	eng := NewStandard()
	pos, err := eng.Parse("4k3/8/8/8/8/2r5/8/1N2K3 w - - 0 1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if eng.IsInsufficientMaterial(pos) {
		t.Fatalf("rook on board is sufficient")
	}
	next, _, err := eng.Apply(pos, Move{From: sq(t, "b1"), To: sq(t, "c3")})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !eng.IsInsufficientMaterial(next) {
		t.Fatalf("king and knight against king should be insufficient")
	}
	if eng.IsCheckmate(next) || eng.IsStalemate(next) {
		t.Fatalf("unexpected mate or stalemate")
	}
}

func TestFiftyMoveDraw(t *testing.T) {
	eng := NewStandard()
	pos, err := eng.Parse("4k3/8/8/8/8/8/8/R3K3 w - - 100 80")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !eng.IsDraw(pos) {
		t.Fatalf("halfmove clock 100 should be a draw")
	}
}

func TestEnPassantCapturedPiece(t *testing.T) {
	eng := NewStandard()
	pos := play(t, eng, eng.Start(), "e2e4", "a7a6", "e4e5", "d7d5")
	_, mv, err := eng.Apply(pos, Move{From: sq(t, "e5"), To: sq(t, "d6")})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if mv.Captured.Type() != nchess.Pawn || mv.Captured.Color() != nchess.Black {
		t.Fatalf("captured = %v", mv.Captured)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := NewStandard().Parse("not a fen"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("err = %v", err)
	}
}
