package rules

import (
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Position is an immutable snapshot. Every transition produces a new value
// backed by its own game clone, so readers can hold one across an update.
type Position struct {
	game  *nchess.Game
	fen   string
	check bool
}

func newPosition(game *nchess.Game, check bool) *Position {
	return &Position{game: game, fen: canonicalFEN(game), check: check}
}

// FEN is the canonical serialization used for equality checks. The en
// passant field is kept only when a legal capture can use it, so servers
// that omit a dead en passant square still compare equal.
func (p *Position) FEN() string {
	if p == nil {
		return ""
	}
	return p.fen
}

func (p *Position) Turn() nchess.Color {
	if p == nil {
		return nchess.NoColor
	}
	return p.game.Position().Turn()
}

func (p *Position) PieceAt(sq nchess.Square) nchess.Piece {
	if p == nil {
		return nchess.NoPiece
	}
	return p.game.Position().Board().Piece(sq)
}

func (p *Position) InCheck() bool { return p != nil && p.check }

// HalfmoveClock is the fifty-move counter from the FEN.
func (p *Position) HalfmoveClock() int { return fenInt(p.FEN(), 4) }

// PlyOffset is the number of half-moves implied by the FEN move number,
// non-zero for positions that did not start from the initial setup.
func (p *Position) PlyOffset() int {
	full := fenInt(p.FEN(), 5)
	if full < 1 {
		full = 1
	}
	off := (full - 1) * 2
	if p.Turn() == nchess.Black {
		off++
	}
	return off - len(p.game.Moves())
}

// MoveCount is the number of moves applied since this position's root.
func (p *Position) MoveCount() int {
	if p == nil {
		return 0
	}
	return len(p.game.Moves())
}

// Game returns a clone of the backing game for read-only consumers such as
// the opening book.
func (p *Position) Game() *nchess.Game {
	if p == nil {
		return nil
	}
	return p.game.Clone()
}

func canonicalFEN(game *nchess.Game) string {
	fields := strings.Fields(game.FEN())
	if len(fields) < 4 || fields[3] == "-" {
		return strings.Join(fields, " ")
	}
	valid := game.ValidMoves()
	for i := range valid {
		if valid[i].HasTag(nchess.EnPassant) {
			return strings.Join(fields, " ")
		}
	}
	fields[3] = "-"
	return strings.Join(fields, " ")
}

func fenInt(fen string, idx int) int {
	fields := strings.Fields(fen)
	if idx >= len(fields) {
		return 0
	}
	n, err := strconv.Atoi(fields[idx])
	if err != nil {
		return 0
	}
	return n
}
