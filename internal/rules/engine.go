package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrIllegalMove = errors.New("illegal move")
	ErrInvalidFEN  = errors.New("invalid fen")
)

// Engine is the rules collaborator. Legality and terminal detection live in
// github.com/corentings/chess; this interface only adapts it.
type Engine interface {
	Start() *Position
	Parse(fen string) (*Position, error)
	LegalMoves(pos *Position) []Move
	LegalMovesFrom(pos *Position, sq nchess.Square) []Move
	Apply(pos *Position, mv Move) (*Position, Move, error)
	IsCheckmate(pos *Position) bool
	IsStalemate(pos *Position) bool
	IsDraw(pos *Position) bool
	IsThreefoldRepetition(pos *Position) bool
	IsInsufficientMaterial(pos *Position) bool
	InCheck(pos *Position) bool
}

// Standard implements Engine with orthodox chess rules.
type Standard struct{}

func NewStandard() *Standard { return &Standard{} }

func (Standard) Start() *Position {
	return newPosition(nchess.NewGame(), false)
}

func (Standard) Parse(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, ErrInvalidFEN
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	game := nchess.NewGame(opt)
	return newPosition(game, inCheck(game.Position())), nil
}

func (Standard) LegalMoves(pos *Position) []Move {
	if pos == nil {
		return nil
	}
	cur := pos.game.Position()
	valid := pos.game.ValidMoves()
	out := make([]Move, 0, len(valid))
	for i := range valid {
		out = append(out, describe(cur, &valid[i]))
	}
	return out
}

func (s Standard) LegalMovesFrom(pos *Position, sq nchess.Square) []Move {
	all := s.LegalMoves(pos)
	out := all[:0]
	for _, m := range all {
		if m.From == sq {
			out = append(out, m)
		}
	}
	return out
}

// Apply returns the successor position and the fully described move.
// A pawn reaching the last rank without an explicit piece promotes to a queen.
func (Standard) Apply(pos *Position, mv Move) (*Position, Move, error) {
	if pos == nil {
		return nil, Move{}, ErrIllegalMove
	}
	cur := pos.game.Position()
	if mv.Promotion == nchess.NoPieceType && promotes(cur, mv.From, mv.To) {
		mv.Promotion = nchess.Queen
	}
	uci := FormatUCI(mv.From, mv.To, mv.Promotion)

	next := pos.game.Clone()
	decoded, err := nchess.UCINotation{}.Decode(next.Position(), uci)
	if err != nil {
		return nil, Move{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}
	if err := next.Move(decoded, nil); err != nil {
		return nil, Move{}, fmt.Errorf("%w: %s: %v", ErrIllegalMove, uci, err)
	}

	moves := next.Moves()
	last := moves[len(moves)-1]
	out := describe(cur, last)
	out.SAN = nchess.AlgebraicNotation{}.Encode(cur, last)
	out.Check = out.Check || inCheck(next.Position())
	return newPosition(next, out.Check), out, nil
}

func (Standard) IsCheckmate(pos *Position) bool {
	return pos != nil && pos.game.Position().Status() == nchess.Checkmate
}

func (Standard) IsStalemate(pos *Position) bool {
	return pos != nil && pos.game.Position().Status() == nchess.Stalemate
}

// IsDraw covers the fifty-move rule and the automatic draws the library
// declares on its own (fivefold, seventy-five moves).
func (Standard) IsDraw(pos *Position) bool {
	if pos == nil {
		return false
	}
	return eligible(pos.game, nchess.FiftyMoveRule) || pos.game.Outcome() == nchess.Draw
}

// IsThreefoldRepetition counts along the position's own history.
func (Standard) IsThreefoldRepetition(pos *Position) bool {
	return pos != nil && eligible(pos.game, nchess.ThreefoldRepetition)
}

func (Standard) IsInsufficientMaterial(pos *Position) bool {
	return pos != nil && pos.game.Method() == nchess.InsufficientMaterial
}

func (Standard) InCheck(pos *Position) bool { return pos.InCheck() }

func describe(cur *nchess.Position, mv *nchess.Move) Move {
	out := Move{
		From:      mv.S1(),
		To:        mv.S2(),
		Promotion: mv.Promo(),
		Piece:     cur.Board().Piece(mv.S1()),
		Captured:  nchess.NoPiece,
		Check:     mv.HasTag(nchess.Check),
	}
	if mv.HasTag(nchess.Capture) || mv.HasTag(nchess.EnPassant) {
		out.Captured = capturedPiece(cur, mv)
	}
	out.UCI = FormatUCI(out.From, out.To, out.Promotion)
	return out
}

func capturedPiece(cur *nchess.Position, mv *nchess.Move) nchess.Piece {
	sq := mv.S2()
	if mv.HasTag(nchess.EnPassant) {
		if cur.Turn() == nchess.White {
			sq = nchess.NewSquare(mv.S2().File(), mv.S2().Rank()-1)
		} else {
			sq = nchess.NewSquare(mv.S2().File(), mv.S2().Rank()+1)
		}
	}
	return cur.Board().Piece(sq)
}

func promotes(cur *nchess.Position, from, to nchess.Square) bool {
	p := cur.Board().Piece(from)
	if p.Type() != nchess.Pawn {
		return false
	}
	return (p.Color() == nchess.White && to.Rank() == nchess.Rank8) ||
		(p.Color() == nchess.Black && to.Rank() == nchess.Rank1)
}

func eligible(game *nchess.Game, method nchess.Method) bool {
	for _, m := range game.EligibleDraws() {
		if m == method {
			return true
		}
	}
	return false
}
