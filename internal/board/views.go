package board

import (
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/rules"
)

// Cue is the audio cue for a change, picked check > capture > move.
type Cue string

const (
	CueNone    Cue = ""
	CueMove    Cue = "move"
	CueCapture Cue = "capture"
	CueCheck   Cue = "check"
)

func cueFor(p domain.Ply) Cue {
	switch {
	case p.Check:
		return CueCheck
	case p.IsCapture():
		return CueCapture
	default:
		return CueMove
	}
}

// Highlight marks the last move's squares.
type Highlight struct {
	From  nchess.Square
	To    nchess.Square
	Valid bool
}

// Tally holds pieces captured by each side, in capture order.
type Tally struct {
	ByWhite []nchess.PieceType
	ByBlack []nchess.PieceType
}

// Count returns how many pieces of type pt the side c has captured.
func (t Tally) Count(c nchess.Color, pt nchess.PieceType) int {
	list := t.ByWhite
	if c == nchess.Black {
		list = t.ByBlack
	}
	n := 0
	for _, v := range list {
		if v == pt {
			n++
		}
	}
	return n
}

func (t Tally) Equal(o Tally) bool {
	return equalTypes(t.ByWhite, o.ByWhite) && equalTypes(t.ByBlack, o.ByBlack)
}

func equalTypes(a, b []nchess.PieceType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ComputeTally derives the capture tally from the ply list alone.
func ComputeTally(plies []domain.Ply) Tally {
	var t Tally
	for _, p := range plies {
		if !p.IsCapture() {
			continue
		}
		pt := p.Captured.Type()
		if pt == nchess.NoPieceType || pt == nchess.King {
			continue
		}
		if p.Captured.Color() == nchess.Black {
			t.ByWhite = append(t.ByWhite, pt)
		} else {
			t.ByBlack = append(t.ByBlack, pt)
		}
	}
	return t
}

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

// Material is the on-board piece value per side and the white-minus-black delta.
type Material struct {
	White int
	Black int
	Delta int
}

func computeMaterial(pos *rules.Position) Material {
	var m Material
	if pos == nil {
		return m
	}
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := pos.PieceAt(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			v := pieceValues[piece.Type()]
			if piece.Color() == nchess.White {
				m.White += v
			} else {
				m.Black += v
			}
		}
	}
	m.Delta = m.White - m.Black
	return m
}

// Opening is the ECO classification of the played line, if known.
type Opening struct {
	Code  string
	Title string
}

var (
	ecoOnce sync.Once
	ecoBook *opening.BookECO
)

func lookupOpening(pos *rules.Position) Opening {
	if pos == nil || pos.MoveCount() == 0 || pos.PlyOffset() != 0 {
		return Opening{}
	}
	ecoOnce.Do(func() { ecoBook = opening.NewBookECO() })
	if ecoBook == nil {
		return Opening{}
	}
	game := pos.Game()
	if eco := ecoBook.Find(game.Moves()); eco != nil {
		return Opening{Code: eco.Code(), Title: eco.Title()}
	}
	return Opening{}
}
