// Package selection caches the legal destinations of the selected square.
package selection

import (
	"sort"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/rules"
)

// Destination is one highlighted target square.
type Destination struct {
	Square      nchess.Square
	Capture     bool
	Recommended bool
	Move        rules.Move
}

// Selection is bound to the canonical position it was computed against.
type Selection struct {
	Origin       nchess.Square
	Destinations []Destination
	Recommended  nchess.Square
	FEN          string
}

func (s Selection) Targets() []nchess.Square {
	out := make([]nchess.Square, len(s.Destinations))
	for i, d := range s.Destinations {
		out[i] = d.Square
	}
	return out
}

type Cache struct {
	eng rules.Engine
	cur *Selection
}

func NewCache(eng rules.Engine) *Cache { return &Cache{eng: eng} }

// Select replaces the selection with sq. It returns false, clearing any
// prior selection, when sq is not a movable piece of the side to move.
func (c *Cache) Select(pos *rules.Position, sq nchess.Square) (Selection, bool) {
	c.cur = nil
	if pos == nil {
		return Selection{}, false
	}
	piece := pos.PieceAt(sq)
	if piece == nchess.NoPiece || piece.Color() != pos.Turn() {
		return Selection{}, false
	}
	dests := rank(dedupe(c.eng.LegalMovesFrom(pos, sq)), pos.Turn())
	if len(dests) == 0 {
		return Selection{}, false
	}
	dests[0].Recommended = true
	sel := &Selection{
		Origin:       sq,
		Destinations: dests,
		Recommended:  dests[0].Square,
		FEN:          pos.FEN(),
	}
	c.cur = sel
	return *sel, true
}

// Current returns the selection if it is still valid for pos. A selection
// computed against another position is dropped silently.
func (c *Cache) Current(pos *rules.Position) (Selection, bool) {
	if c.cur == nil {
		return Selection{}, false
	}
	if pos == nil || c.cur.FEN != pos.FEN() {
		c.cur = nil
		return Selection{}, false
	}
	return *c.cur, true
}

func (c *Cache) Clear() { c.cur = nil }

func (c *Cache) IsTarget(pos *rules.Position, sq nchess.Square) bool {
	_, ok := c.Target(pos, sq)
	return ok
}

// Target looks up the cached move landing on sq.
func (c *Cache) Target(pos *rules.Position, sq nchess.Square) (Destination, bool) {
	sel, ok := c.Current(pos)
	if !ok {
		return Destination{}, false
	}
	for _, d := range sel.Destinations {
		if d.Square == sq {
			return d, true
		}
	}
	return Destination{}, false
}

// dedupe keeps one move per destination, preferring the queen promotion.
func dedupe(moves []rules.Move) []Destination {
	idx := make(map[nchess.Square]int, len(moves))
	out := make([]Destination, 0, len(moves))
	for _, m := range moves {
		if i, ok := idx[m.To]; ok {
			if m.Promotion == nchess.Queen {
				out[i].Move = m
			}
			continue
		}
		idx[m.To] = len(out)
		out = append(out, Destination{Square: m.To, Capture: m.IsCapture(), Move: m})
	}
	return out
}

func rank(d []Destination, side nchess.Color) []Destination {
	sort.SliceStable(d, func(i, j int) bool { return better(d[i], d[j], side) })
	return d
}

func better(a, b Destination, side nchess.Color) bool {
	if a.Capture != b.Capture {
		return a.Capture
	}
	if a.Move.Piece.Type() == nchess.Pawn && b.Move.Piece.Type() == nchess.Pawn {
		if da, db := a.Move.IsDoublePush(), b.Move.IsDoublePush(); da != db {
			return da
		}
	}
	if ra, rb := distanceToBackRank(a.Square, side), distanceToBackRank(b.Square, side); ra != rb {
		return ra < rb
	}
	if a.Square.File() != b.Square.File() {
		return a.Square.File() < b.Square.File()
	}
	return a.Square < b.Square
}

func distanceToBackRank(sq nchess.Square, side nchess.Color) int {
	if side == nchess.Black {
		return int(sq.Rank())
	}
	return 7 - int(sq.Rank())
}
