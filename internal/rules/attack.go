package rules

import nchess "github.com/corentings/chess/v2"

var (
	knightSteps = [][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	straightRay = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagonalRay = [][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// inCheck reports whether the side to move has its king attacked. Pins are
// irrelevant here: a pinned piece still gives check.
func inCheck(pos *nchess.Position) bool {
	if pos == nil {
		return false
	}
	side := pos.Turn()
	king := findKing(pos.Board(), side)
	if king == nchess.NoSquare {
		return false
	}
	return attacked(pos.Board(), king, side.Other())
}

// attacked reports whether a piece of colour by attacks sq.
func attacked(b *nchess.Board, sq nchess.Square, by nchess.Color) bool {
	f, r := int(sq.File()), int(sq.Rank())
	is := func(p nchess.Piece, types ...nchess.PieceType) bool {
		if p == nchess.NoPiece || p.Color() != by {
			return false
		}
		for _, t := range types {
			if p.Type() == t {
				return true
			}
		}
		return false
	}
	for _, d := range knightSteps {
		if p, ok := pieceAt(b, f+d[0], r+d[1]); ok && is(p, nchess.Knight) {
			return true
		}
	}
	for _, d := range kingSteps {
		if p, ok := pieceAt(b, f+d[0], r+d[1]); ok && is(p, nchess.King) {
			return true
		}
	}
	// a white pawn attacks upwards, so it sits one rank below its target
	pawnRank := r - 1
	if by == nchess.Black {
		pawnRank = r + 1
	}
	for _, df := range []int{-1, 1} {
		if p, ok := pieceAt(b, f+df, pawnRank); ok && is(p, nchess.Pawn) {
			return true
		}
	}
	slide := func(rays [][2]int, types ...nchess.PieceType) bool {
		for _, d := range rays {
			for step := 1; ; step++ {
				p, ok := pieceAt(b, f+d[0]*step, r+d[1]*step)
				if !ok {
					break
				}
				if p == nchess.NoPiece {
					continue
				}
				if is(p, types...) {
					return true
				}
				break
			}
		}
		return false
	}
	return slide(straightRay, nchess.Rook, nchess.Queen) || slide(diagonalRay, nchess.Bishop, nchess.Queen)
}

func pieceAt(b *nchess.Board, file, rank int) (nchess.Piece, bool) {
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return nchess.NoPiece, false
	}
	return b.Piece(nchess.NewSquare(nchess.File(file), nchess.Rank(rank))), true
}

func findKing(b *nchess.Board, c nchess.Color) nchess.Square {
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			sq := nchess.NewSquare(file, rank)
			p := b.Piece(sq)
			if p.Type() == nchess.King && p.Color() == c {
				return sq
			}
		}
	}
	return nchess.NoSquare
}
