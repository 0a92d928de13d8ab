package rules

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/domain"
)

// Move is a candidate or executed move. Piece, Captured, Check, SAN and UCI
// are filled by the engine; callers only set From, To and Promotion.
type Move struct {
	From      nchess.Square
	To        nchess.Square
	Promotion nchess.PieceType
	Piece     nchess.Piece
	Captured  nchess.Piece
	Check     bool
	SAN       string
	UCI       string
}

func (m Move) IsCapture() bool { return m.Captured != nchess.NoPiece }

// IsDoublePush reports a two-square pawn advance.
func (m Move) IsDoublePush() bool {
	if m.Piece.Type() != nchess.Pawn || m.From.File() != m.To.File() {
		return false
	}
	d := int(m.To.Rank()) - int(m.From.Rank())
	return d == 2 || d == -2
}

// Ply converts an executed move into the history record.
func (m Move) Ply() domain.Ply {
	return domain.Ply{
		From:      m.From,
		To:        m.To,
		Piece:     m.Piece,
		Captured:  m.Captured,
		Promotion: m.Promotion,
		Check:     m.Check,
		SAN:       m.SAN,
		UCI:       m.uci(),
	}
}

func (m Move) uci() string {
	if m.UCI != "" {
		return m.UCI
	}
	return FormatUCI(m.From, m.To, m.Promotion)
}

// FormatUCI renders e2e4 / e7e8q.
func FormatUCI(from, to nchess.Square, promo nchess.PieceType) string {
	var b strings.Builder
	b.WriteString(from.String())
	b.WriteString(to.String())
	if l := promoLetter(promo); l != "" {
		b.WriteString(l)
	}
	return b.String()
}

// ParseSquare accepts "e4" style names.
func ParseSquare(s string) (nchess.Square, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return nchess.NoSquare, false
	}
	f, r := s[0], s[1]
	if f < 'a' || f > 'h' || r < '1' || r > '8' {
		return nchess.NoSquare, false
	}
	return nchess.NewSquare(nchess.File(f-'a'), nchess.Rank(r-'1')), true
}

// ParsePromotion maps q/r/b/n (or full names) to a piece type.
func ParsePromotion(s string) nchess.PieceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "q", "queen":
		return nchess.Queen
	case "r", "rook":
		return nchess.Rook
	case "b", "bishop":
		return nchess.Bishop
	case "n", "knight":
		return nchess.Knight
	default:
		return nchess.NoPieceType
	}
}

func promoLetter(pt nchess.PieceType) string {
	switch pt {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}
