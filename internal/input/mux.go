// Package input turns pointer and keyboard events into domain intents.
// It never decides legality; that happens downstream in the move pipeline.
package input

import (
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/domain"
)

// Key is a keyboard command.
type Key string

const (
	KeyUp      Key = "up"
	KeyDown    Key = "down"
	KeyLeft    Key = "left"
	KeyRight   Key = "right"
	KeyConfirm Key = "confirm"
	KeyCancel  Key = "cancel"
)

// ParseKey accepts command names and common key labels.
func ParseKey(s string) (Key, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "arrowup", "w":
		return KeyUp, true
	case "down", "arrowdown", "s":
		return KeyDown, true
	case "left", "arrowleft", "a":
		return KeyLeft, true
	case "right", "arrowright", "d":
		return KeyRight, true
	case "confirm", "enter", "space", " ":
		return KeyConfirm, true
	case "cancel", "escape", "esc":
		return KeyCancel, true
	}
	return "", false
}

// Notice keys raised as NoticeIntent.
const NoticeNothingToSelect = "input.nothing_to_select"

// BoardView is the read side the multiplexer needs.
type BoardView interface {
	PieceAt(sq nchess.Square) nchess.Piece
	PlayerColor() nchess.Color
	Selected() (nchess.Square, bool)
	IsTarget(sq nchess.Square) bool
}

// Multiplexer holds the keyboard cursor and the viewing perspective.
type Multiplexer struct {
	cursor      nchess.Square
	perspective nchess.Color
}

func New() *Multiplexer {
	return &Multiplexer{cursor: nchess.NewSquare(nchess.FileE, nchess.Rank2), perspective: nchess.White}
}

func (m *Multiplexer) Cursor() nchess.Square      { return m.cursor }
func (m *Multiplexer) Perspective() nchess.Color  { return m.perspective }
func (m *Multiplexer) SetCursor(sq nchess.Square) { m.cursor = sq }

// SetPerspective orients the board. Anything but Black means white at the bottom.
func (m *Multiplexer) SetPerspective(c nchess.Color) {
	if c != nchess.Black {
		c = nchess.White
	}
	m.perspective = c
}

func (m *Multiplexer) Flip() { m.SetPerspective(domain.Other(m.perspective)) }

// Click handles a pointer click on sq. A nil intent means the click is ignored.
func (m *Multiplexer) Click(v BoardView, sq nchess.Square) domain.Intent {
	m.cursor = sq
	if selected, ok := v.Selected(); ok {
		if v.IsTarget(sq) {
			return domain.MoveIntent{From: selected, To: sq}
		}
		if own(v, sq) {
			return domain.SelectIntent{Square: sq}
		}
		return nil
	}
	if own(v, sq) {
		return domain.SelectIntent{Square: sq}
	}
	return nil
}

// Drop delivers source and destination together; no selection is raised.
func (m *Multiplexer) Drop(from, to nchess.Square, promo nchess.PieceType) domain.Intent {
	if from == to {
		return nil
	}
	m.cursor = to
	return domain.MoveIntent{From: from, To: to, Promotion: promo}
}

// Key handles a keyboard command.
func (m *Multiplexer) Key(v BoardView, k Key) domain.Intent {
	switch k {
	case KeyUp:
		m.step(0, 1)
	case KeyDown:
		m.step(0, -1)
	case KeyLeft:
		m.step(-1, 0)
	case KeyRight:
		m.step(1, 0)
	case KeyCancel:
		return domain.CancelIntent{}
	case KeyConfirm:
		return m.confirm(v)
	}
	return nil
}

func (m *Multiplexer) confirm(v BoardView) domain.Intent {
	sq := m.cursor
	selected, ok := v.Selected()
	if !ok {
		if own(v, sq) {
			return domain.SelectIntent{Square: sq}
		}
		return domain.NoticeIntent{Key: NoticeNothingToSelect}
	}
	if own(v, sq) && !v.IsTarget(sq) {
		return domain.SelectIntent{Square: sq}
	}
	return domain.MoveIntent{From: selected, To: sq}
}

// step moves the cursor in screen space, clamped to the board.
func (m *Multiplexer) step(df, dr int) {
	if m.perspective == nchess.Black {
		df, dr = -df, -dr
	}
	file := clamp(int(m.cursor.File()) + df)
	rank := clamp(int(m.cursor.Rank()) + dr)
	m.cursor = nchess.NewSquare(nchess.File(file), nchess.Rank(rank))
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 7 {
		return 7
	}
	return v
}

func own(v BoardView, sq nchess.Square) bool {
	p := v.PieceAt(sq)
	return p != nchess.NoPiece && p.Color() == v.PlayerColor()
}
