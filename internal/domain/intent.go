package domain

import nchess "github.com/corentings/chess/v2"

// Intent is the uniform value produced by every input channel.
type Intent interface {
	isIntent()
}

// SelectIntent asks for the legal destinations of Square.
type SelectIntent struct {
	Square nchess.Square
}

// MoveIntent asks for a move. Promotion is NoPieceType unless chosen explicitly.
type MoveIntent struct {
	From      nchess.Square
	To        nchess.Square
	Promotion nchess.PieceType
}

// CancelIntent clears the active selection.
type CancelIntent struct{}

// NoticeIntent is a no-op that still owes the user feedback. Key is a msgcat key.
type NoticeIntent struct {
	Key string
}

func (SelectIntent) isIntent() {}
func (MoveIntent) isIntent()   {}
func (CancelIntent) isIntent() {}
func (NoticeIntent) isIntent() {}
