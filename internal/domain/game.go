package domain

import (
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Phase is the top-level lifecycle stage of a session.
type Phase string

const (
	PhaseLobby       Phase = "lobby"
	PhaseMatchmaking Phase = "matchmaking"
	PhasePlaying     Phase = "playing"
	PhaseTerminal    Phase = "terminal"
)

// Reason identifies how a game ended.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonDraw                 Reason = "draw"
	ReasonStalemate            Reason = "stalemate"
	ReasonRepetition           Reason = "repetition"
	ReasonInsufficientMaterial Reason = "insufficientMaterial"
	ReasonResignation          Reason = "resignation"
	ReasonTimeout              Reason = "timeout"
)

var reasons = map[string]Reason{
	"checkmate":            ReasonCheckmate,
	"draw":                 ReasonDraw,
	"stalemate":            ReasonStalemate,
	"repetition":           ReasonRepetition,
	"insufficientmaterial": ReasonInsufficientMaterial,
	"resignation":          ReasonResignation,
	"timeout":              ReasonTimeout,
}

// ParseReason accepts the wire spelling of a reason, case-insensitively.
func ParseReason(s string) (Reason, bool) {
	r, ok := reasons[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

// TerminalResult is set once per game. Winner is NoColor for drawn results.
type TerminalResult struct {
	Reason Reason
	Winner nchess.Color
}

func (r TerminalResult) Drawn() bool { return r.Winner == nchess.NoColor }

// Ply is one executed half-move.
type Ply struct {
	From      nchess.Square
	To        nchess.Square
	Piece     nchess.Piece
	Captured  nchess.Piece
	Promotion nchess.PieceType
	Check     bool
	SAN       string
	UCI       string
}

func (p Ply) IsCapture() bool { return p.Captured != nchess.NoPiece }

// Other returns the opposing side. NoColor maps to NoColor.
func Other(c nchess.Color) nchess.Color {
	switch c {
	case nchess.White:
		return nchess.Black
	case nchess.Black:
		return nchess.White
	default:
		return nchess.NoColor
	}
}

// ColorName returns the wire name of a side: "white", "black" or "".
func ColorName(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "white"
	case nchess.Black:
		return "black"
	default:
		return ""
	}
}

// ParseColor accepts "white"/"w" and "black"/"b".
func ParseColor(s string) nchess.Color {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return nchess.White
	case "black", "b":
		return nchess.Black
	default:
		return nchess.NoColor
	}
}
