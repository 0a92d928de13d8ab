package syncproto

import (
	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/domain"
)

// Event is what an inbound message means to the session.
type Event interface {
	isEvent()
}

// Clocks carries server-side remaining seconds. A nil side is unknown.
type Clocks struct {
	White *int
	Black *int
}

func (c Clocks) Known() bool { return c.White != nil || c.Black != nil }

type MatchFound struct {
	SessionID   string
	Color       nchess.Color
	Opponent    string
	FEN         string
	Moves       []string
	TimeControl string
	Clocks      Clocks
}

// PositionPush is an authoritative position. Relayed move-made frames from
// the peer are surfaced as pushes too.
type PositionPush struct {
	FEN     string
	Moves   []string
	LastSAN string
	Clocks  Clocks
}

type Outcome struct {
	Result domain.TerminalResult
}

type DrawOffered struct {
	From nchess.Color
}

type DrawDeclined struct{}

type Chat struct {
	Sender string
	Text   string
}

func (MatchFound) isEvent()   {}
func (PositionPush) isEvent() {}
func (Outcome) isEvent()      {}
func (DrawOffered) isEvent()  {}
func (DrawDeclined) isEvent() {}
func (Chat) isEvent()         {}
