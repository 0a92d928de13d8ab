package syncproto

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/domain"
)

var (
	ErrMalformed         = errors.New("malformed message")
	ErrWrongSession      = errors.New("message for another session")
	ErrUnexpectedMessage = errors.New("unexpected message")
	ErrNotActive         = errors.New("no active networked game")
	ErrNoDrawOffer       = errors.New("no draw offer pending")
	ErrDrawOfferPending  = errors.New("draw offer already pending")
)

// State of one networked game.
type State string

const (
	StateIdle          State = "idle"
	StateAwaitingMatch State = "awaitingMatch"
	StateActive        State = "active"
	StateTerminal      State = "terminal"
)

// DrawOffer is a pending offer from one side.
type DrawOffer struct {
	From nchess.Color
}

// Protocol tracks the networked game state and builds outbound frames.
// It never sends; callers dispatch the returned messages. Not safe for
// concurrent use.
type Protocol struct {
	self   string
	logger *zap.Logger

	state     State
	sessionID string
	color     nchess.Color
	opponent  string
	offer     *DrawOffer
}

// New creates a protocol for the local player identity self.
func New(self string, logger *zap.Logger) *Protocol {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Protocol{self: self, logger: logger, state: StateIdle}
}

func (p *Protocol) State() State        { return p.state }
func (p *Protocol) SessionID() string   { return p.sessionID }
func (p *Protocol) Color() nchess.Color { return p.color }
func (p *Protocol) Opponent() string    { return p.opponent }
func (p *Protocol) Self() string        { return p.self }
func (p *Protocol) Active() bool        { return p.state == StateActive }
func (p *Protocol) OpponentColor() nchess.Color {
	return domain.Other(p.color)
}

func (p *Protocol) Offer() *DrawOffer {
	if p.offer == nil {
		return nil
	}
	o := *p.offer
	return &o
}

// Search enters awaitingMatch and returns the search request.
func (p *Protocol) Search(timeControl string) Message {
	p.reset()
	p.state = StateAwaitingMatch
	return Message{Type: KindSearch, Sender: p.self, TimeControl: timeControl}
}

// CancelSearch leaves awaitingMatch. ok is false when no search was pending.
func (p *Protocol) CancelSearch() (Message, bool) {
	if p.state != StateAwaitingMatch {
		return Message{}, false
	}
	p.reset()
	return Message{Type: KindCancelSearch, Sender: p.self}, true
}

func (p *Protocol) reset() {
	p.state = StateIdle
	p.sessionID = ""
	p.color = nchess.NoColor
	p.opponent = ""
	p.offer = nil
}

// Ingest validates msg against the current state and translates it into an
// Event. A nil Event with a nil error means the frame is a harmless echo.
func (p *Protocol) Ingest(msg Message) (Event, error) {
	if msg.Type == KindMatchFound {
		return p.matchFound(msg)
	}
	if p.state == StateIdle || p.state == StateAwaitingMatch {
		return nil, fmt.Errorf("%w: %s while %s", ErrUnexpectedMessage, msg.Type, p.state)
	}
	if msg.SessionID != "" && msg.SessionID != p.sessionID {
		return nil, fmt.Errorf("%w: got %s, have %s", ErrWrongSession, msg.SessionID, p.sessionID)
	}
	if msg.Type == KindChat {
		return Chat{Sender: msg.Sender, Text: msg.Text}, nil
	}
	if p.state == StateTerminal {
		return nil, nil
	}

	switch msg.Type {
	case KindPositionPush:
		if strings.TrimSpace(msg.FEN) == "" {
			return nil, fmt.Errorf("%w: position-push without fen", ErrMalformed)
		}
		return PositionPush{FEN: msg.FEN, Moves: msg.Moves, LastSAN: msg.Notation, Clocks: clocksOf(msg)}, nil

	case KindMoveMade:
		if msg.Sender == p.self || strings.TrimSpace(msg.FEN) == "" {
			return nil, nil
		}
		return PositionPush{FEN: msg.FEN, Moves: msg.Moves, LastSAN: msg.Notation, Clocks: clocksOf(msg)}, nil

	case KindOutcome:
		result, err := resultOf(msg)
		if err != nil {
			return nil, err
		}
		p.state = StateTerminal
		p.offer = nil
		return Outcome{Result: result}, nil

	case KindDrawOffered:
		from := domain.ParseColor(msg.Side)
		if from == nchess.NoColor {
			from = p.OpponentColor()
			if msg.Sender != "" && msg.Sender == p.self {
				from = p.color
			}
		}
		p.offer = &DrawOffer{From: from}
		return DrawOffered{From: from}, nil

	case KindDrawDeclined:
		p.offer = nil
		return DrawDeclined{}, nil

	case KindResign:
		if msg.Sender == p.self {
			return nil, nil
		}
		loser := domain.ParseColor(msg.Side)
		if loser == nchess.NoColor {
			loser = p.OpponentColor()
		}
		p.state = StateTerminal
		p.offer = nil
		return Outcome{Result: domain.TerminalResult{Reason: domain.ReasonResignation, Winner: domain.Other(loser)}}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnexpectedMessage, msg.Type)
}

func (p *Protocol) matchFound(msg Message) (Event, error) {
	switch {
	case p.state == StateActive && msg.SessionID == p.sessionID:
		return nil, nil
	case p.state != StateAwaitingMatch:
		return nil, fmt.Errorf("%w: match-found while %s", ErrUnexpectedMessage, p.state)
	case msg.SessionID == "":
		return nil, fmt.Errorf("%w: match-found without session id", ErrMalformed)
	}
	color := domain.ParseColor(msg.Color)
	if color == nchess.NoColor {
		return nil, fmt.Errorf("%w: match-found with color %q", ErrMalformed, msg.Color)
	}
	p.state = StateActive
	p.sessionID = msg.SessionID
	p.color = color
	p.opponent = msg.Opponent
	p.offer = nil
	p.logger.Info("sync_match_found",
		zap.String("session_id", p.sessionID),
		zap.String("color", msg.Color),
		zap.String("opponent", p.opponent),
	)
	return MatchFound{
		SessionID:   msg.SessionID,
		Color:       color,
		Opponent:    msg.Opponent,
		FEN:         msg.FEN,
		Moves:       msg.Moves,
		TimeControl: msg.TimeControl,
		Clocks:      clocksOf(msg),
	}, nil
}

// MoveMade builds the frame for a locally accepted move and withdraws the
// local player's own pending offer.
func (p *Protocol) MoveMade(fen, uci, san string, moves []string) (Message, error) {
	if p.state != StateActive {
		return Message{}, ErrNotActive
	}
	p.NoteMove(p.color)
	return Message{
		Type:      KindMoveMade,
		SessionID: p.sessionID,
		Sender:    p.self,
		FEN:       fen,
		Move:      uci,
		Notation:  san,
		Moves:     append([]string(nil), moves...),
	}, nil
}

// NoteMove withdraws an offer made by side. An offer from the other side
// stays pending when side moves.
func (p *Protocol) NoteMove(side nchess.Color) {
	if p.offer != nil && p.offer.From == side {
		p.offer = nil
	}
}

func (p *Protocol) OfferDraw() (Message, error) {
	if p.state != StateActive {
		return Message{}, ErrNotActive
	}
	if p.offer != nil {
		return Message{}, ErrDrawOfferPending
	}
	p.offer = &DrawOffer{From: p.color}
	return p.frame(KindOfferDraw), nil
}

// AcceptDraw accepts the opponent's offer and ends the game drawn.
func (p *Protocol) AcceptDraw() (Message, domain.TerminalResult, error) {
	if p.state != StateActive {
		return Message{}, domain.TerminalResult{}, ErrNotActive
	}
	if p.offer == nil || p.offer.From != p.OpponentColor() {
		return Message{}, domain.TerminalResult{}, ErrNoDrawOffer
	}
	p.offer = nil
	p.state = StateTerminal
	return p.frame(KindAcceptDraw), domain.TerminalResult{Reason: domain.ReasonDraw, Winner: nchess.NoColor}, nil
}

func (p *Protocol) DeclineDraw() (Message, error) {
	if p.state != StateActive {
		return Message{}, ErrNotActive
	}
	if p.offer == nil || p.offer.From != p.OpponentColor() {
		return Message{}, ErrNoDrawOffer
	}
	p.offer = nil
	return p.frame(KindDeclineDraw), nil
}

func (p *Protocol) Resign() (Message, domain.TerminalResult, error) {
	if p.state != StateActive {
		return Message{}, domain.TerminalResult{}, ErrNotActive
	}
	p.offer = nil
	p.state = StateTerminal
	msg := p.frame(KindResign)
	msg.Side = domain.ColorName(p.color)
	return msg, domain.TerminalResult{Reason: domain.ReasonResignation, Winner: p.OpponentColor()}, nil
}

// Conclude marks the game over after a locally detected result.
func (p *Protocol) Conclude() {
	if p.state == StateActive {
		p.state = StateTerminal
		p.offer = nil
	}
}

func (p *Protocol) Chat(text string) (Message, error) {
	if p.sessionID == "" {
		return Message{}, ErrNotActive
	}
	msg := p.frame(KindChat)
	msg.Text = text
	return msg, nil
}

// Rejoin asks for a fresh authoritative push after a reconnect.
func (p *Protocol) Rejoin() (Message, bool) {
	if p.state != StateActive || p.sessionID == "" {
		return Message{}, false
	}
	return p.frame(KindRequestSync), true
}

func (p *Protocol) frame(kind Kind) Message {
	return Message{Type: kind, SessionID: p.sessionID, Sender: p.self}
}

func clocksOf(msg Message) Clocks {
	return Clocks{White: msg.WhiteSeconds, Black: msg.BlackSeconds}
}

func resultOf(msg Message) (domain.TerminalResult, error) {
	reason, ok := domain.ParseReason(msg.Reason)
	if !ok {
		return domain.TerminalResult{}, fmt.Errorf("%w: outcome reason %q", ErrMalformed, msg.Reason)
	}
	winner := domain.ParseColor(msg.Winner)
	switch reason {
	case domain.ReasonCheckmate, domain.ReasonResignation, domain.ReasonTimeout:
		if winner == nchess.NoColor {
			return domain.TerminalResult{}, fmt.Errorf("%w: %s outcome without winner", ErrMalformed, reason)
		}
	default:
		winner = nchess.NoColor
	}
	return domain.TerminalResult{Reason: reason, Winner: winner}, nil
}
