package session

import (
	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/board"
	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/selection"
	"github.com/park285/cheese-gamecenter/internal/syncproto"
)

type ClockView struct {
	White       int
	Black       int
	Active      nchess.Color
	Running     bool
	Unlimited   bool
	TimeControl string
}

// View is a read-only copy of everything the presentation layer draws.
type View struct {
	Phase       domain.Phase
	SessionID   string
	Networked   bool
	Opponent    string
	Difficulty  string
	PlayerColor nchess.Color
	Perspective nchess.Color
	Cursor      nchess.Square
	FEN         string
	Turn        nchess.Color
	InCheck     bool
	Selection   *selection.Selection
	Highlight   board.Highlight
	Tally       board.Tally
	Material    board.Material
	Opening     board.Opening
	MovesUCI    []string
	MovesSAN    []string
	Clock       ClockView
	Result      *domain.TerminalResult
	DrawOffer   *syncproto.DrawOffer
	Chat        []ChatLine
}

func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos := s.store.Position()
	v := View{
		Phase:       s.phase,
		SessionID:   s.sessionID,
		Networked:   s.networked(),
		Difficulty:  s.difficulty,
		PlayerColor: s.color,
		Perspective: s.mux.Perspective(),
		Cursor:      s.mux.Cursor(),
		FEN:         pos.FEN(),
		Turn:        pos.Turn(),
		InCheck:     pos.InCheck(),
		Highlight:   s.store.Highlight(),
		Tally:       s.store.Tally(),
		Material:    s.store.Material(),
		Opening:     s.store.Opening(),
		MovesUCI:    s.store.UCIHistory(),
		MovesSAN:    s.store.SANHistory(),
		Result:      s.store.Result(),
		Clock: ClockView{
			White:       s.clock.Remaining(nchess.White),
			Black:       s.clock.Remaining(nchess.Black),
			Active:      s.clock.Active(),
			Running:     s.clock.Running(),
			Unlimited:   s.clock.Unlimited(),
			TimeControl: s.tc.String(),
		},
		Chat: append([]ChatLine(nil), s.chat...),
	}
	if v.Networked {
		v.Opponent = s.proto.Opponent()
		v.DrawOffer = s.proto.Offer()
	}
	if sel, ok := s.sel.Current(pos); ok {
		v.Selection = &sel
	}
	return v
}

// LegalFrom lists the destinations selectable from sq in the current
// position without changing the selection.
func (s *Session) LegalFrom(sq nchess.Square) []selection.Destination {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := selection.NewCache(s.eng)
	sel, ok := tmp.Select(s.store.Position(), sq)
	if !ok {
		return nil
	}
	return sel.Destinations
}
