package session

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/board"
	"github.com/park285/cheese-gamecenter/internal/clock"
	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/syncproto"
)

func (s *Session) canNetwork() bool { return s.sender != nil && s.self != "" }

// Search asks the sync server for an opponent and enters matchmaking.
func (s *Session) Search(timeControl string) error {
	tcRaw := strings.TrimSpace(timeControl)
	if tcRaw == "" {
		tcRaw = s.defaultTC.String()
	} else if _, err := clock.ParseTimeControl(tcRaw); err != nil {
		return err
	}
	return s.run(func(fx *effects) error {
		if !s.canNetwork() {
			return ErrNotNetworked
		}
		switch s.phase {
		case domain.PhaseMatchmaking, domain.PhasePlaying:
			return ErrWrongPhase
		case domain.PhaseTerminal:
			s.toLobby(fx)
		}
		fx.out = append(fx.out, s.proto.Search(tcRaw))
		s.setPhase(fx, domain.PhaseMatchmaking)
		s.toast(fx, "match.searching", map[string]any{"TimeControl": tcRaw})
		s.armSearchTimer()
		return nil
	})
}

// CancelSearch returns to the lobby. No callback of the search fires later.
func (s *Session) CancelSearch() error {
	return s.run(func(fx *effects) error {
		if s.phase != domain.PhaseMatchmaking {
			return ErrWrongPhase
		}
		s.stopSearchTimer()
		if msg, ok := s.proto.CancelSearch(); ok {
			fx.out = append(fx.out, msg)
		}
		s.setPhase(fx, domain.PhaseLobby)
		s.toast(fx, "match.cancelled", nil)
		return nil
	})
}

func (s *Session) armSearchTimer() {
	s.stopSearchTimer()
	if s.searchTimeout <= 0 {
		return
	}
	gen := s.searchGen
	s.searchTimer = s.sched.AfterFunc(s.searchTimeout, func() { s.onSearchTimeout(gen) })
}

func (s *Session) stopSearchTimer() {
	s.searchGen++
	if s.searchTimer != nil {
		s.searchTimer.Stop()
		s.searchTimer = nil
	}
}

func (s *Session) onSearchTimeout(gen int) {
	_ = s.run(func(fx *effects) error {
		if gen != s.searchGen || s.phase != domain.PhaseMatchmaking {
			return nil
		}
		s.searchTimer = nil
		if msg, ok := s.proto.CancelSearch(); ok {
			fx.out = append(fx.out, msg)
		}
		s.logger.Info("session_search_timeout")
		s.setPhase(fx, domain.PhaseLobby)
		s.toast(fx, "match.timed_out", nil)
		return nil
	})
}

// HandleMessage applies one inbound sync frame. Frames for another session
// or out of phase are dropped and reported through the returned error.
func (s *Session) HandleMessage(msg syncproto.Message) error {
	return s.run(func(fx *effects) error {
		ev, err := s.proto.Ingest(msg)
		if err != nil {
			if errors.Is(err, syncproto.ErrWrongSession) {
				s.logger.Info("sync_message_dropped", zap.String("type", string(msg.Type)), zap.Error(err))
			} else {
				s.logger.Debug("sync_message_rejected", zap.String("type", string(msg.Type)), zap.Error(err))
			}
			return err
		}
		switch e := ev.(type) {
		case nil:
			return nil
		case syncproto.MatchFound:
			s.matchFound(fx, e)
		case syncproto.PositionPush:
			s.positionPush(fx, e)
		case syncproto.Outcome:
			s.conclude(fx, e.Result)
		case syncproto.DrawOffered:
			if e.From != s.color {
				s.toast(fx, "draw.offered", map[string]any{"Side": titleColor(e.From)})
			}
		case syncproto.DrawDeclined:
			s.toast(fx, "draw.declined", nil)
		case syncproto.Chat:
			s.addChat(e.Sender, e.Text)
			s.toast(fx, "chat.line", map[string]any{"Sender": e.Sender, "Text": e.Text})
		}
		return nil
	})
}

func (s *Session) matchFound(fx *effects, e syncproto.MatchFound) {
	if s.phase != domain.PhaseMatchmaking {
		s.logger.Info("sync_match_found_out_of_phase", zap.String("phase", string(s.phase)))
	}
	tc := s.defaultTC
	if parsed, err := clock.ParseTimeControl(e.TimeControl); err == nil && strings.TrimSpace(e.TimeControl) != "" {
		tc = parsed
	}
	s.begin(fx, domain.NetworkedMode{SessionID: e.SessionID, Remote: e.Opponent}, e.SessionID, e.Color, tc)
	if strings.TrimSpace(e.FEN) != "" {
		if _, err := s.store.ApplyAuthoritative(board.Snapshot{FEN: e.FEN, Moves: e.Moves}); err != nil {
			s.logger.Warn("sync_match_found_bad_position", zap.Error(err))
		}
	}
	s.syncClocks(e.Clocks)
	if len(s.store.Plies()) > 0 {
		s.clock.Start()
	}
	s.toast(fx, "match.found", map[string]any{"Opponent": e.Opponent, "Color": domain.ColorName(e.Color)})
	if r := s.store.Result(); r != nil {
		s.conclude(fx, *r)
	}
}

func (s *Session) positionPush(fx *effects, e syncproto.PositionPush) {
	if s.phase != domain.PhasePlaying {
		return
	}
	ch, err := s.store.ApplyAuthoritative(board.Snapshot{FEN: e.FEN, Moves: e.Moves, LastSAN: e.LastSAN})
	if err != nil {
		s.logger.Info("sync_push_rejected", zap.String("fen", e.FEN), zap.Error(err))
		return
	}
	s.syncClocks(e.Clocks)
	if !ch.Changed {
		return
	}
	if ch.Desync {
		s.logger.Info("sync_desync_overwrite", zap.String("fen", s.store.FEN()))
		s.toast(fx, "sync.desync", nil)
	}
	s.sel.Clear()
	mover := domain.Other(s.store.Turn())
	if ch.Ply != nil || ch.Desync {
		s.clock.Start()
		if !e.Clocks.Known() {
			s.clock.Credit(mover)
		}
		s.proto.NoteMove(mover)
	}
	if ch.Cue != board.CueNone {
		fx.notices = append(fx.notices, Notice{Cue: ch.Cue})
	}
	if ch.Terminal != nil {
		s.conclude(fx, *ch.Terminal)
	}
}

func (s *Session) syncClocks(c syncproto.Clocks) {
	if !c.Known() {
		return
	}
	white, black := -1, -1
	if c.White != nil {
		white = *c.White
	}
	if c.Black != nil {
		black = *c.Black
	}
	s.clock.Sync(white, black)
}

// Reconnected re-requests the authoritative position after the transport
// comes back.
func (s *Session) Reconnected() error {
	return s.run(func(fx *effects) error {
		if s.phase != domain.PhasePlaying || !s.networked() {
			return nil
		}
		msg, ok := s.proto.Rejoin()
		if !ok {
			return nil
		}
		s.logger.Info("sync_rejoin", zap.String("session_id", s.sessionID))
		fx.out = append(fx.out, msg)
		s.toast(fx, "sync.restored", nil)
		return nil
	})
}

// ConnectionLost only informs the player; the transport reconnects itself.
func (s *Session) ConnectionLost() error {
	return s.run(func(fx *effects) error {
		if s.networked() && s.phase == domain.PhasePlaying {
			s.toast(fx, "sync.lost", nil)
		}
		return nil
	})
}

func (s *Session) requireNetworkedGame() error {
	switch {
	case s.phase == domain.PhaseTerminal:
		return ErrTerminal
	case s.phase != domain.PhasePlaying:
		return ErrNoGame
	case !s.networked():
		return ErrNotNetworked
	}
	return nil
}

func (s *Session) OfferDraw() error {
	return s.run(func(fx *effects) error {
		if err := s.requireNetworkedGame(); err != nil {
			return err
		}
		msg, err := s.proto.OfferDraw()
		if err != nil {
			if errors.Is(err, syncproto.ErrDrawOfferPending) {
				s.toast(fx, "draw.pending", nil)
			}
			return err
		}
		fx.out = append(fx.out, msg)
		s.toast(fx, "draw.sent", nil)
		return nil
	})
}

func (s *Session) AcceptDraw() error {
	return s.run(func(fx *effects) error {
		if err := s.requireNetworkedGame(); err != nil {
			return err
		}
		msg, result, err := s.proto.AcceptDraw()
		if err != nil {
			if errors.Is(err, syncproto.ErrNoDrawOffer) {
				s.toast(fx, "draw.no_offer", nil)
			}
			return err
		}
		fx.out = append(fx.out, msg)
		s.conclude(fx, result)
		return nil
	})
}

func (s *Session) DeclineDraw() error {
	return s.run(func(fx *effects) error {
		if err := s.requireNetworkedGame(); err != nil {
			return err
		}
		msg, err := s.proto.DeclineDraw()
		if err != nil {
			if errors.Is(err, syncproto.ErrNoDrawOffer) {
				s.toast(fx, "draw.no_offer", nil)
			}
			return err
		}
		fx.out = append(fx.out, msg)
		return nil
	})
}

// Resign ends the current game, local or networked, as a loss.
func (s *Session) Resign() error {
	return s.run(func(fx *effects) error {
		switch {
		case s.phase == domain.PhaseTerminal:
			return ErrTerminal
		case s.phase != domain.PhasePlaying:
			return ErrNoGame
		}
		if !s.networked() {
			s.conclude(fx, domain.TerminalResult{Reason: domain.ReasonResignation, Winner: domain.Other(s.color)})
			return nil
		}
		msg, result, err := s.proto.Resign()
		if err != nil {
			return err
		}
		fx.out = append(fx.out, msg)
		s.conclude(fx, result)
		return nil
	})
}

// Chat sends text to the peer of a networked game.
func (s *Session) Chat(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.run(func(fx *effects) error {
		if !s.networked() {
			return ErrNotNetworked
		}
		msg, err := s.proto.Chat(text)
		if err != nil {
			return err
		}
		fx.out = append(fx.out, msg)
		s.addChat(s.self, text)
		return nil
	})
}

func (s *Session) addChat(sender, text string) {
	s.chat = append(s.chat, ChatLine{Sender: sender, Text: text, At: time.Now()})
	if n := len(s.chat); n > chatHistory {
		s.chat = append([]ChatLine(nil), s.chat[n-chatHistory:]...)
	}
}
