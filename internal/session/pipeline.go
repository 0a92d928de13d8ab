package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/archive"
	"github.com/park285/cheese-gamecenter/internal/board"
	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/input"
	"github.com/park285/cheese-gamecenter/internal/rules"
)

// boardView is the multiplexer's read side. It is only used under s.mu.
type boardView struct{ s *Session }

func (v boardView) PieceAt(sq nchess.Square) nchess.Piece { return v.s.store.Position().PieceAt(sq) }
func (v boardView) PlayerColor() nchess.Color             { return v.s.color }

func (v boardView) Selected() (nchess.Square, bool) {
	sel, ok := v.s.sel.Current(v.s.store.Position())
	return sel.Origin, ok
}

func (v boardView) IsTarget(sq nchess.Square) bool {
	return v.s.sel.IsTarget(v.s.store.Position(), sq)
}

var _ input.BoardView = boardView{}

// Click feeds a pointer click through the multiplexer.
func (s *Session) Click(sq nchess.Square) error {
	return s.run(func(fx *effects) error {
		if s.phase != domain.PhasePlaying {
			return nil
		}
		return s.dispatch(fx, s.mux.Click(boardView{s}, sq))
	})
}

// Drop delivers a completed drag.
func (s *Session) Drop(from, to nchess.Square, promo nchess.PieceType) error {
	return s.run(func(fx *effects) error {
		if s.phase != domain.PhasePlaying {
			return nil
		}
		return s.dispatch(fx, s.mux.Drop(from, to, promo))
	})
}

// Key feeds one keyboard command.
func (s *Session) Key(k input.Key) error {
	return s.run(func(fx *effects) error {
		if s.phase != domain.PhasePlaying {
			return nil
		}
		return s.dispatch(fx, s.mux.Key(boardView{s}, k))
	})
}

func (s *Session) Select(sq nchess.Square) error {
	return s.run(func(fx *effects) error {
		if s.phase != domain.PhasePlaying {
			return nil
		}
		return s.dispatch(fx, domain.SelectIntent{Square: sq})
	})
}

// Move submits a move directly, bypassing the multiplexer.
func (s *Session) Move(from, to nchess.Square, promo nchess.PieceType) error {
	return s.run(func(fx *effects) error {
		return s.dispatch(fx, domain.MoveIntent{From: from, To: to, Promotion: promo})
	})
}

// Cancel clears the active selection.
func (s *Session) Cancel() error {
	return s.run(func(fx *effects) error {
		return s.dispatch(fx, domain.CancelIntent{})
	})
}

// Flip shows the board from the other side.
func (s *Session) Flip() error {
	return s.run(func(fx *effects) error {
		s.mux.Flip()
		return nil
	})
}

func (s *Session) dispatch(fx *effects, intent domain.Intent) error {
	switch it := intent.(type) {
	case nil:
		return nil
	case domain.SelectIntent:
		if s.phase != domain.PhasePlaying || s.store.Concluded() {
			return nil
		}
		s.mux.SetCursor(it.Square)
		if _, ok := s.sel.Select(s.store.Position(), it.Square); !ok {
			s.logger.Debug("session_select_empty", zap.String("square", it.Square.String()))
		}
		return nil
	case domain.MoveIntent:
		return s.tryMove(fx, it)
	case domain.CancelIntent:
		s.sel.Clear()
		return nil
	case domain.NoticeIntent:
		s.toast(fx, it.Key, nil)
		return nil
	}
	return fmt.Errorf("unknown intent %T", intent)
}

// tryMove rejects in a fixed order: terminal, wrong turn, illegal.
func (s *Session) tryMove(fx *effects, it domain.MoveIntent) error {
	uci := rules.FormatUCI(it.From, it.To, it.Promotion)
	switch {
	case s.phase == domain.PhaseTerminal:
		s.logger.Debug("session_move_rejected", zap.String("uci", uci), zap.String("reason", "terminal"))
		return ErrTerminal
	case s.phase != domain.PhasePlaying:
		return ErrNoGame
	case s.store.Concluded():
		s.logger.Debug("session_move_rejected", zap.String("uci", uci), zap.String("reason", "concluded"))
		return ErrTerminal
	case s.store.Turn() != s.color:
		s.logger.Debug("session_move_rejected", zap.String("uci", uci), zap.String("reason", "not_your_turn"))
		s.toast(fx, "move.not_your_turn", nil)
		return ErrNotYourTurn
	}

	ch, err := s.store.Apply(rules.Move{From: it.From, To: it.To, Promotion: it.Promotion})
	if err != nil {
		if errors.Is(err, board.ErrConcluded) {
			return ErrTerminal
		}
		s.logger.Debug("session_move_rejected", zap.String("uci", uci), zap.String("reason", "illegal"))
		s.toast(fx, "move.illegal", map[string]any{"Move": uci})
		return fmt.Errorf("%w: %s", ErrIllegalMove, uci)
	}
	s.logger.Info("session_move_accepted", zap.String("uci", ch.Ply.UCI), zap.String("san", ch.Ply.SAN))
	s.accepted(fx, ch, s.color)
	return nil
}

// accepted runs the follow-up of a move by mover that the store took.
func (s *Session) accepted(fx *effects, ch board.Change, mover nchess.Color) {
	s.sel.Clear()
	s.clock.Start()
	s.clock.Credit(mover)
	if ch.Cue != board.CueNone {
		fx.notices = append(fx.notices, Notice{Cue: ch.Cue})
	}

	if s.networked() {
		if mover == s.color && ch.Ply != nil {
			msg, err := s.proto.MoveMade(s.store.FEN(), ch.Ply.UCI, ch.Ply.SAN, s.store.UCIHistory())
			if err != nil {
				s.logger.Warn("session_move_not_sent", zap.Error(err))
			} else {
				fx.out = append(fx.out, msg)
			}
		} else {
			s.proto.NoteMove(mover)
		}
	} else {
		s.persist(fx)
	}

	if ch.Terminal != nil {
		s.conclude(fx, *ch.Terminal)
		return
	}
	if !s.networked() && mover == s.color {
		s.scheduleOpponent()
	}
}

// conclude enters terminal. The first result recorded by the store wins.
func (s *Session) conclude(fx *effects, r domain.TerminalResult) {
	if s.phase == domain.PhaseTerminal {
		return
	}
	s.store.Conclude(r)
	final := r
	if stored := s.store.Result(); stored != nil {
		final = *stored
	}
	s.clock.Stop()
	s.stopTicker()
	s.stopOpponent()
	s.sel.Clear()
	if s.networked() {
		s.proto.Conclude()
	}
	s.logger.Info("session_terminal",
		zap.String("session_id", s.sessionID),
		zap.String("reason", string(final.Reason)),
		zap.String("winner", domain.ColorName(final.Winner)),
	)
	s.setPhase(fx, domain.PhaseTerminal)
	fx.notices = append(fx.notices, Notice{
		Terminal: &final,
		Toast:    s.cat.Text(outcomeKey(final), s.outcomeData(final)),
		ToastKey: outcomeKey(final),
	})
	s.archiveGame(fx, final)
}

func outcomeKey(r domain.TerminalResult) string {
	switch r.Reason {
	case domain.ReasonInsufficientMaterial:
		return "outcome.insufficient_material"
	case domain.ReasonDraw:
		return "outcome.draw"
	default:
		return "outcome." + string(r.Reason)
	}
}

func (s *Session) outcomeData(r domain.TerminalResult) map[string]any {
	return map[string]any{
		"Winner": titleColor(r.Winner),
		"Loser":  titleColor(domain.Other(r.Winner)),
	}
}

func titleColor(c nchess.Color) string {
	switch c {
	case nchess.White:
		return "White"
	case nchess.Black:
		return "Black"
	default:
		return ""
	}
}

func (s *Session) archiveGame(fx *effects, r domain.TerminalResult) {
	id := s.sessionID
	if id == "" {
		return
	}
	if s.snaps != nil && !s.networked() {
		snaps := s.snaps
		fx.jobs = append(fx.jobs, func(ctx context.Context) error { return snaps.Delete(ctx, id) })
	}
	if s.arch == nil {
		return
	}
	g := &archive.Game{
		SessionID:   id,
		Mode:        "local",
		TimeControl: s.tc.String(),
		Reason:      string(r.Reason),
		Winner:      domain.ColorName(r.Winner),
		Opening:     s.store.Opening().Title,
		MovesUCI:    s.store.UCIHistory(),
		MovesSAN:    s.store.SANHistory(),
		StartedAt:   s.startedAt,
		EndedAt:     time.Now(),
	}
	me, them := s.playerName, "computer"
	if s.networked() {
		g.Mode = "networked"
		them = s.proto.Opponent()
	}
	if s.color == nchess.White {
		g.WhiteName, g.BlackName = me, them
	} else {
		g.WhiteName, g.BlackName = them, me
	}
	arch := s.arch
	fx.jobs = append(fx.jobs, func(ctx context.Context) error { return arch.Save(ctx, g) })
}

// armTicker schedules the next clock tick. Deadlines sit on a one-second
// grid anchored when the ticker starts, so late callbacks do not drift.
func (s *Session) armTicker() {
	if s.clock.Unlimited() || s.tickTimer != nil {
		return
	}
	now := s.sched.Now()
	if s.tickNext.IsZero() {
		s.tickNext = now.Add(tickInterval)
	}
	gen := s.tickGen
	s.tickTimer = s.sched.AfterFunc(max(s.tickNext.Sub(now), 0), func() { s.onTick(gen) })
}

func (s *Session) stopTicker() {
	s.tickGen++
	s.tickNext = time.Time{}
	if s.tickTimer != nil {
		s.tickTimer.Stop()
		s.tickTimer = nil
	}
}

func (s *Session) onTick(gen int) {
	_ = s.run(func(fx *effects) error {
		if gen != s.tickGen || s.phase != domain.PhasePlaying {
			return nil
		}
		s.tickTimer = nil
		// one tick per deadline passed
		for now := s.sched.Now(); !now.Before(s.tickNext); {
			s.tickNext = s.tickNext.Add(tickInterval)
			if r := s.clock.Tick(); r != nil {
				s.logger.Info("clock_timeout", zap.String("loser", domain.ColorName(domain.Other(r.Winner))))
				s.conclude(fx, *r)
				return nil
			}
		}
		s.armTicker()
		return nil
	})
}
