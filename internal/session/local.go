package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/clock"
	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/snapshot"
)

var ErrNoSnapshot = errors.New("no saved game to resume")

// LocalOptions configures a game against the computer.
type LocalOptions struct {
	Color       nchess.Color // NoColor plays white
	Difficulty  string
	TimeControl string // empty uses the configured default
	Resume      string // session id of a saved game
}

// StartLocal constructs a local game and enters playing. It returns the
// session id, which Resume accepts later.
func (s *Session) StartLocal(ctx context.Context, opts LocalOptions) (string, error) {
	var rec *snapshot.Record
	if id := strings.TrimSpace(opts.Resume); id != "" {
		if s.snaps == nil {
			return "", ErrNoSnapshot
		}
		r, err := s.snaps.Load(ctx, id)
		if err != nil {
			return "", fmt.Errorf("load snapshot: %w", err)
		}
		if r == nil {
			return "", ErrNoSnapshot
		}
		rec = r
		opts.Color = domain.ParseColor(r.PlayerColor)
		opts.Difficulty = r.Difficulty
		opts.TimeControl = r.TimeControl
	}

	tc := s.defaultTC
	if raw := strings.TrimSpace(opts.TimeControl); raw != "" {
		parsed, err := clock.ParseTimeControl(raw)
		if err != nil {
			return "", err
		}
		tc = parsed
	}
	if opts.Color != nchess.Black {
		opts.Color = nchess.White
	}
	policy := s.opponents(opts.Difficulty)

	var id string
	err := s.run(func(fx *effects) error {
		switch s.phase {
		case domain.PhaseMatchmaking, domain.PhasePlaying:
			return ErrWrongPhase
		case domain.PhaseTerminal:
			s.toLobby(fx)
		}
		id = "local-" + uuid.NewString()
		if rec != nil {
			id = rec.SessionID
		}
		s.begin(fx, domain.LocalMode{Difficulty: opts.Difficulty}, id, opts.Color, tc)
		s.policy = policy
		s.difficulty = opts.Difficulty

		if rec != nil {
			if err := s.store.Restore(rec.Moves); err != nil {
				s.toLobby(fx)
				s.store.Reset(s.eng.Start())
				return fmt.Errorf("restore snapshot: %w", err)
			}
			s.clock.Sync(rec.WhiteSeconds, rec.BlackSeconds)
			if rec.ClockRunning {
				s.clock.Start()
			}
			s.logger.Info("session_resumed", zap.String("session_id", id), zap.Int("plies", len(rec.Moves)))
			if r := s.store.Result(); r != nil {
				s.conclude(fx, *r)
				return nil
			}
		}
		s.logger.Info("session_local_started",
			zap.String("session_id", id),
			zap.String("color", domain.ColorName(opts.Color)),
			zap.String("difficulty", opts.Difficulty),
			zap.String("time_control", tc.String()),
		)
		if s.store.Turn() != s.color {
			s.scheduleOpponent()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Session) begin(fx *effects, mode domain.Mode, id string, color nchess.Color, tc clock.TimeControl) {
	s.stopOpponent()
	s.stopTicker()
	s.stopSearchTimer()
	s.mode = mode
	s.sessionID = id
	s.color = color
	s.tc = tc
	s.policy = nil
	s.difficulty = ""
	s.oppRetries = 0
	s.chat = nil
	s.startedAt = time.Now()
	s.store.Reset(s.eng.Start())
	s.clock = clock.New(tc, s.store.Turn)
	s.sel.Clear()
	s.mux.SetPerspective(color)
	s.setPhase(fx, domain.PhasePlaying)
	s.armTicker()
}

func (s *Session) scheduleOpponent() {
	s.stopOpponent()
	gen := s.oppGen
	s.oppTimer = s.sched.AfterFunc(s.settle, func() { s.opponentTurn(gen) })
}

// stopOpponent cancels a pending or in-flight opponent move.
func (s *Session) stopOpponent() {
	s.oppGen++
	if s.oppTimer != nil {
		s.oppTimer.Stop()
		s.oppTimer = nil
	}
	if s.oppCancel != nil {
		s.oppCancel()
		s.oppCancel = nil
	}
}

func (s *Session) opponentDue(gen int) bool {
	return !s.disposed &&
		gen == s.oppGen &&
		s.phase == domain.PhasePlaying &&
		!s.networked() &&
		!s.store.Concluded() &&
		s.store.Turn() != s.color
}

// opponentTurn asks the policy for a move without holding the lock, then
// applies it only if nothing changed meanwhile.
func (s *Session) opponentTurn(gen int) {
	s.mu.Lock()
	if !s.opponentDue(gen) || s.policy == nil {
		s.mu.Unlock()
		return
	}
	s.oppTimer = nil
	pos := s.store.Position()
	policy := s.policy
	ctx, cancel := context.WithCancel(s.ctx)
	s.oppCancel = cancel
	s.mu.Unlock()

	mv, err := policy.ChooseMove(ctx, pos)
	cancel()

	_ = s.run(func(fx *effects) error {
		if !s.opponentDue(gen) || s.store.FEN() != pos.FEN() {
			return nil
		}
		s.oppCancel = nil
		if err == nil {
			ch, applyErr := s.store.Apply(mv)
			if applyErr == nil {
				s.oppRetries = 0
				s.logger.Debug("session_opponent_move", zap.String("uci", mv.UCI))
				s.accepted(fx, ch, domain.Other(s.color))
				return nil
			}
			err = applyErr
		}
		s.logger.Warn("session_opponent_failed", zap.Int("retries", s.oppRetries), zap.Error(err))
		if s.oppRetries == 0 {
			s.oppRetries++
			s.scheduleOpponent()
			return nil
		}
		s.toast(fx, "opponent.failed", nil)
		return nil
	})
}

// record captures the resumable state of the current local game.
func (s *Session) record() *snapshot.Record {
	return &snapshot.Record{
		SessionID:    s.sessionID,
		PlayerColor:  domain.ColorName(s.color),
		Difficulty:   s.difficulty,
		TimeControl:  s.tc.String(),
		Moves:        s.store.UCIHistory(),
		FEN:          s.store.FEN(),
		WhiteSeconds: s.clock.Remaining(nchess.White),
		BlackSeconds: s.clock.Remaining(nchess.Black),
		ClockRunning: s.clock.Running(),
		UpdatedAt:    time.Now(),
	}
}

func (s *Session) persist(fx *effects) {
	if s.snaps == nil || s.networked() || s.sessionID == "" {
		return
	}
	rec := s.record()
	snaps := s.snaps
	fx.jobs = append(fx.jobs, func(ctx context.Context) error { return snaps.Save(ctx, rec) })
}
