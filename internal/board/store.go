// Package board owns the current game value and its derived views.
package board

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/rules"
)

var ErrConcluded = errors.New("game already concluded")

// Snapshot is an authoritative position. Moves, when present, is the full
// UCI history from the initial position.
type Snapshot struct {
	FEN     string
	Moves   []string
	LastSAN string
}

// Change describes one store transition. A zero Change means nothing moved.
type Change struct {
	Changed  bool
	Ply      *domain.Ply
	Cue      Cue
	Terminal *domain.TerminalResult
	Desync   bool
}

// Store is not safe for concurrent use; the session serialises access.
type Store struct {
	eng    rules.Engine
	logger *zap.Logger

	pos       *rules.Position
	plies     []domain.Ply
	tally     Tally
	highlight Highlight
	material  Material
	opening   Opening
	result    *domain.TerminalResult
}

func New(eng rules.Engine, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{eng: eng, logger: logger}
	s.Reset(eng.Start())
	return s
}

// Reset starts a fresh game from pos, clearing history and any result.
func (s *Store) Reset(pos *rules.Position) {
	s.pos = pos
	s.plies = nil
	s.result = nil
	s.recompute()
}

// Restore rebuilds a game from a UCI history. Used for snapshot resume.
func (s *Store) Restore(moves []string) error {
	pos, plies, err := s.replay(moves)
	if err != nil {
		return err
	}
	s.pos = pos
	s.plies = plies
	s.result = nil
	s.recompute()
	if r := s.detect(); r != nil {
		s.result = r
	}
	return nil
}

func (s *Store) Position() *rules.Position { return s.pos }
func (s *Store) FEN() string               { return s.pos.FEN() }
func (s *Store) Turn() nchess.Color        { return s.pos.Turn() }
func (s *Store) Tally() Tally              { return s.tally }
func (s *Store) Highlight() Highlight      { return s.highlight }
func (s *Store) Material() Material        { return s.material }
func (s *Store) Opening() Opening          { return s.opening }

func (s *Store) Plies() []domain.Ply {
	return append([]domain.Ply(nil), s.plies...)
}

// UCIHistory returns the ply list in UCI notation.
func (s *Store) UCIHistory() []string {
	out := make([]string, len(s.plies))
	for i, p := range s.plies {
		out[i] = p.UCI
	}
	return out
}

func (s *Store) SANHistory() []string {
	out := make([]string, len(s.plies))
	for i, p := range s.plies {
		out[i] = p.SAN
	}
	return out
}

func (s *Store) Result() *domain.TerminalResult {
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

func (s *Store) Concluded() bool { return s.result != nil }

// Conclude records an externally decided result. Only the first call wins.
func (s *Store) Conclude(r domain.TerminalResult) bool {
	if s.result != nil {
		return false
	}
	s.result = &r
	return true
}

// Apply validates mv through the rules engine and appends it.
func (s *Store) Apply(mv rules.Move) (Change, error) {
	if s.result != nil {
		return Change{}, ErrConcluded
	}
	next, done, err := s.eng.Apply(s.pos, mv)
	if err != nil {
		return Change{}, err
	}
	ply := done.Ply()
	s.pos = next
	s.plies = append(s.plies, ply)
	return s.commit(&ply), nil
}

// ApplyAuthoritative overwrites local state with snap. Re-applying the
// position already held is a no-op so echoes never replay side effects.
func (s *Store) ApplyAuthoritative(snap Snapshot) (Change, error) {
	incoming, err := s.eng.Parse(snap.FEN)
	if err != nil {
		return Change{}, fmt.Errorf("authoritative position: %w", err)
	}
	if incoming.FEN() == s.pos.FEN() {
		return Change{}, nil
	}

	if len(snap.Moves) > 0 {
		if pos, plies, err := s.replay(snap.Moves); err == nil && pos.FEN() == incoming.FEN() {
			grew := len(plies) > len(s.plies)
			desync := !sharesPrefix(s.plies, plies)
			s.pos = pos
			s.plies = plies
			var last *domain.Ply
			if grew && len(plies) > 0 {
				p := plies[len(plies)-1]
				last = &p
			}
			ch := s.commit(last)
			ch.Desync = desync
			return ch, nil
		}
	}

	for _, cand := range s.eng.LegalMoves(s.pos) {
		next, done, err := s.eng.Apply(s.pos, cand)
		if err != nil || next.FEN() != incoming.FEN() {
			continue
		}
		ply := done.Ply()
		s.pos = next
		s.plies = append(s.plies, ply)
		return s.commit(&ply), nil
	}

	s.logger.Info("board_authoritative_reset",
		zap.String("from", s.pos.FEN()),
		zap.String("to", incoming.FEN()),
	)
	s.pos = incoming
	s.plies = nil
	ch := s.commit(nil)
	ch.Desync = true
	if incoming.InCheck() || strings.HasSuffix(snap.LastSAN, "+") || strings.HasSuffix(snap.LastSAN, "#") {
		ch.Cue = CueCheck
	} else {
		ch.Cue = CueMove
	}
	return ch, nil
}

func (s *Store) commit(ply *domain.Ply) Change {
	s.recompute()
	ch := Change{Changed: true, Ply: ply}
	if ply != nil {
		ch.Cue = cueFor(*ply)
	}
	if s.result == nil {
		if r := s.detect(); r != nil {
			s.result = r
			ch.Terminal = s.Result()
		}
	}
	return ch
}

func (s *Store) recompute() {
	s.tally = ComputeTally(s.plies)
	s.material = computeMaterial(s.pos)
	s.opening = lookupOpening(s.pos)
	s.highlight = Highlight{}
	if n := len(s.plies); n > 0 {
		last := s.plies[n-1]
		s.highlight = Highlight{From: last.From, To: last.To, Valid: true}
	}
}

func (s *Store) detect() *domain.TerminalResult {
	pos := s.pos
	switch {
	case s.eng.IsCheckmate(pos):
		return &domain.TerminalResult{Reason: domain.ReasonCheckmate, Winner: domain.Other(pos.Turn())}
	case s.eng.IsStalemate(pos):
		return &domain.TerminalResult{Reason: domain.ReasonStalemate, Winner: nchess.NoColor}
	case s.eng.IsThreefoldRepetition(pos):
		return &domain.TerminalResult{Reason: domain.ReasonRepetition, Winner: nchess.NoColor}
	case s.eng.IsInsufficientMaterial(pos):
		return &domain.TerminalResult{Reason: domain.ReasonInsufficientMaterial, Winner: nchess.NoColor}
	case s.eng.IsDraw(pos):
		return &domain.TerminalResult{Reason: domain.ReasonDraw, Winner: nchess.NoColor}
	}
	return nil
}

func (s *Store) replay(moves []string) (*rules.Position, []domain.Ply, error) {
	pos := s.eng.Start()
	plies := make([]domain.Ply, 0, len(moves))
	for _, raw := range moves {
		uci := strings.ToLower(strings.TrimSpace(raw))
		if len(uci) < 4 {
			return nil, nil, fmt.Errorf("replay %q: %w", raw, rules.ErrIllegalMove)
		}
		from, ok1 := rules.ParseSquare(uci[:2])
		to, ok2 := rules.ParseSquare(uci[2:4])
		if !ok1 || !ok2 {
			return nil, nil, fmt.Errorf("replay %q: %w", raw, rules.ErrIllegalMove)
		}
		next, done, err := s.eng.Apply(pos, rules.Move{From: from, To: to, Promotion: rules.ParsePromotion(uci[4:])})
		if err != nil {
			return nil, nil, fmt.Errorf("replay %q: %w", raw, err)
		}
		pos = next
		plies = append(plies, done.Ply())
	}
	return pos, plies, nil
}

func sharesPrefix(local, remote []domain.Ply) bool {
	n := len(local)
	if len(remote) < n {
		n = len(remote)
	}
	for i := 0; i < n; i++ {
		if local[i].UCI != remote[i].UCI {
			return false
		}
	}
	return true
}
