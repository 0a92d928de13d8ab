// Package session runs one game at a time: lobby, matchmaking, play and the
// terminal screen. Every handler is serialised by a single mutex; outbound
// frames, persistence and presentation notices are dispatched after it is
// released, in the order the handlers ran.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/archive"
	"github.com/park285/cheese-gamecenter/internal/board"
	"github.com/park285/cheese-gamecenter/internal/clock"
	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/input"
	"github.com/park285/cheese-gamecenter/internal/msgcat"
	"github.com/park285/cheese-gamecenter/internal/opponent"
	"github.com/park285/cheese-gamecenter/internal/rules"
	"github.com/park285/cheese-gamecenter/internal/selection"
	"github.com/park285/cheese-gamecenter/internal/snapshot"
	"github.com/park285/cheese-gamecenter/internal/syncproto"
)

var (
	ErrTerminal     = errors.New("game is over")
	ErrNotYourTurn  = errors.New("not your turn")
	ErrIllegalMove  = errors.New("illegal move")
	ErrNoGame       = errors.New("no game in progress")
	ErrWrongPhase   = errors.New("action not allowed in this phase")
	ErrNotNetworked = errors.New("no sync server configured")
	ErrDisposed     = errors.New("session disposed")
)

const (
	tickInterval = time.Second
	sendTimeout  = 5 * time.Second
	chatHistory  = 50
)

type Config struct {
	Engine rules.Engine
	// Opponents maps a difficulty name to a policy. Nil means Random.
	Opponents func(difficulty string) opponent.Policy
	// Sender carries sync frames. Nil disables networked play.
	Sender     syncproto.Sender
	PlayerID   string
	PlayerName string

	TimeControl   clock.TimeControl
	SettleDelay   time.Duration
	SearchTimeout time.Duration

	Scheduler Scheduler
	Listener  Listener
	Catalog   *msgcat.Catalog
	Snapshots snapshot.Store
	Archive   archive.Archive
	Logger    *zap.Logger

	// Closers are released by Dispose.
	Closers []io.Closer
}

// ChatLine is one received or sent chat message.
type ChatLine struct {
	Sender string
	Text   string
	At     time.Time
}

type Session struct {
	eng           rules.Engine
	opponents     func(string) opponent.Policy
	sender        syncproto.Sender
	self          string
	playerName    string
	defaultTC     clock.TimeControl
	settle        time.Duration
	searchTimeout time.Duration
	sched         Scheduler
	listener      Listener
	cat           *msgcat.Catalog
	snaps         snapshot.Store
	arch          archive.Archive
	logger        *zap.Logger
	closers       []io.Closer

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	// queue holds effects in handler order. Whoever sets draining empties
	// it; qmu is never held while taking mu or running effects.
	qmu      sync.Mutex
	queue    []*effects
	draining bool
	idle     *sync.Cond

	disposed   bool
	phase      domain.Phase
	mode       domain.Mode
	sessionID  string
	color      nchess.Color
	difficulty string
	tc         clock.TimeControl
	startedAt  time.Time
	chat       []ChatLine

	store  *board.Store
	clock  *clock.Manager
	sel    *selection.Cache
	mux    *input.Multiplexer
	proto  *syncproto.Protocol
	policy opponent.Policy

	oppTimer   Timer
	oppGen     int
	oppCancel  context.CancelFunc
	oppRetries int

	tickTimer Timer
	tickGen   int
	tickNext  time.Time

	searchTimer Timer
	searchGen   int
}

// New builds an idle session in the lobby.
func New(cfg Config) (*Session, error) {
	if cfg.Engine == nil {
		return nil, errors.New("session: rules engine required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = WallClock()
	}
	tc := cfg.TimeControl
	if !tc.Unlimited && tc.BaseSeconds <= 0 {
		tc = clock.TimeControl{Unlimited: true}
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = msgcat.Default()
	}
	opponents := cfg.Opponents
	if opponents == nil {
		eng := cfg.Engine
		opponents = func(string) opponent.Policy { return opponent.NewRandom(eng, time.Now().UnixNano()) }
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		eng:           cfg.Engine,
		opponents:     opponents,
		sender:        cfg.Sender,
		self:          cfg.PlayerID,
		playerName:    cfg.PlayerName,
		defaultTC:     tc,
		settle:        cfg.SettleDelay,
		searchTimeout: cfg.SearchTimeout,
		sched:         sched,
		listener:      cfg.Listener,
		cat:           cat,
		snaps:         cfg.Snapshots,
		arch:          cfg.Archive,
		logger:        logger.Named("session"),
		closers:       cfg.Closers,
		ctx:           ctx,
		cancel:        cancel,
		phase:         domain.PhaseLobby,
		color:         nchess.White,
		tc:            tc,
		sel:           selection.NewCache(cfg.Engine),
		mux:           input.New(),
	}
	s.idle = sync.NewCond(&s.qmu)
	s.store = board.New(cfg.Engine, s.logger)
	s.clock = clock.New(tc, s.store.Turn)
	s.proto = syncproto.New(cfg.PlayerID, s.logger)
	return s, nil
}

// Dispose stops every pending callback, saves an in-progress local game and
// releases the configured closers. Later calls return nil.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	var rec *snapshot.Record
	if s.phase == domain.PhasePlaying && !s.networked() {
		rec = s.record()
	}
	s.disposed = true
	s.stopOpponent()
	s.stopTicker()
	s.stopSearchTimer()
	s.clock.Stop()
	s.mu.Unlock()

	s.drain()
	s.qmu.Lock()
	for s.draining || len(s.queue) > 0 {
		s.idle.Wait()
	}
	s.qmu.Unlock()

	var result *multierror.Error
	if rec != nil && s.snaps != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := s.snaps.Save(ctx, rec); err != nil {
			result = multierror.Append(result, err)
		}
		cancel()
	}
	s.cancel()
	for _, c := range s.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

type effects struct {
	notices []Notice
	out     []syncproto.Message
	jobs    []func(ctx context.Context) error
}

func (fx *effects) empty() bool {
	return len(fx.notices) == 0 && len(fx.out) == 0 && len(fx.jobs) == 0
}

// run executes fn under the session lock and queues its effects before the
// lock is released, so effects leave in handler order. They are dispatched
// with no session lock held.
func (s *Session) run(fn func(fx *effects) error) error {
	fx := &effects{}
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return ErrDisposed
	}
	err := fn(fx)
	if !fx.empty() {
		s.qmu.Lock()
		s.queue = append(s.queue, fx)
		s.qmu.Unlock()
	}
	s.mu.Unlock()
	s.drain()
	return err
}

// drain flushes queued effects unless another goroutine already is. A
// handler that finds the queue busy returns at once; the active drainer
// picks up its effects.
func (s *Session) drain() {
	s.qmu.Lock()
	if s.draining {
		s.qmu.Unlock()
		return
	}
	s.draining = true
	for len(s.queue) > 0 {
		fx := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.qmu.Unlock()
		s.flush(fx)
		s.qmu.Lock()
	}
	s.draining = false
	s.idle.Broadcast()
	s.qmu.Unlock()
}

func (s *Session) flush(fx *effects) {
	for _, msg := range fx.out {
		if s.sender == nil {
			break
		}
		ctx, cancel := context.WithTimeout(s.ctx, sendTimeout)
		if err := s.sender.Send(ctx, msg); err != nil {
			s.logger.Warn("session_send_failed", zap.String("type", string(msg.Type)), zap.Error(err))
		}
		cancel()
	}
	for _, job := range fx.jobs {
		ctx, cancel := context.WithTimeout(s.ctx, sendTimeout)
		if err := job(ctx); err != nil {
			s.logger.Warn("session_persist_failed", zap.Error(err))
		}
		cancel()
	}
	if s.listener == nil {
		return
	}
	for _, n := range fx.notices {
		s.listener.Notify(n)
	}
}

func (s *Session) toast(fx *effects, key string, data any) {
	fx.notices = append(fx.notices, Notice{Toast: s.cat.Text(key, data), ToastKey: key})
}

func (s *Session) setPhase(fx *effects, p domain.Phase) {
	if s.phase == p {
		return
	}
	s.logger.Info("session_phase", zap.String("from", string(s.phase)), zap.String("to", string(p)))
	s.phase = p
	fx.notices = append(fx.notices, Notice{Phase: p})
}

func (s *Session) networked() bool { return s.mode != nil && s.mode.Networked() }

// ReturnToLobby leaves the terminal screen.
func (s *Session) ReturnToLobby() error {
	return s.run(func(fx *effects) error {
		if s.phase != domain.PhaseTerminal {
			return ErrWrongPhase
		}
		s.toLobby(fx)
		return nil
	})
}

func (s *Session) toLobby(fx *effects) {
	s.stopOpponent()
	s.stopTicker()
	s.stopSearchTimer()
	s.clock.Stop()
	s.sel.Clear()
	s.store.Reset(s.eng.Start())
	s.mode = nil
	s.sessionID = ""
	s.setPhase(fx, domain.PhaseLobby)
}

// Phase is safe to call from any goroutine.
func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}
