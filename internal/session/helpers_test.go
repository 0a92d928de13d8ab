package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/opponent"
	"github.com/park285/cheese-gamecenter/internal/rules"
	"github.com/park285/cheese-gamecenter/internal/syncproto"
)

type fakeTimer struct {
	sched   *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// manualScheduler fires callbacks only from Advance, in due order.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (m *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &fakeTimer{sched: m, at: m.now + d, f: f}
	m.timers = append(m.timers, t)
	return t
}

var schedEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func (m *manualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return schedEpoch.Add(m.now)
}

// Stall moves time forward without firing anything, like a busy runtime.
func (m *manualScheduler) Stall(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
}

func (m *manualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()
	for {
		m.mu.Lock()
		var next *fakeTimer
		for _, t := range m.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		next.fired = true
		if next.at > m.now {
			m.now = next.at
		}
		m.mu.Unlock()
		next.f()
	}
}

func (m *manualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type recorder struct {
	mu   sync.Mutex
	msgs []syncproto.Message
}

func (r *recorder) Send(_ context.Context, msg syncproto.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) kinds() []syncproto.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]syncproto.Kind, len(r.msgs))
	for i, m := range r.msgs {
		out[i] = m.Type
	}
	return out
}

func (r *recorder) last() syncproto.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return syncproto.Message{}
	}
	return r.msgs[len(r.msgs)-1]
}

type noticeLog struct {
	mu    sync.Mutex
	items []Notice
}

func (l *noticeLog) Notify(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, n)
}

func (l *noticeLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *noticeLog) hasToast(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, n := range l.items {
		if n.ToastKey == key {
			return true
		}
	}
	return false
}

// scripted plays a fixed list of UCI moves, then fails.
type scripted struct {
	mu    sync.Mutex
	moves []string
	calls int
}

func (p *scripted) ChooseMove(_ context.Context, _ *rules.Position) (rules.Move, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.moves) == 0 {
		return rules.Move{}, errors.New("script exhausted")
	}
	u := p.moves[0]
	p.moves = p.moves[1:]
	from, _ := rules.ParseSquare(u[:2])
	to, _ := rules.ParseSquare(u[2:4])
	return rules.Move{From: from, To: to, Promotion: rules.ParsePromotion(u[4:])}, nil
}

type harness struct {
	s     *Session
	sched *manualScheduler
	sent  *recorder
	notes *noticeLog
}

const settle = 600 * time.Millisecond

func newHarness(t *testing.T, mutate func(cfg *Config)) *harness {
	t.Helper()
	h := &harness{sched: &manualScheduler{}, sent: &recorder{}, notes: &noticeLog{}}
	cfg := Config{
		Engine:      rules.NewStandard(),
		PlayerID:    "me",
		PlayerName:  "Me",
		Sender:      h.sent,
		SettleDelay: settle,
		Scheduler:   h.sched,
		Listener:    h.notes,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = s.Dispose() })
	h.s = s
	return h
}

func withScript(p opponent.Policy) func(cfg *Config) {
	return func(cfg *Config) {
		cfg.Opponents = func(string) opponent.Policy { return p }
	}
}

func sq(t *testing.T, s string) nchess.Square {
	t.Helper()
	v, ok := rules.ParseSquare(s)
	if !ok {
		t.Fatalf("bad square %q", s)
	}
	return v
}

func move(t *testing.T, s *Session, u string) error {
	t.Helper()
	return s.Move(sq(t, u[:2]), sq(t, u[2:4]), rules.ParsePromotion(u[4:]))
}

func fenAfter(t *testing.T, ucis ...string) string {
	t.Helper()
	eng := rules.NewStandard()
	pos := eng.Start()
	for _, u := range ucis {
		next, _, err := eng.Apply(pos, rules.Move{From: sq(t, u[:2]), To: sq(t, u[2:4])})
		if err != nil {
			t.Fatalf("apply %s: %v", u, err)
		}
		pos = next
	}
	return pos.FEN()
}
