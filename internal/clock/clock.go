// Package clock implements the two per-side countdown timers.
//
// Clocks stay inert until the first accepted move: Start is called by the
// move pipeline, never by session construction, so neither side loses time
// before play begins.
package clock

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/domain"
)

var ErrInvalidTimeControl = errors.New("invalid time control")

// TimeControl is base minutes plus per-move increment, in seconds.
type TimeControl struct {
	BaseSeconds      int
	IncrementSeconds int
	Unlimited        bool
}

// ParseTimeControl accepts "none", "M" or "M+S".
func ParseTimeControl(raw string) (TimeControl, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "none" || s == "unlimited" || s == "-" {
		return TimeControl{Unlimited: true}, nil
	}
	base, inc, found := strings.Cut(s, "+")
	minutes, err := strconv.Atoi(strings.TrimSpace(base))
	if err != nil || minutes <= 0 {
		return TimeControl{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, raw)
	}
	tc := TimeControl{BaseSeconds: minutes * 60}
	if found {
		n, err := strconv.Atoi(strings.TrimSpace(inc))
		if err != nil || n < 0 {
			return TimeControl{}, fmt.Errorf("%w: %q", ErrInvalidTimeControl, raw)
		}
		tc.IncrementSeconds = n
	}
	return tc, nil
}

func (tc TimeControl) String() string {
	if tc.Unlimited {
		return "none"
	}
	return fmt.Sprintf("%d+%d", tc.BaseSeconds/60, tc.IncrementSeconds)
}

// Manager holds remaining seconds per side. The active side is read from
// turn on every tick so a move made mid-second redirects the next decrement.
type Manager struct {
	tc      TimeControl
	turn    func() nchess.Color
	white   int
	black   int
	running bool
}

func New(tc TimeControl, turn func() nchess.Color) *Manager {
	m := &Manager{tc: tc, turn: turn}
	m.Reset()
	return m
}

// Reset restores both sides to the base time and stops the clock.
func (m *Manager) Reset() {
	m.white = m.tc.BaseSeconds
	m.black = m.tc.BaseSeconds
	m.running = false
}

func (m *Manager) TimeControl() TimeControl { return m.tc }
func (m *Manager) Running() bool            { return m.running }
func (m *Manager) Unlimited() bool          { return m.tc.Unlimited }

// Start is idempotent.
func (m *Manager) Start() {
	if m.tc.Unlimited {
		return
	}
	m.running = true
}

func (m *Manager) Stop() { m.running = false }

// Active is the side currently losing time, or NoColor when stopped.
func (m *Manager) Active() nchess.Color {
	if !m.running || m.turn == nil {
		return nchess.NoColor
	}
	return m.turn()
}

// Tick removes one second from the side to move. When that side reaches
// zero the manager stops and returns the timeout result.
func (m *Manager) Tick() *domain.TerminalResult {
	side := m.Active()
	if side == nchess.NoColor {
		return nil
	}
	left := m.ptr(side)
	if *left > 0 {
		*left--
	}
	if *left > 0 {
		return nil
	}
	m.running = false
	return &domain.TerminalResult{Reason: domain.ReasonTimeout, Winner: domain.Other(side)}
}

// Credit adds the increment to side after it completes a move.
func (m *Manager) Credit(side nchess.Color) {
	if !m.running || m.tc.IncrementSeconds == 0 || side == nchess.NoColor {
		return
	}
	*m.ptr(side) += m.tc.IncrementSeconds
}

// Sync adopts server-reported clocks. Negative values are ignored.
func (m *Manager) Sync(white, black int) {
	if white >= 0 {
		m.white = white
	}
	if black >= 0 {
		m.black = black
	}
}

func (m *Manager) Remaining(side nchess.Color) int {
	switch side {
	case nchess.White:
		return m.white
	case nchess.Black:
		return m.black
	default:
		return 0
	}
}

func (m *Manager) ptr(side nchess.Color) *int {
	if side == nchess.White {
		return &m.white
	}
	return &m.black
}
