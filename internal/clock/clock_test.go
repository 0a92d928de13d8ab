package clock

import (
	"errors"
	"testing"

	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/domain"
)

func TestParseTimeControl(t *testing.T) {
	tc, err := ParseTimeControl("5+3")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tc.BaseSeconds != 300 || tc.IncrementSeconds != 3 {
		t.Fatalf("tc = %+v", tc)
	}
	if tc, _ := ParseTimeControl("none"); !tc.Unlimited {
		t.Fatalf("none should be unlimited")
	}
	if tc, _ := ParseTimeControl("10"); tc.BaseSeconds != 600 || tc.IncrementSeconds != 0 {
		t.Fatalf("tc = %+v", tc)
	}
	for _, bad := range []string{"", "x+1", "0+0", "5+-1"} {
		if _, err := ParseTimeControl(bad); !errors.Is(err, ErrInvalidTimeControl) {
			t.Fatalf("%q: err = %v", bad, err)
		}
	}
}

func TestInertUntilStarted(t *testing.T) {
	m := New(TimeControl{BaseSeconds: 60}, func() nchess.Color { return nchess.White })
	for i := 0; i < 5; i++ {
		if r := m.Tick(); r != nil {
			t.Fatalf("unexpected result %+v", r)
		}
	}
	if m.Remaining(nchess.White) != 60 {
		t.Fatalf("clock burned time before start")
	}
}

func TestTickFollowsSideToMove(t *testing.T) {
	turn := nchess.White
	m := New(TimeControl{BaseSeconds: 60}, func() nchess.Color { return turn })
	m.Start()
	m.Tick()
	turn = nchess.Black
	m.Tick()
	m.Tick()
	if m.Remaining(nchess.White) != 59 || m.Remaining(nchess.Black) != 58 {
		t.Fatalf("white=%d black=%d", m.Remaining(nchess.White), m.Remaining(nchess.Black))
	}
}

func TestTimeoutAtZero(t *testing.T) {
	m := New(TimeControl{BaseSeconds: 60}, func() nchess.Color { return nchess.Black })
	m.Sync(-1, 1)
	m.Start()
	r := m.Tick()
	if r == nil || r.Reason != domain.ReasonTimeout || r.Winner != nchess.White {
		t.Fatalf("result = %+v", r)
	}
	if m.Running() || m.Active() != nchess.NoColor {
		t.Fatalf("clock should be stopped")
	}
	if m.Remaining(nchess.Black) != 0 || m.Remaining(nchess.White) != 60 {
		t.Fatalf("white=%d black=%d", m.Remaining(nchess.White), m.Remaining(nchess.Black))
	}
	if r := m.Tick(); r != nil {
		t.Fatalf("stopped clock ticked")
	}
}

func TestIncrementCreditedWhileRunning(t *testing.T) {
	m := New(TimeControl{BaseSeconds: 60, IncrementSeconds: 2}, func() nchess.Color { return nchess.White })
	m.Credit(nchess.White)
	if m.Remaining(nchess.White) != 60 {
		t.Fatalf("credited while stopped")
	}
	m.Start()
	m.Credit(nchess.White)
	if m.Remaining(nchess.White) != 62 {
		t.Fatalf("white = %d", m.Remaining(nchess.White))
	}
}

func TestUnlimitedNeverRuns(t *testing.T) {
	m := New(TimeControl{Unlimited: true}, func() nchess.Color { return nchess.White })
	m.Start()
	if m.Running() || m.Tick() != nil {
		t.Fatalf("unlimited clock should stay inert")
	}
}
