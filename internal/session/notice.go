package session

import (
	"github.com/park285/cheese-gamecenter/internal/board"
	"github.com/park285/cheese-gamecenter/internal/domain"
)

// Notice is one presentation event. Empty fields carry nothing.
type Notice struct {
	Cue      board.Cue
	Toast    string
	ToastKey string
	Phase    domain.Phase
	Terminal *domain.TerminalResult
}

// Listener receives notices in handler order with no session lock held.
// Notify may call Session methods; effects of a mutating call are
// delivered after the current notice returns. Notify must not call Dispose.
type Listener interface {
	Notify(n Notice)
}

type ListenerFunc func(n Notice)

func (f ListenerFunc) Notify(n Notice) { f(n) }
