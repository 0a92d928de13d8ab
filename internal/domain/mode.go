package domain

// Mode is fixed for the lifetime of one game. Switching modes means a new game.
type Mode interface {
	Networked() bool
	isMode()
}

// LocalMode plays against the computer opponent on this device.
type LocalMode struct {
	Difficulty string
}

// NetworkedMode plays against a remote peer through the sync protocol.
type NetworkedMode struct {
	SessionID string
	Remote    string
}

func (LocalMode) Networked() bool     { return false }
func (NetworkedMode) Networked() bool { return true }
func (LocalMode) isMode()             {}
func (NetworkedMode) isMode()         {}
