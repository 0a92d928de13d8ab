// Package ucitest provides a scripted UCI engine for tests. A test binary
// re-executes itself with EnvVar set and calls MaybeServe from TestMain.
package ucitest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	EnvVar  = "GAMECENTER_FAKE_UCI"
	MoveVar = "GAMECENTER_FAKE_UCI_MOVE"
)

// MaybeServe runs the fake engine on stdio and exits when EnvVar is set.
func MaybeServe() {
	if os.Getenv(EnvVar) != "1" {
		return
	}
	move := os.Getenv(MoveVar)
	if move == "" {
		move = "e7e5"
	}
	Serve(os.Stdin, os.Stdout, move)
	os.Exit(0)
}

// Serve answers the handshake, isready and go until quit or EOF.
func Serve(in io.Reader, out io.Writer, bestmove string) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		cmd := strings.TrimSpace(sc.Text())
		switch {
		case cmd == "uci":
			fmt.Fprintln(out, "id name fakefish")
			fmt.Fprintln(out, "uciok")
		case cmd == "isready":
			fmt.Fprintln(out, "readyok")
		case strings.HasPrefix(cmd, "go"):
			fmt.Fprintf(out, "info depth 1 multipv 1 score cp 12 pv %s\n", bestmove)
			fmt.Fprintf(out, "bestmove %s\n", bestmove)
		case cmd == "quit":
			return
		}
	}
}
