// Package uci drives an external UCI engine process such as Stockfish.
package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	readyTimeout       = 4 * time.Second
	mateScore          = 30000
	defaultSearchLimit = 6 * time.Second
)

var ErrNoBestMove = errors.New("engine returned no bestmove")

// Options are applied once with setoption when the process starts.
type Options struct {
	Threads    int
	SkillLevel int
	HashMB     int
	MultiPV    int
}

func (o Options) key() string {
	return fmt.Sprintf("thr=%d|skill=%d|hash=%d|multipv=%d", o.Threads, o.SkillLevel, o.HashMB, o.MultiPV)
}

func (o Options) validate() error {
	switch {
	case o.SkillLevel < 0 || o.SkillLevel > 20:
		return fmt.Errorf("skill level %d out of range 0-20", o.SkillLevel)
	case o.HashMB <= 0:
		return fmt.Errorf("hash size must be > 0: %d", o.HashMB)
	case o.MultiPV <= 0:
		return fmt.Errorf("multipv must be > 0: %d", o.MultiPV)
	}
	return nil
}

// Limits bound a single search. At least one must be set.
type Limits struct {
	Depth          int
	MoveTimeMillis int
	Nodes          int
}

func (l Limits) goCommand() (string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if l.Nodes > 0 {
		args = append(args, "nodes", strconv.Itoa(l.Nodes))
	}
	if len(args) == 1 {
		return "", errors.New("no search limits specified")
	}
	return strings.Join(args, " "), nil
}

// timeout is how long to wait for bestmove before giving up on the engine.
func (l Limits) timeout() time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis+2000) * time.Millisecond * 3
	}
	if l.Depth > 0 {
		d := time.Duration(l.Depth) * 300 * time.Millisecond
		return min(max(d, defaultSearchLimit), 20*time.Second)
	}
	return defaultSearchLimit
}

// Candidate is one multipv line.
type Candidate struct {
	Move      string
	EvalCP    int
	Principal []string
}

type Result struct {
	BestMove   string
	Candidates []Candidate
}

// Process is one running engine. Search calls are serialised.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *zap.Logger

	writeMu  sync.Mutex
	searchMu sync.Mutex
	lines    chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// Start launches path with args and completes the uci/isready handshake.
// The process outlives ctx; only the handshake is bounded by it.
func Start(ctx context.Context, path string, args []string, opt Options, logger *zap.Logger) (*Process, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	p := &Process{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		logger: logger,
		lines:  make(chan lineResult, 64),
	}
	go p.pump()

	if err := p.handshake(ctx, opt); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// pump owns stdout so a timed-out read never leaves a goroutine racing the next one.
func (p *Process) pump() {
	defer close(p.lines)
	for {
		line, err := p.stdout.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			p.lines <- lineResult{line: line}
		}
		if err != nil {
			p.lines <- lineResult{err: err}
			return
		}
	}
}

func (p *Process) handshake(ctx context.Context, opt Options) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()

	if err := p.send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := p.await(ctx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	threads := opt.Threads
	if threads <= 0 {
		threads = 1
	}
	for _, cmd := range []string{
		fmt.Sprintf("setoption name Threads value %d", threads),
		fmt.Sprintf("setoption name Hash value %d", opt.HashMB),
		fmt.Sprintf("setoption name Skill Level value %d", opt.SkillLevel),
		fmt.Sprintf("setoption name MultiPV value %d", opt.MultiPV),
		"setoption name Move Overhead value 100",
	} {
		if err := p.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	return p.ready(ctx)
}

// Ready pings the engine with isready.
func (p *Process) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	return p.ready(ctx)
}

func (p *Process) ready(ctx context.Context) error {
	if err := p.send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := p.await(ctx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

// Search sets the position (FEN plus optional UCI moves) and waits for bestmove.
func (p *Process) Search(ctx context.Context, fen string, moves []string, limits Limits) (Result, error) {
	p.searchMu.Lock()
	defer p.searchMu.Unlock()

	goCmd, err := limits.goCommand()
	if err != nil {
		return Result{}, err
	}
	if err := p.send(positionCommand(fen, moves)); err != nil {
		return Result{}, fmt.Errorf("send position: %w", err)
	}
	if err := p.send(goCmd); err != nil {
		return Result{}, fmt.Errorf("send go: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, limits.timeout())
	defer cancel()

	lines := make(map[int]Candidate)
	for {
		line, err := p.next(ctx)
		if err != nil {
			p.logger.Warn("uci_search_read_failed", zap.String("fen", fen), zap.String("go", goCmd), zap.Error(err))
			return Result{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case strings.HasPrefix(line, "info "):
			if idx, cand, ok := parseInfo(line); ok {
				lines[idx] = cand
			}
		case strings.HasPrefix(line, "bestmove"):
			fields := strings.Fields(line)
			if len(fields) < 2 || fields[1] == "(none)" {
				return Result{}, ErrNoBestMove
			}
			return Result{BestMove: fields[1], Candidates: collapse(lines)}, nil
		}
	}
}

// NewGame resets engine state between games.
func (p *Process) NewGame(ctx context.Context) error {
	if err := p.send("ucinewgame"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	return p.Ready(ctx)
}

func (p *Process) Close() error {
	p.writeMu.Lock()
	_, _ = io.WriteString(p.stdin, "quit\n")
	p.stdin.Close()
	p.writeMu.Unlock()

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(time.Second):
		_ = p.cmd.Process.Kill()
		return <-done
	}
}

func (p *Process) send(cmd string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_, err := io.WriteString(p.stdin, cmd+"\n")
	return err
}

func (p *Process) await(ctx context.Context, token string) error {
	for {
		line, err := p.next(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(line, token) {
			return nil
		}
	}
}

func (p *Process) next(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func positionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if fen = strings.TrimSpace(fen); fen == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	return sb.String()
}

// parseInfo extracts the multipv index, score and principal variation.
func parseInfo(line string) (int, Candidate, bool) {
	parts := strings.Fields(line)
	idx := 1
	eval := 0
	pv := -1
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					idx = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				if v, err := strconv.Atoi(parts[i+2]); err == nil {
					switch parts[i+1] {
					case "cp":
						eval = v
					case "mate":
						eval = mateScore
						if v < 0 {
							eval = -mateScore
						}
					}
				}
				i += 2
			}
		case "pv":
			pv = i + 1
			i = len(parts)
		}
	}
	if pv < 0 || pv >= len(parts) {
		return 0, Candidate{}, false
	}
	principal := append([]string(nil), parts[pv:]...)
	return idx, Candidate{Move: principal[0], EvalCP: eval, Principal: principal}, true
}

func collapse(m map[int]Candidate) []Candidate {
	if len(m) == 0 {
		return nil
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Candidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}
