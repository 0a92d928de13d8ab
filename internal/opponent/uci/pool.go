package uci

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

type PoolConfig struct {
	BinaryPath string
	Args       []string
	// PerOptions caps live processes per distinct Options value.
	PerOptions int
	Logger     *zap.Logger
}

// Pool keeps warm engine processes keyed by their Options.
type Pool struct {
	path   string
	args   []string
	limit  int
	logger *zap.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
	owner   map[*Process]*bucket
	closed  bool
}

func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("binary path required")
	}
	if _, err := os.Stat(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}
	limit := cfg.PerOptions
	if limit <= 0 {
		limit = min(max(runtime.NumCPU(), 1), 2)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		path:    cfg.BinaryPath,
		args:    append([]string(nil), cfg.Args...),
		limit:   limit,
		logger:  logger,
		buckets: make(map[string]*bucket),
		owner:   make(map[*Process]*bucket),
	}, nil
}

type bucket struct {
	opt  Options
	idle chan *Process
	// slots holds one token per process that may still be started.
	slots chan struct{}
}

func (p *Pool) bucketFor(opt Options) (*bucket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, fmt.Errorf("engine pool closed")
	}
	key := opt.key()
	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{opt: opt, idle: make(chan *Process, p.limit), slots: make(chan struct{}, p.limit)}
		for i := 0; i < p.limit; i++ {
			b.slots <- struct{}{}
		}
		p.buckets[key] = b
	}
	return b, nil
}

// Acquire returns an idle process for opt, starting one if the bucket has
// room, otherwise waiting until one is released or ctx ends.
func (p *Pool) Acquire(ctx context.Context, opt Options) (*Process, error) {
	b, err := p.bucketFor(opt)
	if err != nil {
		return nil, err
	}
	for {
		select {
		case proc := <-b.idle:
			if err := proc.Ready(ctx); err != nil {
				p.logger.Warn("uci_process_stale", zap.Error(err))
				p.retire(b, proc)
				continue
			}
			p.track(proc, b)
			return proc, nil
		case <-b.slots:
			proc, err := Start(ctx, p.path, p.args, opt, p.logger)
			if err != nil {
				b.slots <- struct{}{}
				return nil, err
			}
			p.track(proc, b)
			return proc, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns proc to its bucket. A non-nil err retires it instead.
func (p *Pool) Release(proc *Process, err error) {
	if proc == nil {
		return
	}
	p.mu.Lock()
	b, ok := p.owner[proc]
	delete(p.owner, proc)
	closed := p.closed
	p.mu.Unlock()

	if !ok {
		_ = proc.Close()
		return
	}
	if err != nil || closed {
		p.retire(b, proc)
		return
	}
	select {
	case b.idle <- proc:
	default:
		p.retire(b, proc)
	}
}

// Close stops every idle process. Processes still checked out are stopped
// when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	p.closed = true
	buckets := make([]*bucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.mu.Unlock()

	var result *multierror.Error
	for _, b := range buckets {
		for drained := false; !drained; {
			select {
			case proc := <-b.idle:
				if err := proc.Close(); err != nil {
					result = multierror.Append(result, err)
				}
			default:
				drained = true
			}
		}
	}
	return result.ErrorOrNil()
}

func (p *Pool) track(proc *Process, b *bucket) {
	p.mu.Lock()
	p.owner[proc] = b
	p.mu.Unlock()
}

func (p *Pool) retire(b *bucket, proc *Process) {
	_ = proc.Close()
	select {
	case b.slots <- struct{}{}:
	default:
	}
}
