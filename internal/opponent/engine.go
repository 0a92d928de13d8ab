package opponent

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/opponent/uci"
	"github.com/park285/cheese-gamecenter/internal/rules"
)

// Engine asks a pooled UCI process for its candidate lines and picks one by
// the level's weights. Any engine failure falls back to the wrapped policy.
type Engine struct {
	eng      rules.Engine
	pool     *uci.Pool
	level    Level
	fallback Policy
	logger   *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(eng rules.Engine, pool *uci.Pool, level Level, fallback Policy, logger *zap.Logger, seed int64) (*Engine, error) {
	if pool == nil {
		return nil, fmt.Errorf("engine pool required")
	}
	if err := level.validate(); err != nil {
		return nil, err
	}
	if fallback == nil {
		fallback = NewRandom(eng, seed)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		eng:      eng,
		pool:     pool,
		level:    level,
		fallback: fallback,
		logger:   logger,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

func (e *Engine) ChooseMove(ctx context.Context, pos *rules.Position) (rules.Move, error) {
	mv, err := e.search(ctx, pos)
	if err == nil {
		return mv, nil
	}
	if ctx.Err() != nil {
		return rules.Move{}, ctx.Err()
	}
	e.logger.Warn("opponent_engine_fallback", zap.String("level", e.level.Name), zap.String("fen", pos.FEN()), zap.Error(err))
	return e.fallback.ChooseMove(ctx, pos)
}

func (e *Engine) search(ctx context.Context, pos *rules.Position) (rules.Move, error) {
	proc, err := e.pool.Acquire(ctx, e.level.Options)
	if err != nil {
		return rules.Move{}, fmt.Errorf("acquire engine: %w", err)
	}
	res, err := proc.Search(ctx, pos.FEN(), nil, e.level.Limits)
	e.pool.Release(proc, err)
	if err != nil {
		return rules.Move{}, fmt.Errorf("search: %w", err)
	}

	choice := e.pick(res)
	for _, m := range e.eng.LegalMoves(pos) {
		if m.UCI == choice {
			return m, nil
		}
	}
	return rules.Move{}, fmt.Errorf("engine move %q is not legal here", choice)
}

// pick draws among the top candidate lines by weight, defaulting to bestmove.
func (e *Engine) pick(res uci.Result) string {
	n := min(len(res.Candidates), len(e.level.CandidateWeights))
	if n <= 1 {
		return strings.ToLower(res.BestMove)
	}
	total := 0.0
	for i := 0; i < n; i++ {
		total += e.level.CandidateWeights[i]
	}
	e.mu.Lock()
	threshold := e.rng.Float64() * total
	e.mu.Unlock()
	for i := 0; i < n; i++ {
		threshold -= e.level.CandidateWeights[i]
		if threshold <= 0 {
			return strings.ToLower(res.Candidates[i].Move)
		}
	}
	return strings.ToLower(res.Candidates[0].Move)
}

// ForDifficulty returns the Random policy for "random" (or when no engine
// pool is available) and an Engine policy for a known level name.
func ForDifficulty(name string, eng rules.Engine, pool *uci.Pool, logger *zap.Logger, seed int64) Policy {
	random := NewRandom(eng, seed)
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "random" {
		return random
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	level, ok := LookupLevel(name)
	if !ok {
		logger.Warn("opponent_unknown_difficulty", zap.String("difficulty", name))
		return random
	}
	if pool == nil {
		logger.Info("opponent_engine_unavailable", zap.String("difficulty", name))
		return random
	}
	p, err := NewEngine(eng, pool, level, random, logger, seed)
	if err != nil {
		logger.Warn("opponent_engine_init_failed", zap.String("difficulty", name), zap.Error(err))
		return random
	}
	return p
}
