// Package opponent chooses moves for the computer side of a local game.
package opponent

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/park285/cheese-gamecenter/internal/rules"
)

var ErrNoLegalMoves = errors.New("no legal moves to play")

// Policy picks one legal move for the side to move in pos.
type Policy interface {
	ChooseMove(ctx context.Context, pos *rules.Position) (rules.Move, error)
}

// Random prefers captures and otherwise picks uniformly among legal moves.
type Random struct {
	eng rules.Engine

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandom(eng rules.Engine, seed int64) *Random {
	return &Random{eng: eng, rng: rand.New(rand.NewSource(seed))}
}

func (r *Random) ChooseMove(_ context.Context, pos *rules.Position) (rules.Move, error) {
	moves := r.eng.LegalMoves(pos)
	if len(moves) == 0 {
		return rules.Move{}, ErrNoLegalMoves
	}
	var captures []rules.Move
	for _, m := range moves {
		if m.IsCapture() {
			captures = append(captures, m)
		}
	}
	if len(captures) > 0 {
		moves = captures
	}
	r.mu.Lock()
	i := r.rng.Intn(len(moves))
	r.mu.Unlock()
	return moves[i], nil
}
