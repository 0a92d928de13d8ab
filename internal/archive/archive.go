// Package archive records finished games.
package archive

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Game is a finished game as archived.
type Game struct {
	ID          string
	SessionID   string
	Mode        string // local | networked
	WhiteName   string
	BlackName   string
	TimeControl string
	Reason      string
	Winner      string // white | black | "" for draws
	Opening     string
	MovesUCI    []string
	MovesSAN    []string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Archive stores finished games. Save is an upsert keyed by session id.
type Archive interface {
	Save(ctx context.Context, g *Game) error
	Recent(ctx context.Context, limit int) ([]*Game, error)
}

func prepare(g *Game) error {
	if g == nil || strings.TrimSpace(g.SessionID) == "" {
		return fmt.Errorf("archive: session id required")
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.EndedAt.IsZero() {
		g.EndedAt = time.Now()
	}
	if g.StartedAt.IsZero() {
		g.StartedAt = g.EndedAt
	}
	return nil
}

// Memory는 DB 미설정 시 쓰는 인메모리 아카이브.
type Memory struct {
	mu        sync.RWMutex
	bySession map[string]*Game
}

func NewMemory() *Memory { return &Memory{bySession: make(map[string]*Game)} }

func (m *Memory) Save(_ context.Context, g *Game) error {
	if err := prepare(g); err != nil {
		return err
	}
	cp := *g
	cp.MovesUCI = append([]string(nil), g.MovesUCI...)
	cp.MovesSAN = append([]string(nil), g.MovesSAN...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.bySession[cp.SessionID]; ok {
		cp.ID = prev.ID
		g.ID = prev.ID
	}
	m.bySession[cp.SessionID] = &cp
	return nil
}

func (m *Memory) Recent(_ context.Context, limit int) ([]*Game, error) {
	m.mu.RLock()
	items := make([]*Game, 0, len(m.bySession))
	for _, g := range m.bySession {
		cp := *g
		items = append(items, &cp)
	}
	m.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].SessionID < items[j].SessionID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
