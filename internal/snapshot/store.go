// Package snapshot persists in-progress local games so they can be resumed.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "gamecenter:snapshot:"
	defaultTTL = 24 * time.Hour
)

// Record is the resumable state of a local game.
type Record struct {
	SessionID    string    `json:"session_id"`
	PlayerColor  string    `json:"player_color"`
	Difficulty   string    `json:"difficulty"`
	TimeControl  string    `json:"time_control"`
	Moves        []string  `json:"moves"`
	FEN          string    `json:"fen"`
	WhiteSeconds int       `json:"white_seconds"`
	BlackSeconds int       `json:"black_seconds"`
	ClockRunning bool      `json:"clock_running"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store saves, loads and deletes records. Load returns (nil, nil) when absent.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Load(ctx context.Context, sessionID string) (*Record, error)
	Delete(ctx context.Context, sessionID string) error
}

// Redis keeps records as JSON blobs with a TTL.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{rdb: rdb, ttl: ttl}
}

// Dial parses a redis URL and pings the server.
func Dial(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opt, err := redis.ParseURL(strings.TrimSpace(url))
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return NewRedis(rdb, ttl), nil
}

func key(id string) string { return keyPrefix + strings.TrimSpace(id) }

func (s *Redis) Save(ctx context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("snapshot: session id required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key(rec.SessionID), raw, s.ttl).Err()
}

func (s *Redis) Load(ctx context.Context, sessionID string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Redis) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, key(sessionID)).Err()
}

func (s *Redis) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Memory는 redis 미설정 시 쓰는 프로세스 내 저장소.
type Memory struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemory() *Memory { return &Memory{recs: make(map[string]Record)} }

func (m *Memory) Save(_ context.Context, rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.SessionID) == "" {
		return errors.New("snapshot: session id required")
	}
	cp := *rec
	cp.Moves = append([]string(nil), rec.Moves...)
	m.mu.Lock()
	m.recs[cp.SessionID] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Load(_ context.Context, sessionID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[sessionID]
	if !ok {
		return nil, nil
	}
	rec.Moves = append([]string(nil), rec.Moves...)
	return &rec, nil
}

func (m *Memory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	delete(m.recs, sessionID)
	m.mu.Unlock()
	return nil
}
