package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Postgres archives into the finished_games table.
type Postgres struct {
	db *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS finished_games (
	game_id      TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL UNIQUE,
	mode         TEXT NOT NULL,
	white_name   TEXT NOT NULL,
	black_name   TEXT NOT NULL,
	time_control TEXT NOT NULL,
	result       TEXT NOT NULL,
	reason       TEXT NOT NULL,
	opening      TEXT NOT NULL,
	moves_uci    JSONB NOT NULL,
	moves_san    JSONB NOT NULL,
	pgn          TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL
)`

func NewPostgres(databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (r *Postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Postgres) Save(ctx context.Context, g *Game) error {
	if err := prepare(g); err != nil {
		return err
	}
	movesUCI, err := json.Marshal(nonNil(g.MovesUCI))
	if err != nil {
		return fmt.Errorf("marshal moves_uci: %w", err)
	}
	movesSAN, err := json.Marshal(nonNil(g.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	result := resultToken(g)
	duration := g.EndedAt.Sub(g.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO finished_games (
		game_id, session_id, mode, white_name, black_name, time_control,
		result, reason, opening, moves_uci, moves_san, pgn,
		started_at, ended_at, duration_ms
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11::jsonb,$12,$13,$14,$15
	) ON CONFLICT (session_id) DO UPDATE SET
		mode=EXCLUDED.mode,
		white_name=EXCLUDED.white_name,
		black_name=EXCLUDED.black_name,
		time_control=EXCLUDED.time_control,
		result=EXCLUDED.result,
		reason=EXCLUDED.reason,
		opening=EXCLUDED.opening,
		moves_uci=EXCLUDED.moves_uci,
		moves_san=EXCLUDED.moves_san,
		pgn=EXCLUDED.pgn,
		started_at=EXCLUDED.started_at,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms
	RETURNING game_id`

	var id string
	err = r.db.QueryRowContext(ctx, q,
		g.ID, g.SessionID, g.Mode, g.WhiteName, g.BlackName, g.TimeControl,
		result, g.Reason, g.Opening, string(movesUCI), string(movesSAN), BuildPGN(g),
		g.StartedAt, g.EndedAt, duration,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("upsert finished game: %w", err)
	}
	g.ID = id
	return nil
}

func (r *Postgres) Recent(ctx context.Context, limit int) ([]*Game, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `SELECT game_id, session_id, mode, white_name, black_name, time_control,
		result, reason, opening, moves_uci, moves_san, started_at, ended_at
		FROM finished_games ORDER BY ended_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Game
	for rows.Next() {
		var g Game
		var result string
		var rawUCI, rawSAN []byte
		if err := rows.Scan(&g.ID, &g.SessionID, &g.Mode, &g.WhiteName, &g.BlackName, &g.TimeControl,
			&result, &g.Reason, &g.Opening, &rawUCI, &rawSAN, &g.StartedAt, &g.EndedAt); err != nil {
			return nil, err
		}
		if result == "white" || result == "black" {
			g.Winner = result
		}
		if err := json.Unmarshal(rawUCI, &g.MovesUCI); err != nil {
			return nil, fmt.Errorf("decode moves_uci: %w", err)
		}
		if err := json.Unmarshal(rawSAN, &g.MovesSAN); err != nil {
			return nil, fmt.Errorf("decode moves_san: %w", err)
		}
		out = append(out, &g)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
