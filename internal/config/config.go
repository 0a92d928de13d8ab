package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

type AppConfig struct {
	WSURL    string
	HTTPAddr string

	PlayerID   string
	PlayerName string

	RedisURL    string
	DatabaseURL string

	TimeControl      string
	EngineSettleMS   int
	EngineDifficulty string
	StockfishPath    string
	EnginePoolSize   int

	SearchTimeoutSec int
	WSMaxReconnect   int
	MessagesDir      string
	SnapshotTTLSec   int
}

// Networked reports whether a sync server is configured.
func (c *AppConfig) Networked() bool { return c != nil && c.WSURL != "" }

// Load는 기본값 위에 환경변수를 덮어 설정을 만든다.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		HTTPAddr:         ":8088",
		PlayerName:       "player",
		TimeControl:      "10+0",
		EngineSettleMS:   600,
		EngineDifficulty: "random",
		EnginePoolSize:   1,
		WSMaxReconnect:   5,
		SnapshotTTLSec:   86400,
	}

	cfg.WSURL = strings.TrimSpace(os.Getenv("GAMECENTER_WS_URL"))
	if v := strings.TrimSpace(os.Getenv("GAMECENTER_HTTP_ADDR")); v != "" {
		cfg.HTTPAddr = v
	}

	cfg.PlayerID = strings.TrimSpace(os.Getenv("PLAYER_ID"))
	if v := strings.TrimSpace(os.Getenv("PLAYER_NAME")); v != "" {
		cfg.PlayerName = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("TIME_CONTROL")); v != "" {
		cfg.TimeControl = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_SETTLE_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.EngineSettleMS = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_DIFFICULTY")); v != "" {
		cfg.EngineDifficulty = v
	}
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_POOL_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EnginePoolSize = n
		}
	}

	if v := strings.TrimSpace(os.Getenv("SEARCH_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.SearchTimeoutSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("WS_MAX_RECONNECT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.WSMaxReconnect = n
		}
	}
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	if v := strings.TrimSpace(os.Getenv("SNAPSHOT_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SnapshotTTLSec = n
		}
	}

	if cfg.WSURL != "" && cfg.PlayerID == "" {
		return nil, errors.New("PLAYER_ID is required when GAMECENTER_WS_URL is set")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("GAMECENTER_HTTP_ADDR must not be empty")
	}

	return cfg, nil
}
