// Package app wires configuration into a running game center: rules engine,
// opponents, storage, sync transport, session controller and HTTP bridge.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/archive"
	"github.com/park285/cheese-gamecenter/internal/clock"
	"github.com/park285/cheese-gamecenter/internal/config"
	"github.com/park285/cheese-gamecenter/internal/httpapi"
	"github.com/park285/cheese-gamecenter/internal/msgcat"
	"github.com/park285/cheese-gamecenter/internal/opponent"
	"github.com/park285/cheese-gamecenter/internal/opponent/uci"
	"github.com/park285/cheese-gamecenter/internal/rules"
	"github.com/park285/cheese-gamecenter/internal/session"
	"github.com/park285/cheese-gamecenter/internal/snapshot"
	"github.com/park285/cheese-gamecenter/internal/syncproto"
	"github.com/park285/cheese-gamecenter/internal/transport"
)

type App struct {
	Session *session.Session
	Server  *httpapi.Server
	Feed    *httpapi.Feed
	// Client is nil when no sync server is configured.
	Client *transport.Client

	cfg    *config.AppConfig
	logger *zap.Logger
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	tc, err := clock.ParseTimeControl(cfg.TimeControl)
	if err != nil {
		return nil, fmt.Errorf("TIME_CONTROL: %w", err)
	}
	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	var closers []io.Closer
	fail := func(err error) (*App, error) {
		var result *multierror.Error
		result = multierror.Append(result, err)
		for _, c := range closers {
			if cerr := c.Close(); cerr != nil {
				result = multierror.Append(result, cerr)
			}
		}
		return nil, result.ErrorOrNil()
	}

	eng := rules.NewStandard()

	var pool *uci.Pool
	if path := strings.TrimSpace(cfg.StockfishPath); path != "" {
		pool, err = uci.NewPool(uci.PoolConfig{
			BinaryPath: path,
			PerOptions: cfg.EnginePoolSize,
			Logger:     logger.Named("uci"),
		})
		if err != nil {
			return fail(fmt.Errorf("init engine pool: %w", err))
		}
		closers = append(closers, pool)
	} else {
		logger.Info("app_engine_disabled", zap.String("reason", "STOCKFISH_PATH not set"))
	}
	defaultDifficulty := cfg.EngineDifficulty
	opponents := func(difficulty string) opponent.Policy {
		if strings.TrimSpace(difficulty) == "" {
			difficulty = defaultDifficulty
		}
		return opponent.ForDifficulty(difficulty, eng, pool, logger.Named("opponent"), time.Now().UnixNano())
	}

	ttl := time.Duration(cfg.SnapshotTTLSec) * time.Second
	var snaps snapshot.Store = snapshot.NewMemory()
	if cfg.RedisURL != "" {
		rs, err := snapshot.Dial(ctx, cfg.RedisURL, ttl)
		if err != nil {
			return fail(fmt.Errorf("init snapshots: %w", err))
		}
		closers = append(closers, rs)
		snaps = rs
	}

	var arc archive.Archive = archive.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := archive.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return fail(fmt.Errorf("init archive: %w", err))
		}
		closers = append(closers, pg)
		arc = pg
	}

	feed := httpapi.NewFeed()
	scfg := session.Config{
		Engine:        eng,
		Opponents:     opponents,
		PlayerID:      cfg.PlayerID,
		PlayerName:    cfg.PlayerName,
		TimeControl:   tc,
		SettleDelay:   time.Duration(cfg.EngineSettleMS) * time.Millisecond,
		SearchTimeout: time.Duration(cfg.SearchTimeoutSec) * time.Second,
		Listener:      feed,
		Catalog:       cat,
		Snapshots:     snaps,
		Archive:       arc,
		Logger:        logger.Named("session"),
		Closers:       closers,
	}

	var client *transport.Client
	if cfg.Networked() {
		playerID := cfg.PlayerID
		client = transport.NewClient(cfg.WSURL, transport.Options{
			MaxReconnect: cfg.WSMaxReconnect,
			Headers:      func() map[string]string { return map[string]string{"X-Player-Id": playerID} },
			Logger:       logger.Named("ws"),
		})
		scfg.Sender = client
	}

	sess, err := session.New(scfg)
	if err != nil {
		return fail(fmt.Errorf("init session: %w", err))
	}
	a := &App{
		Session: sess,
		Server:  httpapi.New(sess, feed, logger.Named("httpapi")),
		Feed:    feed,
		Client:  client,
		cfg:     cfg,
		logger:  logger,
	}
	if client != nil {
		a.bindTransport(client)
	}
	return a, nil
}

// bindTransport routes inbound frames and connection changes into the session.
func (a *App) bindTransport(client *transport.Client) {
	client.OnMessage(func(msg syncproto.Message) {
		_ = a.Session.HandleMessage(msg)
	})
	var lost atomic.Bool
	client.OnStateChange(func(state transport.State) {
		switch state {
		case transport.StateReconnecting:
			if !lost.Swap(true) {
				_ = a.Session.ConnectionLost()
			}
		case transport.StateConnected:
			if lost.Swap(false) {
				_ = a.Session.Reconnected()
			}
		}
	})
}

// Connect dials the sync server, if any. A failed first dial keeps
// retrying in the background and is only logged.
func (a *App) Connect(ctx context.Context) {
	if a.Client == nil {
		return
	}
	if err := a.Client.Connect(ctx); err != nil {
		a.logger.Warn("app_ws_connect_failed", zap.String("url", a.cfg.WSURL), zap.Error(err))
	}
}

// Close stops the bridge and transport, then disposes the session.
func (a *App) Close(ctx context.Context) error {
	var result *multierror.Error
	if err := a.Server.Shutdown(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("shutdown http: %w", err))
	}
	if a.Client != nil {
		if err := a.Client.Close(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("close ws: %w", err))
		}
	}
	if err := a.Session.Dispose(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
