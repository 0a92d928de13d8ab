package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	nchess "github.com/corentings/chess/v2"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-gamecenter/internal/config"
	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/rules"
	"github.com/park285/cheese-gamecenter/internal/session"
)

func baseConfig() *config.AppConfig {
	return &config.AppConfig{
		HTTPAddr:         "127.0.0.1:0",
		PlayerName:       "player",
		TimeControl:      "10+0",
		EngineSettleMS:   600000,
		EngineDifficulty: "random",
		EnginePoolSize:   1,
		SnapshotTTLSec:   60,
	}
}

func TestOfflineApp(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), nil)
	require.NoError(t, err)
	require.Nil(t, a.Client)
	require.Equal(t, domain.PhaseLobby, a.Session.Phase())

	id, err := a.Session.StartLocal(context.Background(), session.LocalOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.ErrorIs(t, a.Session.Search(""), session.ErrNotNetworked)
	require.NoError(t, a.Close(context.Background()))
}

func TestRedisSnapshotsSurviveRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	id, err := a.Session.StartLocal(context.Background(), session.LocalOptions{})
	require.NoError(t, err)
	require.NoError(t, a.Session.Move(sq("e2"), sq("e4"), 0))
	require.NoError(t, a.Close(context.Background()))

	b, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	resumed, err := b.Session.StartLocal(context.Background(), session.LocalOptions{Resume: id})
	require.NoError(t, err)
	require.Equal(t, id, resumed)
	require.Equal(t, []string{"e2e4"}, b.Session.Snapshot().MovesUCI)
}

func TestNetworkedAppBuildsClient(t *testing.T) {
	cfg := baseConfig()
	cfg.WSURL = "ws://127.0.0.1:1/ws"
	cfg.PlayerID = "p1"
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, a.Client)
	require.NoError(t, a.Close(context.Background()))
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.TimeControl = "soon"
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)

	cfg = baseConfig()
	cfg.StockfishPath = filepath.Join(t.TempDir(), "missing-engine")
	_, err = New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "init engine pool")

	_, err = New(context.Background(), nil, nil)
	require.Error(t, err)
}

func sq(s string) nchess.Square {
	v, _ := rules.ParseSquare(s)
	return v
}
