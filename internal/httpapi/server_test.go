package httpapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-gamecenter/internal/rules"
	"github.com/park285/cheese-gamecenter/internal/session"
	"github.com/park285/cheese-gamecenter/pkg/gamedto"
)

func newTestServer(t *testing.T) (*Server, *Feed) {
	t.Helper()
	feed := NewFeed()
	s, err := session.New(session.Config{
		Engine:      rules.NewStandard(),
		SettleDelay: time.Hour,
		Listener:    feed,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Dispose() })
	return New(s, feed, nil), feed
}

func do(t *testing.T, h fasthttp.RequestHandler, method, uri string, body any) (int, []byte) {
	t.Helper()
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		ctx.Request.SetBody(raw)
	}
	h(&ctx)
	return ctx.Response.StatusCode(), append([]byte(nil), ctx.Response.Body()...)
}

func postIntent(t *testing.T, h fasthttp.RequestHandler, in gamedto.Intent) (int, gamedto.IntentResponse) {
	t.Helper()
	status, body := do(t, h, fasthttp.MethodPost, "/intent", in)
	var resp gamedto.IntentResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return status, resp
}

func TestLocalGameThroughIntents(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	status, resp := postIntent(t, h, gamedto.Intent{Kind: "local", Color: "white"})
	require.Equal(t, fasthttp.StatusOK, status)
	require.True(t, resp.OK)
	require.NotEmpty(t, resp.SessionID)
	require.Equal(t, "playing", resp.State.Phase)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "click", Square: "e2"})
	require.Equal(t, fasthttp.StatusOK, status)
	require.NotNil(t, resp.State.Selection)
	require.Equal(t, "e4", resp.State.Selection.Recommended)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "click", Square: "e4"})
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, []string{"e2e4"}, resp.State.MovesUCI)
	require.Equal(t, &gamedto.LastMove{From: "e2", To: "e4"}, resp.State.LastMove)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "move", From: "d2", To: "d4"})
	require.Equal(t, fasthttp.StatusConflict, status)
	require.False(t, resp.OK)
	require.Equal(t, "not_your_turn", resp.Error.Code)

	status, body := do(t, h, fasthttp.MethodGet, "/state", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var st gamedto.State
	require.NoError(t, json.Unmarshal(body, &st))
	require.Equal(t, "black", st.Turn)
	require.Equal(t, "white", st.PlayerColor)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "resign"})
	require.Equal(t, fasthttp.StatusOK, status)
	require.Equal(t, &gamedto.Result{Reason: "resignation", Winner: "black"}, resp.State.Result)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "move", From: "d2", To: "d4"})
	require.Equal(t, fasthttp.StatusConflict, status)
	require.Equal(t, "terminal", resp.Error.Code)
}

func TestLegalEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	status, body := do(t, h, fasthttp.MethodGet, "/legal?from=g1", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var targets []gamedto.Target
	require.NoError(t, json.Unmarshal(body, &targets))
	require.Len(t, targets, 2)

	status, _ = do(t, h, fasthttp.MethodGet, "/legal?from=z9", nil)
	require.Equal(t, fasthttp.StatusBadRequest, status)
}

func TestIntentErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()

	status, _ := do(t, h, fasthttp.MethodPost, "/intent", "not an object")
	require.Equal(t, fasthttp.StatusBadRequest, status)

	status, resp := postIntent(t, h, gamedto.Intent{Kind: "teleport"})
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Equal(t, "unknown_intent", resp.Error.Code)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "search"})
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Equal(t, "not_networked", resp.Error.Code)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "local", TimeControl: "fast"})
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Equal(t, "bad_time_control", resp.Error.Code)

	status, resp = postIntent(t, h, gamedto.Intent{Kind: "click", Square: "i9"})
	require.Equal(t, fasthttp.StatusBadRequest, status)
	require.Equal(t, "bad_request", resp.Error.Code)

	status, _ = do(t, h, fasthttp.MethodGet, "/nope", nil)
	require.Equal(t, fasthttp.StatusNotFound, status)
}

func TestNoticesFeed(t *testing.T) {
	srv, _ := newTestServer(t)
	h := srv.Handler()
	postIntent(t, h, gamedto.Intent{Kind: "local"})
	postIntent(t, h, gamedto.Intent{Kind: "key", Key: "up"})
	postIntent(t, h, gamedto.Intent{Kind: "key", Key: "up"})
	postIntent(t, h, gamedto.Intent{Kind: "key", Key: "confirm"})

	status, body := do(t, h, fasthttp.MethodGet, "/notices", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	var out struct {
		Next    int64      `json:"next"`
		Notices []FeedItem `json:"notices"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	require.NotEmpty(t, out.Notices)
	last := out.Notices[len(out.Notices)-1]
	require.Equal(t, "input.nothing_to_select", last.ToastKey)
	require.Equal(t, last.Seq, out.Next)

	status, body = do(t, h, fasthttp.MethodGet, "/notices?since=1000", nil)
	require.Equal(t, fasthttp.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Empty(t, out.Notices)

	status, _ = do(t, h, fasthttp.MethodGet, "/notices?since=-4", nil)
	require.Equal(t, fasthttp.StatusBadRequest, status)
}

func TestFeedCapacity(t *testing.T) {
	f := NewFeed()
	for i := 0; i < feedCapacity+10; i++ {
		f.Notify(session.Notice{Toast: "x"})
	}
	items, next := f.Since(0)
	require.Len(t, items, feedCapacity)
	require.Equal(t, int64(feedCapacity+10), next)
	require.Equal(t, int64(11), items[0].Seq)
}
