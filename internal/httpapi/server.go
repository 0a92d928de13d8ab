// Package httpapi is the local presentation bridge: a fasthttp surface that
// serves session snapshots and accepts presentation intents.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/cheese-gamecenter/internal/clock"
	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/input"
	"github.com/park285/cheese-gamecenter/internal/rules"
	"github.com/park285/cheese-gamecenter/internal/selection"
	"github.com/park285/cheese-gamecenter/internal/session"
	"github.com/park285/cheese-gamecenter/internal/syncproto"
	"github.com/park285/cheese-gamecenter/pkg/gamedto"
)

// Controller is the slice of *session.Session the bridge drives.
type Controller interface {
	Snapshot() session.View
	LegalFrom(sq nchess.Square) []selection.Destination
	Click(sq nchess.Square) error
	Drop(from, to nchess.Square, promo nchess.PieceType) error
	Key(k input.Key) error
	Select(sq nchess.Square) error
	Move(from, to nchess.Square, promo nchess.PieceType) error
	Cancel() error
	Flip() error
	OfferDraw() error
	AcceptDraw() error
	DeclineDraw() error
	Resign() error
	Search(timeControl string) error
	CancelSearch() error
	ReturnToLobby() error
	StartLocal(ctx context.Context, opts session.LocalOptions) (string, error)
	Chat(text string) error
}

var errBadRequest = errors.New("bad request")

type Server struct {
	ctl    Controller
	feed   *Feed
	logger *zap.Logger
	srv    *fasthttp.Server
}

func New(ctl Controller, feed *Feed, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if feed == nil {
		feed = NewFeed()
	}
	s := &Server{ctl: ctl, feed: feed, logger: logger}
	s.srv = &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "gamecenter",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("httpapi_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.srv.ShutdownWithContext(ctx) }

func (s *Server) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case path == "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		case path == "/state" && ctx.IsGet():
			writeJSON(ctx, fasthttp.StatusOK, toState(s.ctl.Snapshot()))
		case path == "/legal" && ctx.IsGet():
			s.handleLegal(ctx)
		case path == "/notices" && ctx.IsGet():
			s.handleNotices(ctx)
		case path == "/intent" && ctx.IsPost():
			s.handleIntent(ctx)
		default:
			writeJSON(ctx, fasthttp.StatusNotFound, gamedto.Error{Code: "not_found", Message: "no route for " + path})
		}
	}
}

func (s *Server) handleLegal(ctx *fasthttp.RequestCtx) {
	from, ok := rules.ParseSquare(string(ctx.QueryArgs().Peek("from")))
	if !ok {
		writeJSON(ctx, fasthttp.StatusBadRequest, gamedto.Error{Code: "bad_request", Message: "from must be a square like e2"})
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, toTargets(s.ctl.LegalFrom(from)))
}

func (s *Server) handleNotices(ctx *fasthttp.RequestCtx) {
	var since int64
	if raw := string(ctx.QueryArgs().Peek("since")); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			writeJSON(ctx, fasthttp.StatusBadRequest, gamedto.Error{Code: "bad_request", Message: "since must be a non-negative integer"})
			return
		}
		since = n
	}
	items, next := s.feed.Since(since)
	writeJSON(ctx, fasthttp.StatusOK, map[string]any{"next": next, "notices": items})
}

func (s *Server) handleIntent(ctx *fasthttp.RequestCtx) {
	var in gamedto.Intent
	if err := json.Unmarshal(ctx.PostBody(), &in); err != nil {
		writeJSON(ctx, fasthttp.StatusBadRequest, gamedto.IntentResponse{Error: &gamedto.Error{Code: "bad_request", Message: err.Error()}})
		return
	}
	id, err := s.apply(ctx, in)
	resp := gamedto.IntentResponse{OK: err == nil, SessionID: id, State: toState(s.ctl.Snapshot())}
	status := fasthttp.StatusOK
	if err != nil {
		var e gamedto.Error
		status, e = classify(err)
		resp.Error = &e
		s.logger.Debug("httpapi_intent_rejected", zap.String("kind", in.Kind), zap.Error(err))
	}
	writeJSON(ctx, status, resp)
}

func (s *Server) apply(ctx context.Context, in gamedto.Intent) (string, error) {
	kind := strings.ToLower(strings.TrimSpace(in.Kind))
	switch kind {
	case "click":
		sq, err := square(in.Square)
		if err != nil {
			return "", err
		}
		return "", s.ctl.Click(sq)
	case "select":
		sq, err := square(in.Square)
		if err != nil {
			return "", err
		}
		return "", s.ctl.Select(sq)
	case "drop", "move":
		from, err := square(in.From)
		if err != nil {
			return "", err
		}
		to, err := square(in.To)
		if err != nil {
			return "", err
		}
		promo := rules.ParsePromotion(in.Promotion)
		if kind == "drop" {
			return "", s.ctl.Drop(from, to, promo)
		}
		return "", s.ctl.Move(from, to, promo)
	case "key":
		k, ok := input.ParseKey(in.Key)
		if !ok {
			return "", errBadRequest
		}
		return "", s.ctl.Key(k)
	case "cancel":
		return "", s.ctl.Cancel()
	case "flip":
		return "", s.ctl.Flip()
	case "offer-draw":
		return "", s.ctl.OfferDraw()
	case "accept-draw":
		return "", s.ctl.AcceptDraw()
	case "decline-draw":
		return "", s.ctl.DeclineDraw()
	case "resign":
		return "", s.ctl.Resign()
	case "search":
		return "", s.ctl.Search(in.TimeControl)
	case "cancel-search":
		return "", s.ctl.CancelSearch()
	case "lobby":
		return "", s.ctl.ReturnToLobby()
	case "local":
		return s.ctl.StartLocal(ctx, session.LocalOptions{
			Color:       domain.ParseColor(in.Color),
			Difficulty:  in.Difficulty,
			TimeControl: in.TimeControl,
			Resume:      in.Resume,
		})
	case "chat":
		return "", s.ctl.Chat(in.Text)
	}
	return "", errUnknownIntent
}

var errUnknownIntent = errors.New("unknown intent kind")

func square(raw string) (nchess.Square, error) {
	sq, ok := rules.ParseSquare(raw)
	if !ok {
		return nchess.NoSquare, errBadRequest
	}
	return sq, nil
}

var rejections = []struct {
	err    error
	status int
	code   string
}{
	{session.ErrNotYourTurn, fasthttp.StatusConflict, "not_your_turn"},
	{session.ErrIllegalMove, fasthttp.StatusUnprocessableEntity, "illegal_move"},
	{session.ErrTerminal, fasthttp.StatusConflict, "terminal"},
	{session.ErrNoGame, fasthttp.StatusConflict, "no_game"},
	{session.ErrWrongPhase, fasthttp.StatusConflict, "wrong_phase"},
	{session.ErrNotNetworked, fasthttp.StatusBadRequest, "not_networked"},
	{session.ErrNoSnapshot, fasthttp.StatusNotFound, "no_snapshot"},
	{syncproto.ErrNoDrawOffer, fasthttp.StatusConflict, "no_draw_offer"},
	{syncproto.ErrDrawOfferPending, fasthttp.StatusConflict, "draw_offer_pending"},
	{clock.ErrInvalidTimeControl, fasthttp.StatusBadRequest, "bad_time_control"},
	{errBadRequest, fasthttp.StatusBadRequest, "bad_request"},
	{errUnknownIntent, fasthttp.StatusBadRequest, "unknown_intent"},
}

func classify(err error) (int, gamedto.Error) {
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.status, gamedto.Error{Code: r.code, Message: err.Error()}
		}
	}
	return fasthttp.StatusInternalServerError, gamedto.Error{Code: "internal", Message: err.Error()}
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}
