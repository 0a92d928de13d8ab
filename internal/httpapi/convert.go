package httpapi

import (
	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-gamecenter/internal/domain"
	"github.com/park285/cheese-gamecenter/internal/selection"
	"github.com/park285/cheese-gamecenter/internal/session"
	"github.com/park285/cheese-gamecenter/pkg/gamedto"
)

func toState(v session.View) *gamedto.State {
	st := &gamedto.State{
		Phase:       string(v.Phase),
		SessionID:   v.SessionID,
		Networked:   v.Networked,
		Opponent:    v.Opponent,
		Difficulty:  v.Difficulty,
		PlayerColor: domain.ColorName(v.PlayerColor),
		Perspective: domain.ColorName(v.Perspective),
		Cursor:      v.Cursor.String(),
		FEN:         v.FEN,
		Turn:        domain.ColorName(v.Turn),
		InCheck:     v.InCheck,
		Captured: gamedto.CapturedPieces{
			White: pieceNames(v.Tally.ByWhite),
			Black: pieceNames(v.Tally.ByBlack),
		},
		Material: gamedto.MaterialScore{White: v.Material.White, Black: v.Material.Black, Delta: v.Material.Delta},
		MovesUCI: nonNil(v.MovesUCI),
		MovesSAN: nonNil(v.MovesSAN),
		Clock: gamedto.Clock{
			White:       v.Clock.White,
			Black:       v.Clock.Black,
			Active:      domain.ColorName(v.Clock.Active),
			Running:     v.Clock.Running,
			Unlimited:   v.Clock.Unlimited,
			TimeControl: v.Clock.TimeControl,
		},
	}
	if v.Selection != nil {
		st.Selection = &gamedto.Selection{
			Origin:      v.Selection.Origin.String(),
			Recommended: v.Selection.Recommended.String(),
			Targets:     toTargets(v.Selection.Destinations),
		}
	}
	if v.Highlight.Valid {
		st.LastMove = &gamedto.LastMove{From: v.Highlight.From.String(), To: v.Highlight.To.String()}
	}
	if v.Opening.Code != "" {
		st.Opening = &gamedto.Opening{Code: v.Opening.Code, Title: v.Opening.Title}
	}
	if v.Result != nil {
		st.Result = &gamedto.Result{Reason: string(v.Result.Reason), Winner: domain.ColorName(v.Result.Winner)}
	}
	if v.DrawOffer != nil {
		st.DrawOffer = domain.ColorName(v.DrawOffer.From)
	}
	for _, c := range v.Chat {
		st.Chat = append(st.Chat, gamedto.ChatLine{Sender: c.Sender, Text: c.Text, At: c.At})
	}
	return st
}

func toTargets(dests []selection.Destination) []gamedto.Target {
	out := make([]gamedto.Target, 0, len(dests))
	for _, d := range dests {
		out = append(out, gamedto.Target{
			Square:      d.Square.String(),
			UCI:         d.Move.UCI,
			Capture:     d.Capture,
			Recommended: d.Recommended,
		})
	}
	return out
}

func pieceNames(types []nchess.PieceType) []string {
	out := make([]string, 0, len(types))
	for _, pt := range types {
		out = append(out, pieceName(pt))
	}
	return out
}

func pieceName(pt nchess.PieceType) string {
	switch pt {
	case nchess.Pawn:
		return "pawn"
	case nchess.Knight:
		return "knight"
	case nchess.Bishop:
		return "bishop"
	case nchess.Rook:
		return "rook"
	case nchess.Queen:
		return "queen"
	case nchess.King:
		return "king"
	default:
		return ""
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
