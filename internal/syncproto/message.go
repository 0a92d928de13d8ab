// Package syncproto is the client side of the networked game contract.
package syncproto

import (
	"context"
	"encoding/json"
	"fmt"
)

type Kind string

const (
	KindMatchFound   Kind = "match-found"
	KindPositionPush Kind = "position-push"
	KindOutcome      Kind = "outcome"
	KindDrawOffered  Kind = "draw-offered"
	KindDrawDeclined Kind = "draw-declined"
	KindMoveMade     Kind = "move-made"
	KindOfferDraw    Kind = "offer-draw"
	KindAcceptDraw   Kind = "accept-draw"
	KindDeclineDraw  Kind = "decline-draw"
	KindResign       Kind = "resign"
	KindChat         Kind = "chat"
	KindSearch       Kind = "search"
	KindCancelSearch Kind = "cancel-search"
	KindRequestSync  Kind = "request-sync"
)

// Message is the flat wire envelope. Fields unused by a kind stay empty.
type Message struct {
	Type         Kind     `json:"type"`
	SessionID    string   `json:"session_id,omitempty"`
	Sender       string   `json:"sender,omitempty"`
	Color        string   `json:"color,omitempty"`
	Opponent     string   `json:"opponent,omitempty"`
	FEN          string   `json:"fen,omitempty"`
	Moves        []string `json:"moves,omitempty"`
	Move         string   `json:"move,omitempty"`
	Notation     string   `json:"notation,omitempty"`
	Reason       string   `json:"reason,omitempty"`
	Winner       string   `json:"winner,omitempty"`
	Side         string   `json:"side,omitempty"`
	Text         string   `json:"text,omitempty"`
	TimeControl  string   `json:"time_control,omitempty"`
	WhiteSeconds *int     `json:"white_seconds,omitempty"`
	BlackSeconds *int     `json:"black_seconds,omitempty"`
}

// Decode parses one wire frame.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return m, nil
}

// Sender delivers outbound messages. Delivery is fire-and-forget.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }
