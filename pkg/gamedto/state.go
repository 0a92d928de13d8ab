package gamedto

import "time"

type MaterialScore struct {
	White int `json:"white"`
	Black int `json:"black"`
	Delta int `json:"delta"`
}

// CapturedPieces lists piece names taken by each side, in capture order.
type CapturedPieces struct {
	White []string `json:"white"`
	Black []string `json:"black"`
}

type Target struct {
	Square      string `json:"square"`
	UCI         string `json:"uci"`
	Capture     bool   `json:"capture"`
	Recommended bool   `json:"recommended"`
}

type Selection struct {
	Origin      string   `json:"origin"`
	Recommended string   `json:"recommended"`
	Targets     []Target `json:"targets"`
}

type LastMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Opening struct {
	Code  string `json:"code"`
	Title string `json:"title"`
}

type Clock struct {
	White       int    `json:"white"`
	Black       int    `json:"black"`
	Active      string `json:"active,omitempty"`
	Running     bool   `json:"running"`
	Unlimited   bool   `json:"unlimited"`
	TimeControl string `json:"time_control"`
}

type Result struct {
	Reason string `json:"reason"`
	Winner string `json:"winner,omitempty"`
}

type ChatLine struct {
	Sender string    `json:"sender"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// State is the read-only snapshot served to the presentation layer.
type State struct {
	Phase       string         `json:"phase"`
	SessionID   string         `json:"session_id,omitempty"`
	Networked   bool           `json:"networked"`
	Opponent    string         `json:"opponent,omitempty"`
	Difficulty  string         `json:"difficulty,omitempty"`
	PlayerColor string         `json:"player_color"`
	Perspective string         `json:"perspective"`
	Cursor      string         `json:"cursor"`
	FEN         string         `json:"fen"`
	Turn        string         `json:"turn"`
	InCheck     bool           `json:"in_check"`
	Selection   *Selection     `json:"selection,omitempty"`
	LastMove    *LastMove      `json:"last_move,omitempty"`
	Captured    CapturedPieces `json:"captured"`
	Material    MaterialScore  `json:"material"`
	Opening     *Opening       `json:"opening,omitempty"`
	MovesUCI    []string       `json:"moves_uci"`
	MovesSAN    []string       `json:"moves_san"`
	Clock       Clock          `json:"clock"`
	Result      *Result        `json:"result,omitempty"`
	DrawOffer   string         `json:"draw_offer,omitempty"`
	Chat        []ChatLine     `json:"chat,omitempty"`
}
