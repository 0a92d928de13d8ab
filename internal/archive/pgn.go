package archive

import (
	"fmt"
	"strings"
	"time"
)

func resultToken(g *Game) string {
	switch strings.ToLower(strings.TrimSpace(g.Winner)) {
	case "white":
		return "white"
	case "black":
		return "black"
	}
	if strings.TrimSpace(g.Reason) == "" {
		return ""
	}
	return "draw"
}

func pgnResult(g *Game) string {
	switch resultToken(g) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

// BuildPGN renders g as PGN text from its SAN list.
func BuildPGN(g *Game) string {
	if g == nil {
		return ""
	}
	var b strings.Builder
	date := g.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	result := pgnResult(g)
	b.WriteString("[Event \"Gamecenter\"]\n")
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePGN(g.Mode))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(g.WhiteName))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(g.BlackName))
	if strings.TrimSpace(g.TimeControl) != "" {
		fmt.Fprintf(&b, "[TimeControl \"%s\"]\n", sanitizePGN(g.TimeControl))
	}
	if strings.TrimSpace(g.Opening) != "" {
		fmt.Fprintf(&b, "[Opening \"%s\"]\n", sanitizePGN(g.Opening))
	}
	if strings.TrimSpace(g.Reason) != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(g.Reason)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(g.MovesSAN); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(g.MovesSAN[i]))
		if i+1 < len(g.MovesSAN) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(g.MovesSAN[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(result)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
