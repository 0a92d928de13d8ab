package opponent

import (
	"fmt"
	"strings"

	"github.com/park285/cheese-gamecenter/internal/opponent/uci"
)

// Level is a strength preset for the UCI-backed opponent.
type Level struct {
	Name             string
	Options          uci.Options
	Limits           uci.Limits
	CandidateWeights []float64
}

func (l Level) validate() error {
	switch {
	case len(l.CandidateWeights) == 0:
		return fmt.Errorf("level %s: candidate weights must not be empty", l.Name)
	case len(l.CandidateWeights) > l.Options.MultiPV:
		return fmt.Errorf("level %s: %d weights exceed multipv %d", l.Name, len(l.CandidateWeights), l.Options.MultiPV)
	}
	sum := 0.0
	for i, w := range l.CandidateWeights {
		if w < 0 {
			return fmt.Errorf("level %s: weight %d is negative", l.Name, i)
		}
		sum += w
	}
	if sum == 0 {
		return fmt.Errorf("level %s: weights sum to zero", l.Name)
	}
	return nil
}

const threads = 2

var levels = map[string]Level{
	"level1": {Name: "level1", Options: uci.Options{Threads: threads, SkillLevel: 0, HashMB: 16, MultiPV: 3}, Limits: uci.Limits{Depth: 5, MoveTimeMillis: 20}, CandidateWeights: []float64{0.5, 0.3, 0.2}},
	"level2": {Name: "level2", Options: uci.Options{Threads: threads, SkillLevel: 0, HashMB: 16, MultiPV: 3}, Limits: uci.Limits{Depth: 6, MoveTimeMillis: 60}, CandidateWeights: []float64{0.6, 0.3, 0.1}},
	"level3": {Name: "level3", Options: uci.Options{Threads: threads, SkillLevel: 1, HashMB: 24, MultiPV: 3}, Limits: uci.Limits{Depth: 8, MoveTimeMillis: 80}, CandidateWeights: []float64{0.7, 0.2, 0.1}},
	"level4": {Name: "level4", Options: uci.Options{Threads: threads, SkillLevel: 3, HashMB: 32, MultiPV: 3}, Limits: uci.Limits{Depth: 10, MoveTimeMillis: 140}, CandidateWeights: []float64{0.65, 0.25, 0.1}},
	"level5": {Name: "level5", Options: uci.Options{Threads: threads, SkillLevel: 7, HashMB: 48, MultiPV: 3}, Limits: uci.Limits{Depth: 12, MoveTimeMillis: 200}, CandidateWeights: []float64{0.7, 0.2, 0.1}},
	"level6": {Name: "level6", Options: uci.Options{Threads: threads, SkillLevel: 11, HashMB: 64, MultiPV: 2}, Limits: uci.Limits{Depth: 16, MoveTimeMillis: 300}, CandidateWeights: []float64{0.8, 0.2}},
	"level7": {Name: "level7", Options: uci.Options{Threads: threads, SkillLevel: 16, HashMB: 96, MultiPV: 2}, Limits: uci.Limits{Depth: 20, MoveTimeMillis: 500}, CandidateWeights: []float64{0.85, 0.15}},
	"level8": {Name: "level8", Options: uci.Options{Threads: 4, SkillLevel: 20, HashMB: 128, MultiPV: 1}, Limits: uci.Limits{Depth: 30, MoveTimeMillis: 1000}, CandidateWeights: []float64{1.0}},
}

var aliases = map[string]string{
	"beginner":     "level1",
	"easy":         "level2",
	"intermediate": "level5",
	"advanced":     "level7",
	"master":       "level8",
}

// LookupLevel resolves a level name or alias.
func LookupLevel(name string) (Level, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	l, ok := levels[name]
	if !ok {
		return Level{}, false
	}
	l.CandidateWeights = append([]float64(nil), l.CandidateWeights...)
	return l, true
}
