package environment

import (
	"fmt"
	"strings"

	"github.com/aristath/groverq/internal/agent"
)

// Frozen lake actions.
const (
	Left = iota
	Down
	Right
	Up
)

// Maps holds the built-in frozen lake layouts. S is the start, F frozen, H a
// hole and G the goal, which must be the last tile.
var Maps = map[string][]string{
	"4x4": {
		"SFFF",
		"FHFH",
		"FFFH",
		"HFFG",
	},
	"8x8": {
		"SFFFFFFF",
		"FFFFFFFF",
		"FFFHFFFF",
		"FFFFFHFF",
		"FFFHFFFF",
		"FHHFFFHF",
		"FHFFHFHF",
		"FFFHFFFG",
	},
}

// FrozenLake is a deterministic grid walk. Moving off the grid leaves the
// position unchanged. Entering a hole ends the episode with reward 0, entering
// the goal ends it with reward 1.
type FrozenLake struct {
	tiles    []byte
	rows     int
	cols     int
	start    int
	position int
	done     bool
}

// NewFrozenLake builds the lake for a named map, or for a literal layout
// given as rows separated by '/' (e.g. "SF/FG").
func NewFrozenLake(name string) (*FrozenLake, error) {
	rows, ok := Maps[name]
	if !ok {
		if !strings.Contains(name, "/") {
			return nil, fmt.Errorf("unknown frozen lake map %q", name)
		}
		rows = strings.Split(name, "/")
	}
	return parseLake(rows)
}

func parseLake(rows []string) (*FrozenLake, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("empty frozen lake map")
	}

	cols := len(rows[0])
	lake := &FrozenLake{rows: len(rows), cols: cols, start: -1}
	for r, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("row %d has %d tiles, expected %d", r, len(row), cols)
		}
		for c := 0; c < cols; c++ {
			tile := row[c]
			switch tile {
			case 'S':
				if lake.start >= 0 {
					return nil, fmt.Errorf("map has more than one start tile")
				}
				lake.start = r*cols + c
			case 'G':
				if r != len(rows)-1 || c != cols-1 {
					return nil, fmt.Errorf("goal must be the last tile, found at row %d col %d", r, c)
				}
			case 'F', 'H':
			default:
				return nil, fmt.Errorf("unknown tile %q at row %d col %d", tile, r, c)
			}
			lake.tiles = append(lake.tiles, tile)
		}
	}
	if lake.start < 0 {
		return nil, fmt.Errorf("map has no start tile")
	}
	if lake.tiles[len(lake.tiles)-1] != 'G' {
		return nil, fmt.Errorf("map has no goal tile")
	}
	lake.position = lake.start
	return lake, nil
}

// States returns rows × cols.
func (l *FrozenLake) States() int { return len(l.tiles) }

// Actions returns 4 (left, down, right, up).
func (l *FrozenLake) Actions() int { return 4 }

// Reset moves back to the start tile.
func (l *FrozenLake) Reset() (int, error) {
	l.position = l.start
	l.done = false
	return l.position, nil
}

// Step moves one tile in the given direction.
func (l *FrozenLake) Step(action int) (agent.StepResult, error) {
	if err := checkAction(action, l.Actions()); err != nil {
		return agent.StepResult{}, err
	}
	if l.done {
		return agent.StepResult{}, ErrEpisodeFinished
	}

	r, c := l.position/l.cols, l.position%l.cols
	switch action {
	case Left:
		c = max(c-1, 0)
	case Down:
		r = min(r+1, l.rows-1)
	case Right:
		c = min(c+1, l.cols-1)
	case Up:
		r = max(r-1, 0)
	}
	l.position = r*l.cols + c

	result := agent.StepResult{NextState: l.position}
	switch l.tiles[l.position] {
	case 'H':
		result.Done = true
	case 'G':
		result.Done = true
		result.Reward = 1
	}
	l.done = result.Done
	return result, nil
}

// Tile returns the tile letter at state s.
func (l *FrozenLake) Tile(s int) byte {
	return l.tiles[s]
}
