// Package maze holds the immutable grid the simulation runs on: cell types,
// teleport pairs, and named starting positions. A Maze is built once and
// shared read-only across every room, the same way the teacher treats its
// track layouts (grid_world.FullTrack/DebugTrack) as package-level
// constants. The dot/power-pellet sets carved out of the layout at load
// time are exposed only as an immutable initial snapshot (InitialDots,
// InitialPellets); per-match consumption state belongs to GameRoom, not
// the shared Maze — see room.GameRoom's dots/pellets fields.
package maze

import (
	"fmt"

	"ghostnet/model"
)

// GridWidth and GridHeight are the reference maze dimensions (spec §6).
const (
	GridWidth  = 28
	GridHeight = 35
)

// Teleport is an ordered entry→exit pair. Landing on Entry is post-processed
// to Exit within the same tick.
type Teleport struct {
	Entry model.Position
	Exit  model.Position
}

// Maze is the immutable playing field. Zero value is not usable; build one
// with Build or the package-level Reference().
type Maze struct {
	width, height int
	cells         [][]model.Cell
	teleports     []Teleport
	// teleportIndex maps an entry position key to its exit, for O(1) lookup.
	teleportIndex map[posKey]model.Position

	starting map[string]model.Position

	// initialDots/initialPellets are the food positions carved out of the
	// layout at Build time. Immutable after construction — never mutated,
	// so safe to read concurrently from every room sharing this Maze.
	initialDots    []model.Position
	initialPellets []model.Position
}

type posKey struct{ x, y int }

func key(p model.Position) posKey { return posKey{p.X, p.Y} }

// Build constructs a Maze from a row-major rune layout (rows top to bottom,
// one rune per cell: '#'=wall, '.'=dot, 'o'=power pellet, 'G' and ' '=ghost
// house floor — the grid has no separate "plain floor" cell type, so any
// walkable non-dot/pellet tile is a GhostHouse cell) plus an explicit
// teleport and starting-position table. All rows must have equal length;
// layout must be GridWidth x GridHeight for the reference maze, but Build
// accepts any rectangular size so tests can exercise smaller boards.
func Build(layout []string, teleports []Teleport, starting map[string]model.Position) (*Maze, error) {
	if len(layout) == 0 {
		return nil, fmt.Errorf("maze: empty layout")
	}
	h := len(layout)
	w := len(layout[0])
	cells := make([][]model.Cell, h)
	var dots, pellets []model.Position

	for y, row := range layout {
		if len(row) != w {
			return nil, fmt.Errorf("maze: row %d has length %d, want %d", y, len(row), w)
		}
		cells[y] = make([]model.Cell, w)
		for x, r := range row {
			c, err := cellFromRune(r)
			if err != nil {
				return nil, fmt.Errorf("maze: row %d col %d: %w", y, x, err)
			}
			cells[y][x] = c
			switch c {
			case model.Dot:
				dots = append(dots, model.Position{X: x, Y: y})
			case model.PowerPellet:
				pellets = append(pellets, model.Position{X: x, Y: y})
			}
		}
	}

	idx := make(map[posKey]model.Position, len(teleports))
	for _, t := range teleports {
		idx[key(t.Entry)] = t.Exit
	}

	m := &Maze{
		width:          w,
		height:         h,
		cells:          cells,
		teleports:      teleports,
		teleportIndex:  idx,
		starting:       starting,
		initialDots:    dots,
		initialPellets: pellets,
	}
	return m, nil
}

func cellFromRune(r rune) (model.Cell, error) {
	switch r {
	case '#':
		return model.Wall, nil
	case '.':
		return model.Dot, nil
	case 'o':
		return model.PowerPellet, nil
	case 'G', ' ':
		return model.GhostHouse, nil
	default:
		return model.Wall, fmt.Errorf("unrecognized cell rune %q", r)
	}
}

// Width and Height report the grid dimensions.
func (m *Maze) Width() int  { return m.width }
func (m *Maze) Height() int { return m.height }

func (m *Maze) inBounds(p model.Position) bool {
	return p.X >= 0 && p.X < m.width && p.Y >= 0 && p.Y < m.height
}

// CellAt returns the static cell type at p. Out-of-bounds positions report Wall.
func (m *Maze) CellAt(p model.Position) model.Cell {
	if !m.inBounds(p) {
		return model.Wall
	}
	return m.cells[p.Y][p.X]
}

// IsWalkable reports whether an agent may occupy p.
func (m *Maze) IsWalkable(p model.Position) bool {
	return m.inBounds(p) && m.cells[p.Y][p.X].Walkable()
}

// ApplyTeleport returns the exit position if p is a teleport entry, else p.
func (m *Maze) ApplyTeleport(p model.Position) model.Position {
	if exit, ok := m.teleportIndex[key(p)]; ok {
		return exit
	}
	return p
}

// Teleports returns the ordered teleport pair table.
func (m *Maze) Teleports() []Teleport {
	return m.teleports
}

// Neighbors returns the up-to-4 in-bounds, non-wall positions reachable from
// p in one step, plus the teleport exit if p is itself a teleport entry
// (exposed as an additional neighbor per spec.md §4.1).
func (m *Maze) Neighbors(p model.Position) []model.Position {
	out := make([]model.Position, 0, 5)
	for _, d := range model.Directions {
		n := p.Add(d)
		if m.IsWalkable(n) {
			out = append(out, n)
		}
	}
	if exit, ok := m.teleportIndex[key(p)]; ok {
		out = append(out, exit)
	}
	return out
}

// StartingPosition looks up a named starting position (pacman, ghostHouse,
// blinky, pinky, inky, clyde). The second return is false if the name is
// unknown.
func (m *Maze) StartingPosition(name string) (model.Position, bool) {
	p, ok := m.starting[name]
	return p, ok
}

// InitialDots and InitialPellets return a fresh copy of the food positions
// carved out of the layout at Build time. This is a per-match seed, not
// live state: the shared Maze never tracks which dots a room has eaten —
// each GameRoom keeps its own consumption state seeded from this snapshot,
// so that N concurrent rooms sharing one Maze never observe or mutate each
// other's board (spec.md §5's "no cross-room mutable state in the core").
func (m *Maze) InitialDots() []model.Position {
	out := make([]model.Position, len(m.initialDots))
	copy(out, m.initialDots)
	return out
}

func (m *Maze) InitialPellets() []model.Position {
	out := make([]model.Position, len(m.initialPellets))
	copy(out, m.initialPellets)
	return out
}
