// Package hunter implements HunterBrain: once frightened mode has more than
// a second left, Pac-Man stops foraging and chases the nearest frightened
// ghost, falling back to camping the ghost house once every ghost has been
// captured and is respawning. Grounded in the same A*-plus-anti-dithering
// idiom as the defensive brain, specialized to a single target.
package hunter

import (
	"ghostnet/maze"
	"ghostnet/model"
	"ghostnet/pathfinder"
)

// FrightenedActivationThresholdMs is the remaining-frightened-time floor
// above which HunterBrain takes over from DefensiveBrain, per spec.md §4.3.
const FrightenedActivationThresholdMs = 1000

// Maze is the subset of maze.Maze this brain depends on.
type Maze interface {
	IsWalkable(p model.Position) bool
	Neighbors(p model.Position) []model.Position
	ApplyTeleport(p model.Position) model.Position
	Teleports() []maze.Teleport
}

// Ghost is one ghost's position and whether it is a live hunting target
// (frightened) as opposed to respawning.
type Ghost struct {
	Position   model.Position
	Frightened bool
	Respawning bool
}

// Brain is a configured HunterBrain instance.
type Brain struct {
	m               Maze
	ghostHouseCenter model.Position
}

// New builds a Brain targeting ghostHouseCenter as the spawn-camp waypoint.
func New(m Maze, ghostHouseCenter model.Position) *Brain {
	return &Brain{m: m, ghostHouseCenter: ghostHouseCenter}
}

type pathMaze struct{ m Maze }

func (p pathMaze) IsWalkable(pos model.Position) bool            { return p.m.IsWalkable(pos) }
func (p pathMaze) Neighbors(pos model.Position) []model.Position { return p.m.Neighbors(pos) }
func (p pathMaze) Teleports() []maze.Teleport                    { return p.m.Teleports() }

// Decide returns the chosen direction for the current tick. currentFacing is
// used for the anti-dithering rule; on any internal failure it recovers and
// returns currentFacing.
func (b *Brain) Decide(pacPos model.Position, currentFacing model.Direction, ghosts []Ghost) (dir model.Direction) {
	dir = currentFacing
	defer func() {
		if r := recover(); r != nil {
			dir = currentFacing
		}
	}()

	target, found := b.closestFrightened(pacPos, ghosts)
	if !found {
		return b.spawnCamp(pacPos, currentFacing)
	}

	path := pathfinder.AStar(pathMaze{b.m}, pacPos, target)
	if len(path) < 2 {
		return currentFacing
	}

	dist := pathfinder.ManhattanWithTeleports(b.m.Teleports(), pacPos, target)
	if dist > 5 && currentFacing != model.None {
		next := b.m.ApplyTeleport(pacPos.Add(currentFacing))
		if b.m.IsWalkable(pacPos.Add(currentFacing)) {
			distCurrent := pathfinder.ManhattanWithTeleports(b.m.Teleports(), next, target)
			distOptimal := pathfinder.ManhattanWithTeleports(b.m.Teleports(), path[1], target)
			if distCurrent-distOptimal <= 1 {
				return currentFacing
			}
		}
	}

	return pathfinder.DirectionToward(path[0], path[1])
}

func (b *Brain) closestFrightened(pacPos model.Position, ghosts []Ghost) (model.Position, bool) {
	best := model.Position{}
	bestDist := -1
	found := false
	for _, g := range ghosts {
		if !g.Frightened || g.Respawning {
			continue
		}
		d := pathfinder.ManhattanWithTeleports(b.m.Teleports(), pacPos, g.Position)
		if !found || d < bestDist {
			found = true
			bestDist = d
			best = g.Position
		}
	}
	return best, found
}

// spawnCamp paths toward the ghost house center; once there, it continues in
// the current direction if walkable, else the first walkable neighbor.
func (b *Brain) spawnCamp(pacPos model.Position, currentFacing model.Direction) model.Direction {
	if pacPos == b.ghostHouseCenter {
		if currentFacing != model.None && b.m.IsWalkable(pacPos.Add(currentFacing)) {
			return currentFacing
		}
		for _, n := range b.m.Neighbors(pacPos) {
			return pathfinder.DirectionToward(pacPos, n)
		}
		return currentFacing
	}

	path := pathfinder.AStar(pathMaze{b.m}, pacPos, b.ghostHouseCenter)
	if len(path) < 2 {
		return currentFacing
	}
	return pathfinder.DirectionToward(path[0], path[1])
}
