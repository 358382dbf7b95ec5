// Package pathfinder implements A* search over a maze.Maze, with a
// teleport-aware heuristic and an optional ghost-avoidance variant used only
// by fallback pathfinding (spec.md §4.1). Grounded in the teacher's own
// habit of keeping search state in flat maps keyed by packed integer
// coordinates (see grid_world.State / atomic_float-backed value maps) rather
// than pointer-heavy node graphs.
package pathfinder

import (
	"container/heap"

	"ghostnet/maze"
	"ghostnet/model"
)

// Maze is the subset of maze.Maze's contract the pathfinder depends on, so
// tests can supply a fake.
type Maze interface {
	IsWalkable(p model.Position) bool
	Neighbors(p model.Position) []model.Position
	Teleports() []maze.Teleport
}

// AStar returns a shortest path from src to dst inclusive of both endpoints.
// Returns nil if src == dst is not the case and no path exists; returns
// []model.Position{src} if src == dst.
func AStar(m Maze, src, dst model.Position) []model.Position {
	if src == dst {
		return []model.Position{src}
	}

	h := heuristic(m, dst)

	open := &frontier{}
	heap.Init(open)
	seq := 0
	push := func(p model.Position, g, f int) {
		heap.Push(open, &frontierNode{pos: p, g: g, f: f, seq: seq})
		seq++
	}

	gScore := map[model.Position]int{src: 0}
	cameFrom := map[model.Position]model.Position{}
	closed := map[model.Position]bool{}

	push(src, 0, h(src))

	for open.Len() > 0 {
		cur := heap.Pop(open).(*frontierNode)
		if closed[cur.pos] {
			continue
		}
		if cur.pos == dst {
			return reconstruct(cameFrom, src, dst)
		}
		closed[cur.pos] = true

		for _, n := range m.Neighbors(cur.pos) {
			tentativeG := gScore[cur.pos] + 1
			if g, ok := gScore[n]; ok && g <= tentativeG {
				continue
			}
			gScore[n] = tentativeG
			cameFrom[n] = cur.pos
			push(n, tentativeG, tentativeG+h(n))
		}
	}

	return nil
}

// AStarAvoiding runs A* with the g-cost of cells within radius of any ghost
// inflated by (radius-d)*penalty, per spec.md §4.1's fallback pathfinding
// mode.
func AStarAvoiding(m Maze, src, dst model.Position, ghosts []model.Position, radius, penalty int) []model.Position {
	if src == dst {
		return []model.Position{src}
	}

	h := heuristic(m, dst)
	avoidCost := func(p model.Position) int {
		cost := 0
		for _, g := range ghosts {
			d := p.ManhattanTo(g)
			if d < radius {
				cost += (radius - d) * penalty
			}
		}
		return cost
	}

	open := &frontier{}
	heap.Init(open)
	seq := 0
	push := func(p model.Position, g, f int) {
		heap.Push(open, &frontierNode{pos: p, g: g, f: f, seq: seq})
		seq++
	}

	gScore := map[model.Position]int{src: 0}
	cameFrom := map[model.Position]model.Position{}
	closed := map[model.Position]bool{}

	push(src, 0, h(src))

	for open.Len() > 0 {
		cur := heap.Pop(open).(*frontierNode)
		if closed[cur.pos] {
			continue
		}
		if cur.pos == dst {
			return reconstruct(cameFrom, src, dst)
		}
		closed[cur.pos] = true

		for _, n := range m.Neighbors(cur.pos) {
			stepCost := 1 + avoidCost(n)
			tentativeG := gScore[cur.pos] + stepCost
			if g, ok := gScore[n]; ok && g <= tentativeG {
				continue
			}
			gScore[n] = tentativeG
			cameFrom[n] = cur.pos
			push(n, tentativeG, tentativeG+h(n))
		}
	}

	return nil
}

func reconstruct(cameFrom map[model.Position]model.Position, src, dst model.Position) []model.Position {
	path := []model.Position{dst}
	cur := dst
	for cur != src {
		prev, ok := cameFrom[cur]
		if !ok {
			return nil
		}
		path = append(path, prev)
		cur = prev
	}
	// reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// heuristic returns the teleport-aware admissible distance estimate to dst:
// the plain Manhattan distance, or (if smaller) routing through any single
// teleport pair.
func heuristic(m Maze, dst model.Position) func(model.Position) int {
	teleports := m.Teleports()
	return func(from model.Position) int {
		best := from.ManhattanTo(dst)
		for _, t := range teleports {
			viaTeleport := from.ManhattanTo(t.Entry) + 1 + t.Exit.ManhattanTo(dst)
			if viaTeleport < best {
				best = viaTeleport
			}
		}
		return best
	}
}

// ManhattanWithTeleports is the teleport-aware Manhattan distance from a to b
// (the same estimate the A* heuristic uses), used throughout the brains to
// rank ghosts/targets without running a full A*.
func ManhattanWithTeleports(teleports []maze.Teleport, a, b model.Position) int {
	best := a.ManhattanTo(b)
	for _, t := range teleports {
		via := a.ManhattanTo(t.Entry) + 1 + t.Exit.ManhattanTo(b)
		if via < best {
			best = via
		}
	}
	return best
}

// DirectionToward returns the cardinal direction from a to an adjacent cell
// b: the axis with the larger absolute delta wins; ties prefer horizontal.
func DirectionToward(a, b model.Position) model.Direction {
	dx := b.X - a.X
	dy := b.Y - a.Y
	if abs(dx) >= abs(dy) {
		if dx > 0 {
			return model.Right
		}
		if dx < 0 {
			return model.Left
		}
	}
	if dy > 0 {
		return model.Down
	}
	if dy < 0 {
		return model.Up
	}
	return model.None
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// frontierNode is one entry in the open-set priority queue. seq breaks ties
// among equal-f nodes in FIFO (insertion) order, per spec.md §4.1.
type frontierNode struct {
	pos      model.Position
	g, f     int
	seq      int
	heapIndex int
}

type frontier []*frontierNode

func (f frontier) Len() int { return len(f) }
func (f frontier) Less(i, j int) bool {
	if f[i].f != f[j].f {
		return f[i].f < f[j].f
	}
	return f[i].seq < f[j].seq
}
func (f frontier) Swap(i, j int) {
	f[i], f[j] = f[j], f[i]
	f[i].heapIndex = i
	f[j].heapIndex = j
}
func (f *frontier) Push(x interface{}) {
	n := x.(*frontierNode)
	n.heapIndex = len(*f)
	*f = append(*f, n)
}
func (f *frontier) Pop() interface{} {
	old := *f
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*f = old[:n-1]
	return item
}
