// Package defensive implements DefensiveBrain: a bounded-depth predictive
// lookahead with alpha-beta pruning that chooses Pac-Man's next direction.
// Ghosts are collapsed to a single predicted move per ply rather than
// explored individually, so the tree stays a two-player minimax rather than
// a full multi-agent search. Grounded in the teacher's habit of keeping
// search/visitation state in flat maps keyed by packed coordinates
// (grid_world.State, atomic_float-backed value tables) instead of
// pointer-heavy trees, and in vladyslavpavlenko-pacman's BFS distance-map /
// exit-count heuristics for the choke-point and positional-advantage terms.
package defensive

import (
	"math"

	"ghostnet/maze"
	"ghostnet/model"
	"ghostnet/pathfinder"
)

const deathSentinel = -100000

// Weights holds the tunable evaluation coefficients of spec.md §4.2,
// overridable through config.Config.GetHyperParamOrDefault (keys wDanger to
// wChoke, read when the registry builds each room's brain).
type Weights struct {
	Danger       float64
	Progress     float64
	Dist         float64
	FrightBonus  float64
	Urgency      float64
	Explore      float64
	Positional   float64
	Choke        float64
}

// DefaultWeights returns the reference weight table from spec.md §4.2.
func DefaultWeights() Weights {
	return Weights{
		Danger:      -2500,
		Progress:    200,
		Dist:        -3,
		FrightBonus: 1200,
		Urgency:     6000,
		Explore:     150,
		Positional:  80,
		Choke:       -800,
	}
}

// HyperParamSource mirrors config.Config.GetHyperParamOrDefault, letting this
// package stay independent of the config package's concrete type.
type HyperParamSource interface {
	GetHyperParamOrDefault(key string, def float64) float64
}

// WeightsFromConfig reads each weight from src, falling back to the spec
// default when the key is absent.
func WeightsFromConfig(src HyperParamSource) Weights {
	d := DefaultWeights()
	return Weights{
		Danger:      src.GetHyperParamOrDefault("wDanger", d.Danger),
		Progress:    src.GetHyperParamOrDefault("wProgress", d.Progress),
		Dist:        src.GetHyperParamOrDefault("wDist", d.Dist),
		FrightBonus: src.GetHyperParamOrDefault("wFrightBonus", d.FrightBonus),
		Urgency:     src.GetHyperParamOrDefault("wUrgency", d.Urgency),
		Explore:     src.GetHyperParamOrDefault("wExplore", d.Explore),
		Positional:  src.GetHyperParamOrDefault("wPositional", d.Positional),
		Choke:       src.GetHyperParamOrDefault("wChoke", d.Choke),
	}
}

// Maze is the subset of maze.Maze this brain depends on.
type Maze interface {
	IsWalkable(p model.Position) bool
	Neighbors(p model.Position) []model.Position
	ApplyTeleport(p model.Position) model.Position
	Teleports() []maze.Teleport
}

// GhostState is one ghost's position, facing, and frightened status as seen
// by the search.
type GhostState struct {
	Position   model.Position
	Facing     model.Direction
	Frightened bool

	prevPosition model.Position
}

// Observation is everything FindBestDirection needs about the current tick.
type Observation struct {
	PacmanPosition model.Position
	PacmanFacing   model.Direction
	Ghosts         []GhostState
	Dots           []model.Position
	Pellets        []model.Position
}

// Brain is a configured DefensiveBrain instance. Depth is clamped to [1,20]
// per spec.md §9 (the [1,6]/100 variants are documented bugs, not options).
type Brain struct {
	m       Maze
	weights Weights
	depth   int
}

// New builds a Brain. depth is clamped into [1, 20].
func New(m Maze, weights Weights, depth int) *Brain {
	if depth < 1 {
		depth = 1
	}
	if depth > 20 {
		depth = 20
	}
	return &Brain{m: m, weights: weights, depth: depth}
}

// SetSearchDepth updates the search depth, clamped to [1, 20].
func (b *Brain) SetSearchDepth(depth int) {
	if depth < 1 {
		depth = 1
	}
	if depth > 20 {
		depth = 20
	}
	b.depth = depth
}

type posKey struct{ x, y int }

func key(p model.Position) posKey { return posKey{p.X, p.Y} }

type foodSet map[posKey]struct{}

func newFoodSet(positions []model.Position) foodSet {
	s := make(foodSet, len(positions))
	for _, p := range positions {
		s[key(p)] = struct{}{}
	}
	return s
}

// consume returns a copy of s with p removed, and whether p was present.
func (s foodSet) consume(p model.Position) (foodSet, bool) {
	k := key(p)
	if _, ok := s[k]; !ok {
		return s, false
	}
	next := make(foodSet, len(s))
	for existing := range s {
		if existing != k {
			next[existing] = struct{}{}
		}
	}
	return next, true
}

func (s foodSet) positions() []model.Position {
	out := make([]model.Position, 0, len(s))
	for k := range s {
		out = append(out, model.Position{X: k.x, Y: k.y})
	}
	return out
}

// searchState is the mutable (copy-on-write) state threaded through the
// search tree. frightened tracks whether, hypothetically, ghosts are to be
// treated as frightened from this node forward because a pellet was
// consumed somewhere in the simulated future.
type searchState struct {
	pacPos, prevPacPos model.Position
	ghosts             []GhostState
	dots, pellets      foodSet
	frightened         bool
}

// FindBestDirection returns the chosen direction for the current tick. On
// any internal failure it recovers and returns obs.PacmanFacing, matching
// spec.md §7's "brain-decision failure returns current facing as safe
// default".
func (b *Brain) FindBestDirection(obs Observation) (dir model.Direction) {
	dir = obs.PacmanFacing
	defer func() {
		if r := recover(); r != nil {
			dir = obs.PacmanFacing
		}
	}()

	dots := newFoodSet(obs.Dots)
	pellets := newFoodSet(obs.Pellets)
	initialFood := len(dots) + len(pellets)
	if initialFood == 0 {
		return obs.PacmanFacing
	}

	dMinGhost := b.minDistanceToNonFrightened(obs.PacmanPosition, obs.Ghosts)
	if dMinGhost > 12 {
		if fast, ok := b.safeExplorationStep(obs.PacmanPosition, dots, pellets); ok {
			return fast
		}
	}

	rootGhosts := make([]GhostState, len(obs.Ghosts))
	for i, g := range obs.Ghosts {
		rootGhosts[i] = GhostState{Position: g.Position, Facing: g.Facing, Frightened: g.Frightened, prevPosition: g.Position}
	}

	scores := map[model.Direction]float64{}
	any := false
	for _, d := range model.Directions {
		next := obs.PacmanPosition.Add(d)
		if !b.m.IsWalkable(next) {
			continue
		}
		next = b.m.ApplyTeleport(next)

		childDots, dotEaten := dots.consume(next)
		childPellets, pelletEaten := pellets.consume(next)
		frightenedArmed := pelletEaten

		child := searchState{
			pacPos:     next,
			prevPacPos: obs.PacmanPosition,
			ghosts:     cloneGhosts(rootGhosts),
			dots:       childDots,
			pellets:    childPellets,
			frightened: frightenedArmed,
		}
		_ = dotEaten

		projected, dead := b.projectAllGhosts(child)
		var val float64
		if dead {
			val = deathSentinel
		} else {
			val = b.search(projected, b.depth-1, math.Inf(-1), math.Inf(1), initialFood)
		}
		val += b.tier2(next, obs.Ghosts)
		scores[d] = val
		any = true
	}

	if !any {
		return obs.PacmanFacing
	}

	dNearestFood := b.minDistanceToFood(obs.PacmanPosition, dots, pellets)
	return b.pickWithAntiDither(scores, obs.PacmanFacing, dMinGhost, dNearestFood)
}

func cloneGhosts(gs []GhostState) []GhostState {
	out := make([]GhostState, len(gs))
	copy(out, gs)
	return out
}

func (b *Brain) pickWithAntiDither(scores map[model.Direction]float64, currentFacing model.Direction, dMinGhost, dNearestFood int) model.Direction {
	best := math.Inf(-1)
	for _, v := range scores {
		if v > best {
			best = v
		}
	}
	mag := math.Abs(best)

	if v, ok := scores[currentFacing]; ok {
		exploring := dMinGhost >= 10 && dNearestFood >= 8
		if exploring {
			scores[currentFacing] = v + 0.15*mag
		} else if math.Abs(best-v) < 0.05*mag {
			scores[currentFacing] = v + 0.05*mag
		}
	}

	var bestDir model.Direction
	bestVal := math.Inf(-1)
	for _, d := range model.Directions {
		v, ok := scores[d]
		if !ok {
			continue
		}
		if v > bestVal {
			bestVal = v
			bestDir = d
		}
	}
	return bestDir
}

// safeExplorationStep implements the fast path: when no non-frightened ghost
// is within 12 tiles, return the first step of an A* path to the nearest
// remaining food, for deterministic, loop-free movement on empty maps.
func (b *Brain) safeExplorationStep(pacPos model.Position, dots, pellets foodSet) (model.Direction, bool) {
	food := append(dots.positions(), pellets.positions()...)
	if len(food) == 0 {
		return model.None, false
	}

	best := food[0]
	bestDist := pathfinder.ManhattanWithTeleports(b.m.Teleports(), pacPos, best)
	for _, f := range food[1:] {
		d := pathfinder.ManhattanWithTeleports(b.m.Teleports(), pacPos, f)
		if d < bestDist {
			bestDist = d
			best = f
		}
	}

	path := pathfinder.AStar(pathMaze{b.m}, pacPos, best)
	if len(path) < 2 {
		return model.None, false
	}
	return pathfinder.DirectionToward(path[0], path[1]), true
}

// pathMaze adapts Maze to pathfinder.Maze.
type pathMaze struct{ m Maze }

func (p pathMaze) IsWalkable(pos model.Position) bool          { return p.m.IsWalkable(pos) }
func (p pathMaze) Neighbors(pos model.Position) []model.Position { return p.m.Neighbors(pos) }
func (p pathMaze) Teleports() []maze.Teleport                  { return p.m.Teleports() }

func (b *Brain) minDistanceToNonFrightened(pacPos model.Position, ghosts []GhostState) int {
	best := math.MaxInt32
	for _, g := range ghosts {
		if g.Frightened {
			continue
		}
		d := pathfinder.ManhattanWithTeleports(b.m.Teleports(), pacPos, g.Position)
		if d < best {
			best = d
		}
	}
	return best
}

func (b *Brain) minDistanceToFood(pacPos model.Position, dots, pellets foodSet) int {
	best := math.MaxInt32
	for _, p := range dots.positions() {
		if d := pathfinder.ManhattanWithTeleports(b.m.Teleports(), pacPos, p); d < best {
			best = d
		}
	}
	for _, p := range pellets.positions() {
		if d := pathfinder.ManhattanWithTeleports(b.m.Teleports(), pacPos, p); d < best {
			best = d
		}
	}
	return best
}

// search is the alpha-beta recursion. state.pacPos/ghosts already reflect
// the move and ghost projection of the ply that produced this node; depth
// counts remaining plies.
func (b *Brain) search(state searchState, depth int, alpha, beta float64, initialFood int) float64 {
	if depth <= 0 || len(state.dots)+len(state.pellets) == 0 {
		return b.eval(state, initialFood)
	}

	best := math.Inf(-1)
	any := false
	for _, d := range model.Directions {
		next := state.pacPos.Add(d)
		if !b.m.IsWalkable(next) {
			continue
		}
		next = b.m.ApplyTeleport(next)

		childDots, _ := state.dots.consume(next)
		childPellets, pelletEaten := state.pellets.consume(next)

		child := searchState{
			pacPos:     next,
			prevPacPos: state.pacPos,
			ghosts:     cloneGhosts(state.ghosts),
			dots:       childDots,
			pellets:    childPellets,
			frightened: state.frightened || pelletEaten,
		}

		projected, dead := b.projectAllGhosts(child)
		var val float64
		if dead {
			val = deathSentinel
		} else {
			val = b.search(projected, depth-1, alpha, beta, initialFood)
		}

		any = true
		if val > best {
			best = val
		}
		if best > alpha {
			alpha = best
		}
		if beta <= alpha {
			break
		}
	}

	if !any {
		return b.eval(state, initialFood)
	}
	return best
}

// projectAllGhosts applies the ghost projection rule to every ghost in
// state, returning the updated state and whether any non-frightened ghost
// now occupies Pac-Man's cell or swapped positions with him this ply.
func (b *Brain) projectAllGhosts(state searchState) (searchState, bool) {
	dead := false
	newGhosts := make([]GhostState, len(state.ghosts))
	for i, g := range state.ghosts {
		ng := b.projectGhost(g, state.pacPos)
		effFrightened := state.frightened || g.Frightened
		if !effFrightened {
			sameCell := ng.Position == state.pacPos
			swapped := g.Position == state.pacPos && ng.Position == state.prevPacPos
			if sameCell || swapped {
				dead = true
			}
		}
		newGhosts[i] = ng
	}
	state.ghosts = newGhosts
	return state, dead
}

// projectGhost applies spec.md §4.2's ghost projection rule: continue
// current facing if walkable and it doesn't push the ghost more than 5
// tiles farther (teleport-aware Manhattan) from Pac-Man; otherwise take the
// adjacent walkable cell that most reduces that distance.
func (b *Brain) projectGhost(g GhostState, pacPos model.Position) GhostState {
	teleports := b.m.Teleports()
	distBefore := pathfinder.ManhattanWithTeleports(teleports, g.Position, pacPos)

	if g.Facing != model.None {
		next := g.Position.Add(g.Facing)
		if b.m.IsWalkable(next) {
			next = b.m.ApplyTeleport(next)
			distAfter := pathfinder.ManhattanWithTeleports(teleports, next, pacPos)
			if distAfter <= distBefore+5 {
				return GhostState{Position: next, Facing: g.Facing, Frightened: g.Frightened, prevPosition: g.Position}
			}
		}
	}

	neighbors := b.m.Neighbors(g.Position)
	if len(neighbors) == 0 {
		return GhostState{Position: g.Position, Facing: g.Facing, Frightened: g.Frightened, prevPosition: g.Position}
	}

	bestPos := neighbors[0]
	bestDist := pathfinder.ManhattanWithTeleports(teleports, bestPos, pacPos)
	for _, n := range neighbors[1:] {
		d := pathfinder.ManhattanWithTeleports(teleports, n, pacPos)
		if d < bestDist {
			bestDist = d
			bestPos = n
		}
	}
	facing := pathfinder.DirectionToward(g.Position, bestPos)
	return GhostState{Position: bestPos, Facing: facing, Frightened: g.Frightened, prevPosition: g.Position}
}

// eval scores a leaf or cutoff node per spec.md §4.2's 6 tier-1 components.
func (b *Brain) eval(state searchState, initialFood int) float64 {
	currentFood := len(state.dots) + len(state.pellets)
	if currentFood == 0 {
		return math.Inf(1)
	}

	teleports := b.m.Teleports()
	dMinGhost := math.MaxInt32
	dMinFrightened := math.MaxInt32
	for _, g := range state.ghosts {
		effFrightened := state.frightened || g.Frightened
		d := pathfinder.ManhattanWithTeleports(teleports, state.pacPos, g.Position)
		if effFrightened {
			if d < dMinFrightened {
				dMinFrightened = d
			}
		} else {
			if d == 0 {
				return math.Inf(-1)
			}
			if d < dMinGhost {
				dMinGhost = d
			}
		}
	}

	dNearestFood := math.MaxInt32
	for _, p := range state.dots.positions() {
		if d := pathfinder.ManhattanWithTeleports(teleports, state.pacPos, p); d < dNearestFood {
			dNearestFood = d
		}
	}
	for _, p := range state.pellets.positions() {
		if d := pathfinder.ManhattanWithTeleports(teleports, state.pacPos, p); d < dNearestFood {
			dNearestFood = d
		}
	}

	w := b.weights
	score := w.Danger/float64(dMinGhost+1) +
		float64(initialFood-currentFood)*w.Progress +
		float64(dNearestFood)*w.Dist +
		w.FrightBonus/float64(dMinFrightened+1)

	if _, onPellet := state.pellets[key(state.pacPos)]; onPellet && dMinGhost <= 8 {
		score += w.Urgency / float64(dMinGhost+1)
	}
	if dNearestFood > 6 && dMinGhost > 8 {
		score += w.Explore
	}

	return score
}

// tier2 computes the root-only positional-advantage and choke-point-danger
// components for a candidate destination cell, evaluated against the
// ghosts' positions as observed at the root (not projected forward).
func (b *Brain) tier2(candidate model.Position, rootGhosts []GhostState) float64 {
	const window = 7
	depths := b.bfsDepths(candidate, window)

	positionalCount := 0
	var chokeSum float64
	teleports := b.m.Teleports()

	for k, d := range depths {
		cell := model.Position{X: k.x, Y: k.y}

		if d <= 6 {
			safe := true
			for _, g := range rootGhosts {
				if g.Frightened {
					continue
				}
				if pathfinder.ManhattanWithTeleports(teleports, cell, g.Position) < 4 {
					safe = false
					break
				}
			}
			if safe {
				positionalCount++
			}
		}

		if len(b.m.Neighbors(cell)) >= 3 {
			for _, g := range rootGhosts {
				if g.Frightened {
					continue
				}
				dg := pathfinder.ManhattanWithTeleports(teleports, cell, g.Position)
				chokeSum += b.weights.Choke / float64(dg+1)
			}
		}
	}

	return float64(positionalCount)*b.weights.Positional + chokeSum
}

// bfsDepths returns the BFS distance (in steps) from src to every cell
// reachable within maxDepth steps, inclusive of src (depth 0).
func (b *Brain) bfsDepths(src model.Position, maxDepth int) map[posKey]int {
	depths := map[posKey]int{key(src): 0}
	frontier := []model.Position{src}
	for d := 1; d <= maxDepth; d++ {
		var next []model.Position
		for _, p := range frontier {
			for _, n := range b.m.Neighbors(p) {
				k := key(n)
				if _, seen := depths[k]; seen {
					continue
				}
				depths[k] = d
				next = append(next, n)
			}
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}
	return depths
}
