// Package tabular implements TabularPolicy: an optional drop-in replacement
// for both DefensiveBrain and HunterBrain, built from a pre-trained
// value-function table loaded once at process startup. The table is a set
// of general value functions (GVFs), one per semantic target (a dot, a
// pellet, a ghost), each mapping (gridX, gridY, facing) to a 4-vector of
// action values; inference sums weight(target)*valueVector across every
// live target and argmaxes over walkable actions. Grounded in the teacher's
// own two-stage viper/yaml config loading (reinforcement.FromYaml) for the
// file format, and in its flat-map state representation (grid_world.State)
// for the in-memory index: no pointer graph, just packed-key lookups.
package tabular

import (
	"fmt"
	"os"

	"ghostnet/model"

	"gopkg.in/yaml.v3"
)

// AggregationWeights are the reference per-category weights from spec.md
// §4.4, plus the adjacency shaping schedule.
type AggregationWeights struct {
	Dot            float64
	PowerPellet    float64
	NonFrightened  float64
	Frightened     float64
	AdjacentPenalty float64 // distance <= 1
	Near2Penalty    float64 // distance == 2
}

// DefaultAggregationWeights returns spec.md §4.4's reference weights.
func DefaultAggregationWeights() AggregationWeights {
	return AggregationWeights{
		Dot:             10,
		PowerPellet:     50,
		NonFrightened:   -1000,
		Frightened:      1000,
		AdjacentPenalty: -500,
		Near2Penalty:    -250,
	}
}

// qvec is a 4-entry action-value vector in model.Directions order
// (UP, DOWN, LEFT, RIGHT).
type qvec [4]float64

// stateKey packs a (gridX, gridY, facing) state into a comparable value.
type stateKey struct {
	x, y int
	dir  model.Direction
}

// posKey packs a (gridX, gridY) target position.
type posKey struct{ x, y int }

// valueTable maps a state to its action-value vector for one GVF target.
type valueTable map[stateKey]qvec

// Policy is an immutable, loaded-once value-function index.
type Policy struct {
	alpha, gamma float64
	totalActions int

	// entries maps a target's board position to its GVF value table. A
	// target not present here contributes the zero vector, per spec.md
	// §4.4's discovery rule: unseen targets are never rejected.
	entries map[posKey]valueTable

	weights AggregationWeights
}

// GhostObservation is a ghost's position and frightened status as seen for
// aggregation purposes.
type GhostObservation struct {
	Position   model.Position
	Frightened bool
}

// Observation is everything SelectAction needs about the current tick.
type Observation struct {
	PacmanPosition model.Position
	PacmanFacing   model.Direction
	Dots           []model.Position
	Pellets        []model.Position
	Ghosts         []GhostObservation
}

// --- File format ---

type fileModel struct {
	Alpha                  float64     `yaml:"alpha"`
	Gamma                  float64     `yaml:"gamma"`
	TotalActions           int         `yaml:"totalActions"`
	ExplorationModeChanged bool        `yaml:"explorationModeChanged"`
	Entries                []fileEntry `yaml:"entries"`
}

type fileEntry struct {
	PositionKey string          `yaml:"positionKey"`
	ValueTable  []fileStateRow  `yaml:"valueTable"`
}

type fileStateRow struct {
	StateKey string     `yaml:"stateKey"`
	Q        [4]float64 `yaml:"q"`
}

// Load reads a GVF table from path using the canonical textual encoding:
// positionKey as "x,y" and stateKey as "x,y,FACING", matching how
// reinforcement.FromYaml treats its own config file as the single source of
// truth for a typed, hand-inspectable artifact.
func Load(path string, weights AggregationWeights) (*Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tabular: reading model file: %w", err)
	}

	var fm fileModel
	if err := yaml.Unmarshal(raw, &fm); err != nil {
		return nil, fmt.Errorf("tabular: parsing model file: %w", err)
	}

	entries := make(map[posKey]valueTable, len(fm.Entries))
	for _, fe := range fm.Entries {
		pk, err := parsePosKey(fe.PositionKey)
		if err != nil {
			return nil, fmt.Errorf("tabular: entry positionKey %q: %w", fe.PositionKey, err)
		}
		vt := make(valueTable, len(fe.ValueTable))
		for _, row := range fe.ValueTable {
			sk, err := parseStateKey(row.StateKey)
			if err != nil {
				return nil, fmt.Errorf("tabular: stateKey %q: %w", row.StateKey, err)
			}
			vt[sk] = qvec(row.Q)
		}
		entries[pk] = vt
	}

	return &Policy{
		alpha:        fm.Alpha,
		gamma:        fm.Gamma,
		totalActions: fm.TotalActions,
		entries:      entries,
		weights:      weights,
	}, nil
}

func parsePosKey(s string) (posKey, error) {
	var x, y int
	if _, err := fmt.Sscanf(s, "%d,%d", &x, &y); err != nil {
		return posKey{}, err
	}
	return posKey{x, y}, nil
}

func parseStateKey(s string) (stateKey, error) {
	var x, y int
	var dirName string
	if _, err := fmt.Sscanf(s, "%d,%d,%s", &x, &y, &dirName); err != nil {
		return stateKey{}, err
	}
	dir, ok := directionByName[dirName]
	if !ok {
		return stateKey{}, fmt.Errorf("unrecognized facing %q", dirName)
	}
	return stateKey{x, y, dir}, nil
}

var directionByName = map[string]model.Direction{
	"UP": model.Up, "DOWN": model.Down, "LEFT": model.Left, "RIGHT": model.Right, "NONE": model.None,
}

// Alpha, Gamma, TotalActions expose the file's training metadata, carried
// through in case a caller wants to log or validate compatibility.
func (p *Policy) Alpha() float64     { return p.alpha }
func (p *Policy) Gamma() float64     { return p.gamma }
func (p *Policy) TotalActions() int  { return p.totalActions }

func key(p model.Position) posKey { return posKey{p.X, p.Y} }

// lookup returns the value vector for target at the given state, or the
// zero vector if target is unseen in the table.
func (pol *Policy) lookup(target model.Position, sk stateKey) qvec {
	vt, ok := pol.entries[key(target)]
	if !ok {
		return qvec{}
	}
	v, ok := vt[sk]
	if !ok {
		return qvec{}
	}
	return v
}

// SelectAction aggregates every live target's contribution and returns the
// argmax walkable action. stepCount is accepted for interface symmetry with
// PacmanController's per-tick call but the GVF table itself is stationary.
func (pol *Policy) SelectAction(obs Observation, stepCount int, isWalkable func(model.Position) bool) model.Direction {
	sk := stateKey{obs.PacmanPosition.X, obs.PacmanPosition.Y, obs.PacmanFacing}

	var aggregate qvec
	for _, d := range obs.Dots {
		v := pol.lookup(d, sk)
		for i := range aggregate {
			aggregate[i] += pol.weights.Dot * v[i]
		}
	}
	for _, p := range obs.Pellets {
		v := pol.lookup(p, sk)
		for i := range aggregate {
			aggregate[i] += pol.weights.PowerPellet * v[i]
		}
	}
	for _, g := range obs.Ghosts {
		v := pol.lookup(g.Position, sk)
		w := pol.weights.NonFrightened
		if g.Frightened {
			w = pol.weights.Frightened
		}
		for i := range aggregate {
			aggregate[i] += w * v[i]
		}
	}

	for i, dir := range model.Directions {
		next := obs.PacmanPosition.Add(dir)
		aggregate[i] += pol.adjacencyShaping(next, obs.Ghosts)
	}

	bestIdx := -1
	bestVal := 0.0
	for i, dir := range model.Directions {
		next := obs.PacmanPosition.Add(dir)
		if !isWalkable(next) {
			continue
		}
		if bestIdx == -1 || aggregate[i] > bestVal {
			bestIdx = i
			bestVal = aggregate[i]
		}
	}
	if bestIdx == -1 {
		return obs.PacmanFacing
	}
	return model.Directions[bestIdx]
}

// adjacencyShaping penalizes a candidate cell for proximity to any
// non-frightened ghost, per spec.md §4.4's shaping schedule.
func (pol *Policy) adjacencyShaping(candidate model.Position, ghosts []GhostObservation) float64 {
	dMin := -1
	for _, g := range ghosts {
		if g.Frightened {
			continue
		}
		d := candidate.ManhattanTo(g.Position)
		if dMin == -1 || d < dMin {
			dMin = d
		}
	}
	switch {
	case dMin == -1:
		return 0
	case dMin <= 1:
		return pol.weights.AdjacentPenalty
	case dMin == 2:
		return pol.weights.Near2Penalty
	case dMin <= 4:
		return -100 / float64(dMin)
	case dMin <= 8:
		return -50 / float64(dMin)
	default:
		return 0
	}
}
