package maze

import (
	"fmt"

	"ghostnet/model"
)

// ghostHouse bounds (inclusive), roughly centered in the reference layout.
const (
	houseTop    = 15
	houseBottom = 19
	houseLeft   = 11
	houseRight  = 16
	houseDoorX  = 13 // the one cell at houseTop-1 that is also ghost-house floor
)

// tunnelRow is the row carrying the left/right teleport tunnel.
const tunnelRow = 17

// buildReferenceLayout programmatically constructs the 28x35 reference grid
// rather than hand-typing ASCII art: a walled border (pierced only by the
// tunnel row), a grid of interior pillars for maze structure, dots filling
// the remaining open floor, four power pellets near the corners, and a
// ghost-house block of floor cells at the center. The block has no walls
// around it, so it can be entered from every side.
func buildReferenceLayout() []string {
	grid := make([][]rune, GridHeight)
	for y := range grid {
		grid[y] = make([]rune, GridWidth)
		for x := range grid[y] {
			grid[y][x] = '.'
		}
	}

	for x := 0; x < GridWidth; x++ {
		grid[0][x] = '#'
		grid[GridHeight-1][x] = '#'
	}
	for y := 0; y < GridHeight; y++ {
		if y == tunnelRow {
			continue // leave the tunnel row open at both edges
		}
		grid[y][0] = '#'
		grid[y][GridWidth-1] = '#'
	}

	// Interior pillars: a regular lattice of single-cell walls, the way a
	// classic maze breaks up sightlines without needing hand-authored art.
	for y := 3; y < GridHeight-3; y += 4 {
		for x := 3; x < GridWidth-3; x += 4 {
			if inHouse(x, y) {
				continue
			}
			grid[y][x] = '#'
			// extend each pillar into a short wall segment for texture.
			if x+1 < GridWidth-1 && !inHouse(x+1, y) {
				grid[y][x+1] = '#'
			}
		}
	}

	for y := houseTop; y <= houseBottom; y++ {
		for x := houseLeft; x <= houseRight; x++ {
			grid[y][x] = 'G'
		}
	}
	grid[houseTop-1][houseDoorX] = 'G'

	pellets := [][2]int{
		{2, 2}, {GridWidth - 3, 2},
		{2, GridHeight - 3}, {GridWidth - 3, GridHeight - 3},
	}
	for _, p := range pellets {
		grid[p[1]][p[0]] = 'o'
	}

	rows := make([]string, GridHeight)
	for y := range grid {
		rows[y] = string(grid[y])
	}
	return rows
}

func inHouse(x, y int) bool {
	return x >= houseLeft-1 && x <= houseRight+1 && y >= houseTop-1 && y <= houseBottom
}

func referenceTeleports() []Teleport {
	left := model.Position{X: 0, Y: tunnelRow}
	right := model.Position{X: GridWidth - 1, Y: tunnelRow}
	return []Teleport{
		{Entry: left, Exit: right},
		{Entry: right, Exit: left},
	}
}

func referenceStartingPositions() map[string]model.Position {
	center := model.Position{X: (houseLeft + houseRight) / 2, Y: (houseTop + houseBottom) / 2}
	return map[string]model.Position{
		"pacman":     {X: houseDoorX, Y: GridHeight - 5},
		"ghostHouse": center,
		"blinky":     {X: houseDoorX, Y: houseTop},
		"pinky":      {X: houseLeft + 1, Y: houseTop + 1},
		"inky":       {X: houseRight - 1, Y: houseTop + 1},
		"clyde":      {X: houseDoorX, Y: houseBottom - 1},
	}
}

// Reference builds the canonical 28x35 maze used by production rooms.
func Reference() (*Maze, error) {
	layout := buildReferenceLayout()
	m, err := Build(layout, referenceTeleports(), referenceStartingPositions())
	if err != nil {
		return nil, fmt.Errorf("maze: building reference layout: %w", err)
	}
	return m, nil
}

// MustReference is Reference, panicking on error. Used at process startup
// where a malformed reference layout is a programming error, not a runtime
// condition to recover from.
func MustReference() *Maze {
	m, err := Reference()
	if err != nil {
		panic(err)
	}
	return m
}
