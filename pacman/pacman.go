// Package pacman implements PacmanController: the per-tick dispatcher that
// picks whichever of the three brains governs Pac-Man's next move, per
// spec.md §4.5's fixed precedence (tabular, if loaded and selected; hunter,
// while deep in frightened mode; defensive, otherwise).
package pacman

import (
	"ghostnet/brains/defensive"
	"ghostnet/brains/hunter"
	"ghostnet/brains/tabular"
	"ghostnet/model"
)

// DefensiveBrain is the subset of defensive.Brain the controller depends on.
type DefensiveBrain interface {
	FindBestDirection(obs defensive.Observation) model.Direction
}

// HunterBrain is the subset of hunter.Brain the controller depends on.
type HunterBrain interface {
	Decide(pacPos model.Position, currentFacing model.Direction, ghosts []hunter.Ghost) model.Direction
}

// TabularPolicy is the subset of tabular.Policy the controller depends on.
type TabularPolicy interface {
	SelectAction(obs tabular.Observation, stepCount int, isWalkable func(model.Position) bool) model.Direction
}

// Controller wraps the three brains and selects among them per tick.
type Controller struct {
	defensive DefensiveBrain
	hunter    HunterBrain
	tabular   TabularPolicy
	// useTabular is true whenever a policy has been installed (by New or
	// SetTabularPolicy) and false after DisableTabular; with no policy the
	// controller runs on the heuristic brains.
	useTabular bool
}

// New builds a Controller. tabular may be nil if no model file is
// configured.
func New(def DefensiveBrain, hnt HunterBrain, tab TabularPolicy) *Controller {
	return &Controller{defensive: def, hunter: hnt, tabular: tab, useTabular: tab != nil}
}

// SetTabularPolicy installs a policy loaded after startup and enables it.
func (c *Controller) SetTabularPolicy(tab TabularPolicy) {
	c.tabular = tab
	c.useTabular = tab != nil
}

// DisableTabular reverts to the heuristic brains without discarding a
// loaded policy, useful for A/B comparisons.
func (c *Controller) DisableTabular() { c.useTabular = false }

// Tick is everything the controller needs to decide one move.
type Tick struct {
	Mode                     model.Mode
	FrightenedRemainingMs    int
	Defensive                defensive.Observation
	HunterGhosts             []hunter.Ghost
	Tabular                  tabular.Observation
	StepCount                int
	IsWalkable               func(model.Position) bool
}

// Decide returns the chosen direction for the current tick per the fixed
// precedence: tabular (if loaded and enabled) > hunter (if frightened with
// enough time remaining) > defensive.
func (c *Controller) Decide(t Tick) model.Direction {
	if c.useTabular && c.tabular != nil {
		return c.tabular.SelectAction(t.Tabular, t.StepCount, t.IsWalkable)
	}
	if t.Mode == model.ModeFrightened && t.FrightenedRemainingMs > hunter.FrightenedActivationThresholdMs {
		return c.hunter.Decide(t.Defensive.PacmanPosition, t.Defensive.PacmanFacing, t.HunterGhosts)
	}
	return c.defensive.FindBestDirection(t.Defensive)
}
