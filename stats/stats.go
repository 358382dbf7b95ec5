// Package stats holds cross-room aggregate telemetry updated off the tick
// path: rooms created, matches played, win counts by side, and average
// match duration. Per spec.md §5 ("aggregate statistics ... updated per
// room and aggregated off the tick path"), this is the one piece of mutable
// state shared across rooms besides the maze and policy singletons, so it
// is built on atomicfloat.Float64 rather than a mutex the way the teacher
// guarded its own cross-goroutine shared value matrix.
package stats

import (
	"ghostnet/atomicfloat"
	"ghostnet/model"
)

// Aggregate is a process-wide, lock-free counter set. The zero value is not
// usable; construct with New.
type Aggregate struct {
	roomsCreated    *atomicfloat.Float64
	matchesPlayed   *atomicfloat.Float64
	ghostsWins      *atomicfloat.Float64
	pacmanWins      *atomicfloat.Float64
	totalDurationMs *atomicfloat.Float64
}

// New returns a fresh, zeroed Aggregate.
func New() *Aggregate {
	return &Aggregate{
		roomsCreated:    atomicfloat.New(0),
		matchesPlayed:   atomicfloat.New(0),
		ghostsWins:      atomicfloat.New(0),
		pacmanWins:      atomicfloat.New(0),
		totalDurationMs: atomicfloat.New(0),
	}
}

// RecordRoomCreated increments the rooms-created counter. Called by the
// registry, not the tick loop.
func (a *Aggregate) RecordRoomCreated() {
	a.roomsCreated.Add(1)
}

// RecordMatchEnd records one finished match's outcome and duration. Called
// by a room each time a match ends (capture limit, dots cleared or timeout);
// a room stopped before its match ends records nothing.
func (a *Aggregate) RecordMatchEnd(winner model.Winner, durationMs float64) {
	a.matchesPlayed.Add(1)
	a.totalDurationMs.Add(durationMs)
	switch winner {
	case model.WinnerGhosts:
		a.ghostsWins.Add(1)
	case model.WinnerPacman:
		a.pacmanWins.Add(1)
	}
}

// Snapshot is a point-in-time read of the aggregate counters, suitable for
// serving from a read-only /stats endpoint.
type Snapshot struct {
	RoomsCreated       int     `json:"roomsCreated"`
	MatchesPlayed      int     `json:"matchesPlayed"`
	GhostsWins         int     `json:"ghostsWins"`
	PacmanWins         int     `json:"pacmanWins"`
	AverageDurationMs  float64 `json:"averageDurationMs"`
}

// Snapshot reads every counter. Reads never block writers and vice versa.
func (a *Aggregate) Snapshot() Snapshot {
	played := a.matchesPlayed.Read()
	avg := 0.0
	if played > 0 {
		avg = a.totalDurationMs.Read() / played
	}
	return Snapshot{
		RoomsCreated:      int(a.roomsCreated.Read()),
		MatchesPlayed:     int(played),
		GhostsWins:        int(a.ghostsWins.Read()),
		PacmanWins:        int(a.pacmanWins.Read()),
		AverageDurationMs: avg,
	}
}
