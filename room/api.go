package room

import (
	"fmt"
	"time"

	"ghostnet/model"
)

// AddPlayer seats connectionID as ghost, provided the room hasn't started,
// has a free slot, and that ghost identity isn't already taken.
func (r *GameRoom) AddPlayer(connectionID, name string, ghost model.GhostIdentity) (*model.Player, error) {
	return do2(r, func() (*model.Player, error) {
		if r.started {
			return nil, ErrRoomStarted
		}
		if !validGhost(ghost) {
			return nil, ErrUnknownGhost
		}
		if owner, taken := r.ghostOwner[ghost]; taken && owner != connectionID {
			return nil, ErrGhostTaken
		}
		if _, exists := r.players[connectionID]; !exists && len(r.players) >= len(allGhosts) {
			return nil, ErrRoomFull
		}

		start, _ := r.maze.StartingPosition(string(ghost))
		p := &model.Player{
			ConnectionID: connectionID,
			Name:         name,
			Ghost:        ghost,
			Position:     start,
			Facing:       model.None,
			State:        model.PlayerActive,
		}
		r.players[connectionID] = p
		r.ghostOwner[ghost] = connectionID
		r.broadcaster.Publish(r.currentStateLocked())
		return p, nil
	})
}

func validGhost(g model.GhostIdentity) bool {
	for _, a := range allGhosts {
		if a == g {
			return true
		}
	}
	return false
}

// RemovePlayer drops a connection from the room, freeing its ghost slot.
// Safe to call for an unknown or already-removed connection.
func (r *GameRoom) RemovePlayer(connectionID string) {
	do(r, func() struct{} {
		p, ok := r.players[connectionID]
		if !ok {
			return struct{}{}
		}
		delete(r.players, connectionID)
		delete(r.ghostOwner, p.Ghost)
		r.broadcaster.Unsubscribe(connectionID)
		r.broadcaster.Publish(r.currentStateLocked())
		return struct{}{}
	})
}

// ToggleReady flips a seated player's ready flag.
func (r *GameRoom) ToggleReady(connectionID string) error {
	return do(r, func() error {
		p, ok := r.players[connectionID]
		if !ok {
			return ErrPlayerNotFound
		}
		p.Ready = !p.Ready
		r.broadcaster.Publish(r.currentStateLocked())
		return nil
	})
}

// CanStart reports whether the room has at least one seated player and
// every seated player is ready.
func (r *GameRoom) CanStart() bool {
	return do(r, func() bool {
		if len(r.players) == 0 {
			return false
		}
		for _, p := range r.players {
			if !p.Ready {
				return false
			}
		}
		return true
	})
}

// Start transitions the room from lobby to an active match: arms the tick,
// countdown and match-deadline timers. The aggregate room-created counter is
// recorded by the registry at creation, not here.
func (r *GameRoom) Start() error {
	return do(r, func() error {
		if r.started {
			return ErrRoomStarted
		}
		if len(r.players) == 0 {
			return ErrNotEnoughPlayers
		}
		for _, p := range r.players {
			if !p.Ready {
				return ErrNotEnoughPlayers
			}
		}

		r.started = true
		r.gameStartTime = time.Now()
		r.mode = model.ModeChase
		r.stepCount = 0

		r.tickCh = newTicker(r.tickerDone, r.cfg.TickPeriod())
		r.timerCh = newTicker(r.tickerDone, time.Second)
		r.armMatchDeadline()

		r.broadcaster.Publish(r.currentStateLocked())
		return nil
	})
}

// SubmitInput buffers a direction request for the next tick's movement
// step, per spec.md §4.6. A request for a respawning player is accepted
// but has no effect until it becomes active again.
func (r *GameRoom) SubmitInput(connectionID string, dir model.Direction) error {
	return do(r, func() error {
		p, ok := r.players[connectionID]
		if !ok {
			return ErrPlayerNotFound
		}
		d := dir
		p.BufferedDirection = &d
		return nil
	})
}

// CurrentState returns a full snapshot of the room, suitable for a join or
// requestGameState reply.
func (r *GameRoom) CurrentState() FullState {
	return do(r, r.currentStateLocked)
}

func (r *GameRoom) currentStateLocked() FullState {
	fs := FullState{
		RoomCode:     r.Code,
		Pacman:       PacmanFrame{Position: r.pacPos, Direction: r.pacFacing, Emote: r.pacEmote},
		Score:        r.score,
		CaptureCount: r.captureCount,
		Mode:         r.mode,
		Dots:         positionsOf(r.dots),
		PowerPellets: positionsOf(r.pellets),
	}
	for _, p := range r.players {
		fs.Players = append(fs.Players, PlayerFrame{
			ConnectionID: p.ConnectionID,
			Position:     p.Position,
			Direction:    p.Facing,
			State:        p.State,
		})
	}
	return fs
}

// Subscribe registers connectionID to receive this room's outbound frames.
func (r *GameRoom) Subscribe(connectionID string) <-chan interface{} {
	return r.broadcaster.Subscribe(connectionID)
}

// Publish fans an arbitrary transport-layer frame out to every subscriber,
// for protocol messages (gameStarted, gameRestarted, playerLeft) that
// originate outside the tick loop. Safe to call from any goroutine.
func (r *GameRoom) Publish(msg interface{}) {
	r.broadcaster.Publish(msg)
}

// PublishTo sends a frame to a single subscriber only, for connection-scoped
// protocol errors and requestGameState replies. Safe to call from any
// goroutine.
func (r *GameRoom) PublishTo(connectionID string, msg interface{}) {
	r.broadcaster.PublishTo(connectionID, msg)
}

// RequestGameState replies to connectionID alone with a full snapshot,
// without broadcasting it to the rest of the room.
func (r *GameRoom) RequestGameState(connectionID string) {
	state := r.CurrentState()
	r.broadcaster.PublishTo(connectionID, state)
}

// Restart re-seeds positions, dots, and pellets, resets score and capture
// count, and re-arms every timer, then immediately begins a new match with
// the same room code. Player identities and ready flags are preserved, per
// SPEC_FULL.md's restartGame operation.
func (r *GameRoom) Restart() error {
	return do(r, func() error {
		r.matchGeneration++
		r.stopTicker()
		r.tickerDone = make(chan struct{})
		r.tickerStopped = false

		r.dots = seedFood(r.maze.InitialDots())
		r.pellets = seedFood(r.maze.InitialPellets())
		r.score = 0
		r.captureCount = 0
		r.stepCount = 0
		r.mode = model.ModeChase
		r.broadcastedOnce = false

		if start, ok := r.maze.StartingPosition("pacman"); ok {
			r.pacPos = start
			r.pacPrevPos = start
		}
		r.pacFacing = model.Left
		r.pacEmote = ""

		for _, p := range r.players {
			if start, ok := r.maze.StartingPosition(string(p.Ghost)); ok {
				p.Position = start
			}
			p.Facing = model.None
			p.BufferedDirection = nil
			p.State = model.PlayerActive
			// Ready flags are intentionally preserved.
		}

		r.started = true
		r.gameStartTime = time.Now()
		r.tickCh = newTicker(r.tickerDone, r.cfg.TickPeriod())
		r.timerCh = newTicker(r.tickerDone, time.Second)
		r.armMatchDeadline()

		r.broadcaster.Publish(r.currentStateLocked())
		return nil
	})
}

// Stop forces an immediate, idempotent teardown, used by the registry's
// room-TTL sweep or an operator-triggered shutdown.
func (r *GameRoom) Stop() {
	select {
	case r.stopCh <- struct{}{}:
	case <-r.runDone:
	}
}

// String implements fmt.Stringer for log lines.
func (r *GameRoom) String() string {
	return fmt.Sprintf("room[%s]", r.Code)
}
