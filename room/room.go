// Package room implements GameRoom: the owner of a single match's state,
// tick loop, movement, collisions, timers, and mode machine. Every mutation
// happens on one goroutine reached through a command channel, the same
// "share memory by communicating" discipline the teacher uses for its
// websocket clients and training workers (fastview.client[T], the MC
// training loop's worker/processor split) — here generalized so the single
// owner also serializes buffered-input writes and timer-driven transitions,
// per spec.md §5's single-owner-per-room contract.
package room

import (
	"math"
	"time"

	channerics "github.com/niceyeti/channerics/channels"

	"ghostnet/config"
	"ghostnet/maze"
	"ghostnet/model"
	"ghostnet/pacman"
	"ghostnet/stats"

	"ghostnet/brains/defensive"
	"ghostnet/brains/hunter"
	"ghostnet/brains/tabular"
)

// Error values returned by the public API, surfaced to clients as
// structured payloads per spec.md §7.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrRoomStarted  Error = "room_started"
	ErrRoomFull     Error = "room_full"
	ErrGhostTaken   Error = "ghost_taken"
	ErrNotEnoughPlayers Error = "not_enough_players"
	ErrUnknownGhost Error = "unknown_ghost_identity"
	ErrPlayerNotFound Error = "player_not_found"
)

var allGhosts = [4]model.GhostIdentity{model.Blinky, model.Pinky, model.Inky, model.Clyde}

const emoteRefreshTicks = 3

// GameRoom owns one match end to end.
type GameRoom struct {
	Code string

	maze       *maze.Maze
	cfg        *config.Config
	controller *pacman.Controller
	statsAgg   *stats.Aggregate
	broadcaster *Broadcaster
	onTeardown func(code string)

	commands chan func()

	players    map[string]*model.Player // by connectionID
	ghostOwner map[model.GhostIdentity]string

	pacPos, pacPrevPos model.Position
	pacFacing          model.Direction
	pacEmote           string

	mode                 model.Mode
	score                float64
	captureCount         int
	gameStartTime        time.Time
	frightenedStartTime  time.Time
	stepCount            int

	prevPositions map[string]model.Position

	// dots/pellets are this room's own consumption state, seeded from the
	// shared Maze's immutable InitialDots/InitialPellets snapshot. The Maze
	// itself is never mutated: two rooms built on the same Maze singleton
	// must not see or affect each other's board.
	dots    map[model.Position]struct{}
	pellets map[model.Position]struct{}

	dotsEatenThisTick    []model.Position
	pelletsEatenThisTick []model.Position

	lastBroadcastScore        float64
	lastBroadcastCaptureCount int
	lastBroadcastMode         model.Mode
	broadcastedOnce           bool

	started       bool
	stopped       bool
	tickerStopped bool

	matchGeneration      int
	frightenedGeneration int

	tickerDone chan struct{}
	tickCh     <-chan time.Time
	timerCh    <-chan time.Time

	respawnFireCh       chan respawnFire
	frightenedExpiredCh chan int
	matchDeadlineCh     chan int

	stopCh  chan struct{}
	runDone chan struct{}
}

type respawnFire struct {
	connectionID string
	generation   int
}

// seedFood builds a per-room consumption set from a Maze's immutable
// initial-food snapshot.
func seedFood(positions []model.Position) map[model.Position]struct{} {
	set := make(map[model.Position]struct{}, len(positions))
	for _, p := range positions {
		set[p] = struct{}{}
	}
	return set
}

func positionsOf(set map[model.Position]struct{}) []model.Position {
	out := make([]model.Position, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}

// New constructs a room bound to a shared, read-only maze singleton and
// configuration, and starts its owning goroutine. onTeardown is invoked
// (from a fresh goroutine, fire-and-forget) once the room's match ends or
// Stop is called.
func New(code string, m *maze.Maze, cfg *config.Config, controller *pacman.Controller, statsAgg *stats.Aggregate, onTeardown func(code string)) *GameRoom {
	r := &GameRoom{
		Code:        code,
		maze:        m,
		cfg:         cfg,
		controller:  controller,
		statsAgg:    statsAgg,
		broadcaster: NewBroadcaster(),
		onTeardown:  onTeardown,

		commands: make(chan func(), 32),

		players:    make(map[string]*model.Player),
		ghostOwner: make(map[model.GhostIdentity]string),

		mode: model.ModeChase,

		prevPositions: make(map[string]model.Position),

		dots:    seedFood(m.InitialDots()),
		pellets: seedFood(m.InitialPellets()),

		tickerDone: make(chan struct{}),

		respawnFireCh:       make(chan respawnFire, 8),
		frightenedExpiredCh: make(chan int, 1),
		matchDeadlineCh:     make(chan int, 1),

		stopCh:  make(chan struct{}),
		runDone: make(chan struct{}),
	}

	if p, ok := m.StartingPosition("pacman"); ok {
		r.pacPos = p
		r.pacPrevPos = p
	}
	r.pacFacing = model.Left

	go r.run()
	return r
}

// Done returns a channel closed once the room's owning goroutine has
// exited, i.e. teardown is complete.
func (r *GameRoom) Done() <-chan struct{} { return r.runDone }

func (r *GameRoom) run() {
	defer close(r.runDone)
	for {
		select {
		case cmd, ok := <-r.commands:
			if !ok {
				return
			}
			cmd()
		case <-r.tickCh:
			r.tick()
		case <-r.timerCh:
			r.broadcastTimer()
		case rf := <-r.respawnFireCh:
			if rf.generation == r.matchGeneration {
				r.handleRespawnFire(rf.connectionID)
			}
		case gen := <-r.frightenedExpiredCh:
			if gen == r.frightenedGeneration {
				r.handleFrightenedExpired()
			}
		case gen := <-r.matchDeadlineCh:
			if gen == r.matchGeneration {
				r.handleMatchDeadline()
			}
		case <-r.stopCh:
			r.teardownLocked("stopped")
			return
		}
	}
}

// do synchronously runs fn on the owning goroutine and returns its result.
func do[T any](r *GameRoom, fn func() T) T {
	resultCh := make(chan T, 1)
	select {
	case r.commands <- func() { resultCh <- fn() }:
	case <-r.runDone:
		var zero T
		return zero
	}
	select {
	case v := <-resultCh:
		return v
	case <-r.runDone:
		var zero T
		return zero
	}
}

// do2 is do's two-return-value counterpart, used where the owning
// goroutine's closure needs to report both a value and an error.
func do2[T, U any](r *GameRoom, fn func() (T, U)) (T, U) {
	type pair struct {
		a T
		b U
	}
	resultCh := make(chan pair, 1)
	select {
	case r.commands <- func() { a, b := fn(); resultCh <- pair{a, b} }:
	case <-r.runDone:
		var zt T
		var zu U
		return zt, zu
	}
	select {
	case p := <-resultCh:
		return p.a, p.b
	case <-r.runDone:
		var zt T
		var zu U
		return zt, zu
	}
}

func (r *GameRoom) armMatchDeadline() {
	gen := r.matchGeneration
	time.AfterFunc(r.cfg.MatchDuration(), func() {
		select {
		case r.matchDeadlineCh <- gen:
		case <-r.runDone:
		}
	})
}

func (r *GameRoom) armFrightenedTimer() {
	r.frightenedGeneration++ // invalidate any previously armed frightened timer
	gen := r.frightenedGeneration
	time.AfterFunc(r.cfg.FrightenedDuration(), func() {
		select {
		case r.frightenedExpiredCh <- gen:
		case <-r.runDone:
		}
	})
}

func (r *GameRoom) armRespawnTimer(connectionID string) {
	gen := r.matchGeneration
	time.AfterFunc(r.cfg.RespawnDelay(), func() {
		select {
		case r.respawnFireCh <- respawnFire{connectionID: connectionID, generation: gen}:
		case <-r.runDone:
		}
	})
}

func (r *GameRoom) handleRespawnFire(connectionID string) {
	p, ok := r.players[connectionID]
	if !ok || p.State != model.PlayerRespawning {
		return
	}
	if start, ok := r.maze.StartingPosition(string(p.Ghost)); ok {
		p.Position = start
	}
	if r.mode == model.ModeFrightened {
		p.State = model.PlayerFrightened
	} else {
		p.State = model.PlayerActive
	}
}

func (r *GameRoom) handleFrightenedExpired() {
	if r.mode != model.ModeFrightened {
		return
	}
	r.mode = model.ModeChase
	for _, p := range r.players {
		if p.State == model.PlayerFrightened {
			p.State = model.PlayerActive
		}
	}
}

func (r *GameRoom) handleMatchDeadline() {
	if r.mode == model.ModeGameOver {
		return
	}
	r.endMatch(model.WinnerPacman, "timeout")
}

// broadcastTimer emits the once-per-second countdown frame (spec.md §6).
func (r *GameRoom) broadcastTimer() {
	if r.mode == model.ModeGameOver {
		return
	}
	elapsed := time.Since(r.gameStartTime)
	remaining := r.cfg.MatchDuration() - elapsed
	if remaining < 0 {
		remaining = 0
	}
	r.broadcaster.Publish(TimerFrame{TimeRemainingMs: remaining.Milliseconds()})
}

// tick runs one full simulation step per spec.md §4.6.
func (r *GameRoom) tick() {
	if r.mode == model.ModeGameOver {
		return
	}
	r.stepCount++
	r.dotsEatenThisTick = nil
	r.pelletsEatenThisTick = nil

	// 1. Snapshot previous positions.
	r.pacPrevPos = r.pacPos
	for id, p := range r.players {
		r.prevPositions[id] = p.Position
	}

	// 2. Early collision check.
	r.runCollisions(true)
	if r.mode == model.ModeGameOver {
		return
	}

	// 3. Move Pac-Man.
	r.movePacman()

	// 4. Move every active/frightened player.
	for _, p := range r.players {
		if p.State == model.PlayerRespawning {
			continue
		}
		r.moveGhostPlayer(p)
	}

	// 5. Late collision check.
	r.runCollisions(false)
	if r.mode == model.ModeGameOver {
		return
	}

	// 6. Terminal condition checks.
	r.checkTerminal()
	if r.mode == model.ModeGameOver {
		return
	}

	// 7. Refresh Pac-Man's emote band every N ticks.
	if r.stepCount%emoteRefreshTicks == 0 {
		r.refreshEmote()
	}

	// 8. Emit a delta frame.
	r.broadcastDelta()
}

func (r *GameRoom) movePacman() {
	t := pacman.Tick{
		Mode:                  r.mode,
		FrightenedRemainingMs: r.frightenedRemainingMs(),
		Defensive:             r.defensiveObservation(),
		HunterGhosts:          r.hunterGhosts(),
		Tabular:               r.tabularObservation(),
		StepCount:             r.stepCount,
		IsWalkable:            r.maze.IsWalkable,
	}
	dir := r.controller.Decide(t)
	if dir == model.None {
		return
	}
	next := r.pacPos.Add(dir)
	if !r.maze.IsWalkable(next) {
		return
	}
	next = r.maze.ApplyTeleport(next)
	r.pacPos = next
	r.pacFacing = dir
	r.consumeAt(next)
}

// consumeAt removes any dot/pellet this room has remaining at p. Idempotent:
// a position with nothing left at it is a no-op, matching spec.md's
// "removing a dot is idempotent" property and the §8 invariant that a
// consumed dot/pellet never reappears within a match.
func (r *GameRoom) consumeAt(p model.Position) {
	if _, ok := r.dots[p]; ok {
		delete(r.dots, p)
		r.score += float64(r.cfg.DotValue)
		r.dotsEatenThisTick = append(r.dotsEatenThisTick, p)
	}
	if _, ok := r.pellets[p]; ok {
		delete(r.pellets, p)
		r.score += float64(r.cfg.PowerPelletValue)
		r.pelletsEatenThisTick = append(r.pelletsEatenThisTick, p)
		r.armFrightenedMode()
	}
}

// armFrightenedMode implements the CHASE->FRIGHTENED transition: all active
// players become frightened, and the timer is cancelled-and-rearmed rather
// than stacked.
func (r *GameRoom) armFrightenedMode() {
	r.mode = model.ModeFrightened
	r.frightenedStartTime = time.Now()
	for _, p := range r.players {
		if p.State == model.PlayerActive {
			p.State = model.PlayerFrightened
		}
	}
	r.armFrightenedTimer()
}

func (r *GameRoom) moveGhostPlayer(p *model.Player) {
	if p.BufferedDirection != nil {
		next := p.Position.Add(*p.BufferedDirection)
		if r.maze.IsWalkable(next) {
			p.Facing = *p.BufferedDirection
			p.BufferedDirection = nil
		}
	}
	next := p.Position.Add(p.Facing)
	if r.maze.IsWalkable(next) {
		p.Position = r.maze.ApplyTeleport(next)
	}
	// else: retain facing, do not move.
}

// runCollisions checks every non-respawning player for a same-cell or swap
// collision with Pac-Man. early suppresses the swap test, since no movement
// has happened yet this tick when called pre-move.
func (r *GameRoom) runCollisions(early bool) {
	for id, p := range r.players {
		if p.State == model.PlayerRespawning {
			continue
		}
		prevPos, hadPrev := r.prevPositions[id]

		sameCell := p.Position == r.pacPos
		swap := false
		if !early && hadPrev {
			swap = prevPos == r.pacPos && p.Position == r.pacPrevPos
		}
		if !sameCell && !swap {
			continue
		}

		r.resolveCollision(p)
		if r.mode == model.ModeGameOver {
			return
		}
	}
}

func (r *GameRoom) resolveCollision(p *model.Player) {
	if p.State == model.PlayerFrightened {
		nearby := r.countNearby(p.Position, 3)
		r.score += r.cfg.BaseCaptureScore * math.Pow(r.cfg.CaptureMultiplier, float64(nearby-1))

		p.State = model.PlayerRespawning
		if house, ok := r.maze.StartingPosition("ghostHouse"); ok {
			p.Position = house
		}
		r.armRespawnTimer(p.ConnectionID)
		return
	}

	// p is active: Pac-Man is captured.
	nearby := r.countNearby(p.Position, 3)
	r.captureCount++
	r.score += r.cfg.BaseCaptureScore * math.Pow(r.cfg.CaptureMultiplier, float64(nearby-1))
	if start, ok := r.maze.StartingPosition("pacman"); ok {
		r.pacPos = start
		r.pacPrevPos = start
	}

	if r.captureCount >= r.cfg.CapturesToWin {
		r.endMatch(model.WinnerGhosts, "")
	}
}

// countNearby counts players within Manhattan distance < radius of site,
// per spec.md §4.6's capture scoring multiplier.
func (r *GameRoom) countNearby(site model.Position, radius int) int {
	n := 0
	for _, p := range r.players {
		if p.Position.ManhattanTo(site) < radius {
			n++
		}
	}
	if n == 0 {
		n = 1
	}
	return n
}

// checkTerminal ends the match once every dot is eaten. Power pellets are
// deliberately excluded: spec.md §4.6/§8 define the food-exhaustion win
// condition in terms of dots alone, so a room can legitimately end with an
// uneaten power pellet still on the board.
func (r *GameRoom) checkTerminal() {
	if r.mode == model.ModeGameOver {
		return
	}
	if len(r.dots) == 0 {
		r.endMatch(model.WinnerPacman, "")
	}
}

// refreshEmote assigns Pac-Man a simple mood band based on the nearest
// active (neither frightened nor respawning) ghost's distance, the one
// cosmetic field the tick loop
// maintains alongside the authoritative state.
func (r *GameRoom) refreshEmote() {
	dMin := math.MaxInt32
	for _, p := range r.players {
		if p.State != model.PlayerActive {
			continue
		}
		d := p.Position.ManhattanTo(r.pacPos)
		if d < dMin {
			dMin = d
		}
	}
	switch {
	case dMin <= 3:
		r.pacEmote = "scared"
	case dMin <= 8:
		r.pacEmote = "nervous"
	default:
		r.pacEmote = "happy"
	}
}

// endMatch transitions to GAME_OVER, stops the tick loop, publishes the
// single terminal frame, records aggregate stats, and schedules teardown.
func (r *GameRoom) endMatch(winner model.Winner, reason string) {
	r.mode = model.ModeGameOver
	r.matchGeneration++
	r.stopTicker()

	r.broadcaster.Publish(GameOverFrame{Winner: winner, Reason: reason, Score: r.score})

	if r.statsAgg != nil {
		r.statsAgg.RecordMatchEnd(winner, float64(time.Since(r.gameStartTime).Milliseconds()))
	}

	if r.onTeardown != nil {
		go r.onTeardown(r.Code)
	}
}

// teardownLocked is the internal teardown path reached when Stop() is
// called externally (registry TTL, forced shutdown) rather than via a
// natural match end. Idempotent.
func (r *GameRoom) teardownLocked(reason string) {
	if r.stopped {
		return
	}
	r.stopped = true
	if r.mode != model.ModeGameOver {
		r.mode = model.ModeGameOver
		r.stopTicker()
		r.broadcaster.Publish(GameOverFrame{Winner: model.WinnerNone, Reason: reason, Score: r.score})
	}
	r.broadcaster.Close()
	if r.onTeardown != nil {
		go r.onTeardown(r.Code)
	}
}

// stopTicker closes tickerDone at most once, guarding against the double
// close that would otherwise occur when a match ends naturally and is then
// also torn down or restarted.
func (r *GameRoom) stopTicker() {
	if r.tickerStopped {
		return
	}
	close(r.tickerDone)
	r.tickerStopped = true
	r.tickCh = nil
	r.timerCh = nil
}

func (r *GameRoom) frightenedRemainingMs() int {
	if r.mode != model.ModeFrightened {
		return 0
	}
	remaining := r.cfg.FrightenedDuration() - time.Since(r.frightenedStartTime)
	if remaining < 0 {
		return 0
	}
	return int(remaining.Milliseconds())
}

func (r *GameRoom) defensiveObservation() defensive.Observation {
	ghosts := make([]defensive.GhostState, 0, len(r.players))
	for _, p := range r.players {
		if p.State == model.PlayerRespawning {
			continue
		}
		ghosts = append(ghosts, defensive.GhostState{
			Position:   p.Position,
			Facing:     p.Facing,
			Frightened: p.State == model.PlayerFrightened,
		})
	}
	return defensive.Observation{
		PacmanPosition: r.pacPos,
		PacmanFacing:   r.pacFacing,
		Ghosts:         ghosts,
		Dots:           positionsOf(r.dots),
		Pellets:        positionsOf(r.pellets),
	}
}

func (r *GameRoom) hunterGhosts() []hunter.Ghost {
	ghosts := make([]hunter.Ghost, 0, len(r.players))
	for _, p := range r.players {
		ghosts = append(ghosts, hunter.Ghost{
			Position:   p.Position,
			Frightened: p.State == model.PlayerFrightened,
			Respawning: p.State == model.PlayerRespawning,
		})
	}
	return ghosts
}

func (r *GameRoom) tabularObservation() tabular.Observation {
	ghosts := make([]tabular.GhostObservation, 0, len(r.players))
	for _, p := range r.players {
		if p.State == model.PlayerRespawning {
			continue
		}
		ghosts = append(ghosts, tabular.GhostObservation{
			Position:   p.Position,
			Frightened: p.State == model.PlayerFrightened,
		})
	}
	return tabular.Observation{
		PacmanPosition: r.pacPos,
		PacmanFacing:   r.pacFacing,
		Dots:           positionsOf(r.dots),
		Pellets:        positionsOf(r.pellets),
		Ghosts:         ghosts,
	}
}

func (r *GameRoom) broadcastDelta() {
	frame := DeltaFrame{
		Pacman: PacmanFrame{Position: r.pacPos, Direction: r.pacFacing, Emote: r.pacEmote},
	}
	for _, p := range r.players {
		frame.Players = append(frame.Players, PlayerFrame{
			ConnectionID: p.ConnectionID,
			Position:     p.Position,
			Direction:    p.Facing,
			State:        p.State,
		})
	}

	if !r.broadcastedOnce || r.score != r.lastBroadcastScore {
		s := r.score
		frame.Score = &s
	}
	if !r.broadcastedOnce || r.captureCount != r.lastBroadcastCaptureCount {
		c := r.captureCount
		frame.CaptureCount = &c
	}
	if !r.broadcastedOnce || r.mode != r.lastBroadcastMode {
		m := r.mode
		frame.Mode = &m
	}
	if len(r.dotsEatenThisTick) > 0 {
		frame.DotsEaten = r.dotsEatenThisTick
	}
	if len(r.pelletsEatenThisTick) > 0 {
		frame.PelletsEaten = r.pelletsEatenThisTick
	}

	r.lastBroadcastScore = r.score
	r.lastBroadcastCaptureCount = r.captureCount
	r.lastBroadcastMode = r.mode
	r.broadcastedOnce = true

	r.broadcaster.Publish(frame)
}

// newTicker wraps channerics.NewTicker, the same ticking primitive the
// teacher uses for websocket ping-pong and training-loop pacing.
func newTicker(done <-chan struct{}, period time.Duration) <-chan time.Time {
	return channerics.NewTicker(done, period)
}
