// Package registry implements RoomRegistry (spec.md §4.7): room lifecycle,
// code allocation, the player→room index, an optional shared directory
// publish, and absolute per-room TTL teardown. It is the seam between the
// stateless transport layer and the many independently-ticking GameRooms.
package registry

import (
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"ghostnet/brains/defensive"
	"ghostnet/brains/hunter"
	"ghostnet/config"
	"ghostnet/maze"
	"ghostnet/model"
	"ghostnet/pacman"
	"ghostnet/room"
	"ghostnet/stats"
)

var (
	ErrRoomNotFound = errors.New("registry: room not found")
)

const roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const roomCodeLength = 4
const maxCodeAttempts = 64

// DirectoryEntry is the metadata optionally published for a newly created
// room, per spec.md §4.7.
type DirectoryEntry struct {
	RoomCode    string
	InstanceID  string
	CreatedAt   time.Time
	PlayerCount int
}

// Directory is the shared-directory collaborator. Publish/Unpublish
// failures are logged and swallowed by the registry; they never affect
// room correctness (spec.md §7).
type Directory interface {
	Publish(entry DirectoryEntry) error
	Unpublish(roomCode string) error
}

// NopDirectory is the default Directory: no shared directory configured.
type NopDirectory struct{}

func (NopDirectory) Publish(DirectoryEntry) error  { return nil }
func (NopDirectory) Unpublish(string) error        { return nil }

// Registry owns every active GameRoom, keyed by its 4-character code.
type Registry struct {
	mu         sync.Mutex
	rooms      map[string]*room.GameRoom
	playerRoom map[string]string // connectionID -> roomCode

	m          *maze.Maze
	cfg        *config.Config
	stats      *stats.Aggregate
	tabular    pacman.TabularPolicy // shared, read-only once loaded; may be nil
	directory  Directory
	instanceID string

	rand *rand.Rand
}

// New builds an empty Registry bound to a shared maze and config. tabular
// may be nil if no policy file is configured at startup; SetTabularPolicy
// installs one loaded after startup.
func New(m *maze.Maze, cfg *config.Config, statsAgg *stats.Aggregate, directory Directory, instanceID string) *Registry {
	if directory == nil {
		directory = NopDirectory{}
	}
	return &Registry{
		rooms:      make(map[string]*room.GameRoom),
		playerRoom: make(map[string]string),
		m:          m,
		cfg:        cfg,
		stats:      statsAgg,
		directory:  directory,
		instanceID: instanceID,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetTabularPolicy installs a policy loaded after startup; rooms created
// from this point on get it wired into their controller. Rooms already
// running keep their original controller (spec.md §5: "rooms run on
// heuristic brains while loading").
func (g *Registry) SetTabularPolicy(tab pacman.TabularPolicy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tabular = tab
}

// CreateRoom allocates a fresh room code and GameRoom.
func (g *Registry) CreateRoom() (string, error) {
	g.mu.Lock()
	code, err := g.allocateCodeLocked()
	if err != nil {
		g.mu.Unlock()
		return "", err
	}

	houseCenter, _ := g.m.StartingPosition("ghostHouse")
	weights := defensive.WeightsFromConfig(g.cfg)
	defBrain := defensive.New(g.m, weights, g.cfg.DefaultSearchDepth)
	huntBrain := hunter.New(g.m, houseCenter)
	controller := pacman.New(defBrain, huntBrain, g.tabular)

	gr := room.New(code, g.m, g.cfg, controller, g.stats, g.onRoomTeardown)
	g.rooms[code] = gr
	g.mu.Unlock()

	if g.stats != nil {
		g.stats.RecordRoomCreated()
	}

	g.armRoomTTL(code, gr)
	go g.publishDirectory(code)

	return code, nil
}

func (g *Registry) allocateCodeLocked() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := g.randomCode()
		if _, taken := g.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", errors.New("registry: exhausted room code attempts")
}

func (g *Registry) randomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[g.rand.Intn(len(roomCodeAlphabet))]
	}
	return string(b)
}

func (g *Registry) publishDirectory(code string) {
	g.mu.Lock()
	gr, ok := g.rooms[code]
	g.mu.Unlock()
	if !ok {
		return
	}
	entry := DirectoryEntry{
		RoomCode:    code,
		InstanceID:  g.instanceID,
		CreatedAt:   time.Now(),
		PlayerCount: len(gr.CurrentState().Players),
	}
	if err := g.directory.Publish(entry); err != nil {
		log.Println("registry: directory publish failed:", err)
	}
}

// armRoomTTL schedules the absolute force teardown after cfg.RoomTTL() (one
// hour in the default config).
func (g *Registry) armRoomTTL(code string, gr *room.GameRoom) {
	time.AfterFunc(g.cfg.RoomTTL(), func() {
		g.mu.Lock()
		_, stillActive := g.rooms[code]
		g.mu.Unlock()
		if stillActive {
			gr.Stop()
		}
	})
}

// onRoomTeardown is the GameRoom-supplied teardown callback: it removes the
// room and its players from the index and unpublishes directory metadata.
func (g *Registry) onRoomTeardown(code string) {
	g.mu.Lock()
	delete(g.rooms, code)
	for connID, rc := range g.playerRoom {
		if rc == code {
			delete(g.playerRoom, connID)
		}
	}
	g.mu.Unlock()

	if err := g.directory.Unpublish(code); err != nil {
		log.Println("registry: directory unpublish failed:", err)
	}
}

// Lookup returns the room bound to code, if any.
func (g *Registry) Lookup(code string) (*room.GameRoom, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gr, ok := g.rooms[code]
	return gr, ok
}

// JoinRoom seats connectionID into code's room under the given ghost
// identity, recording the player→room index entry on success. Errors are
// RoomNotFound or whatever AddPlayer reports (RoomStarted, RoomFull,
// GhostTaken, UnknownGhost), per spec.md §4.7.
func (g *Registry) JoinRoom(code, connectionID, name string, ghost model.GhostIdentity) (*model.Player, error) {
	gr, ok := g.Lookup(code)
	if !ok {
		return nil, ErrRoomNotFound
	}
	p, err := gr.AddPlayer(connectionID, name, ghost)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.playerRoom[connectionID] = code
	g.mu.Unlock()
	return p, nil
}

// RoomForConnection returns the room a connection last joined, if any.
func (g *Registry) RoomForConnection(connectionID string) (*room.GameRoom, bool) {
	g.mu.Lock()
	code, ok := g.playerRoom[connectionID]
	g.mu.Unlock()
	if !ok {
		return nil, false
	}
	return g.Lookup(code)
}

// HandleDisconnect removes connectionID from whichever room it occupied.
func (g *Registry) HandleDisconnect(connectionID string) {
	g.mu.Lock()
	code, ok := g.playerRoom[connectionID]
	delete(g.playerRoom, connectionID)
	g.mu.Unlock()
	if !ok {
		return
	}
	if gr, found := g.Lookup(code); found {
		gr.RemovePlayer(connectionID)
	}
}

// RoomCount reports the number of currently active rooms, for a health or
// stats endpoint.
func (g *Registry) RoomCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}
