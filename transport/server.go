package transport

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"ghostnet/registry"
	"ghostnet/room"
)

// Server serves the room-creation endpoint and the per-room websocket
// protocol, routed with gorilla/mux the way the teacher's go.mod already
// required but never exercised.
type Server struct {
	addr     string
	registry *registry.Registry
	router   *mux.Router
}

// NewServer builds the route table. Call Serve to block and listen.
func NewServer(addr string, reg *registry.Registry) *Server {
	s := &Server{addr: addr, registry: reg, router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/rooms", s.handleCreateRoom).Methods(http.MethodPost)
	s.router.HandleFunc("/ws/{roomCode}", s.handleWebsocket).Methods(http.MethodGet)
	return s
}

func (s *Server) Serve() error {
	return http.ListenAndServe(s.addr, s.router)
}

// Handler exposes the route table directly, for tests that drive the server
// through httptest.Server instead of a real listener.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type createRoomResponse struct {
	RoomCode string `json:"roomCode"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	code, err := s.registry.CreateRoom()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(createRoomResponse{RoomCode: code}); err != nil {
		log.Println("transport: encode createRoom response:", err)
	}
}

// handleWebsocket upgrades the connection, subscribes it to the room's
// broadcaster immediately (so frames published by a later join are not
// missed), and dispatches every inbound message to the room/registry API.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	roomCode := mux.Vars(r)["roomCode"]
	gr, ok := s.registry.Lookup(roomCode)
	if !ok {
		http.Error(w, registry.ErrRoomNotFound.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("transport: upgrade failed:", err)
		return
	}

	connectionID := uuid.NewString()
	updates := gr.Subscribe(connectionID)

	h := &connHandler{registry: s.registry, room: gr, roomCode: roomCode, connectionID: connectionID}
	client := NewClientFromConn(connectionID, conn, updates, h.handle)
	defer client.Close()
	defer s.registry.HandleDisconnect(connectionID)
	defer gr.Publish(OutboundMessage{Type: OutboundPlayerLeft, Data: map[string]string{"connectionId": connectionID}})

	if err := client.Sync(r.Context()); err != nil {
		log.Println("transport: client sync ended:", err)
	}
}

// connHandler dispatches one connection's inbound messages to room/registry
// operations, translating results into outbound protocol errors rather than
// ever tearing the room down (spec.md §7).
type connHandler struct {
	registry     *registry.Registry
	room         *room.GameRoom
	roomCode     string
	connectionID string
	joined       bool
}

func (h *connHandler) handle(msg InboundMessage) {
	if msg.Type != InboundJoinRoom && !h.joined {
		h.sendError("not_joined")
		return
	}

	switch msg.Type {
	case InboundJoinRoom:
		h.handleJoin(msg)
	case InboundToggleReady:
		if err := h.room.ToggleReady(h.connectionID); err != nil {
			h.sendError(err.Error())
		}
	case InboundStartGame:
		if err := h.room.Start(); err != nil {
			h.sendError(err.Error())
			return
		}
		h.room.Publish(OutboundMessage{Type: OutboundGameStarted})
	case InboundRestartGame:
		if err := h.room.Restart(); err != nil {
			h.sendError(err.Error())
			return
		}
		h.room.Publish(OutboundMessage{Type: OutboundGameRestarted})
	case InboundPlayerInput:
		dir, ok := ParseDirection(msg.Direction)
		if !ok {
			h.sendError("invalid_direction")
			return
		}
		if err := h.room.SubmitInput(h.connectionID, dir); err != nil {
			h.sendError(err.Error())
		}
	case InboundRequestGameState:
		h.room.RequestGameState(h.connectionID)
	default:
		h.sendError("unknown_message_type")
	}
}

func (h *connHandler) handleJoin(msg InboundMessage) {
	_, err := h.registry.JoinRoom(h.roomCode, h.connectionID, msg.Username, msg.GhostIdentity)
	if err != nil {
		h.sendError(err.Error())
		return
	}
	h.joined = true
	h.room.RequestGameState(h.connectionID)
}

// envelopeFor wraps a raw room frame with its wire type name. Messages the
// transport layer already wraps itself (OutboundMessage, published for
// gameStarted/gameRestarted/playerLeft/error) pass through unchanged.
func envelopeFor(msg interface{}) OutboundMessage {
	switch v := msg.(type) {
	case OutboundMessage:
		return v
	case room.FullState:
		return OutboundMessage{Type: OutboundGameState, Data: v}
	case room.DeltaFrame:
		return OutboundMessage{Type: OutboundGameUpdate, Data: v}
	case room.GameOverFrame:
		return OutboundMessage{Type: OutboundGameOver, Data: v}
	case room.TimerFrame:
		return OutboundMessage{Type: OutboundTimerUpdate, Data: v}
	default:
		return OutboundMessage{Type: "unknown", Data: v}
	}
}

func (h *connHandler) sendError(reason string) {
	h.room.PublishTo(h.connectionID, OutboundMessage{Type: OutboundError, Data: ErrorPayload{Reason: reason}})
}
