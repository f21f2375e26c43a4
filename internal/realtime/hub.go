// Package realtime pushes service events to browser clients over socket.io.
package realtime

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	socketio "github.com/googollee/go-socket.io"
)

const namespace = "/"

type roomRequest struct {
	Room string `json:"room"`
}

// Hub owns the socket.io server. Events go to every connected client; room
// membership is tracked for clients that scope their own listeners.
type Hub struct {
	server *socketio.Server

	mu    sync.Mutex
	conns map[string]socketio.Conn
	rooms map[string]map[string]struct{} // room -> connection ids
}

func NewHub() *Hub {
	h := &Hub{
		server: socketio.NewServer(nil),
		conns:  make(map[string]socketio.Conn),
		rooms:  make(map[string]map[string]struct{}),
	}

	h.server.OnConnect(namespace, func(s socketio.Conn) error {
		h.mu.Lock()
		h.conns[s.ID()] = s
		h.mu.Unlock()
		slog.Info("client connected", "sid", s.ID(), "remote", s.RemoteAddr())
		return nil
	})
	h.server.OnEvent(namespace, "join_room", func(s socketio.Conn, req roomRequest) {
		if req.Room == "" {
			return
		}
		s.Join(req.Room)
		h.join(s.ID(), req.Room)
		slog.Debug("client joined room", "sid", s.ID(), "room", req.Room)
	})
	h.server.OnEvent(namespace, "leave_room", func(s socketio.Conn, req roomRequest) {
		if req.Room == "" {
			return
		}
		s.Leave(req.Room)
		h.leave(s.ID(), req.Room)
		slog.Debug("client left room", "sid", s.ID(), "room", req.Room)
	})
	h.server.OnError(namespace, func(s socketio.Conn, err error) {
		sid := ""
		if s != nil {
			sid = s.ID()
		}
		slog.Warn("socket error", "sid", sid, "err", err)
	})
	h.server.OnDisconnect(namespace, func(s socketio.Conn, reason string) {
		h.drop(s.ID())
		slog.Info("client disconnected", "sid", s.ID(), "reason", reason)
	})
	return h
}

// Publish broadcasts event to all clients on the root namespace. Delivery is
// best effort and nothing is replayed.
func (h *Hub) Publish(event string, payload any) {
	if !h.server.BroadcastToNamespace(namespace, event, payload) {
		slog.Debug("broadcast skipped", "event", event)
	}
}

// Serve runs the engine loop until Close is called.
func (h *Hub) Serve() error {
	return h.server.Serve()
}

// Close disconnects every client, which releases pending long-poll requests,
// and stops the engine loop.
func (h *Hub) Close() error {
	h.mu.Lock()
	conns := make([]socketio.Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.Close(); err != nil {
			slog.Debug("socket close", "sid", c.ID(), "err", err)
		}
	}
	return h.server.Close()
}

func (h *Hub) Handler() http.Handler {
	return h.server
}

// Members lists the connection ids currently in room, sorted.
func (h *Hub) Members(room string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Hub) join(sid, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m, ok := h.rooms[room]
	if !ok {
		m = make(map[string]struct{})
		h.rooms[room] = m
	}
	m[sid] = struct{}{}
}

func (h *Hub) leave(sid, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sid, room)
}

func (h *Hub) drop(sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, sid)
	for room := range h.rooms {
		h.removeLocked(sid, room)
	}
}

func (h *Hub) removeLocked(sid, room string) {
	m, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(m, sid)
	if len(m) == 0 {
		delete(h.rooms, room)
	}
}
