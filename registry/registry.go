package registry

import (
	"sync"

	"go.uber.org/zap"
)

// TextMessage mirrors the websocket text message type so callers don't need
// to import the transport package for the common case.
const TextMessage = 1

// Conn is a live bidirectional connection. *websocket.Conn from
// gofiber/contrib/websocket satisfies it; tests use fakes. The handshake
// must already be accepted before the connection is registered.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Registry tracks which live connections belong to which room and delivers
// payloads to them. Rooms are created on first connect and deleted when
// their last connection leaves, so the room map stays bounded under churn.
// Connections with no room key land in the unscoped admin pool.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string][]Conn
	admins []Conn
	logger *zap.Logger
}

func New(logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string][]Conn),
		logger: logger,
	}
}

// Connect registers a connection under roomKey, creating the room if absent.
// An empty roomKey appends to the admin pool.
func (r *Registry) Connect(conn Conn, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if roomKey == "" {
		r.admins = append(r.admins, conn)
		r.logger.Debug("admin connection registered",
			zap.Int("pool_size", len(r.admins)))
		return
	}

	r.rooms[roomKey] = append(r.rooms[roomKey], conn)
	r.logger.Debug("connection joined room",
		zap.String("room", roomKey),
		zap.Int("connections", len(r.rooms[roomKey])))
}

// Disconnect removes a connection from its room, deleting the room when it
// empties. Disconnecting a connection that is not present is a no-op, which
// guards against double-disconnect races.
func (r *Registry) Disconnect(conn Conn, roomKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if roomKey == "" {
		r.admins = removeConn(r.admins, conn)
		return
	}

	conns, ok := r.rooms[roomKey]
	if !ok {
		return
	}

	conns = removeConn(conns, conn)
	if len(conns) == 0 {
		delete(r.rooms, roomKey)
		r.logger.Debug("room closed", zap.String("room", roomKey))
		return
	}
	r.rooms[roomKey] = conns
}

// BroadcastToRoom sends payload to every connection currently in the room.
// A missing room is a silent no-op: it may have emptied between payload
// preparation and send. Each send is isolated, so one dropped connection
// never blocks delivery to the rest.
func (r *Registry) BroadcastToRoom(roomKey string, payload []byte) {
	r.mu.Lock()
	conns := append([]Conn(nil), r.rooms[roomKey]...)
	r.mu.Unlock()

	r.deliver(conns, roomKey, payload)
}

// SendPrivate delivers payload to the room where exactly one active
// connection is expected. Zero or multiple connections are tolerated with
// the same semantics as BroadcastToRoom.
func (r *Registry) SendPrivate(roomKey string, payload []byte) {
	r.BroadcastToRoom(roomKey, payload)
}

// BroadcastToAdmins sends payload to every connection in the admin pool.
func (r *Registry) BroadcastToAdmins(payload []byte) {
	r.mu.Lock()
	conns := append([]Conn(nil), r.admins...)
	r.mu.Unlock()

	r.deliver(conns, "admins", payload)
}

// RoomSize reports how many connections a room currently holds.
func (r *Registry) RoomSize(roomKey string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomKey])
}

func (r *Registry) deliver(conns []Conn, label string, payload []byte) {
	for _, conn := range conns {
		if err := conn.WriteMessage(TextMessage, payload); err != nil {
			// Send failures are isolated; the receive loop owns the
			// disconnect.
			r.logger.Warn("failed to deliver payload",
				zap.String("room", label),
				zap.Error(err))
		}
	}
}

func removeConn(conns []Conn, conn Conn) []Conn {
	for i, c := range conns {
		if c == conn {
			return append(conns[:i], conns[i+1:]...)
		}
	}
	return conns
}
