package registry

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConn records everything written to it; failWrites makes every send
// error so delivery isolation can be observed.
type fakeConn struct {
	messages   [][]byte
	failWrites bool
	closed     bool
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if f.failWrites {
		return errors.New("connection gone")
	}
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func newTestRegistry() *Registry {
	return New(zap.NewNop())
}

func TestConnectCreatesRoomOnFirstConnection(t *testing.T) {
	r := newTestRegistry()
	conn := &fakeConn{}

	require.Equal(t, 0, r.RoomSize("room-a"))
	r.Connect(conn, "room-a")
	assert.Equal(t, 1, r.RoomSize("room-a"))
}

func TestBroadcastReachesEveryConnectionInRoom(t *testing.T) {
	r := newTestRegistry()
	first := &fakeConn{}
	second := &fakeConn{}
	outsider := &fakeConn{}

	r.Connect(first, "room-a")
	r.Connect(second, "room-a")
	r.Connect(outsider, "room-b")

	r.BroadcastToRoom("room-a", []byte("update"))

	require.Len(t, first.messages, 1)
	require.Len(t, second.messages, 1)
	assert.Equal(t, []byte("update"), first.messages[0])
	assert.Empty(t, outsider.messages)
}

func TestBroadcastToMissingRoomIsNoOp(t *testing.T) {
	r := newTestRegistry()

	assert.NotPanics(t, func() {
		r.BroadcastToRoom("nobody-here", []byte("update"))
	})
}

func TestFailingConnectionDoesNotBlockOthers(t *testing.T) {
	r := newTestRegistry()
	broken := &fakeConn{failWrites: true}
	healthy := &fakeConn{}

	r.Connect(broken, "room-a")
	r.Connect(healthy, "room-a")

	r.BroadcastToRoom("room-a", []byte("update"))

	require.Len(t, healthy.messages, 1)
	// the broken connection stays registered; the receive loop owns removal
	assert.Equal(t, 2, r.RoomSize("room-a"))
}

func TestDisconnectRemovesRoomWhenEmpty(t *testing.T) {
	r := newTestRegistry()
	first := &fakeConn{}
	second := &fakeConn{}

	r.Connect(first, "room-a")
	r.Connect(second, "room-a")

	r.Disconnect(first, "room-a")
	assert.Equal(t, 1, r.RoomSize("room-a"))

	r.Disconnect(second, "room-a")
	assert.Equal(t, 0, r.RoomSize("room-a"))

	// the emptied room no longer receives anything
	r.BroadcastToRoom("room-a", []byte("late"))
	assert.Empty(t, second.messages)
}

func TestDisconnectIsIdempotent(t *testing.T) {
	r := newTestRegistry()
	conn := &fakeConn{}

	r.Connect(conn, "room-a")
	r.Disconnect(conn, "room-a")

	assert.NotPanics(t, func() {
		r.Disconnect(conn, "room-a")
		r.Disconnect(conn, "never-joined")
	})
	assert.Equal(t, 0, r.RoomSize("room-a"))
}

func TestSendPrivateDeliversToRoom(t *testing.T) {
	r := newTestRegistry()
	conn := &fakeConn{}

	r.Connect(conn, "user-1:chat")
	r.SendPrivate("user-1:chat", []byte("hello"))

	require.Len(t, conn.messages, 1)
	assert.Equal(t, []byte("hello"), conn.messages[0])
}

func TestAdminPoolReceivesUnscopedBroadcasts(t *testing.T) {
	r := newTestRegistry()
	admin := &fakeConn{}
	patient := &fakeConn{}

	r.Connect(admin, "")
	r.Connect(patient, "room-a")

	r.BroadcastToAdmins([]byte("help needed"))

	require.Len(t, admin.messages, 1)
	assert.Empty(t, patient.messages)

	r.Disconnect(admin, "")
	r.BroadcastToAdmins([]byte("after leave"))
	assert.Len(t, admin.messages, 1)
}
