package connhandler

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-khushal/rustboard/internal/document"
	"github.com/a-khushal/rustboard/internal/operation"
	"github.com/a-khushal/rustboard/internal/session"
	"github.com/a-khushal/rustboard/internal/token"
	"github.com/a-khushal/rustboard/internal/wsproto"
)

type fakeConn struct {
	toServer   chan []byte
	fromServer chan []byte
	closed     chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		toServer:   make(chan []byte, 16),
		fromServer: make(chan []byte, 16),
		closed:     make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg, ok := <-f.toServer:
		if !ok {
			return 0, nil, io.EOF
		}
		return 1, msg, nil
	case <-f.closed:
		return 0, nil, io.EOF
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case f.fromServer <- data:
		return nil
	case <-f.closed:
		return io.ErrClosedPipe
	}
}

func (f *fakeConn) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func (f *fakeConn) sendClient(t *testing.T, msg wsproto.ClientMessage) {
	t.Helper()
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	f.toServer <- body
}

// awaitType reads from fromServer, skipping messages of other types, until
// it finds one of the wanted type or the timeout elapses.
func (f *fakeConn) awaitType(t *testing.T, want string) wsproto.ServerMessage {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case body := <-f.fromServer:
			var msg wsproto.ServerMessage
			require.NoError(t, json.Unmarshal(body, &msg))
			if msg.Type == want {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for message type %q", want)
		}
	}
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.New("sess-1", []byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.IssueDefaultTokens())
	return s
}

func TestCreateJoinAddEcho(t *testing.T) {
	sess := newTestSession(t)
	conn := newFakeConn()
	h := NewHandler(sess, token.RoleEditor, conn, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypeJoin, ClientID: "A", Name: "alice", Color: "#f00"})
	joined := conn.awaitType(t, wsproto.TypeJoined)
	assert.Equal(t, "A", joined.ClientID)
	assert.Len(t, joined.Clients, 1)

	conn.sendClient(t, wsproto.ClientMessage{
		Type: wsproto.TypeUpdate,
		Operation: &operation.Operation{
			Op: operation.AddRectangle, ID: 7,
			Position: nil, Width: 30, Height: 40,
		},
	})

	update := conn.awaitType(t, wsproto.TypeUpdate)
	require.NotNil(t, update.Operation)
	assert.Equal(t, operation.AddRectangle, update.Operation.Op)
	require.NotNil(t, update.SourceLocalID)
	assert.Equal(t, uint64(7), *update.SourceLocalID)
	assert.Equal(t, uint64(1), update.Seq)
	assert.Equal(t, "A", update.ClientID)
	assert.NotEqual(t, uint64(7), update.Operation.ID) // rewritten to the canonical id
}

func TestTwoClientFanOutResolvesLocalIDs(t *testing.T) {
	sess := newTestSession(t)

	connA := newFakeConn()
	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	go NewHandler(sess, token.RoleEditor, connA, nil, nil).Run(ctxA)
	connA.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypeJoin, ClientID: "A", Name: "a", Color: "#000"})
	connA.awaitType(t, wsproto.TypeJoined)

	connB := newFakeConn()
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	go NewHandler(sess, token.RoleEditor, connB, nil, nil).Run(ctxB)
	connB.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypeJoin, ClientID: "B", Name: "b", Color: "#fff"})
	connB.awaitType(t, wsproto.TypeJoined)

	// A adds with local id 5, then immediately moves it still referring to
	// local id 5; the server resolves the move to the canonical id.
	connA.sendClient(t, wsproto.ClientMessage{
		Type:      wsproto.TypeUpdate,
		Operation: &operation.Operation{Op: operation.AddRectangle, ID: 5, Width: 10, Height: 10},
	})
	add := connB.awaitType(t, wsproto.TypeUpdate)
	require.NotNil(t, add.Operation)
	require.NotNil(t, add.SourceLocalID)
	assert.Equal(t, uint64(5), *add.SourceLocalID)
	assert.Equal(t, uint64(1), add.Seq)
	canonical := add.Operation.ID

	connA.sendClient(t, wsproto.ClientMessage{
		Type:      wsproto.TypeUpdate,
		Operation: &operation.Operation{Op: operation.MoveRectangle, ID: 5, Position: &document.Point{X: 9, Y: 9}},
	})
	move := connB.awaitType(t, wsproto.TypeUpdate)
	require.NotNil(t, move.Operation)
	assert.Equal(t, canonical, move.Operation.ID)
	assert.Equal(t, uint64(2), move.Seq)
	assert.Nil(t, move.SourceLocalID)
}

func TestViewerUpdateIsRejectedWithoutMutatingOrBroadcasting(t *testing.T) {
	sess := newTestSession(t)
	rectID := sess.Doc.AddRectangleWithoutSnapshot(document.Point{}, 1, 1)

	conn := newFakeConn()
	h := NewHandler(sess, token.RoleViewer, conn, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypeJoin, ClientID: "C", Name: "carl", Color: "#00f"})
	conn.awaitType(t, wsproto.TypeJoined)

	conn.sendClient(t, wsproto.ClientMessage{
		Type: wsproto.TypeUpdate,
		Operation: &operation.Operation{Op: operation.DeleteRectangle, ID: rectID},
	})

	errMsg := conn.awaitType(t, wsproto.TypeError)
	assert.Equal(t, "read-only", errMsg.Message)
	assert.True(t, sess.Doc.Exists(rectID))
}

func TestMessageBeforeJoinIsProtocolError(t *testing.T) {
	sess := newTestSession(t)
	conn := newFakeConn()
	h := NewHandler(sess, token.RoleEditor, conn, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypePing})
	msg := conn.awaitType(t, wsproto.TypeError)
	assert.Equal(t, "message before join", msg.Message)
}

func TestPingPong(t *testing.T) {
	sess := newTestSession(t)
	conn := newFakeConn()
	h := NewHandler(sess, token.RoleEditor, conn, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypeJoin, ClientID: "A", Name: "a", Color: "#000"})
	conn.awaitType(t, wsproto.TypeJoined)

	conn.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypePing})
	conn.awaitType(t, wsproto.TypePong)
}

func TestDisconnectRemovesRosterAndBroadcastsClientLeft(t *testing.T) {
	sess := newTestSession(t)

	connA := newFakeConn()
	hA := NewHandler(sess, token.RoleEditor, connA, nil, nil)
	ctxA, cancelA := context.WithCancel(context.Background())
	go hA.Run(ctxA)
	connA.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypeJoin, ClientID: "A", Name: "a", Color: "#000"})
	connA.awaitType(t, wsproto.TypeJoined)

	connB := newFakeConn()
	hB := NewHandler(sess, token.RoleEditor, connB, nil, nil)
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()
	go hB.Run(ctxB)
	connB.sendClient(t, wsproto.ClientMessage{Type: wsproto.TypeJoin, ClientID: "B", Name: "b", Color: "#fff"})
	// B's Joined (direct queue) and its own ClientJoined echo (broadcast)
	// travel on different queues, so they may arrive in either order.
	seen := map[string]bool{}
	for !seen[wsproto.TypeJoined] || !seen[wsproto.TypeClientJoined] {
		select {
		case body := <-connB.fromServer:
			var msg wsproto.ServerMessage
			require.NoError(t, json.Unmarshal(body, &msg))
			seen[msg.Type] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for Joined and ClientJoined")
		}
	}

	connA.Close()
	cancelA()

	left := connB.awaitType(t, wsproto.TypeClientLeft)
	assert.Equal(t, "A", left.ClientID)
	_, stillInRoster := sess.ClientRole("A")
	assert.False(t, stillInRoster)
}
