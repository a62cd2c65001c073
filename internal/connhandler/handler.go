// Package connhandler implements the per-connection duplex channel handler
// (C6): a send/receive task pair linked by select-cancel, broadcast vs.
// direct delivery, Join/Update/Presence/Ping dispatch, and the editor/viewer
// authorization gate.
package connhandler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/a-khushal/rustboard/internal/operation"
	"github.com/a-khushal/rustboard/internal/session"
	"github.com/a-khushal/rustboard/internal/token"
	"github.com/a-khushal/rustboard/internal/wsproto"
)

// Transport is the subset of *websocket.Conn the handler depends on, kept
// as an interface so tests can substitute an in-memory fake.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Metrics is the subset of the observability counters the connection
// handler drives directly. A nil Metrics is a valid no-op.
type Metrics interface {
	WSConnection()
	WSDisconnection()
	WSError()
	OperationApplied()
	FullSyncSent()
}

// Handler runs the two cooperating tasks for one connection.
type Handler struct {
	sess    *session.Session
	role    token.Role
	conn    Transport
	log     *slog.Logger
	metrics Metrics

	direct *directQueue
	sub    atomic.Pointer[session.Subscription]

	mu       sync.Mutex
	joined   bool
	clientID string
}

// NewHandler constructs a handler for one already-authorized connection.
// role is fixed for the lifetime of the connection, decided at upgrade time
// from the query parameter.
func NewHandler(sess *session.Session, role token.Role, conn Transport, log *slog.Logger, metrics Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{sess: sess, role: role, conn: conn, log: log, metrics: metrics}
}

// Run drives the connection until either task completes, then tears down
// the roster entry and broadcasts ClientLeft if the connection had joined.
func (h *Handler) Run(ctx context.Context) {
	h.direct = newDirectQueue()
	defer h.direct.Close()

	// stop also closes the transport: the receive task blocks in
	// ReadMessage, and closing the socket is the only way to unwind it
	// when the send task dies first.
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = h.conn.Close()
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()
		h.sendLoop(ctx, done)
	}()

	h.receiveLoop(done, stop)
	wg.Wait() // the two tasks are linked by select-cancel: wait for both to unwind

	h.mu.Lock()
	joined, clientID := h.joined, h.clientID
	h.mu.Unlock()

	if joined {
		h.sess.RemoveClient(clientID)
		h.sess.Unsubscribe(clientID)
		h.sess.Broadcast(wsproto.ServerMessage{Type: wsproto.TypeClientLeft, ClientID: clientID})
		h.sess.Touch()
	}
	if h.metrics != nil {
		h.metrics.WSDisconnection()
	}
}

func (h *Handler) sendLoop(ctx context.Context, done <-chan struct{}) {
	for {
		sub := h.sub.Load()
		var subCh <-chan wsproto.ServerMessage
		if sub != nil {
			subCh = sub.C()
		}
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case msg, ok := <-h.direct.out:
			if !ok {
				return
			}
			if !h.write(msg) {
				return
			}
		case msg, ok := <-subCh:
			if !ok {
				return
			}
			if sub != nil {
				if skipped := sub.TakeSkipped(); skipped > 0 {
					h.log.Warn("broadcast subscriber lagging, messages dropped",
						"client_id", h.currentClientID(), "skipped", skipped)
				}
			}
			if !h.write(msg) {
				return
			}
		}
	}
}

func (h *Handler) write(msg wsproto.ServerMessage) bool {
	body, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshaling outbound message", "error", err)
		return true // not a transport failure; skip this message, keep the connection
	}
	if err := h.conn.WriteMessage(websocket.TextMessage, body); err != nil {
		if h.metrics != nil {
			h.metrics.WSError()
		}
		return false
	}
	return true
}

func (h *Handler) receiveLoop(done chan struct{}, stop func()) {
	defer stop()
	for {
		select {
		case <-done:
			return
		default:
		}
		_, data, err := h.conn.ReadMessage()
		if err != nil {
			if h.metrics != nil {
				h.metrics.WSError()
			}
			return
		}
		var msg wsproto.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.direct.Send(wsproto.ServerMessage{Type: wsproto.TypeError, Message: "malformed message"})
			continue
		}
		h.dispatch(msg)
	}
}

func (h *Handler) currentClientID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientID
}

func (h *Handler) dispatch(msg wsproto.ClientMessage) {
	if msg.Type == wsproto.TypeJoin {
		h.handleJoin(msg)
		return
	}

	h.mu.Lock()
	joined := h.joined
	h.mu.Unlock()
	if !joined {
		h.protocolError("message before join")
		return
	}

	switch msg.Type {
	case wsproto.TypeUpdate:
		h.handleUpdate(msg)
	case wsproto.TypePresence:
		h.handlePresence(msg)
	case wsproto.TypePing:
		h.direct.Send(wsproto.ServerMessage{Type: wsproto.TypePong})
	default:
		h.protocolError("unknown message type")
	}
}

func (h *Handler) protocolError(reason string) {
	h.direct.Send(wsproto.ServerMessage{Type: wsproto.TypeError, Message: reason})
}

// handleJoin is accepted once per client-id; a repeat Join for the same
// connection replaces the id binding without duplicating the roster entry.
func (h *Handler) handleJoin(msg wsproto.ClientMessage) {
	h.mu.Lock()
	prevJoined, prevID := h.joined, h.clientID
	h.clientID = msg.ClientID
	h.joined = true
	h.mu.Unlock()

	if prevJoined && prevID != msg.ClientID {
		h.sess.RemoveClient(prevID)
		h.sess.Unsubscribe(prevID)
	}

	info := h.sess.AddClient(msg.ClientID, msg.Name, msg.Color, h.role)
	h.sub.Store(h.sess.Subscribe(msg.ClientID))

	h.direct.Send(wsproto.ServerMessage{
		Type:     wsproto.TypeJoined,
		ClientID: msg.ClientID,
		Clients:  h.sess.Clients(),
		Document: h.sess.Doc.Serialize(),
	})
	if h.metrics != nil {
		h.metrics.FullSyncSent()
	}
	h.sess.Broadcast(wsproto.ServerMessage{Type: wsproto.TypeClientJoined, Client: &info})
}

// handleUpdate enforces the editor-only authorization gate, applies the
// operation, assigns the broadcast sequence, and fans out the
// canonical-id-rewritten Update. Apply, sequence draw, and fan-out run
// under the session's apply lock so broadcast order matches seq order.
func (h *Handler) handleUpdate(msg wsproto.ClientMessage) {
	if h.role != token.RoleEditor {
		h.protocolError("read-only")
		return
	}
	if msg.Operation == nil {
		h.protocolError("missing operation")
		return
	}

	clientID := h.currentClientID()
	op := *msg.Operation
	err := h.sess.ApplyOrdered(func() (wsproto.ServerMessage, error) {
		res, err := operation.Apply(op, h.sess.Doc, clientID, h.sess)
		if err != nil {
			return wsproto.ServerMessage{}, err
		}
		outOp := op
		var sourceLocal *uint64
		if res.CanonicalID != nil {
			localID := op.ID
			sourceLocal = &localID
			outOp.ID = *res.CanonicalID
		} else if op.ID != 0 {
			outOp.ID = h.sess.Resolve(clientID, op.ID)
		}
		return wsproto.ServerMessage{
			Type:          wsproto.TypeUpdate,
			ClientID:      clientID,
			Operation:     &outOp,
			SourceLocalID: sourceLocal,
		}, nil
	})
	if err != nil {
		h.log.Warn("operation apply failed, treated as no-op", "client_id", clientID, "op", op.Op, "error", err)
		return
	}

	h.sess.Touch()
	if h.metrics != nil {
		h.metrics.OperationApplied()
	}
}

// handlePresence fans out immediately without touching the document; both
// roles may send presence.
func (h *Handler) handlePresence(msg wsproto.ClientMessage) {
	h.sess.Broadcast(wsproto.ServerMessage{
		Type:        wsproto.TypePresence,
		ClientID:    h.currentClientID(),
		Cursor:      msg.Cursor,
		SelectedIDs: msg.SelectedIDs,
	})
}
