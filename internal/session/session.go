// Package session implements one collaboration room (C3) and the catalog
// that owns all of them (C4): roster, id-remap table, monotone operation
// sequence, bounded fan-out broadcast, token lifecycle, and disk
// persistence with TTL-based eviction.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/a-khushal/rustboard/internal/document"
	"github.com/a-khushal/rustboard/internal/token"
	"github.com/a-khushal/rustboard/internal/wsproto"
)

// BroadcastCapacity bounds each subscriber's broadcast channel. A subscriber
// that falls further behind than this starts skipping messages.
const BroadcastCapacity = 10_000

type clientState struct {
	info wsproto.ClientInfo
}

type subscriber struct {
	ch      chan wsproto.ServerMessage
	skipped uint64 // atomic
}

// Subscription is a live handle to one connection's broadcast feed.
type Subscription struct {
	sub *subscriber
}

// C returns the channel to select on.
func (s *Subscription) C() <-chan wsproto.ServerMessage { return s.sub.ch }

// TakeSkipped returns and resets the number of broadcast messages dropped
// for this subscriber since the last call.
func (s *Subscription) TakeSkipped() uint64 {
	return atomic.SwapUint64(&s.sub.skipped, 0)
}

// Session is one collaboration room: a document, a roster, an id-remap
// table, a monotone operation sequence, and a bounded fan-out broadcast.
type Session struct {
	ID  string
	Doc *document.Document

	codec          *token.Codec
	revoked        *RevocationSet
	allowLegacy    bool
	tokenTTL       time.Duration
	createdAt      int64
	lastActiveAt   int64 // atomic
	opSeq          uint64 // atomic

	applyMu sync.Mutex // serializes apply -> sequence -> broadcast

	mu          sync.RWMutex
	editorToken string
	viewerToken string
	roster      map[string]clientState
	remap       map[string]map[uint64]uint64 // clientID -> local id -> canonical id

	subMu sync.RWMutex
	subs  map[string]*subscriber
}

// New constructs an empty session. secret must be at least 32 bytes
// (token.New enforces this); callers are expected to issue the default
// editor/viewer tokens immediately after construction.
func New(id string, secret []byte, tokenTTL time.Duration) (*Session, error) {
	codec, err := token.New(secret, tokenTTL)
	if err != nil {
		return nil, err
	}
	now := time.Now().Unix()
	s := &Session{
		ID:           id,
		Doc:          document.New(),
		codec:        codec,
		revoked:      NewRevocationSet(),
		tokenTTL:     tokenTTL,
		createdAt:    now,
		lastActiveAt: now,
		roster:       make(map[string]clientState),
		remap:        make(map[string]map[uint64]uint64),
		subs:         make(map[string]*subscriber),
	}
	return s, nil
}

// IssueDefaultTokens mints the session's initial editor/viewer tokens,
// called once at session creation.
func (s *Session) IssueDefaultTokens() error {
	editor, _, err := s.codec.Issue(s.ID, token.RoleEditor, s.tokenTTL)
	if err != nil {
		return err
	}
	viewer, _, err := s.codec.Issue(s.ID, token.RoleViewer, s.tokenTTL)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.editorToken, s.viewerToken = editor, viewer
	s.mu.Unlock()
	return nil
}

// EditorToken and ViewerToken return the session's current default tokens.
func (s *Session) EditorToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editorToken
}

func (s *Session) ViewerToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewerToken
}

// Touch updates last_active_at to now.
func (s *Session) Touch() {
	atomic.StoreInt64(&s.lastActiveAt, time.Now().Unix())
}

// LastActiveAt returns the last-activity Unix timestamp.
func (s *Session) LastActiveAt() int64 { return atomic.LoadInt64(&s.lastActiveAt) }

// CreatedAt returns the session's creation Unix timestamp.
func (s *Session) CreatedAt() int64 { return s.createdAt }

// NextOperationSeq atomically advances and returns the session's monotone
// operation sequence (invariant I2).
func (s *Session) NextOperationSeq() uint64 {
	return atomic.AddUint64(&s.opSeq, 1)
}

// ─────────────────────────────────────────────────────────────
// Roster (invariant I4: every roster entry has a remap-table entry)
// ─────────────────────────────────────────────────────────────

// AddClient inserts a roster entry for id, idempotently: a repeated Join for
// the same client id does not duplicate the entry but does refresh
// name/color/role.
func (s *Session) AddClient(id, name, color string, role token.Role) wsproto.ClientInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := wsproto.ClientInfo{ID: id, Name: name, Color: color, Role: role}
	s.roster[id] = clientState{info: info}
	if s.remap[id] == nil {
		s.remap[id] = make(map[uint64]uint64)
	}
	return info
}

// RemoveClient deletes the roster entry and its id-remap table together
// (invariant I4).
func (s *Session) RemoveClient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roster, id)
	delete(s.remap, id)
}

// Clients returns a snapshot of the current roster.
func (s *Session) Clients() []wsproto.ClientInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]wsproto.ClientInfo, 0, len(s.roster))
	for _, c := range s.roster {
		out = append(out, c.info)
	}
	return out
}

// ClientRole reports the role recorded in the roster for id, if present.
func (s *Session) ClientRole(id string) (token.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.roster[id]
	if !ok {
		return "", false
	}
	return c.info.Role, true
}

// RosterSize reports the number of connected clients (used by the
// maintenance loop to decide eviction eligibility).
func (s *Session) RosterSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.roster)
}

// ─────────────────────────────────────────────────────────────
// Id remapping. Session satisfies operation.IDResolver.
// ─────────────────────────────────────────────────────────────

// Record stores the local→canonical mapping for an add operation from
// clientID.
func (s *Session) Record(clientID string, localID, canonicalID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.remap[clientID]
	if m == nil {
		m = make(map[uint64]uint64)
		s.remap[clientID] = m
	}
	m[localID] = canonicalID
}

// Resolve maps localID through clientID's remap table, falling back to the
// incoming id unchanged if no mapping exists.
func (s *Session) Resolve(clientID string, localID uint64) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if canonical, ok := s.remap[clientID][localID]; ok {
		return canonical
	}
	return localID
}

// ─────────────────────────────────────────────────────────────
// Broadcast: bounded, multi-consumer, lag-skip on overflow
// ─────────────────────────────────────────────────────────────

// Subscribe registers a new broadcast subscriber for clientID. Re-
// subscribing the same clientID replaces its previous subscription.
func (s *Session) Subscribe(clientID string) *Subscription {
	sub := &subscriber{ch: make(chan wsproto.ServerMessage, BroadcastCapacity)}
	s.subMu.Lock()
	s.subs[clientID] = sub
	s.subMu.Unlock()
	return &Subscription{sub: sub}
}

// Unsubscribe removes clientID's broadcast subscription.
func (s *Session) Unsubscribe(clientID string) {
	s.subMu.Lock()
	delete(s.subs, clientID)
	s.subMu.Unlock()
}

// ApplyOrdered runs fn (the document mutation) and, on success, draws the
// next operation sequence and broadcasts the message fn produced, all under
// one lock. Fan-out order therefore always matches sequence order, even
// with several editors sending concurrently. fn returns its message without
// a sequence number; ApplyOrdered fills it in.
func (s *Session) ApplyOrdered(fn func() (wsproto.ServerMessage, error)) error {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()
	msg, err := fn()
	if err != nil {
		return err
	}
	msg.Seq = s.NextOperationSeq()
	s.Broadcast(msg)
	return nil
}

// Broadcast fans msg out to every current subscriber. A subscriber that
// cannot keep up has its skip counter incremented instead of blocking the
// broadcaster.
func (s *Session) Broadcast(msg wsproto.ServerMessage) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, sub := range s.subs {
		select {
		case sub.ch <- msg:
		default:
			atomic.AddUint64(&sub.skipped, 1)
		}
	}
}

// ─────────────────────────────────────────────────────────────
// Tokens. Delegates to the token codec; legacy-token compatibility lives
// here, not in the stateless codec, since it needs the cached editor/viewer
// token values.
// ─────────────────────────────────────────────────────────────

// VerifyToken reports whether tok authorizes role `required` in this
// session, accepting either a signed token or, when allow_legacy_tokens is
// set, an exact match against the cached default editor/viewer token
// strings. The legacy path exists only for stores written by older versions;
// new sessions never set allow_legacy_tokens.
func (s *Session) VerifyToken(tok string, required token.Role) bool {
	if s.codec.Verify(tok, s.ID, required, s.revoked) {
		return true
	}
	if !s.allowLegacy {
		return false
	}
	if s.revoked.Contains("legacy:" + tok) {
		return false
	}
	s.mu.RLock()
	editor, viewer := s.editorToken, s.viewerToken
	s.mu.RUnlock()
	switch tok {
	case editor:
		return token.RoleEditor.Satisfies(required)
	case viewer:
		return token.RoleViewer.Satisfies(required)
	default:
		return false
	}
}

// RevokeToken inserts tok's identity into the revocation set: its jti if it
// is a structurally valid signed token, otherwise (legacy opaque token) the
// literal token string under a "legacy:" prefix.
func (s *Session) RevokeToken(tok string) bool {
	if jti, ok := s.codec.RevocationID(tok); ok {
		s.revoked.Add(jti)
		return true
	}
	if s.allowLegacy {
		s.revoked.Add("legacy:" + tok)
		return true
	}
	return false
}

// RotateToken revokes the session's current default token for role and
// replaces it with a freshly issued one, returning the new token.
func (s *Session) RotateToken(role token.Role) (string, bool) {
	s.mu.Lock()
	var prev *string
	switch role {
	case token.RoleEditor:
		prev = &s.editorToken
	case token.RoleViewer:
		prev = &s.viewerToken
	default:
		s.mu.Unlock()
		return "", false
	}
	old := *prev
	s.mu.Unlock()

	s.RevokeToken(old)

	tok, _, err := s.codec.Issue(s.ID, role, s.tokenTTL)
	if err != nil {
		return "", false
	}
	s.mu.Lock()
	*prev = tok
	s.mu.Unlock()
	return tok, true
}

// IssueInviteToken mints a standalone token not cached as the session's
// default, with an explicit ttl. TTL clamping happens at the admin boundary,
// not here.
func (s *Session) IssueInviteToken(role token.Role, ttl time.Duration) (string, bool) {
	tok, _, err := s.codec.Issue(s.ID, role, ttl)
	return tok, err == nil
}
