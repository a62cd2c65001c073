package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/a-khushal/rustboard/internal/apperr"
	"github.com/a-khushal/rustboard/internal/token"
)

// StoreSchemaVersion is the version of the top-level `{version, sessions}`
// store shape this code writes.
const StoreSchemaVersion = 1

// Store is the on-disk catalog shape.
type Store struct {
	Version  uint32             `json:"version"`
	Sessions []PersistedSession `json:"sessions"`
}

// Metrics is the subset of the observability counters the manager can drive
// directly. A nil Metrics is a valid no-op default; the
// real implementation lives in internal/metrics, wired in from cmd/server so
// this package never imports it.
type Metrics interface {
	SessionCreated()
	TokenRevoked()
	TokenRotated()
	ActiveSessions(n int)
}

// Manager owns the {id -> Session} catalog, disk persistence, and the
// periodic eviction/persistence loop (component C4).
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	path       string
	sessionTTL time.Duration
	tokenTTL   time.Duration
	log        *slog.Logger
	metrics    Metrics
}

// NewManager constructs a catalog backed by path. logger and metrics may be
// nil (a nil logger falls back to slog.Default(); a nil Metrics is a no-op).
func NewManager(path string, sessionTTL, tokenTTL time.Duration, logger *slog.Logger, metrics Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:   make(map[string]*Session),
		path:       path,
		sessionTTL: sessionTTL,
		tokenTTL:   tokenTTL,
		log:        logger,
		metrics:    metrics,
	}
}

// CreateNewSession allocates a fresh session with a random 32-byte signing
// secret and its default editor/viewer tokens, and registers it in the
// catalog.
func (m *Manager) CreateNewSession() (*Session, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("session: generating secret: %w", err)
	}
	s, err := New(uuid.NewString(), secret, m.tokenTTL)
	if err != nil {
		return nil, err
	}
	if err := s.IssueDefaultTokens(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SessionCreated()
	}
	return s, nil
}

// GetSession returns the session for id, if it exists.
func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// MarkSessionActive touches the session's last-active timestamp if present.
func (m *Manager) MarkSessionActive(id string) {
	if s, ok := m.GetSession(id); ok {
		s.Touch()
	}
}

// RevokeToken delegates to the named session, bumping the revocation
// counter on success.
func (m *Manager) RevokeToken(sessionID, tok string) (bool, error) {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return false, fmt.Errorf("session: %s: %w", sessionID, apperr.NotFound)
	}
	ok = s.RevokeToken(tok)
	if ok && m.metrics != nil {
		m.metrics.TokenRevoked()
	}
	return ok, nil
}

// RotateToken delegates to the named session, bumping the rotation counter
// on success.
func (m *Manager) RotateToken(sessionID string, role token.Role) (string, bool, error) {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return "", false, fmt.Errorf("session: %s: %w", sessionID, apperr.NotFound)
	}
	tok, ok := s.RotateToken(role)
	if ok && m.metrics != nil {
		m.metrics.TokenRotated()
	}
	return tok, ok, nil
}

// IssueInviteToken delegates to the named session. ttl clamping (60..
// 2,592,000s) is an admin-boundary concern, applied by the caller before
// reaching here.
func (m *Manager) IssueInviteToken(sessionID string, role token.Role, ttl time.Duration) (string, bool, error) {
	s, ok := m.GetSession(sessionID)
	if !ok {
		return "", false, fmt.Errorf("session: %s: %w", sessionID, apperr.NotFound)
	}
	tok, ok := s.IssueInviteToken(role, ttl)
	return tok, ok, nil
}

// CleanupExpiredSessions removes sessions whose roster is empty and whose
// last_active_at is older than the configured TTL. Returns the number
// removed.
func (m *Manager) CleanupExpiredSessions() int {
	cutoff := time.Now().Add(-m.sessionTTL).Unix()

	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if s.RosterSize() == 0 && s.LastActiveAt() < cutoff {
			delete(m.sessions, id)
			removed++
		}
	}
	if m.metrics != nil {
		m.metrics.ActiveSessions(len(m.sessions))
	}
	return removed
}

// PersistAll writes the full catalog to disk via a temp file + atomic
// rename.
func (m *Manager) PersistAll() error {
	m.mu.RLock()
	persisted := make([]PersistedSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		persisted = append(persisted, s.ToPersisted())
	}
	m.mu.RUnlock()

	store := Store{Version: StoreSchemaVersion, Sessions: persisted}
	body, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshaling store: %w: %w", apperr.Persistence, err)
	}

	tmp := m.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("session: preparing store directory: %w: %w", apperr.Persistence, err)
	}
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return fmt.Errorf("session: writing temp store: %w: %w", apperr.Persistence, err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("session: renaming store into place: %w: %w", apperr.Persistence, err)
	}
	return nil
}

// Load reads the catalog from disk, if present, reconstructing each
// session. Unknown future store versions are treated as an empty catalog;
// a missing file is not an error (first run).
func (m *Manager) Load() error {
	body, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: reading store: %w: %w", apperr.Persistence, err)
	}

	var store Store
	if err := json.Unmarshal(body, &store); err != nil {
		return fmt.Errorf("session: parsing store: %w: %w", apperr.Persistence, err)
	}
	if store.Version > StoreSchemaVersion {
		m.log.Warn("session store: unknown future version, starting with an empty catalog",
			"found_version", store.Version, "supported_version", StoreSchemaVersion)
		return nil
	}

	sessions := make(map[string]*Session, len(store.Sessions))
	for _, p := range store.Sessions {
		s, err := FromPersisted(p)
		if err != nil {
			m.log.Warn("session store: skipping unreadable session", "session_id", p.ID, "error", err)
			continue
		}
		sessions[s.ID] = s
	}

	m.mu.Lock()
	m.sessions = sessions
	m.mu.Unlock()
	return nil
}

// RunMaintenance runs the background eviction+persistence loop until ctx is
// done. Both steps tolerate individual failures by logging and continuing
// to the next tick.
func (m *Manager) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := m.CleanupExpiredSessions()
			if removed > 0 {
				m.log.Info("session maintenance: evicted expired sessions", "count", removed)
			}
			if err := m.PersistAll(); err != nil {
				m.log.Error("session maintenance: persistence failed", "error", err)
			}
		}
	}
}
