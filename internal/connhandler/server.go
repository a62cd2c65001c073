package connhandler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/a-khushal/rustboard/internal/session"
	"github.com/a-khushal/rustboard/internal/token"
)

// Server performs the authenticated websocket upgrade and hands the
// resulting connection to a fresh Handler.
type Server struct {
	manager        *session.Manager
	allowedOrigins map[string]struct{}
	upgrader       websocket.Upgrader
	log            *slog.Logger
	metrics        Metrics
}

// NewServer constructs an upgrade handler. An empty allowedOrigins permits
// any origin (development default).
func NewServer(manager *session.Manager, allowedOrigins []string, log *slog.Logger, metrics Metrics) *Server {
	if log == nil {
		log = slog.Default()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	srv := &Server{manager: manager, allowedOrigins: origins, log: log, metrics: metrics}
	srv.upgrader = websocket.Upgrader{CheckOrigin: srv.checkOrigin}
	return srv
}

func (srv *Server) checkOrigin(r *http.Request) bool {
	if len(srv.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	_, ok := srv.allowedOrigins[origin]
	return ok
}

// HandleUpgrade authenticates the connection against sessionID's token and,
// on success, upgrades the transport and runs a Handler for its lifetime.
// It blocks until the connection closes, matching chi's handler contract.
func (srv *Server) HandleUpgrade(w http.ResponseWriter, r *http.Request, sessionID string) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	role := token.RoleEditor
	if r.URL.Query().Get("role") == string(token.RoleViewer) {
		role = token.RoleViewer
	}

	sess, ok := srv.manager.GetSession(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !sess.VerifyToken(tok, role) {
		http.Error(w, "invalid or insufficient token", http.StatusForbidden)
		return
	}

	if !srv.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.Error("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	srv.manager.MarkSessionActive(sessionID)
	if srv.metrics != nil {
		srv.metrics.WSConnection()
	}

	h := NewHandler(sess, role, conn, srv.log, srv.metrics)
	h.Run(r.Context())
}
