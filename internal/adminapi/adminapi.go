// Package adminapi implements the admin surface (C7): create/get/revoke/
// rotate/invite routes over the session catalog, healthz/metrics, CORS, and
// IP-keyed rate limiting. Routing is go-chi/chi; go-chi/cors and
// golang.org/x/time/rate provide the middleware.
package adminapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/a-khushal/rustboard/internal/apperr"
	"github.com/a-khushal/rustboard/internal/connhandler"
	"github.com/a-khushal/rustboard/internal/session"
	"github.com/a-khushal/rustboard/internal/token"
)

// inviteTTLMin and inviteTTLMax clamp invite-token lifetimes.
const (
	inviteTTLMin = 60 * time.Second
	inviteTTLMax = 2_592_000 * time.Second
)

// Metrics is the observability contract required to build a Router: rate
// limiting (driven here) plus the connection-handler counters (driven by
// the websocket upgrade route this package wires).
type Metrics interface {
	connhandler.Metrics
	RateLimited()
}

// Router builds the admin + websocket-upgrade HTTP surface.
type Router struct {
	manager *session.Manager
	ws      *connhandler.Server
	limiter *ipRateLimiter
	log     *slog.Logger
	metrics Metrics
	mux     chi.Router
}

// New constructs the full router: CORS, rate limiting, the admin routes
// under /api/sessions, the websocket upgrade at /ws/{sessionID}, and
// /healthz + /metrics. gatherer is the registry the process's counters were
// registered against; a nil gatherer falls back to the default registry.
func New(manager *session.Manager, allowedOrigins []string, gatherer prometheus.Gatherer, log *slog.Logger, metrics Metrics) *Router {
	if log == nil {
		log = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	rt := &Router{
		manager: manager,
		ws:      connhandler.NewServer(manager, allowedOrigins, log, metrics),
		limiter: newIPRateLimiter(5, 10), // 5 req/s, burst 10, per client IP
		log:     log,
		metrics: metrics,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(allowedOrigins),
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/healthz", rt.handleHealthz)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/sessions", func(api chi.Router) {
		api.Use(rt.rateLimit)
		api.Post("/", rt.handleCreateSession)
		api.Get("/{sessionID}", rt.handleGetSession)
		api.Post("/{sessionID}/revoke", rt.handleRevokeToken)
		api.Post("/{sessionID}/rotate", rt.handleRotateToken)
		api.Post("/{sessionID}/invite", rt.handleInviteToken)
	})

	r.With(rt.rateLimit).Get("/ws/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
		rt.ws.HandleUpgrade(w, req, chi.URLParam(req, "sessionID"))
	})

	rt.mux = r
	return rt
}

// ServeHTTP satisfies http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) { rt.mux.ServeHTTP(w, r) }

func corsOrigins(allowed []string) []string {
	if len(allowed) == 0 {
		return []string{"*"}
	}
	return allowed
}

func (rt *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSessionResponse struct {
	SessionID   string `json:"session_id"`
	EditorToken string `json:"editor_token"`
	ViewerToken string `json:"viewer_token"`
	EditorURL   string `json:"editor_url"`
	ViewerURL   string `json:"viewer_url"`
}

func (rt *Router) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	s, err := rt.manager.CreateNewSession()
	if err != nil {
		rt.log.Error("creating session", "error", err)
		http.Error(w, "could not create session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, createSessionResponse{
		SessionID:   s.ID,
		EditorToken: s.EditorToken(),
		ViewerToken: s.ViewerToken(),
		EditorURL:   "/ws/" + s.ID + "?token=" + s.EditorToken() + "&role=editor",
		ViewerURL:   "/ws/" + s.ID + "?token=" + s.ViewerToken() + "&role=viewer",
	})
}

type getSessionResponse struct {
	Exists     bool `json:"exists"`
	TokenValid bool `json:"token_valid"`
}

// handleGetSession never distinguishes "no such session" from "bad token"
// in its response shape, so existence cannot be inferred from a failed
// token check.
func (rt *Router) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	s, ok := rt.manager.GetSession(sessionID)
	if !ok {
		writeJSON(w, http.StatusOK, getSessionResponse{Exists: false, TokenValid: false})
		return
	}
	tok := r.URL.Query().Get("token")
	valid := tok != "" && s.VerifyToken(tok, token.RoleViewer) // editor tokens satisfy viewer
	writeJSON(w, http.StatusOK, getSessionResponse{Exists: true, TokenValid: valid})
}

type revokeRequest struct {
	EditorToken   string `json:"editor_token"`
	TokenToRevoke string `json:"token_to_revoke"`
}

func (rt *Router) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var body revokeRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	s, ok := rt.requireEditor(w, sessionID, body.EditorToken)
	if !ok {
		return
	}
	revoked, err := rt.manager.RevokeToken(s.ID, body.TokenToRevoke)
	if errors.Is(err, apperr.NotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})
}

type rotateRequest struct {
	EditorToken string     `json:"editor_token"`
	Role        token.Role `json:"role"`
}

func (rt *Router) handleRotateToken(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var body rotateRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	s, ok := rt.requireEditor(w, sessionID, body.EditorToken)
	if !ok {
		return
	}
	tok, rotated, err := rt.manager.RotateToken(s.ID, body.Role)
	if errors.Is(err, apperr.NotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	resp := map[string]any{"rotated": rotated}
	if rotated {
		resp["token"] = tok
	}
	writeJSON(w, http.StatusOK, resp)
}

type inviteRequest struct {
	EditorToken string     `json:"editor_token"`
	Role        token.Role `json:"role"`
	TTLSecs     int64      `json:"ttl,omitempty"`
}

func (rt *Router) handleInviteToken(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var body inviteRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Role != token.RoleEditor && body.Role != token.RoleViewer {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}
	s, ok := rt.requireEditor(w, sessionID, body.EditorToken)
	if !ok {
		return
	}

	ttl := time.Duration(body.TTLSecs) * time.Second
	if ttl < inviteTTLMin {
		ttl = inviteTTLMin
	}
	if ttl > inviteTTLMax {
		ttl = inviteTTLMax
	}

	tok, issued, err := rt.manager.IssueInviteToken(s.ID, body.Role, ttl)
	if errors.Is(err, apperr.NotFound) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	resp := map[string]any{"issued": issued}
	if issued {
		resp["token"] = tok
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireEditor resolves sessionID and checks editorToken authorizes the
// editor role, writing the appropriate error response (404 unknown session,
// 403 role/token mismatch) and returning ok=false on failure.
func (rt *Router) requireEditor(w http.ResponseWriter, sessionID, editorToken string) (*session.Session, bool) {
	s, ok := rt.manager.GetSession(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	if !s.VerifyToken(editorToken, token.RoleEditor) {
		http.Error(w, "invalid or insufficient token", http.StatusForbidden)
		return nil, false
	}
	return s, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "malformed body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
