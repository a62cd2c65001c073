package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-khushal/rustboard/internal/session"
	"github.com/a-khushal/rustboard/internal/token"
)

func newTestRouter(t *testing.T) (*Router, *session.Manager) {
	t.Helper()
	mgr := session.NewManager(t.TempDir()+"/sessions.json", time.Hour, time.Hour, nil, nil)
	return New(mgr, nil, nil, nil, noopMetrics{}), mgr
}

type noopMetrics struct{}

func (noopMetrics) RateLimited()      {}
func (noopMetrics) WSConnection()     {}
func (noopMetrics) WSDisconnection()  {}
func (noopMetrics) WSError()          {}
func (noopMetrics) OperationApplied() {}
func (noopMetrics) FullSyncSent()     {}

func postJSON(t *testing.T, rt *Router, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	return rec
}

func TestCreateSessionReturnsTokensAndURLs(t *testing.T) {
	rt, _ := newTestRouter(t)
	rec := postJSON(t, rt, "/api/sessions/", map[string]string{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp createSessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.SessionID)
	assert.NotEmpty(t, resp.EditorToken)
	assert.NotEmpty(t, resp.ViewerToken)
	assert.Contains(t, resp.EditorURL, resp.SessionID)
}

func TestGetSessionDoesNotLeakExistenceOnBadToken(t *testing.T) {
	rt, mgr := newTestRouter(t)
	s, err := mgr.CreateNewSession()
	require.NoError(t, err)

	reqOK := httptest.NewRequest(http.MethodGet, "/api/sessions/"+s.ID+"?token="+s.EditorToken(), nil)
	reqOK.RemoteAddr = "10.0.0.2:1"
	recOK := httptest.NewRecorder()
	rt.ServeHTTP(recOK, reqOK)
	var ok getSessionResponse
	require.NoError(t, json.Unmarshal(recOK.Body.Bytes(), &ok))
	assert.True(t, ok.Exists)
	assert.True(t, ok.TokenValid)

	reqBad := httptest.NewRequest(http.MethodGet, "/api/sessions/"+s.ID+"?token=garbage", nil)
	reqBad.RemoteAddr = "10.0.0.2:2"
	recBad := httptest.NewRecorder()
	rt.ServeHTTP(recBad, reqBad)
	var bad getSessionResponse
	require.NoError(t, json.Unmarshal(recBad.Body.Bytes(), &bad))
	assert.True(t, bad.Exists)
	assert.False(t, bad.TokenValid)

	reqMissing := httptest.NewRequest(http.MethodGet, "/api/sessions/does-not-exist?token=garbage", nil)
	reqMissing.RemoteAddr = "10.0.0.2:3"
	recMissing := httptest.NewRecorder()
	rt.ServeHTTP(recMissing, reqMissing)
	var missing getSessionResponse
	require.NoError(t, json.Unmarshal(recMissing.Body.Bytes(), &missing))
	assert.False(t, missing.Exists)
	assert.False(t, missing.TokenValid)
	assert.Equal(t, recBad.Code, recMissing.Code) // identical status/shape either way
}

func TestRevokeRequiresEditorToken(t *testing.T) {
	rt, mgr := newTestRouter(t)
	s, err := mgr.CreateNewSession()
	require.NoError(t, err)

	rec := postJSON(t, rt, "/api/sessions/"+s.ID+"/revoke", revokeRequest{
		EditorToken:   "wrong",
		TokenToRevoke: s.ViewerToken(),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec2 := postJSON(t, rt, "/api/sessions/"+s.ID+"/revoke", revokeRequest{
		EditorToken:   s.EditorToken(),
		TokenToRevoke: s.ViewerToken(),
	})
	assert.Equal(t, http.StatusOK, rec2.Code)
	var resp map[string]bool
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	assert.True(t, resp["revoked"])
	assert.False(t, s.VerifyToken(s.ViewerToken(), token.RoleViewer))
}

func TestUnknownSessionRevokeIs404(t *testing.T) {
	rt, _ := newTestRouter(t)
	rec := postJSON(t, rt, "/api/sessions/nope/revoke", revokeRequest{EditorToken: "x", TokenToRevoke: "y"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	rt, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimiterRejectsBurstAboveCapacity(t *testing.T) {
	rt, mgr := newTestRouter(t)
	s, err := mgr.CreateNewSession()
	require.NoError(t, err)

	var sawLimited bool
	for i := 0; i < 40; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+s.ID, nil)
		req.RemoteAddr = "10.1.1.1:9999"
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			sawLimited = true
			break
		}
	}
	assert.True(t, sawLimited, "expected at least one request to be rate limited")
}
