package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRevoked map[string]bool

func (f fakeRevoked) Contains(id string) bool { return f[id] }

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	return c
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c := newCodec(t)
	tok, payload, err := c.Issue("sess-1", RoleEditor, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, payload.JTI)

	revoked := fakeRevoked{}
	assert.True(t, c.Verify(tok, "sess-1", RoleEditor, revoked))
	assert.True(t, c.Verify(tok, "sess-1", RoleViewer, revoked))
	assert.False(t, c.Verify(tok, "sess-2", RoleEditor, revoked))
}

func TestViewerTokenDoesNotSatisfyEditor(t *testing.T) {
	c := newCodec(t)
	tok, _, err := c.Issue("sess-1", RoleViewer, 0)
	require.NoError(t, err)

	revoked := fakeRevoked{}
	assert.True(t, c.Verify(tok, "sess-1", RoleViewer, revoked))
	assert.False(t, c.Verify(tok, "sess-1", RoleEditor, revoked))
}

func TestExpiry(t *testing.T) {
	c := newCodec(t)
	expired, err := c.encode(Payload{
		SID: "sess-1", Role: RoleEditor,
		Exp: time.Now().Add(-time.Minute).Unix(),
		JTI: "j1", Version: CurrentVersion,
	})
	require.NoError(t, err)
	assert.False(t, c.Verify(expired, "sess-1", RoleEditor, fakeRevoked{}))
}

func TestRevocation(t *testing.T) {
	c := newCodec(t)
	tok, payload, err := c.Issue("sess-1", RoleEditor, 0)
	require.NoError(t, err)

	revoked := fakeRevoked{payload.JTI: true}
	assert.False(t, c.Verify(tok, "sess-1", RoleEditor, revoked))
}

func TestMalformedTokensFailWithoutPanicking(t *testing.T) {
	c := newCodec(t)
	revoked := fakeRevoked{}
	cases := []string{
		"",
		"no-dot-at-all",
		"a.b.c",
		"not-base64!!!.alsonotbase64!!!",
		".",
		"abc.",
		".abc",
	}
	for _, tc := range cases {
		assert.False(t, c.Verify(tc, "sess-1", RoleViewer, revoked), "input=%q", tc)
	}
}

func TestSecretTooShortRejected(t *testing.T) {
	_, err := New([]byte("short"), time.Hour)
	assert.Error(t, err)
}
