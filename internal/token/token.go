// Package token implements signed, role-scoped session tokens: a versioned
// JSON payload, HMAC-SHA256 signed, encoded as base64url(payload) "."
// base64url(signature). Not a JWT: there is no header segment and no
// algorithm negotiation, so a JWT library has nothing to parse here.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is a token's access scope. Editor capability covers viewer checks too.
type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Satisfies reports whether a token issued for r authorizes an operation
// that requires the role `required`.
func (r Role) Satisfies(required Role) bool {
	if r == RoleEditor {
		return true
	}
	return r == required
}

// CurrentVersion is the payload schema version this codec issues.
const CurrentVersion = 1

// Payload is the stable, versioned token body.
type Payload struct {
	SID     string `json:"sid"`
	Role    Role   `json:"role"`
	Exp     int64  `json:"exp"`
	JTI     string `json:"jti"`
	Version int    `json:"version"`
}

// Codec issues and verifies signed tokens for one session's secret. A Codec
// is safe for concurrent use; the revocation set belongs to the session and
// is passed in per call, so Codec itself stays stateless. Legacy unsigned
// tokens have no signature to verify and are handled one layer up, in
// session.Session.VerifyToken, not here.
type Codec struct {
	secret     []byte
	defaultTTL time.Duration
}

// New constructs a Codec. secret must be at least 32 bytes; defaultTTL is
// used by Issue when no explicit ttl is given.
func New(secret []byte, defaultTTL time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token: secret must be at least 32 bytes, got %d", len(secret))
	}
	return &Codec{secret: secret, defaultTTL: defaultTTL}, nil
}

// Secret returns the codec's signing key, for callers that must persist it
// alongside a session. Not used for anything verification-related within
// this package.
func (c *Codec) Secret() []byte { return c.secret }

// Issue mints a fresh signed token for sid/role. A zero ttl uses the
// codec's default.
func (c *Codec) Issue(sid string, role Role, ttl time.Duration) (string, Payload, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	p := Payload{
		SID:     sid,
		Role:    role,
		Exp:     time.Now().Add(ttl).Unix(),
		JTI:     uuid.NewString(),
		Version: CurrentVersion,
	}
	tok, err := c.encode(p)
	if err != nil {
		return "", Payload{}, err
	}
	return tok, p, nil
}

func (c *Codec) encode(p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	payloadB64 := base64.RawURLEncoding.EncodeToString(body)
	sig := c.sign(payloadB64)
	sigB64 := base64.RawURLEncoding.EncodeToString(sig)
	return payloadB64 + "." + sigB64, nil
}

func (c *Codec) sign(payloadB64 string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payloadB64))
	return mac.Sum(nil)
}

// Revoked is anything that can answer "has this jti (or legacy token) been
// revoked". *session.RevocationSet satisfies this; kept as an interface so
// the codec has no import-cycle dependency on the session package.
type Revoked interface {
	Contains(id string) bool
}

// Verify reports whether tok authorizes `required` against sid, given the
// current revocation set. All failure reasons collapse to false; callers at
// the wire boundary must not learn why a token was rejected.
func (c *Codec) Verify(tok string, sid string, required Role, revoked Revoked) bool {
	payload, ok := c.verifyStructurally(tok)
	if !ok {
		return false
	}
	if payload.SID != sid {
		return false
	}
	if payload.Exp <= time.Now().Unix() {
		return false
	}
	if revoked != nil && revoked.Contains(payload.JTI) {
		return false
	}
	return payload.Role.Satisfies(required)
}

// verifyStructurally checks the signature and decodes the payload without
// checking sid/exp/revocation; malformed input (extra separators, bad
// base64, bad JSON) fails without panicking.
func (c *Codec) verifyStructurally(tok string) (Payload, bool) {
	dot := -1
	for i := 0; i < len(tok); i++ {
		if tok[i] == '.' {
			if dot != -1 {
				return Payload{}, false // more than one separator
			}
			dot = i
		}
	}
	if dot <= 0 || dot == len(tok)-1 {
		return Payload{}, false
	}
	payloadB64, sigB64 := tok[:dot], tok[dot+1:]

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return Payload{}, false
	}
	expected := c.sign(payloadB64)
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return Payload{}, false
	}

	body, err := base64.RawURLEncoding.DecodeString(payloadB64)
	if err != nil {
		return Payload{}, false
	}
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, false
	}
	return p, true
}

// RevocationID extracts the jti a Revoke call should record for a signed
// token. Legacy opaque tokens are revoked under "legacy:"+token by the
// session layer directly, since they carry no structure to parse.
func (c *Codec) RevocationID(tok string) (string, bool) {
	p, ok := c.verifyStructurally(tok)
	if !ok {
		return "", false
	}
	return p.JTI, true
}
