package session

import (
	"encoding/base64"
	"fmt"
	"time"
)

// SessionSchemaVersion is the PersistedSession schema this code writes.
// DocumentSchemaVersion is the document snapshot format version.
const (
	SessionSchemaVersion  = 1
	DocumentSchemaVersion = 1
)

// PersistedSession is the on-disk representation of one Session.
type PersistedSession struct {
	SchemaVersion         int      `json:"schema_version"`
	ID                    string   `json:"id"`
	EditorToken           string   `json:"editor_token"`
	ViewerToken           string   `json:"viewer_token"`
	TokenSecret           string   `json:"token_secret"` // base64-encoded
	TokenTTLSecs          int64    `json:"token_ttl_secs"`
	RevokedTokenIDs       []string `json:"revoked_token_ids"`
	AllowLegacyTokens     bool     `json:"allow_legacy_tokens"`
	DocumentSchemaVersion int      `json:"document_schema_version"`
	Document              string   `json:"document"`
	CreatedAt             int64    `json:"created_at"`
	LastActiveAt          int64    `json:"last_active_at"`
}

// ToPersisted captures s's durable state as of the call.
func (s *Session) ToPersisted() PersistedSession {
	s.mu.RLock()
	editor, viewer := s.editorToken, s.viewerToken
	s.mu.RUnlock()

	return PersistedSession{
		SchemaVersion:         SessionSchemaVersion,
		ID:                    s.ID,
		EditorToken:           editor,
		ViewerToken:           viewer,
		TokenSecret:           base64.StdEncoding.EncodeToString(s.codec.Secret()),
		TokenTTLSecs:          int64(s.tokenTTL / time.Second),
		RevokedTokenIDs:       s.revoked.Snapshot(),
		AllowLegacyTokens:     s.allowLegacy,
		DocumentSchemaVersion: DocumentSchemaVersion,
		Document:              s.Doc.Serialize(),
		CreatedAt:             s.createdAt,
		LastActiveAt:          s.LastActiveAt(),
	}
}

// FromPersisted reconstructs a live Session from its disk form. Unknown
// future schema_version values are rejected so the caller can skip the
// record. Older versions are upgraded in place; there is only one version
// today, so the upgrade is the identity transform.
func FromPersisted(p PersistedSession) (*Session, error) {
	if p.SchemaVersion > SessionSchemaVersion {
		return nil, fmt.Errorf("session: unknown schema_version %d", p.SchemaVersion)
	}
	secret, err := base64.StdEncoding.DecodeString(p.TokenSecret)
	if err != nil {
		return nil, fmt.Errorf("session: bad token_secret: %w", err)
	}

	s, err := New(p.ID, secret, time.Duration(p.TokenTTLSecs)*time.Second)
	if err != nil {
		return nil, err
	}
	s.editorToken = p.EditorToken
	s.viewerToken = p.ViewerToken
	s.allowLegacy = p.AllowLegacyTokens
	s.createdAt = p.CreatedAt
	s.lastActiveAt = p.LastActiveAt
	s.revoked.LoadFromPersisted(p.RevokedTokenIDs)

	if p.Document != "" {
		if err := s.Doc.Deserialize(p.Document); err != nil {
			return nil, fmt.Errorf("session: bad document snapshot: %w", err)
		}
	}
	return s, nil
}
