package oauth

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/authbridge/authbridge/store"
)

const (
	codeNamespace    = "oauth:code"
	refreshNamespace = "oauth:refresh"
)

// Grant carries the authenticated grant that produced a credential: the
// subject type and its schema-validated payload.
type Grant struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AuthorizationCode is the state bound to a pending authorization code.
type AuthorizationCode struct {
	Grant       Grant  `json:"grant"`
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
	PKCE        *PKCE  `json:"pkce,omitempty"`
}

// RefreshToken is the state bound to one issued refresh token. A subject may
// hold several at once, one per active session or device.
type RefreshToken struct {
	Grant    Grant  `json:"grant"`
	ClientID string `json:"client_id"`
}

// TokenStore namespaces OAuth credentials over a generic ordered store.
type TokenStore struct {
	store store.Store
}

// NewTokenStore wraps the given store with the OAuth key shapes.
func NewTokenStore(s store.Store) *TokenStore {
	return &TokenStore{store: s}
}

// SetAuthorizationCode stores code state that expires after ttl.
func (t *TokenStore) SetAuthorizationCode(code string, value AuthorizationCode, ttl time.Duration) error {
	expiry := time.Now().Add(ttl)
	return t.store.Set([]string{codeNamespace, code}, value, &expiry)
}

// GetAuthorizationCode looks up a pending code. The code is not consumed.
func (t *TokenStore) GetAuthorizationCode(code string) (*AuthorizationCode, bool, error) {
	raw, ok, err := t.store.Get([]string{codeNamespace, code})
	if err != nil || !ok {
		return nil, false, err
	}
	var value AuthorizationCode
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("oauth: decode authorization code: %w", err)
	}
	return &value, true, nil
}

// InvalidateAuthorizationCode removes a code. Absent codes are a no-op.
func (t *TokenStore) InvalidateAuthorizationCode(code string) error {
	return t.store.Remove([]string{codeNamespace, code})
}

// SetRefreshToken stores refresh-token state under (subject, token).
func (t *TokenStore) SetRefreshToken(subject, token string, value RefreshToken, ttl time.Duration) error {
	expiry := time.Now().Add(ttl)
	return t.store.Set([]string{refreshNamespace, subject, token}, value, &expiry)
}

// GetRefreshToken looks up one refresh token of a subject.
func (t *TokenStore) GetRefreshToken(subject, token string) (*RefreshToken, bool, error) {
	raw, ok, err := t.store.Get([]string{refreshNamespace, subject, token})
	if err != nil || !ok {
		return nil, false, err
	}
	var value RefreshToken
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("oauth: decode refresh token: %w", err)
	}
	return &value, true, nil
}

// InvalidateRefreshToken removes a single refresh token.
func (t *TokenStore) InvalidateRefreshToken(subject, token string) error {
	return t.store.Remove([]string{refreshNamespace, subject, token})
}

// InvalidateSubject removes every refresh token of a subject. The scan and
// removals are not atomic: a failure partway through leaves some tokens
// removed and the rest intact. Re-invoking is safe, removing an already
// removed key is a no-op.
func (t *TokenStore) InvalidateSubject(subject string) error {
	entries, err := t.store.Scan([]string{refreshNamespace, subject})
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := t.store.Remove(entry.Key); err != nil {
			return err
		}
	}
	return nil
}
