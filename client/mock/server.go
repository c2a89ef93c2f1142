package mock

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/authbridge/authbridge/client/meta"
	"github.com/authbridge/authbridge/oauth"
	"github.com/authbridge/authbridge/store"
)

const rsaKeyBits = 2048

// AuthorizationServer is an in-process issuer.
type AuthorizationServer struct {
	Issuer     string
	ClientID   string
	PrivateKey *rsa.PrivateKey
	KeyID      string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CodeTTL    time.Duration

	// Subject issued by the authorize endpoint's auto-approval.
	SubjectType       string
	SubjectProperties map[string]any

	tokens     *oauth.TokenStore
	server     *httptest.Server
	tokenCalls atomic.Int64
	jwksCalls  atomic.Int64
	metaCalls  atomic.Int64
}

// Option configures the mock server.
type Option func(*AuthorizationServer)

// WithClientID sets the single client the server accepts.
func WithClientID(clientID string) Option {
	return func(s *AuthorizationServer) { s.ClientID = clientID }
}

// WithTokenStore backs the server with an existing credential store.
func WithTokenStore(tokens *oauth.TokenStore) Option {
	return func(s *AuthorizationServer) { s.tokens = tokens }
}

// WithAccessTTL sets the lifetime of minted access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *AuthorizationServer) { s.AccessTTL = ttl }
}

// NewAuthorizationServer generates a signing key and starts the server.
func NewAuthorizationServer(options ...Option) (*AuthorizationServer, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("mock: generate signing key: %w", err)
	}
	ret := &AuthorizationServer{
		ClientID:          "mock-client",
		PrivateKey:        key,
		KeyID:             uuid.NewString(),
		AccessTTL:         time.Hour,
		RefreshTTL:        24 * time.Hour,
		CodeTTL:           10 * time.Minute,
		SubjectType:       "user",
		SubjectProperties: map[string]any{"id": "mock-user"},
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.tokens == nil {
		ret.tokens = oauth.NewTokenStore(store.NewMemoryStore())
	}
	mux := http.NewServeMux()
	mux.HandleFunc(meta.WellKnownPath, ret.metadataHandler)
	mux.HandleFunc("/jwks", ret.jwksHandler)
	mux.HandleFunc("/authorize", ret.authorizeHandler)
	mux.HandleFunc("/token", ret.tokenHandler)
	ret.server = httptest.NewServer(mux)
	ret.Issuer = ret.server.URL
	return ret, nil
}

// Close shuts the server down.
func (s *AuthorizationServer) Close() {
	s.server.Close()
}

// Tokens exposes the backing credential store.
func (s *AuthorizationServer) Tokens() *oauth.TokenStore { return s.tokens }

// TokenEndpointCalls reports how many requests the token endpoint served.
func (s *AuthorizationServer) TokenEndpointCalls() int { return int(s.tokenCalls.Load()) }

// JWKSCalls reports how many times the key set was fetched.
func (s *AuthorizationServer) JWKSCalls() int { return int(s.jwksCalls.Load()) }

// MetadataCalls reports how many times discovery metadata was fetched.
func (s *AuthorizationServer) MetadataCalls() int { return int(s.metaCalls.Load()) }

func (s *AuthorizationServer) metadataHandler(w http.ResponseWriter, _ *http.Request) {
	s.metaCalls.Add(1)
	metadata := meta.AuthorizationServerMetadata{
		Issuer:                s.Issuer,
		AuthorizationEndpoint: s.Issuer + "/authorize",
		TokenEndpoint:         s.Issuer + "/token",
		JSONWebKeySetURI:      s.Issuer + "/jwks",
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(metadata)
}

func (s *AuthorizationServer) jwksHandler(w http.ResponseWriter, _ *http.Request) {
	s.jwksCalls.Add(1)
	key, err := jwk.Import(s.PrivateKey.Public())
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	_ = key.Set(jwk.KeyIDKey, s.KeyID)
	_ = key.Set(jwk.KeyUsageKey, "sig")
	_ = key.Set(jwk.AlgorithmKey, jwa.RS256())
	set := jwk.NewSet()
	if err := set.AddKey(key); err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(set)
}

// authorizeHandler auto-approves the configured subject and redirects back
// with a fresh code.
func (s *AuthorizationServer) authorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	redirectURI := query.Get("redirect_uri")
	if query.Get("client_id") != s.ClientID || redirectURI == "" {
		http.Error(w, "invalid_request", http.StatusBadRequest)
		return
	}
	var pkce *oauth.PKCE
	if challenge := query.Get("code_challenge"); challenge != "" {
		pkce = &oauth.PKCE{Challenge: challenge, Method: query.Get("code_challenge_method")}
	}
	payload, _ := json.Marshal(s.SubjectProperties)
	code, err := s.IssueCode(oauth.Grant{Type: s.SubjectType, Payload: payload}, s.ClientID, redirectURI, pkce)
	if err != nil {
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	location, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid_request", http.StatusBadRequest)
		return
	}
	values := location.Query()
	values.Set("code", code)
	if state := query.Get("state"); state != "" {
		values.Set("state", state)
	}
	location.RawQuery = values.Encode()
	http.Redirect(w, r, location.String(), http.StatusFound)
}

// IssueCode mints an authorization code bound to the given grant.
func (s *AuthorizationServer) IssueCode(grant oauth.Grant, clientID, redirectURI string, pkce *oauth.PKCE) (string, error) {
	code := uuid.NewString()
	err := s.tokens.SetAuthorizationCode(code, oauth.AuthorizationCode{
		Grant:       grant,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		PKCE:        pkce,
	}, s.CodeTTL)
	if err != nil {
		return "", err
	}
	return code, nil
}
