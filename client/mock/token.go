package mock

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/authbridge/authbridge/oauth"
)

// Issue mints a token pair for the given grant without going through the
// authorize endpoint. A negative accessTTL yields an already-expired access
// token, which is how tests exercise the refresh path.
func (s *AuthorizationServer) Issue(grant oauth.Grant, accessTTL time.Duration) (access, refresh string, err error) {
	access, err = s.signAccessToken(grant, accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.issueRefreshToken(grant)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// signAccessToken signs an RS256 access token with mode/type/properties claims.
func (s *AuthorizationServer) signAccessToken(grant oauth.Grant, ttl time.Duration) (string, error) {
	var properties any
	if len(grant.Payload) > 0 {
		if err := json.Unmarshal(grant.Payload, &properties); err != nil {
			return "", fmt.Errorf("mock: decode grant payload: %w", err)
		}
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":        s.Issuer,
		"sub":        grant.Type,
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
		"mode":       "access",
		"type":       grant.Type,
		"properties": properties,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.KeyID
	return token.SignedString(s.PrivateKey)
}

// issueRefreshToken stores a refresh token under the grant's subject. The
// wire form carries the subject so the token endpoint can locate it.
func (s *AuthorizationServer) issueRefreshToken(grant oauth.Grant) (string, error) {
	token := uuid.NewString()
	err := s.tokens.SetRefreshToken(grant.Type, token, oauth.RefreshToken{
		Grant:    grant,
		ClientID: s.ClientID,
	}, s.RefreshTTL)
	if err != nil {
		return "", err
	}
	return grant.Type + ":" + token, nil
}

func (s *AuthorizationServer) tokenHandler(w http.ResponseWriter, r *http.Request) {
	s.tokenCalls.Add(1)
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		tokenError(w, "invalid_request")
		return
	}
	switch r.FormValue("grant_type") {
	case "authorization_code":
		s.exchangeCode(w, r)
	case "refresh_token":
		s.refreshGrant(w, r)
	default:
		tokenError(w, "unsupported_grant_type")
	}
}

func (s *AuthorizationServer) exchangeCode(w http.ResponseWriter, r *http.Request) {
	code, ok, err := s.tokens.GetAuthorizationCode(r.FormValue("code"))
	if err != nil || !ok {
		tokenError(w, "invalid_grant")
		return
	}
	if code.ClientID != r.FormValue("client_id") || code.RedirectURI != r.FormValue("redirect_uri") {
		tokenError(w, "invalid_grant")
		return
	}
	if code.PKCE != nil && !code.PKCE.Verify(r.FormValue("code_verifier")) {
		tokenError(w, "invalid_grant")
		return
	}
	// the code is single use, consume it before minting tokens
	if err := s.tokens.InvalidateAuthorizationCode(r.FormValue("code")); err != nil {
		tokenError(w, "server_error")
		return
	}
	s.respondTokens(w, code.Grant)
}

func (s *AuthorizationServer) refreshGrant(w http.ResponseWriter, r *http.Request) {
	subject, token, ok := strings.Cut(r.FormValue("refresh_token"), ":")
	if !ok {
		tokenError(w, "invalid_grant")
		return
	}
	stored, ok, err := s.tokens.GetRefreshToken(subject, token)
	if err != nil || !ok {
		tokenError(w, "invalid_grant")
		return
	}
	// rotate: the presented token is spent
	if err := s.tokens.InvalidateRefreshToken(subject, token); err != nil {
		tokenError(w, "server_error")
		return
	}
	s.respondTokens(w, stored.Grant)
}

func (s *AuthorizationServer) respondTokens(w http.ResponseWriter, grant oauth.Grant) {
	access, err := s.signAccessToken(grant, s.AccessTTL)
	if err != nil {
		tokenError(w, "server_error")
		return
	}
	refresh, err := s.issueRefreshToken(grant)
	if err != nil {
		tokenError(w, "server_error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "Bearer",
		"expires_in":    int(s.AccessTTL / time.Second),
	})
}

func tokenError(w http.ResponseWriter, code string) {
	status := http.StatusBadRequest
	if code == "server_error" {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
