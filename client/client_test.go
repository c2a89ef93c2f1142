package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authbridge/authbridge/client"
	"github.com/authbridge/authbridge/client/mock"
	"github.com/authbridge/authbridge/oauth"
)

type userProperties struct {
	ID string `json:"id"`
}

func userSchema() client.SubjectSchemas {
	return client.SubjectSchemas{
		"user": client.SchemaFunc(func(properties json.RawMessage) error {
			var props userProperties
			if err := json.Unmarshal(properties, &props); err != nil {
				return err
			}
			if props.ID == "" {
				return errors.New("property id is required")
			}
			return nil
		}),
	}
}

func userGrant(id string) oauth.Grant {
	payload, _ := json.Marshal(userProperties{ID: id})
	return oauth.Grant{Type: "user", Payload: payload}
}

func newTestSetup(t *testing.T) (*mock.AuthorizationServer, *client.Client) {
	t.Helper()
	server, err := mock.NewAuthorizationServer()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	verifier, err := client.New(
		client.WithIssuer(server.Issuer),
		client.WithClientID(server.ClientID),
	)
	require.NoError(t, err)
	return server, verifier
}

func TestVerifyValidToken(t *testing.T) {
	server, verifier := newTestSetup(t)
	access, _, err := server.Issue(userGrant("alice"), time.Hour)
	require.NoError(t, err)

	result, err := verifier.Verify(context.Background(), userSchema(), access, nil)
	require.NoError(t, err)
	assert.Equal(t, "user", result.Subject.Type)
	assert.Nil(t, result.Tokens, "no refresh happened, tokens must stay nil")

	var props userProperties
	require.NoError(t, json.Unmarshal(result.Subject.Properties, &props))
	assert.Equal(t, "alice", props.ID)
}

func TestVerifyExpiredWithRefresh(t *testing.T) {
	server, verifier := newTestSetup(t)
	access, refresh, err := server.Issue(userGrant("alice"), -time.Minute)
	require.NoError(t, err)

	result, err := verifier.Verify(context.Background(), userSchema(), access,
		&client.VerifyOptions{RefreshToken: refresh})
	require.NoError(t, err)
	require.NotNil(t, result.Tokens, "a refresh must surface the new pair")
	assert.NotEqual(t, access, result.Tokens.Access)
	assert.NotEqual(t, refresh, result.Tokens.Refresh, "refresh tokens rotate")
	assert.Equal(t, 1, server.TokenEndpointCalls(), "exactly one refresh call")

	// the rotated pair verifies cleanly without another refresh
	again, err := verifier.Verify(context.Background(), userSchema(), result.Tokens.Access, nil)
	require.NoError(t, err)
	assert.Nil(t, again.Tokens)
}

func TestVerifyExpiredWithoutRefresh(t *testing.T) {
	server, verifier := newTestSetup(t)
	access, _, err := server.Issue(userGrant("alice"), -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), userSchema(), access, nil)
	assert.ErrorIs(t, err, client.ErrInvalidAccessToken)
	assert.Equal(t, 0, server.TokenEndpointCalls())
}

func TestVerifyRefreshesAtMostOnce(t *testing.T) {
	server, verifier := newTestSetup(t)
	// issuer misbehaves and hands out already-expired access tokens
	server.AccessTTL = -time.Minute
	access, refresh, err := server.Issue(userGrant("alice"), -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), userSchema(), access,
		&client.VerifyOptions{RefreshToken: refresh})
	assert.ErrorIs(t, err, client.ErrInvalidAccessToken)
	assert.Equal(t, 1, server.TokenEndpointCalls(), "the retry bound is one")
}

func TestVerifyGarbageToken(t *testing.T) {
	_, verifier := newTestSetup(t)
	_, err := verifier.Verify(context.Background(), userSchema(), "not-a-jwt", nil)
	assert.ErrorIs(t, err, client.ErrInvalidAccessToken)
}

func TestVerifyRejectsWrongMode(t *testing.T) {
	server, verifier := newTestSetup(t)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":        server.Issuer,
		"exp":        now.Add(time.Hour).Unix(),
		"iat":        now.Unix(),
		"mode":       "refresh",
		"type":       "user",
		"properties": map[string]any{"id": "alice"},
	})
	token.Header["kid"] = server.KeyID
	signed, err := token.SignedString(server.PrivateKey)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), userSchema(), signed, nil)
	var subjectErr *client.InvalidSubjectError
	require.ErrorAs(t, err, &subjectErr)
}

func TestVerifyRejectsUnknownSubjectType(t *testing.T) {
	server, verifier := newTestSetup(t)
	access, _, err := server.Issue(oauth.Grant{Type: "service"}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), userSchema(), access, nil)
	var subjectErr *client.InvalidSubjectError
	require.ErrorAs(t, err, &subjectErr)
}

func TestVerifyReportsSchemaIssues(t *testing.T) {
	server, verifier := newTestSetup(t)
	payload, _ := json.Marshal(userProperties{}) // missing id
	access, _, err := server.Issue(oauth.Grant{Type: "user", Payload: payload}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), userSchema(), access, nil)
	var subjectErr *client.InvalidSubjectError
	require.ErrorAs(t, err, &subjectErr)
	require.Len(t, subjectErr.Issues, 1)
	assert.Contains(t, subjectErr.Issues[0], "id is required")
}

func TestVerifyCachesIssuerMaterial(t *testing.T) {
	server, verifier := newTestSetup(t)
	access, _, err := server.Issue(userGrant("alice"), time.Hour)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := verifier.Verify(context.Background(), userSchema(), access, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, server.JWKSCalls())
	assert.Equal(t, 1, server.MetadataCalls())
}

func TestRefreshShortCircuitsOnValidAccess(t *testing.T) {
	server, verifier := newTestSetup(t)
	access, refresh, err := server.Issue(userGrant("alice"), time.Minute)
	require.NoError(t, err)

	pair, err := verifier.Refresh(context.Background(), refresh,
		&client.RefreshOptions{AccessToken: access})
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, 0, server.TokenEndpointCalls(), "60s of validity needs no network call")
}

func TestRefreshWithinSafetyMargin(t *testing.T) {
	server, verifier := newTestSetup(t)
	access, refresh, err := server.Issue(userGrant("alice"), 10*time.Second)
	require.NoError(t, err)

	pair, err := verifier.Refresh(context.Background(), refresh,
		&client.RefreshOptions{AccessToken: access})
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.Access)
	assert.Equal(t, 1, server.TokenEndpointCalls())
}

func TestRefreshRejected(t *testing.T) {
	_, verifier := newTestSetup(t)

	_, err := verifier.Refresh(context.Background(), "user:unknown", nil)
	assert.ErrorIs(t, err, client.ErrInvalidRefreshToken)
}

func TestExchangeWithPKCE(t *testing.T) {
	server, verifier := newTestSetup(t)
	pkceVerifier, challenge, err := oauth.GeneratePKCE()
	require.NoError(t, err)

	redirectURI := "http://localhost/callback"
	code, err := server.IssueCode(userGrant("alice"), server.ClientID, redirectURI, &challenge)
	require.NoError(t, err)

	pair, err := verifier.Exchange(context.Background(), code, redirectURI, pkceVerifier)
	require.NoError(t, err)
	require.NotNil(t, pair)

	result, err := verifier.Verify(context.Background(), userSchema(), pair.Access, nil)
	require.NoError(t, err)
	assert.Equal(t, "user", result.Subject.Type)

	// the code was consumed by the exchange
	_, err = verifier.Exchange(context.Background(), code, redirectURI, pkceVerifier)
	assert.ErrorIs(t, err, client.ErrInvalidAuthorizationCode)
}

func TestExchangeWrongVerifier(t *testing.T) {
	server, verifier := newTestSetup(t)
	_, challenge, err := oauth.GeneratePKCE()
	require.NoError(t, err)

	redirectURI := "http://localhost/callback"
	code, err := server.IssueCode(userGrant("alice"), server.ClientID, redirectURI, &challenge)
	require.NoError(t, err)

	_, err = verifier.Exchange(context.Background(), code, redirectURI, "wrong-verifier")
	assert.ErrorIs(t, err, client.ErrInvalidAuthorizationCode)
}

func TestExchangeUnknownCode(t *testing.T) {
	_, verifier := newTestSetup(t)
	_, err := verifier.Exchange(context.Background(), "nope", "http://localhost/callback", "")
	assert.ErrorIs(t, err, client.ErrInvalidAuthorizationCode)
}

func TestAuthorizeURL(t *testing.T) {
	server, verifier := newTestSetup(t)

	authorization, err := verifier.AuthorizeURL(context.Background(),
		"http://localhost/callback", "code",
		&client.AuthorizeOptions{PKCE: true, Provider: "github"})
	require.NoError(t, err)
	require.NotEmpty(t, authorization.Verifier)

	parsed, err := url.Parse(authorization.URL)
	require.NoError(t, err)
	assert.Equal(t, server.Issuer+"/authorize", fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path))
	query := parsed.Query()
	assert.Equal(t, server.ClientID, query.Get("client_id"))
	assert.Equal(t, "http://localhost/callback", query.Get("redirect_uri"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "github", query.Get("provider"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.NotEmpty(t, query.Get("code_challenge"))
	assert.Equal(t, authorization.State, query.Get("state"))
}

// Full round trip through the authorize endpoint's redirect.
func TestAuthorizationCodeFlowEndToEnd(t *testing.T) {
	server, verifier := newTestSetup(t)

	redirectURI := "http://localhost/callback"
	authorization, err := verifier.AuthorizeURL(context.Background(), redirectURI, "code",
		&client.AuthorizeOptions{PKCE: true})
	require.NoError(t, err)

	httpClient := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	resp, err := httpClient.Get(authorization.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, authorization.State, location.Query().Get("state"))

	pair, err := verifier.Exchange(context.Background(), code, redirectURI, authorization.Verifier)
	require.NoError(t, err)

	result, err := verifier.Verify(context.Background(), userSchema(), pair.Access, nil)
	require.NoError(t, err)
	assert.Equal(t, server.SubjectType, result.Subject.Type)
}

func TestNewWithoutIssuer(t *testing.T) {
	t.Setenv("AUTHBRIDGE_ISSUER", "")
	_, err := client.New()
	assert.ErrorIs(t, err, client.ErrNoIssuer)
}

func TestNewIssuerFromEnv(t *testing.T) {
	t.Setenv("AUTHBRIDGE_ISSUER", "https://issuer.example")
	t.Setenv("AUTHBRIDGE_CLIENT_ID", "env-client")

	verifier, err := client.New()
	require.NoError(t, err)
	assert.Equal(t, "https://issuer.example", verifier.Issuer())
}
