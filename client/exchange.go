package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Exchange trades an authorization code for a token pair. verifier is the
// PKCE code verifier matching the challenge sent to the authorize endpoint;
// pass "" when the flow did not use PKCE.
func (c *Client) Exchange(ctx context.Context, code, redirectURI, verifier string) (*TokenPair, error) {
	metadata, err := c.metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuthorizationCode, err)
	}
	cfg := c.oauthConfig(metadata, redirectURI)
	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", verifier))
	}
	token, err := cfg.Exchange(c.httpContext(ctx), code, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAuthorizationCode, err)
	}
	return &TokenPair{Access: token.AccessToken, Refresh: token.RefreshToken}, nil
}

// AuthorizeOptions tune the constructed authorize URL.
type AuthorizeOptions struct {
	// Provider pre-selects an upstream identity provider at the issuer.
	Provider string
	// PKCE attaches an S256 code challenge and returns its verifier.
	PKCE bool
}

// Authorization is a constructed authorize URL together with the client-held
// secrets the eventual Exchange call will need.
type Authorization struct {
	URL      string
	State    string
	Verifier string
}

// AuthorizeURL builds the issuer's authorize endpoint URL for the given
// redirect URI and response type. The endpoint is resolved from cached
// issuer metadata; nothing is fetched from the authorize endpoint itself.
func (c *Client) AuthorizeURL(ctx context.Context, redirectURI, responseType string, opts *AuthorizeOptions) (*Authorization, error) {
	metadata, err := c.metadata(ctx)
	if err != nil {
		return nil, err
	}
	cfg := c.oauthConfig(metadata, redirectURI)
	ret := &Authorization{State: uuid.NewString()}
	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", responseType),
	}
	if opts != nil && opts.Provider != "" {
		params = append(params, oauth2.SetAuthURLParam("provider", opts.Provider))
	}
	if opts != nil && opts.PKCE {
		ret.Verifier = oauth2.GenerateVerifier()
		params = append(params, oauth2.S256ChallengeOption(ret.Verifier))
	}
	ret.URL = cfg.AuthCodeURL(ret.State, params...)
	return ret, nil
}
