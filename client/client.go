package client

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/authbridge/authbridge/client/issuer"
	"github.com/authbridge/authbridge/client/meta"
	"github.com/authbridge/authbridge/config"
)

// Client talks to a single issuer: it verifies that issuer's access tokens
// and drives code exchange and refresh against its token endpoint.
type Client struct {
	issuer     string
	clientID   string
	httpClient *http.Client
	cache      *issuer.Cache
	logger     *slog.Logger
}

// New builds a Client. The issuer comes from WithIssuer or, failing that,
// from the environment (AUTHBRIDGE_ISSUER); without either New returns
// ErrNoIssuer.
func New(options ...Option) (*Client, error) {
	ret := &Client{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range options {
		opt(ret)
	}
	if ret.issuer == "" || ret.clientID == "" {
		cfg, err := config.FromEnv()
		if err != nil {
			return nil, err
		}
		if ret.issuer == "" {
			ret.issuer = cfg.Issuer
		}
		if ret.clientID == "" {
			ret.clientID = cfg.ClientID
		}
	}
	if ret.issuer == "" {
		return nil, ErrNoIssuer
	}
	if ret.cache == nil {
		ret.cache = issuer.NewCache(issuer.WithHTTPClient(ret.httpClient))
	}
	return ret, nil
}

// Issuer returns the issuer URL this client is bound to.
func (c *Client) Issuer() string { return c.issuer }

// Cache exposes the issuer cache, e.g. to share it across clients.
func (c *Client) Cache() *issuer.Cache { return c.cache }

func (c *Client) metadata(ctx context.Context) (*meta.AuthorizationServerMetadata, error) {
	return c.cache.Metadata(ctx, c.issuer)
}

// oauthConfig builds the oauth2 configuration from cached issuer metadata.
func (c *Client) oauthConfig(metadata *meta.AuthorizationServerMetadata, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: redirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   metadata.AuthorizationEndpoint,
			TokenURL:  metadata.TokenEndpoint,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// httpContext routes oauth2's internal calls through the configured client.
func (c *Client) httpContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}
