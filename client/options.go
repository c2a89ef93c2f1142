package client

import (
	"log/slog"
	"net/http"

	"github.com/authbridge/authbridge/client/issuer"
)

// Option configures a Client.
type Option func(*Client)

// WithIssuer sets the issuer URL, overriding the environment default.
func WithIssuer(issuerURL string) Option {
	return func(c *Client) {
		c.issuer = issuerURL
	}
}

// WithClientID sets the OAuth client identifier.
func WithClientID(clientID string) Option {
	return func(c *Client) {
		c.clientID = clientID
	}
}

// WithHTTPClient sets the HTTP client for all issuer and token-endpoint
// traffic.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithIssuerCache shares a caller-owned issuer cache, e.g. between several
// clients bound to the same issuer.
func WithIssuerCache(cache *issuer.Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the logger used for folded unexpected verification faults.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}
