// Package issuer caches per-issuer discovery metadata and verification key
// sets. A Cache is an explicit, caller-owned object: its entries live as long
// as the Cache itself, with no TTL or eviction. Operators that rotate issuer
// keys construct a fresh Cache (or a fresh client).
package issuer

import (
	"context"
	"net/http"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"golang.org/x/sync/singleflight"

	"github.com/authbridge/authbridge/client/meta"
	"github.com/authbridge/authbridge/internal/collection"
)

// Cache resolves and memoizes issuer metadata and JWKS material. Concurrent
// first lookups for the same issuer are collapsed into a single fetch.
type Cache struct {
	httpClient *http.Client
	metadata   *collection.SyncMap[string, *meta.AuthorizationServerMetadata]
	keys       *collection.SyncMap[string, jwk.Set]
	group      singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the HTTP client used for discovery and JWKS fetches.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Cache) {
		c.httpClient = httpClient
	}
}

// NewCache returns an empty cache.
func NewCache(options ...Option) *Cache {
	ret := &Cache{
		httpClient: http.DefaultClient,
		metadata:   collection.NewSyncMap[string, *meta.AuthorizationServerMetadata](),
		keys:       collection.NewSyncMap[string, jwk.Set](),
	}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Metadata returns the discovery document for issuer, fetching it on first use.
func (c *Cache) Metadata(ctx context.Context, issuerURL string) (*meta.AuthorizationServerMetadata, error) {
	if cached, ok := c.metadata.Get(issuerURL); ok {
		return cached, nil
	}
	result, err, _ := c.group.Do("metadata:"+issuerURL, func() (any, error) {
		if cached, ok := c.metadata.Get(issuerURL); ok {
			return cached, nil
		}
		fetched, err := meta.Fetch(ctx, issuerURL, c.httpClient)
		if err != nil {
			return nil, err
		}
		c.metadata.Put(issuerURL, fetched)
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*meta.AuthorizationServerMetadata), nil
}

// KeySet returns the verification key set for issuer, resolving the JWKS URI
// through Metadata on first use.
func (c *Cache) KeySet(ctx context.Context, issuerURL string) (jwk.Set, error) {
	if cached, ok := c.keys.Get(issuerURL); ok {
		return cached, nil
	}
	result, err, _ := c.group.Do("jwks:"+issuerURL, func() (any, error) {
		if cached, ok := c.keys.Get(issuerURL); ok {
			return cached, nil
		}
		metadata, err := c.Metadata(ctx, issuerURL)
		if err != nil {
			return nil, err
		}
		set, err := jwk.Fetch(ctx, metadata.JSONWebKeySetURI, jwk.WithHTTPClient(c.httpClient))
		if err != nil {
			return nil, err
		}
		c.keys.Put(issuerURL, set)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(jwk.Set), nil
}
