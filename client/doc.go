// Package client verifies access tokens issued by an authorization server
// and transparently refreshes them on expiry.
//
// A Client is bound to one issuer. Verify validates a bearer token against
// the issuer's cached key set, checks the embedded subject payload against a
// caller-supplied schema, and, when a refresh token is provided, performs at
// most one refresh-and-retry cycle for a token that failed only because it
// expired. Exchange and AuthorizeURL cover the authorization-code side of
// the flow.
//
// Issuer metadata and key sets are cached in a caller-owned issuer.Cache
// whose lifetime is tied to the Client (or to a shared cache passed in via
// WithIssuerCache), not to the process.
package client
