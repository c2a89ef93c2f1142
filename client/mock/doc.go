// Package mock runs an in-process authorization server for tests and demos.
//
// The server serves discovery metadata and a JWKS over httptest, mints
// RS256-signed access tokens carrying mode/type/properties claims, and backs
// its authorization codes and refresh tokens with a real oauth.TokenStore,
// including PKCE checks and refresh-token rotation at the token endpoint.
package mock
