package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// VerifyOptions carries optional inputs to Verify.
type VerifyOptions struct {
	// RefreshToken, when set, allows one transparent refresh if the access
	// token fails verification only because it expired.
	RefreshToken string
}

// TokenPair is an access/refresh token pair as issued by the token endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// VerifyResult is a successful verification. Tokens is populated only when a
// refresh happened during the call; callers must persist the new pair, the
// one they passed in may already be invalid.
type VerifyResult struct {
	Subject Subject
	Tokens  *TokenPair
}

// Verify validates accessToken against the issuer's key set and the subject
// schema selected by the token's type claim.
//
// An access token that fails only because its exp claim has passed is
// refreshed through the token endpoint when opts.RefreshToken is present,
// and verification retries with the fresh token. The retry bound is explicit
// and fixed at one, so an issuer handing out already-expired tokens cannot
// cause a refresh loop.
func (c *Client) Verify(ctx context.Context, subjects SubjectSchemas, accessToken string, opts *VerifyOptions) (*VerifyResult, error) {
	keySet, err := c.cache.KeySet(ctx, c.issuer)
	if err != nil {
		return nil, fmt.Errorf("resolve issuer keys: %w", err)
	}
	access := accessToken
	var refresh string
	if opts != nil {
		refresh = opts.RefreshToken
	}
	var refreshed *TokenPair
	for attempt := 0; ; attempt++ {
		claims, err := c.parseAccessToken(keySet, access)
		switch {
		case err == nil:
		case errors.Is(err, jwt.ErrTokenExpired) && refresh != "" && attempt == 0:
			pair, err := c.refreshGrant(ctx, refresh)
			if err != nil {
				return nil, err
			}
			access, refresh = pair.Access, pair.Refresh
			refreshed = pair
			continue
		default:
			c.logger.Debug("access token verification failed", "issuer", c.issuer, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
		}
		subject, err := c.validateSubject(subjects, claims)
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Subject: *subject, Tokens: refreshed}, nil
	}
}

// parseAccessToken verifies signature, issuer and time claims.
func (c *Client) parseAccessToken(keySet jwk.Set, accessToken string) (jwt.MapClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithIssuer(c.issuer),
	)
	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (any, error) {
		kid, ok := token.Header["kid"].(string)
		if !ok {
			return nil, errors.New("token header missing kid")
		}
		key, found := keySet.LookupKeyID(kid)
		if !found {
			return nil, fmt.Errorf("key %q not found in issuer key set", kid)
		}
		var raw any
		if err := jwk.Export(key, &raw); err != nil {
			return nil, fmt.Errorf("export verification key %q: %w", kid, err)
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// validateSubject checks the mode claim and runs the schema matching the
// token's type claim over its properties.
func (c *Client) validateSubject(subjects SubjectSchemas, claims jwt.MapClaims) (*Subject, error) {
	if mode, _ := claims["mode"].(string); mode != "access" {
		return nil, invalidSubject(fmt.Sprintf("token mode %q is not an access token", mode))
	}
	subjectType, _ := claims["type"].(string)
	schema, ok := subjects[subjectType]
	if !ok {
		return nil, invalidSubject(fmt.Sprintf("no schema registered for subject type %q", subjectType))
	}
	properties, err := json.Marshal(claims["properties"])
	if err != nil {
		return nil, invalidSubject(fmt.Sprintf("encode properties: %v", err))
	}
	if err := schema.Validate(properties); err != nil {
		return nil, invalidSubject(err.Error())
	}
	return &Subject{Type: subjectType, Properties: properties}, nil
}
