package client

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// refreshSafetyMargin is how much validity an access token must retain for
// Refresh to skip the network round trip.
const refreshSafetyMargin = 30 * time.Second

// RefreshOptions carries optional inputs to Refresh.
type RefreshOptions struct {
	// AccessToken, when set, lets Refresh short-circuit: if the token still
	// has more than the safety margin of validity left, no call is made.
	AccessToken string
}

// Refresh trades refreshToken for a new token pair at the issuer's token
// endpoint. It returns (nil, nil) when opts.AccessToken proves a refresh is
// not needed yet.
func (c *Client) Refresh(ctx context.Context, refreshToken string, opts *RefreshOptions) (*TokenPair, error) {
	if opts != nil && opts.AccessToken != "" {
		expiry, err := unverifiedExpiry(opts.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
		}
		if time.Until(expiry) > refreshSafetyMargin {
			return nil, nil
		}
	}
	return c.refreshGrant(ctx, refreshToken)
}

// refreshGrant posts a refresh_token grant. Any endpoint rejection or
// transport failure folds into ErrInvalidRefreshToken.
func (c *Client) refreshGrant(ctx context.Context, refreshToken string) (*TokenPair, error) {
	metadata, err := c.metadata(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	cfg := c.oauthConfig(metadata, "")
	source := cfg.TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	pair := &TokenPair{Access: token.AccessToken, Refresh: token.RefreshToken}
	if pair.Refresh == "" {
		// issuer did not rotate, keep the one we have
		pair.Refresh = refreshToken
	}
	return pair, nil
}

// unverifiedExpiry decodes the exp claim without checking the signature. The
// result only gates an optimization, never a trust decision.
func unverifiedExpiry(accessToken string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, err
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, fmt.Errorf("access token has no usable exp claim: %v", err)
	}
	return expiry.Time, nil
}
