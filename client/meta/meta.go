// Package meta holds the authorization-server discovery document and its
// fetch helper.
package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// WellKnownPath is the discovery location relative to the issuer URL.
const WellKnownPath = "/.well-known/oauth-authorization-server"

// AuthorizationServerMetadata is the subset of the discovery document the
// client consumes.
type AuthorizationServerMetadata struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JSONWebKeySetURI      string `json:"jwks_uri"`
}

// Fetch retrieves the discovery document for issuer.
func Fetch(ctx context.Context, issuer string, httpClient *http.Client) (*AuthorizationServerMetadata, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	url := strings.TrimSuffix(issuer, "/") + WellKnownPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch authorization server metadata: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch authorization server metadata: unexpected status %v from %v", resp.StatusCode, url)
	}
	metadata := &AuthorizationServerMetadata{}
	if err := json.NewDecoder(resp.Body).Decode(metadata); err != nil {
		return nil, fmt.Errorf("decode authorization server metadata: %w", err)
	}
	return metadata, nil
}
