package client

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoIssuer is returned by New when no issuer URL is configured and
	// none can be resolved from the environment.
	ErrNoIssuer = errors.New("client: no issuer configured")

	// ErrInvalidAuthorizationCode is returned when the token endpoint
	// rejects a code exchange.
	ErrInvalidAuthorizationCode = errors.New("invalid authorization code")

	// ErrInvalidRefreshToken is returned when the token endpoint rejects a
	// refresh, or the refresh call fails outright.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// ErrInvalidAccessToken is returned when signature or structural
	// verification fails for any reason other than a recoverable expiry.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// InvalidSubjectError reports a verified token whose payload failed subject
// validation, or whose mode claim is not "access".
type InvalidSubjectError struct {
	Issues []string
}

func (e *InvalidSubjectError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid subject"
	}
	return fmt.Sprintf("invalid subject: %s", strings.Join(e.Issues, "; "))
}

func invalidSubject(issues ...string) error {
	return &InvalidSubjectError{Issues: issues}
}
