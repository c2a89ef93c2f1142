package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// MethodS256 is the only supported code challenge method.
const MethodS256 = "S256"

const verifierLength = 64

// PKCE carries the challenge half of a proof key, stored with the
// authorization code and checked when the code is exchanged.
type PKCE struct {
	Challenge string `json:"challenge"`
	Method    string `json:"method"`
}

// Verify reports whether verifier hashes to the stored challenge.
func (p *PKCE) Verify(verifier string) bool {
	if p == nil || verifier == "" || p.Method != MethodS256 {
		return false
	}
	return p.Challenge == ChallengeS256(verifier)
}

// ChallengeS256 derives the S256 code challenge from a verifier.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GeneratePKCE returns a fresh random verifier together with its challenge.
// The verifier stays with the client; the challenge travels to the
// authorization endpoint.
func GeneratePKCE() (verifier string, challenge PKCE, err error) {
	buf := make([]byte, verifierLength)
	if _, err = rand.Read(buf); err != nil {
		return "", PKCE{}, fmt.Errorf("oauth: generate verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	return verifier, PKCE{Challenge: ChallengeS256(verifier), Method: MethodS256}, nil
}
