package whoop

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// unreservedChars is the RFC 3986 unreserved alphabet allowed in PKCE code
// verifiers.
const unreservedChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

const (
	// codeVerifierLength is the length of the generated code verifier
	// (the RFC 7636 maximum).
	codeVerifierLength = 128

	// stateLength is the length of the CSRF state parameter.
	stateLength = 32
)

// PKCECodes holds one authorization attempt's PKCE material together with the
// CSRF state bound to the same attempt.
type PKCECodes struct {
	// CodeVerifier is the high-entropy secret kept local until the exchange.
	CodeVerifier string
	// CodeChallenge is the base64url-encoded SHA-256 digest of the verifier,
	// sent in the authorization URL.
	CodeChallenge string
	// State is an independent random string binding the redirect to the callback.
	State string
}

// GeneratePKCECodes generates a PKCE code verifier and challenge pair plus a
// fresh state parameter, following RFC 7636 with the S256 challenge method.
func GeneratePKCECodes() (*PKCECodes, error) {
	codeVerifier, err := generateRandomString(codeVerifierLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	state, err := generateRandomString(stateLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	return &PKCECodes{
		CodeVerifier:  codeVerifier,
		CodeChallenge: generateCodeChallenge(codeVerifier),
		State:         state,
	}, nil
}

// generateRandomString draws length cryptographically secure random bytes and
// maps each into the unreserved alphabet.
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i, b := range bytes {
		bytes[i] = unreservedChars[int(b)%len(unreservedChars)]
	}
	return string(bytes), nil
}

// generateCodeChallenge creates the SHA-256 hash of the code verifier encoded
// as URL-safe base64 without padding.
func generateCodeChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
