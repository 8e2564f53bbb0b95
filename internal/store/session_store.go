// Package store persists the WHOOP session across restarts: the durable
// token set, the in-flight PKCE verifier/state pair, and the runtime client
// id. Everything lives as small JSON files under the auth directory; the
// client secret is never written here.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pulseboard/pulseboard/internal/misc"
)

const (
	sessionFileName = "session.json"
	pendingFileName = "pending_auth.json"
	clientFileName  = "client.json"
)

// TokenSet is the durable authenticated session.
type TokenSet struct {
	// IsAuthenticated is true iff a non-expired or refreshable token set is held.
	IsAuthenticated bool `json:"isAuthenticated"`
	// AccessToken is the short-lived bearer token.
	AccessToken string `json:"accessToken,omitempty"`
	// RefreshToken is the long-lived refresh token.
	RefreshToken string `json:"refreshToken,omitempty"`
	// ExpiresAt is the absolute access-token expiry in epoch milliseconds.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

// Expired reports whether the access token expiry has passed. An expired
// token set is not cleared here; the gateway attempts a refresh first.
func (t *TokenSet) Expired(now time.Time) bool {
	return t.ExpiresAt > 0 && t.ExpiresAt < now.UnixMilli()
}

// PendingAuth is the PKCE material of one in-flight authorization attempt.
// Each new attempt overwrites the previous one; both values are single-use.
type PendingAuth struct {
	CodeVerifier string `json:"code_verifier"`
	State        string `json:"state"`
}

type clientSettings struct {
	ClientID string `json:"client_id,omitempty"`
}

// SessionStore is a file-backed credential store scoped to one auth
// directory. All accesses are mutex-guarded; writes replace whole files.
type SessionStore struct {
	mu  sync.Mutex
	dir string

	tokenSet *TokenSet
}

// NewSessionStore creates the auth directory if needed and reconstructs the
// token set from durable storage.
func NewSessionStore(dir string) (*SessionStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("session store: directory not configured")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session store: create dir failed: %w", err)
	}

	s := &SessionStore{dir: dir}
	s.tokenSet = s.loadTokenSet()
	return s, nil
}

// TokenSet returns a copy of the current token set.
func (s *SessionStore) TokenSet() TokenSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tokenSet
}

// SetTokenSet persists a new token set. Access token and expiry always travel
// together inside the TokenSet value, so they can never diverge on disk.
func (s *SessionStore) SetTokenSet(ts TokenSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, sessionFileName)
	misc.LogSavingCredentials(path)
	if err := writeJSONFile(path, &ts); err != nil {
		return fmt.Errorf("session store: save token set failed: %w", err)
	}
	s.tokenSet = &ts
	return nil
}

// ClearTokenSet resets the session to the unauthenticated state and removes
// the persisted file.
func (s *SessionStore) ClearTokenSet() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokenSet = &TokenSet{}
	if err := os.Remove(filepath.Join(s.dir, sessionFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session store: clear token set failed: %w", err)
	}
	return nil
}

// SetPendingAuth stores the PKCE verifier and state for the authorization
// attempt about to redirect, unconditionally overwriting any prior attempt.
func (s *SessionStore) SetPendingAuth(codeVerifier, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := &PendingAuth{CodeVerifier: codeVerifier, State: state}
	if err := writeJSONFile(filepath.Join(s.dir, pendingFileName), pending); err != nil {
		return fmt.Errorf("session store: save pending auth failed: %w", err)
	}
	return nil
}

// PendingAuth returns the stored PKCE material, or nil when no authorization
// attempt is in flight.
func (s *SessionStore) PendingAuth() *PendingAuth {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, pendingFileName))
	if err != nil {
		return nil
	}
	var pending PendingAuth
	if err = json.Unmarshal(data, &pending); err != nil {
		return nil
	}
	if pending.CodeVerifier == "" && pending.State == "" {
		return nil
	}
	return &pending
}

// ClearPendingAuth deletes the PKCE material. Called after every callback
// attempt, success or failure, so verifier and state are never reused.
func (s *SessionStore) ClearPendingAuth() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(filepath.Join(s.dir, pendingFileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session store: clear pending auth failed: %w", err)
	}
	return nil
}

// ClientID returns the runtime-configured client id, if one was saved.
func (s *SessionStore) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(s.dir, clientFileName))
	if err != nil {
		return ""
	}
	var settings clientSettings
	if err = json.Unmarshal(data, &settings); err != nil {
		return ""
	}
	return settings.ClientID
}

// SetClientID persists a client id supplied at runtime through the settings
// endpoint. Only the id is stored; the secret stays in config/env.
func (s *SessionStore) SetClientID(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeJSONFile(filepath.Join(s.dir, clientFileName), &clientSettings{ClientID: clientID}); err != nil {
		return fmt.Errorf("session store: save client id failed: %w", err)
	}
	return nil
}

// loadTokenSet reconstructs the token set from disk. Missing or unreadable
// files yield the unauthenticated state. An already-expired expiry is kept
// as-is so the gateway can try a refresh before giving up on the session.
func (s *SessionStore) loadTokenSet() *TokenSet {
	data, err := os.ReadFile(filepath.Join(s.dir, sessionFileName))
	if err != nil {
		return &TokenSet{}
	}
	var ts TokenSet
	if err = json.Unmarshal(data, &ts); err != nil {
		return &TokenSet{}
	}
	return &ts
}

func writeJSONFile(path string, v any) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()
	return json.NewEncoder(f).Encode(v)
}
