package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	auth "github.com/pulseboard/pulseboard/internal/auth/whoop"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/store"
	"github.com/pulseboard/pulseboard/internal/util"
)

// APIBaseURL is the root of the WHOOP developer data API.
const APIBaseURL = "https://api.prod.whoop.com/developer"

// dataRequestTimeout bounds every data call.
const dataRequestTimeout = 30 * time.Second

// Client is the single session object owning the WHOOP connection: it builds
// login URLs, completes callbacks, keeps the token set fresh, and is the sole
// path to the data API. Instances are independent, so tests can construct
// isolated sessions.
type Client struct {
	httpClient *http.Client
	store      *store.SessionStore
	baseURL    string

	mu      sync.Mutex // guards cfg/authSvc swaps from hot reload
	cfg     *config.Config
	authSvc *auth.WhoopAuth

	// refreshMu serializes refreshes so concurrent data calls share one
	// round-trip instead of racing the token endpoint.
	refreshMu sync.Mutex
}

// NewClient constructs a session client over the given credential store.
// A client id previously saved through the settings endpoint fills in for a
// missing one in the config.
func NewClient(cfg *config.Config, sessionStore *store.SessionStore) *Client {
	effective := *cfg
	if !effective.ClientIDConfigured() {
		if saved := sessionStore.ClientID(); saved != "" {
			effective.Whoop.ClientID = saved
		}
	}
	return &Client{
		httpClient: util.SetProxy(&effective, &http.Client{Timeout: dataRequestTimeout}),
		store:      sessionStore,
		baseURL:    APIBaseURL,
		cfg:        &effective,
		authSvc:    auth.NewWhoopAuth(&effective),
	}
}

// SetBaseURL overrides the data API root. Used by tests.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// AuthService exposes the underlying protocol service, mainly so tests and
// the login command can point it at alternate endpoints.
func (c *Client) AuthService() *auth.WhoopAuth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authSvc
}

// UpdateConfig swaps in a new configuration after a hot reload. The session
// itself is untouched; only client credentials and proxy settings change.
func (c *Client) UpdateConfig(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	effective := *cfg
	if !effective.ClientIDConfigured() {
		if saved := c.store.ClientID(); saved != "" {
			effective.Whoop.ClientID = saved
		}
	}
	c.cfg = &effective
	c.authSvc = auth.NewWhoopAuth(&effective)
	log.Debug("whoop client configuration reloaded")
}

// SetClientID saves a client id supplied at runtime and rebuilds the auth
// service around it.
func (c *Client) SetClientID(clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return auth.NewAuthenticationError(auth.ErrNotConfigured, nil)
	}
	if err := c.store.SetClientID(clientID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	effective := *c.cfg
	effective.Whoop.ClientID = clientID
	c.cfg = &effective
	c.authSvc = auth.NewWhoopAuth(&effective)
	return nil
}

// IsAuthenticated reports whether a session is held. The session may still
// need a refresh; the gateway handles that transparently.
func (c *Client) IsAuthenticated() bool {
	return c.store.TokenSet().IsAuthenticated
}

// ExpiresAt returns the epoch-millisecond access token expiry, or zero.
func (c *Client) ExpiresAt() int64 {
	return c.store.TokenSet().ExpiresAt
}

// GetLoginURL generates a fresh PKCE challenge, persists its verifier and
// state, and returns the WHOOP authorization URL. Configuration is validated
// before anything is generated or written.
func (c *Client) GetLoginURL() (string, error) {
	authSvc := c.AuthService()
	if !authSvc.Configured() {
		return "", auth.NewAuthenticationError(auth.ErrNotConfigured, nil)
	}

	pkceCodes, err := auth.GeneratePKCECodes()
	if err != nil {
		return "", fmt.Errorf("pkce generation failed: %w", err)
	}
	if err = c.store.SetPendingAuth(pkceCodes.CodeVerifier, pkceCodes.State); err != nil {
		return "", err
	}

	return authSvc.GenerateAuthURL(pkceCodes)
}

// HandleAuthCallback validates the callback state against the stored one and
// exchanges the authorization code for a token set. The pending PKCE values
// are single-use: they are cleared on every outcome, so a replayed callback
// fails because the verifier is gone.
func (c *Client) HandleAuthCallback(ctx context.Context, code, state string) error {
	pending := c.store.PendingAuth()
	if pending == nil || state == "" || pending.State != state {
		expected := ""
		if pending != nil {
			expected = pending.State
		}
		log.Errorf("State mismatch: expected %q, got %q", expected, state)
		if err := c.store.ClearPendingAuth(); err != nil {
			log.Warnf("failed to clear pending auth: %v", err)
		}
		return auth.NewAuthenticationError(auth.ErrInvalidState, fmt.Errorf("state mismatch"))
	}

	tokenData, exchangeErr := c.AuthService().ExchangeCode(ctx, code, pending.CodeVerifier)

	// Consumed either way; a failed exchange requires a brand-new flow.
	if err := c.store.ClearPendingAuth(); err != nil {
		log.Warnf("failed to clear pending auth: %v", err)
	}

	if exchangeErr != nil {
		return auth.NewAuthenticationError(auth.ErrCodeExchangeFailed, exchangeErr)
	}

	return c.store.SetTokenSet(store.TokenSet{
		IsAuthenticated: true,
		AccessToken:     tokenData.AccessToken,
		RefreshToken:    tokenData.RefreshToken,
		ExpiresAt:       tokenData.ExpiresAt,
	})
}

// Logout clears the session.
func (c *Client) Logout() error {
	return c.store.ClearTokenSet()
}

// refresh exchanges the stored refresh token for a new pair and commits it.
// When force is false the refresh is skipped while the access token is still
// live, which lets concurrent callers piggyback on one another's refresh.
// Any failure is terminal for the session: the token set is cleared and the
// error propagated.
func (c *Client) refresh(ctx context.Context, force bool) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	ts := c.store.TokenSet()
	if !force && !ts.Expired(time.Now()) {
		return nil
	}

	if ts.RefreshToken == "" {
		if err := c.store.ClearTokenSet(); err != nil {
			log.Warnf("failed to clear token set: %v", err)
		}
		return auth.NewAuthenticationError(auth.ErrNoRefreshToken, nil)
	}

	tokenData, err := c.AuthService().RefreshTokens(ctx, ts.RefreshToken)
	if err != nil {
		if errClear := c.store.ClearTokenSet(); errClear != nil {
			log.Warnf("failed to clear token set: %v", errClear)
		}
		return err
	}

	refreshToken := tokenData.RefreshToken
	if refreshToken == "" {
		// Provider did not rotate; keep the existing refresh token.
		refreshToken = ts.RefreshToken
	}

	return c.store.SetTokenSet(store.TokenSet{
		IsAuthenticated: true,
		AccessToken:     tokenData.AccessToken,
		RefreshToken:    refreshToken,
		ExpiresAt:       tokenData.ExpiresAt,
	})
}

// do is the authenticated request gateway. It checks the session, refreshes
// proactively on expiry, sends the request with the bearer token, and on a
// 401 refreshes exactly once and retries exactly once before declaring the
// session expired.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	if !c.store.TokenSet().IsAuthenticated {
		return nil, auth.NewAuthenticationError(auth.ErrNotAuthenticated, nil)
	}

	// Proactive refresh: never send a request with a known-expired token.
	if err := c.refresh(ctx, false); err != nil {
		return nil, auth.NewAuthenticationError(auth.ErrSessionExpired, err)
	}

	status, body, err := c.send(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		// Reactive refresh: the token expired between the check and the
		// request, or was revoked server-side. One refresh, one retry.
		if errRefresh := c.refresh(ctx, true); errRefresh != nil {
			return nil, auth.NewAuthenticationError(auth.ErrSessionExpired, errRefresh)
		}
		status, body, err = c.send(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			if errClear := c.store.ClearTokenSet(); errClear != nil {
				log.Warnf("failed to clear token set: %v", errClear)
			}
			return nil, auth.NewAuthenticationError(auth.ErrSessionExpired, fmt.Errorf("retried request still unauthorized"))
		}
	}

	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return nil, &APIError{StatusCode: status, Body: string(body)}
	}
	return body, nil
}

// send performs one bearer-authenticated GET against the data API.
func (c *Client) send(ctx context.Context, endpoint string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create data request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.store.TokenSet().AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("data request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read data response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// apiRequest runs an authenticated GET through the gateway and decodes the
// response into T.
func apiRequest[T any](ctx context.Context, c *Client, endpoint string) (T, error) {
	var out T
	body, err := c.do(ctx, endpoint)
	if err != nil {
		return out, err
	}
	if err = json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("failed to parse data response: %w", err)
	}
	return out, nil
}

// dateRangeQuery builds the start/end query string covering the last N days.
func dateRangeQuery(days int) string {
	if days <= 0 {
		days = 7
	}
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	params := url.Values{}
	params.Set("start", start.Format("2006-01-02"))
	params.Set("end", end.Format("2006-01-02"))
	return params.Encode()
}

// GetProfile fetches the connected user's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	profile, err := apiRequest[Profile](ctx, c, "/v1/user/profile")
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetRecovery fetches recovery records for the last days days.
func (c *Client) GetRecovery(ctx context.Context, days int) ([]Recovery, error) {
	collection, err := apiRequest[recordCollection[Recovery]](ctx, c, "/v1/recovery?"+dateRangeQuery(days))
	if err != nil {
		return nil, err
	}
	return collection.Records, nil
}

// GetStrain fetches cycle strain records for the last days days.
func (c *Client) GetStrain(ctx context.Context, days int) ([]Strain, error) {
	collection, err := apiRequest[recordCollection[Strain]](ctx, c, "/v1/cycle?"+dateRangeQuery(days))
	if err != nil {
		return nil, err
	}
	return collection.Records, nil
}

// GetSleep fetches sleep records for the last days days.
func (c *Client) GetSleep(ctx context.Context, days int) ([]Sleep, error) {
	collection, err := apiRequest[recordCollection[Sleep]](ctx, c, "/v1/sleep?"+dateRangeQuery(days))
	if err != nil {
		return nil, err
	}
	return collection.Records, nil
}

// GetWorkouts fetches workout records for the last days days.
func (c *Client) GetWorkouts(ctx context.Context, days int) ([]Workout, error) {
	collection, err := apiRequest[recordCollection[Workout]](ctx, c, "/v1/workout?"+dateRangeQuery(days))
	if err != nil {
		return nil, err
	}
	return collection.Records, nil
}
