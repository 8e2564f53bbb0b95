package whoop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/util"
)

// OAuth endpoints for the WHOOP platform.
const (
	AuthURL  = "https://api.prod.whoop.com/oauth/oauth2/auth"
	TokenURL = "https://api.prod.whoop.com/oauth/oauth2/token"

	// Scopes is the fixed read-only scope set covering everything the
	// dashboard renders.
	Scopes = "read:profile read:recovery read:cycles read:workout read:sleep"
)

// requestTimeout bounds every token-endpoint call so a hung provider cannot
// wedge the login or refresh path.
const requestTimeout = 30 * time.Second

// TokenData is the result of a successful code exchange or refresh.
type TokenData struct {
	// AccessToken is the short-lived bearer token for the data API.
	AccessToken string `json:"access_token"`
	// RefreshToken is the long-lived token exchangeable only at the token
	// endpoint. May be empty on a refresh when the provider does not rotate.
	RefreshToken string `json:"refresh_token,omitempty"`
	// ExpiresAt is the absolute expiry instant in epoch milliseconds.
	ExpiresAt int64 `json:"expires_at"`
}

// tokenResponse is the provider's JSON shape for both grant types.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// WhoopAuth performs the protocol-level OAuth operations against WHOOP. It is
// stateless; persistence of tokens and pending PKCE material belongs to the
// credential store.
type WhoopAuth struct {
	httpClient   *http.Client
	tokenURL     string
	authURL      string
	clientID     string
	clientSecret string
	redirectURI  string
}

// NewWhoopAuth creates a WHOOP authentication service from the application
// configuration, honoring the configured outbound proxy.
func NewWhoopAuth(cfg *config.Config) *WhoopAuth {
	return &WhoopAuth{
		httpClient:   util.SetProxy(cfg, &http.Client{Timeout: requestTimeout}),
		tokenURL:     TokenURL,
		authURL:      AuthURL,
		clientID:     strings.TrimSpace(cfg.Whoop.ClientID),
		clientSecret: cfg.Whoop.ClientSecret,
		redirectURI:  cfg.Whoop.RedirectURI,
	}
}

// SetEndpoints overrides the provider endpoints. Used by tests and by
// deployments pointing at a token relay.
func (a *WhoopAuth) SetEndpoints(authURL, tokenURL string) {
	if authURL != "" {
		a.authURL = authURL
	}
	if tokenURL != "" {
		a.tokenURL = tokenURL
	}
}

// Configured reports whether a usable client id is present.
func (a *WhoopAuth) Configured() bool {
	return a.clientID != "" && a.clientID != config.PlaceholderClientID
}

// RedirectURI returns the redirect registered for this client.
func (a *WhoopAuth) RedirectURI() string {
	return a.redirectURI
}

// GenerateAuthURL builds the WHOOP authorization URL for the given PKCE
// challenge. It fails with ErrNotConfigured before touching anything else
// when the client id is missing or the placeholder.
func (a *WhoopAuth) GenerateAuthURL(pkceCodes *PKCECodes) (string, error) {
	if !a.Configured() {
		return "", NewAuthenticationError(ErrNotConfigured, nil)
	}
	if pkceCodes == nil {
		return "", fmt.Errorf("PKCE codes are required")
	}

	params := url.Values{
		"client_id":             {a.clientID},
		"redirect_uri":          {a.redirectURI},
		"response_type":         {"code"},
		"scope":                 {Scopes},
		"code_challenge":        {pkceCodes.CodeChallenge},
		"code_challenge_method": {"S256"},
		"state":                 {pkceCodes.State},
	}

	return fmt.Sprintf("%s?%s", a.authURL, params.Encode()), nil
}

// ExchangeCode exchanges an authorization code plus the stored PKCE verifier
// for a token set. Authorization codes are single-use; a failed exchange must
// start a brand-new authorization flow, never a retry with the same code.
func (a *WhoopAuth) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenData, error) {
	data := url.Values{}
	data.Set("client_id", a.clientID)
	data.Set("client_secret", a.clientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", a.redirectURI)
	data.Set("code_verifier", codeVerifier)

	tokenData, err := a.postTokenForm(ctx, data)
	if err != nil {
		return nil, err
	}
	if tokenData.RefreshToken == "" {
		log.Warn("token exchange response did not include a refresh token")
	}
	return tokenData, nil
}

// RefreshTokens exchanges a refresh token for a new access token. The
// returned RefreshToken is empty when the provider chose not to rotate; the
// caller must retain the previous one in that case.
func (a *WhoopAuth) RefreshTokens(ctx context.Context, refreshToken string) (*TokenData, error) {
	if refreshToken == "" {
		return nil, NewAuthenticationError(ErrNoRefreshToken, nil)
	}

	data := url.Values{}
	data.Set("client_id", a.clientID)
	data.Set("client_secret", a.clientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return a.postTokenForm(ctx, data)
}

// postTokenForm issues a form-encoded POST to the token endpoint and decodes
// the token response.
func (a *WhoopAuth) postTokenForm(ctx context.Context, data url.Values) (*TokenData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("failed to close response body: %v", errClose)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ParseOAuthErrorBody(resp.StatusCode, body)
	}

	var tokenResp tokenResponse
	if err = json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return &TokenData{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().UnixMilli() + int64(tokenResp.ExpiresIn)*1000,
	}, nil
}
