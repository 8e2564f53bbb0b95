package whoop

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pulseboard/pulseboard/internal/config"
)

func newTestAuth(t *testing.T, clientID string) *WhoopAuth {
	t.Helper()
	cfg := &config.Config{}
	cfg.Whoop.ClientID = clientID
	cfg.Whoop.ClientSecret = "test-secret"
	cfg.Whoop.RedirectURI = "http://localhost:8080/connect"
	return NewWhoopAuth(cfg)
}

func TestGenerateAuthURLNotConfigured(t *testing.T) {
	t.Parallel()

	pkce, err := GeneratePKCECodes()
	if err != nil {
		t.Fatal(err)
	}

	for _, clientID := range []string{"", config.PlaceholderClientID} {
		a := newTestAuth(t, clientID)
		if _, err = a.GenerateAuthURL(pkce); !errors.Is(err, ErrNotConfigured) {
			t.Errorf("clientID %q: GenerateAuthURL error = %v, want ErrNotConfigured", clientID, err)
		}
	}
}

func TestGenerateAuthURLParams(t *testing.T) {
	t.Parallel()

	a := newTestAuth(t, "abc123")
	pkce, err := GeneratePKCECodes()
	if err != nil {
		t.Fatal(err)
	}

	authURL, err := a.GenerateAuthURL(pkce)
	if err != nil {
		t.Fatalf("GenerateAuthURL() error = %v", err)
	}

	parsed, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("generated URL does not parse: %v", err)
	}
	if got := parsed.Scheme + "://" + parsed.Host + parsed.Path; got != AuthURL {
		t.Errorf("base URL = %q, want %q", got, AuthURL)
	}

	q := parsed.Query()
	checks := map[string]string{
		"client_id":             "abc123",
		"redirect_uri":          "http://localhost:8080/connect",
		"response_type":         "code",
		"scope":                 Scopes,
		"code_challenge":        pkce.CodeChallenge,
		"code_challenge_method": "S256",
		"state":                 pkce.State,
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("param %s = %q, want %q", key, got, want)
		}
	}
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	var gotForm url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
			t.Errorf("Content-Type = %q, want form-urlencoded", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"AT1","refresh_token":"RT1","expires_in":3600}`))
	}))
	defer srv.Close()

	a := newTestAuth(t, "abc123")
	a.SetEndpoints("", srv.URL)

	before := time.Now().UnixMilli()
	tokens, err := a.ExchangeCode(context.Background(), "auth-code-1", "verifier-1")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	after := time.Now().UnixMilli()

	wantForm := map[string]string{
		"client_id":     "abc123",
		"client_secret": "test-secret",
		"grant_type":    "authorization_code",
		"code":          "auth-code-1",
		"redirect_uri":  "http://localhost:8080/connect",
		"code_verifier": "verifier-1",
	}
	for key, want := range wantForm {
		if got := gotForm.Get(key); got != want {
			t.Errorf("form field %s = %q, want %q", key, got, want)
		}
	}

	if tokens.AccessToken != "AT1" || tokens.RefreshToken != "RT1" {
		t.Errorf("tokens = %+v", tokens)
	}
	if tokens.ExpiresAt < before+3600_000 || tokens.ExpiresAt > after+3600_000 {
		t.Errorf("ExpiresAt = %d, want now + 3600s", tokens.ExpiresAt)
	}
}

func TestExchangeCodeProviderError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code already used"}`))
	}))
	defer srv.Close()

	a := newTestAuth(t, "abc123")
	a.SetEndpoints("", srv.URL)

	_, err := a.ExchangeCode(context.Background(), "stale-code", "verifier-1")
	var oauthErr *OAuthError
	if !errors.As(err, &oauthErr) {
		t.Fatalf("ExchangeCode() error = %v, want *OAuthError", err)
	}
	if oauthErr.Code != "invalid_grant" {
		t.Errorf("Code = %q, want invalid_grant", oauthErr.Code)
	}
	if oauthErr.Description != "code already used" {
		t.Errorf("Description = %q", oauthErr.Description)
	}
	if oauthErr.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want 400", oauthErr.StatusCode)
	}
}

func TestRefreshTokensRequiresToken(t *testing.T) {
	t.Parallel()

	a := newTestAuth(t, "abc123")
	if _, err := a.RefreshTokens(context.Background(), ""); !errors.Is(err, ErrNoRefreshToken) {
		t.Errorf("RefreshTokens(\"\") error = %v, want ErrNoRefreshToken", err)
	}
}

func TestRefreshTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		responseBody    string
		wantRefreshTok  string
		wantAccessToken string
	}{
		{
			name:            "rotating provider",
			responseBody:    `{"access_token":"AT2","refresh_token":"RT2","expires_in":3600}`,
			wantRefreshTok:  "RT2",
			wantAccessToken: "AT2",
		},
		{
			// A provider that does not rotate omits refresh_token; the
			// caller keeps the one it already holds.
			name:            "non-rotating provider",
			responseBody:    `{"access_token":"AT2","expires_in":3600}`,
			wantRefreshTok:  "",
			wantAccessToken: "AT2",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotForm url.Values
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := r.ParseForm(); err != nil {
					t.Errorf("ParseForm() error = %v", err)
				}
				gotForm = r.PostForm
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer srv.Close()

			a := newTestAuth(t, "abc123")
			a.SetEndpoints("", srv.URL)

			tokens, err := a.RefreshTokens(context.Background(), "RT1")
			if err != nil {
				t.Fatalf("RefreshTokens() error = %v", err)
			}

			if got := gotForm.Get("grant_type"); got != "refresh_token" {
				t.Errorf("grant_type = %q, want refresh_token", got)
			}
			if got := gotForm.Get("refresh_token"); got != "RT1" {
				t.Errorf("refresh_token = %q, want RT1", got)
			}
			if tokens.AccessToken != tt.wantAccessToken {
				t.Errorf("AccessToken = %q, want %q", tokens.AccessToken, tt.wantAccessToken)
			}
			if tokens.RefreshToken != tt.wantRefreshTok {
				t.Errorf("RefreshToken = %q, want %q", tokens.RefreshToken, tt.wantRefreshTok)
			}
		})
	}
}

func TestParseOAuthErrorBodyFallback(t *testing.T) {
	t.Parallel()

	oauthErr := ParseOAuthErrorBody(http.StatusBadGateway, []byte("upstream exploded"))
	if oauthErr.Code != "provider_error" {
		t.Errorf("Code = %q, want provider_error", oauthErr.Code)
	}
	if oauthErr.Description != "upstream exploded" {
		t.Errorf("Description = %q", oauthErr.Description)
	}
}
