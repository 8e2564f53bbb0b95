package whoop

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	auth "github.com/pulseboard/pulseboard/internal/auth/whoop"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/store"
)

// tokenEndpoint is a scripted token endpoint recording every hit.
type tokenEndpoint struct {
	hits     atomic.Int64
	lastForm atomic.Pointer[url.Values]
	respond  func(hit int64, w http.ResponseWriter, form url.Values)
}

func (e *tokenEndpoint) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("token endpoint ParseForm() error = %v", err)
		}
		form := r.PostForm
		e.lastForm.Store(&form)
		hit := e.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		e.respond(hit, w, form)
	}
}

func tokenJSON(w http.ResponseWriter, accessToken, refreshToken string) {
	resp := map[string]any{"access_token": accessToken, "expires_in": 3600}
	if refreshToken != "" {
		resp["refresh_token"] = refreshToken
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func newTestClient(t *testing.T, tokenURL string) (*Client, *store.SessionStore) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Whoop.ClientID = "abc123"
	cfg.Whoop.ClientSecret = "test-secret"
	cfg.Whoop.RedirectURI = "http://localhost:8080/connect"

	sessionStore, err := store.NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(cfg, sessionStore)
	if tokenURL != "" {
		client.AuthService().SetEndpoints("", tokenURL)
	}
	return client, sessionStore
}

func liveToken() store.TokenSet {
	return store.TokenSet{
		IsAuthenticated: true,
		AccessToken:     "AT-live",
		RefreshToken:    "RT1",
		ExpiresAt:       time.Now().UnixMilli() + 3600_000,
	}
}

func expiredToken() store.TokenSet {
	return store.TokenSet{
		IsAuthenticated: true,
		AccessToken:     "AT-stale",
		RefreshToken:    "RT1",
		ExpiresAt:       time.Now().UnixMilli() - 1000,
	}
}

func TestGetLoginURLRequiresClientID(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Whoop.ClientID = config.PlaceholderClientID
	sessionStore, err := store.NewSessionStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	client := NewClient(cfg, sessionStore)

	if _, err = client.GetLoginURL(); !errors.Is(err, auth.ErrNotConfigured) {
		t.Fatalf("GetLoginURL() error = %v, want ErrNotConfigured", err)
	}
	// Nothing may be written before the configuration check passes.
	if pending := sessionStore.PendingAuth(); pending != nil {
		t.Errorf("PendingAuth after failed GetLoginURL = %+v, want nil", pending)
	}
}

func TestGetLoginURLStoresPendingAuth(t *testing.T) {
	t.Parallel()

	client, sessionStore := newTestClient(t, "")

	loginURL, err := client.GetLoginURL()
	if err != nil {
		t.Fatalf("GetLoginURL() error = %v", err)
	}

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatal(err)
	}
	pending := sessionStore.PendingAuth()
	if pending == nil {
		t.Fatal("PendingAuth() = nil after GetLoginURL")
	}
	if got := parsed.Query().Get("state"); got != pending.State {
		t.Errorf("URL state %q does not match stored state %q", got, pending.State)
	}
}

func TestHandleAuthCallbackStateMismatch(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		tokenJSON(w, "AT1", "RT1")
	}}
	srv := httptest.NewServer(endpoint.handler(t))
	defer srv.Close()

	client, sessionStore := newTestClient(t, srv.URL)
	if _, err := client.GetLoginURL(); err != nil {
		t.Fatal(err)
	}

	err := client.HandleAuthCallback(context.Background(), "auth-code-1", "attacker-state")
	if !errors.Is(err, auth.ErrInvalidState) {
		t.Fatalf("HandleAuthCallback() error = %v, want ErrInvalidState", err)
	}
	if got := endpoint.hits.Load(); got != 0 {
		t.Errorf("token endpoint hit %d times, want 0 before state validation", got)
	}
	if sessionStore.TokenSet().IsAuthenticated {
		t.Error("session authenticated despite state mismatch")
	}
	if sessionStore.PendingAuth() != nil {
		t.Error("pending auth survived a rejected callback")
	}
}

func TestHandleAuthCallbackSuccess(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		tokenJSON(w, "AT1", "RT1")
	}}
	srv := httptest.NewServer(endpoint.handler(t))
	defer srv.Close()

	client, sessionStore := newTestClient(t, srv.URL)
	if _, err := client.GetLoginURL(); err != nil {
		t.Fatal(err)
	}
	pending := sessionStore.PendingAuth()

	if err := client.HandleAuthCallback(context.Background(), "auth-code-1", pending.State); err != nil {
		t.Fatalf("HandleAuthCallback() error = %v", err)
	}

	form := *endpoint.lastForm.Load()
	if got := form.Get("code_verifier"); got != pending.CodeVerifier {
		t.Errorf("exchanged verifier %q, want the stored one %q", got, pending.CodeVerifier)
	}
	ts := sessionStore.TokenSet()
	if !ts.IsAuthenticated || ts.AccessToken != "AT1" || ts.RefreshToken != "RT1" {
		t.Errorf("TokenSet after callback = %+v", ts)
	}
	if ts.ExpiresAt <= time.Now().UnixMilli() {
		t.Errorf("ExpiresAt = %d, want a future instant", ts.ExpiresAt)
	}

	// The verifier is single-use: a replayed callback must fail without it.
	if sessionStore.PendingAuth() != nil {
		t.Fatal("pending auth survived a successful callback")
	}
	err := client.HandleAuthCallback(context.Background(), "auth-code-1", pending.State)
	if !errors.Is(err, auth.ErrInvalidState) {
		t.Errorf("replayed callback error = %v, want ErrInvalidState", err)
	}
	if got := endpoint.hits.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestHandleAuthCallbackExchangeFailure(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}}
	srv := httptest.NewServer(endpoint.handler(t))
	defer srv.Close()

	client, sessionStore := newTestClient(t, srv.URL)
	if _, err := client.GetLoginURL(); err != nil {
		t.Fatal(err)
	}
	pending := sessionStore.PendingAuth()

	err := client.HandleAuthCallback(context.Background(), "bad-code", pending.State)
	if !errors.Is(err, auth.ErrCodeExchangeFailed) {
		t.Fatalf("HandleAuthCallback() error = %v, want ErrCodeExchangeFailed", err)
	}
	if sessionStore.TokenSet().IsAuthenticated {
		t.Error("session authenticated despite failed exchange")
	}
	// The PKCE material is consumed on failure too.
	if sessionStore.PendingAuth() != nil {
		t.Error("pending auth survived a failed exchange")
	}
}

func TestGatewayRequiresAuthentication(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, "")
	if _, err := client.GetProfile(context.Background()); !errors.Is(err, auth.ErrNotAuthenticated) {
		t.Fatalf("GetProfile() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestGatewayProactiveRefresh(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		tokenJSON(w, "AT-fresh", "RT2")
	}}
	tokenSrv := httptest.NewServer(endpoint.handler(t))
	defer tokenSrv.Close()

	var gotAuth atomic.Pointer[string]
	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := r.Header.Get("Authorization")
		gotAuth.Store(&h)
		_, _ = w.Write([]byte(`{"user_id":1,"email":"a@b.c","first_name":"A","last_name":"B"}`))
	}))
	defer dataSrv.Close()

	client, sessionStore := newTestClient(t, tokenSrv.URL)
	client.SetBaseURL(dataSrv.URL)
	if err := sessionStore.SetTokenSet(expiredToken()); err != nil {
		t.Fatal(err)
	}

	profile, err := client.GetProfile(context.Background())
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if profile.UserID != 1 {
		t.Errorf("profile = %+v", profile)
	}

	if got := endpoint.hits.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want exactly 1", got)
	}
	if got := *gotAuth.Load(); got != "Bearer AT-fresh" {
		t.Errorf("data request Authorization = %q, want the refreshed token", got)
	}
	ts := sessionStore.TokenSet()
	if ts.AccessToken != "AT-fresh" || ts.RefreshToken != "RT2" {
		t.Errorf("TokenSet after refresh = %+v", ts)
	}
}

func TestGatewayNoRefreshWhileLive(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		t.Error("token endpoint must not be hit while the access token is live")
	}}
	tokenSrv := httptest.NewServer(endpoint.handler(t))
	defer tokenSrv.Close()

	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_id":7,"email":"a@b.c","first_name":"A","last_name":"B"}`))
	}))
	defer dataSrv.Close()

	client, sessionStore := newTestClient(t, tokenSrv.URL)
	client.SetBaseURL(dataSrv.URL)
	if err := sessionStore.SetTokenSet(liveToken()); err != nil {
		t.Fatal(err)
	}

	if _, err := client.GetProfile(context.Background()); err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
}

func TestGatewayRefreshRetainsRefreshToken(t *testing.T) {
	t.Parallel()

	// Non-rotating provider: refresh_token omitted from the response.
	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		tokenJSON(w, "AT-fresh", "")
	}}
	tokenSrv := httptest.NewServer(endpoint.handler(t))
	defer tokenSrv.Close()

	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_id":1,"email":"a@b.c","first_name":"A","last_name":"B"}`))
	}))
	defer dataSrv.Close()

	client, sessionStore := newTestClient(t, tokenSrv.URL)
	client.SetBaseURL(dataSrv.URL)
	if err := sessionStore.SetTokenSet(expiredToken()); err != nil {
		t.Fatal(err)
	}

	if _, err := client.GetProfile(context.Background()); err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if ts := sessionStore.TokenSet(); ts.RefreshToken != "RT1" {
		t.Errorf("RefreshToken = %q, want the retained RT1", ts.RefreshToken)
	}
}

func TestGatewayReactiveRefreshRetriesOnce(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		tokenJSON(w, "AT-fresh", "RT2")
	}}
	tokenSrv := httptest.NewServer(endpoint.handler(t))
	defer tokenSrv.Close()

	// First data request 401s even though the token looked live; the retry
	// with the refreshed token succeeds.
	var dataHits atomic.Int64
	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dataHits.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer AT-fresh" {
			t.Errorf("retry Authorization = %q, want the refreshed token", got)
		}
		_, _ = w.Write([]byte(`{"user_id":1,"email":"a@b.c","first_name":"A","last_name":"B"}`))
	}))
	defer dataSrv.Close()

	client, sessionStore := newTestClient(t, tokenSrv.URL)
	client.SetBaseURL(dataSrv.URL)
	if err := sessionStore.SetTokenSet(liveToken()); err != nil {
		t.Fatal(err)
	}

	if _, err := client.GetProfile(context.Background()); err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got := dataHits.Load(); got != 2 {
		t.Errorf("data endpoint hit %d times, want 2", got)
	}
	if got := endpoint.hits.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
}

func TestGatewayPersistent401ExpiresSession(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		tokenJSON(w, "AT-fresh", "RT2")
	}}
	tokenSrv := httptest.NewServer(endpoint.handler(t))
	defer tokenSrv.Close()

	var dataHits atomic.Int64
	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dataHits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer dataSrv.Close()

	client, sessionStore := newTestClient(t, tokenSrv.URL)
	client.SetBaseURL(dataSrv.URL)
	if err := sessionStore.SetTokenSet(liveToken()); err != nil {
		t.Fatal(err)
	}

	_, err := client.GetProfile(context.Background())
	if !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("GetProfile() error = %v, want ErrSessionExpired", err)
	}
	// Exactly one refresh and one retry, never a loop.
	if got := dataHits.Load(); got != 2 {
		t.Errorf("data endpoint hit %d times, want 2", got)
	}
	if got := endpoint.hits.Load(); got != 1 {
		t.Errorf("token endpoint hit %d times, want 1", got)
	}
	if sessionStore.TokenSet().IsAuthenticated {
		t.Error("session not cleared after persistent 401")
	}
}

func TestGatewayRefreshFailureClearsSession(t *testing.T) {
	t.Parallel()

	endpoint := &tokenEndpoint{respond: func(hit int64, w http.ResponseWriter, form url.Values) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	}}
	tokenSrv := httptest.NewServer(endpoint.handler(t))
	defer tokenSrv.Close()

	client, sessionStore := newTestClient(t, tokenSrv.URL)
	if err := sessionStore.SetTokenSet(expiredToken()); err != nil {
		t.Fatal(err)
	}

	_, err := client.GetProfile(context.Background())
	if !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("GetProfile() error = %v, want ErrSessionExpired", err)
	}
	if sessionStore.TokenSet().IsAuthenticated {
		t.Error("session not cleared after refresh failure")
	}
}

func TestGatewayExpiredWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	client, sessionStore := newTestClient(t, "")
	ts := expiredToken()
	ts.RefreshToken = ""
	if err := sessionStore.SetTokenSet(ts); err != nil {
		t.Fatal(err)
	}

	_, err := client.GetProfile(context.Background())
	if !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("GetProfile() error = %v, want ErrSessionExpired", err)
	}
	if !errors.Is(err, auth.ErrNoRefreshToken) {
		t.Errorf("error chain should carry ErrNoRefreshToken, got %v", err)
	}
	if sessionStore.TokenSet().IsAuthenticated {
		t.Error("session not cleared")
	}
}

func TestGatewayUpstreamErrorPassthrough(t *testing.T) {
	t.Parallel()

	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	}))
	defer dataSrv.Close()

	client, sessionStore := newTestClient(t, "")
	client.SetBaseURL(dataSrv.URL)
	if err := sessionStore.SetTokenSet(liveToken()); err != nil {
		t.Fatal(err)
	}

	_, err := client.GetProfile(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("GetProfile() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	// Non-401 upstream failures never touch the session.
	if !sessionStore.TokenSet().IsAuthenticated {
		t.Error("session cleared on a non-401 upstream error")
	}
}

func TestDateRangeQuery(t *testing.T) {
	t.Parallel()

	q, err := url.ParseQuery(dateRangeQuery(7))
	if err != nil {
		t.Fatal(err)
	}
	start, err := time.Parse("2006-01-02", q.Get("start"))
	if err != nil {
		t.Fatalf("start %q does not parse: %v", q.Get("start"), err)
	}
	end, err := time.Parse("2006-01-02", q.Get("end"))
	if err != nil {
		t.Fatalf("end %q does not parse: %v", q.Get("end"), err)
	}
	if diff := end.Sub(start); diff != 7*24*time.Hour {
		t.Errorf("range = %v, want 7 days", diff)
	}

	// Zero and negative day counts fall back to the default week.
	qDefault, err := url.ParseQuery(dateRangeQuery(0))
	if err != nil {
		t.Fatal(err)
	}
	if qDefault.Get("start") != q.Get("start") {
		t.Errorf("dateRangeQuery(0) start = %q, want the 7-day default %q", qDefault.Get("start"), q.Get("start"))
	}
}

func TestGetRecoveryDecodesRecords(t *testing.T) {
	t.Parallel()

	dataSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/recovery" {
			t.Errorf("path = %q, want /v1/recovery", r.URL.Path)
		}
		if r.URL.Query().Get("start") == "" || r.URL.Query().Get("end") == "" {
			t.Error("missing start/end range parameters")
		}
		_, _ = w.Write([]byte(`{"records":[{"cycle_id":11,"score":85,"resting_heart_rate":52,"hrv_rmssd_milli":68,"date":"2026-08-27"}]}`))
	}))
	defer dataSrv.Close()

	client, sessionStore := newTestClient(t, "")
	client.SetBaseURL(dataSrv.URL)
	if err := sessionStore.SetTokenSet(liveToken()); err != nil {
		t.Fatal(err)
	}

	records, err := client.GetRecovery(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetRecovery() error = %v", err)
	}
	if len(records) != 1 || records[0].CycleID != 11 || records[0].Score != 85 {
		t.Errorf("records = %+v", records)
	}
}
