package whoop

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// OAuthServer is the local HTTP server that receives the WHOOP authorization
// redirect during the terminal login flow. It captures the code/state pair
// (or the provider's error) and hands it to the waiting login goroutine.
type OAuthServer struct {
	server     *http.Server
	port       int
	resultChan chan *OAuthResult
	errorChan  chan error
	mu         sync.Mutex
	running    bool
}

// OAuthResult contains the parameters delivered to the callback endpoint.
type OAuthResult struct {
	// Code is the authorization code received from WHOOP.
	Code string
	// State is the CSRF state parameter echoed back by the provider.
	State string
	// Error carries the provider-side error code when the flow was rejected.
	Error string
	// ErrorDescription carries the provider's human-readable rejection detail.
	ErrorDescription string
}

// NewOAuthServer creates a callback server listening on the given port.
func NewOAuthServer(port int) *OAuthServer {
	return &OAuthServer{
		port:       port,
		resultChan: make(chan *OAuthResult, 1),
		errorChan:  make(chan error, 1),
	}
}

// Start begins listening for the authorization redirect on /connect.
func (s *OAuthServer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	if !s.isPortAvailable() {
		return fmt.Errorf("port %d is already in use", s.port)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", s.handleCallback)
	mux.HandleFunc("/success", s.handleSuccess)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.running = true

	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.errorChan <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// Give server a moment to start
	time.Sleep(100 * time.Millisecond)

	return nil
}

// Stop gracefully shuts the callback server down.
func (s *OAuthServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	log.Debug("Stopping OAuth callback server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	s.running = false
	s.server = nil

	return err
}

// WaitForCallback blocks until a callback arrives, a server error occurs, or
// the timeout elapses.
func (s *OAuthServer) WaitForCallback(timeout time.Duration) (*OAuthResult, error) {
	select {
	case result := <-s.resultChan:
		return result, nil
	case err := <-s.errorChan:
		return nil, err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout waiting for OAuth callback")
	}
}

// handleCallback captures code/state or error/error_description from the
// redirect and forwards them to the waiting login flow. State validation
// happens in the flow, next to the stored value, not here.
func (s *OAuthServer) handleCallback(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received OAuth callback")

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	code := query.Get("code")
	state := query.Get("state")
	errorParam := query.Get("error")

	if errorParam != "" {
		description := query.Get("error_description")
		log.Errorf("OAuth error received: %s (%s)", errorParam, description)
		s.sendResult(&OAuthResult{Error: errorParam, ErrorDescription: description})
		http.Error(w, fmt.Sprintf("OAuth error: %s", errorParam), http.StatusBadRequest)
		return
	}

	if code == "" {
		log.Error("No authorization code received")
		s.sendResult(&OAuthResult{Error: "no_code"})
		http.Error(w, "No authorization code received", http.StatusBadRequest)
		return
	}

	if state == "" {
		log.Error("No state parameter received")
		s.sendResult(&OAuthResult{Error: "no_state"})
		http.Error(w, "No state parameter received", http.StatusBadRequest)
		return
	}

	s.sendResult(&OAuthResult{Code: code, State: state})

	http.Redirect(w, r, "/success", http.StatusFound)
}

// handleSuccess serves the post-login landing page.
func (s *OAuthServer) handleSuccess(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(loginSuccessHTML)); err != nil {
		log.Errorf("Failed to write success page: %v", err)
	}
}

// sendResult delivers the result without blocking the HTTP handler.
func (s *OAuthServer) sendResult(result *OAuthResult) {
	select {
	case s.resultChan <- result:
		log.Debug("OAuth result sent to channel")
	default:
		log.Warn("OAuth result channel is full, result dropped")
	}
}

// isPortAvailable checks whether the callback port can be bound.
func (s *OAuthServer) isPortAvailable() bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return false
	}
	defer func() {
		_ = listener.Close()
	}()
	return true
}

// IsRunning reports whether the server is currently listening.
func (s *OAuthServer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
