// Package cmd implements the terminal-driven WHOOP login flow invoked by the
// -login flag: it stands up the local callback server, opens the browser, and
// completes the code exchange without the dashboard UI.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	auth "github.com/pulseboard/pulseboard/internal/auth/whoop"
	"github.com/pulseboard/pulseboard/internal/browser"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/misc"
	"github.com/pulseboard/pulseboard/internal/store"
	"github.com/pulseboard/pulseboard/internal/whoop"
)

// callbackTimeout is how long the flow waits for the browser redirect.
const callbackTimeout = 5 * time.Minute

// LoginOptions control the terminal login flow.
type LoginOptions struct {
	// NoBrowser prints the authorization URL instead of opening it.
	NoBrowser bool
	// CallbackPort overrides the port parsed from the redirect URI.
	CallbackPort int
}

// DoWhoopLogin runs the authorization flow end to end and persists the
// session to the configured auth directory.
func DoWhoopLogin(cfg *config.Config, options *LoginOptions) {
	if options == nil {
		options = &LoginOptions{}
	}

	port, err := callbackPort(cfg, options)
	if err != nil {
		log.Errorf("failed to determine callback port: %v", err)
		return
	}

	authDir, err := config.ResolveAuthDir(cfg.AuthDir)
	if err != nil {
		log.Errorf("failed to resolve auth directory: %v", err)
		return
	}
	sessionStore, err := store.NewSessionStore(authDir)
	if err != nil {
		log.Errorf("failed to open session store: %v", err)
		return
	}
	client := whoop.NewClient(cfg, sessionStore)

	loginURL, err := client.GetLoginURL()
	if err != nil {
		log.Error(auth.GetUserFriendlyMessage(err))
		return
	}

	callbackServer := auth.NewOAuthServer(port)
	if err = callbackServer.Start(); err != nil {
		// Port taken, likely by a running PulseBoard server. Fall back to
		// letting the user paste the redirect URL from the browser.
		log.Warnf("failed to start callback server on port %d: %v", port, err)
		manualLogin(client, loginURL, authDir)
		return
	}
	defer func() {
		if errStop := callbackServer.Stop(context.Background()); errStop != nil {
			log.Warnf("failed to stop callback server: %v", errStop)
		}
	}()

	if options.NoBrowser || !browser.IsAvailable() {
		fmt.Println("Open this URL in your browser to connect your WHOOP account:")
		fmt.Println(loginURL)
	} else {
		fmt.Println("Opening browser for WHOOP authorization...")
		if errOpen := browser.OpenURL(loginURL); errOpen != nil {
			log.Warnf("failed to open browser: %v", errOpen)
			fmt.Println("Open this URL in your browser to connect your WHOOP account:")
			fmt.Println(loginURL)
		}
	}

	result, err := callbackServer.WaitForCallback(callbackTimeout)
	if err != nil {
		log.Error(auth.GetUserFriendlyMessage(auth.NewAuthenticationError(auth.ErrCallbackTimeout, err)))
		return
	}
	if result.Error != "" {
		log.Errorf("authorization rejected: %s (%s)", result.Error, result.ErrorDescription)
		return
	}

	completeLogin(client, result.Code, result.State, authDir)
}

// manualLogin completes the flow without a local callback server: the user
// authorizes in the browser and pastes the resulting redirect URL back.
func manualLogin(client *whoop.Client, loginURL, authDir string) {
	fmt.Println("Open this URL in your browser to connect your WHOOP account:")
	fmt.Println(loginURL)
	fmt.Println()
	fmt.Println("After authorizing, paste the full redirect URL here:")

	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		log.Errorf("failed to read callback URL: %v", err)
		return
	}

	callback, err := misc.ParseOAuthCallback(line)
	if err != nil {
		log.Errorf("invalid callback URL: %v", err)
		return
	}
	if callback == nil {
		log.Error("no callback URL provided")
		return
	}
	if callback.Error != "" {
		log.Errorf("authorization rejected: %s (%s)", callback.Error, callback.ErrorDescription)
		return
	}

	completeLogin(client, callback.Code, callback.State, authDir)
}

func completeLogin(client *whoop.Client, code, state, authDir string) {
	if err := client.HandleAuthCallback(context.Background(), code, state); err != nil {
		log.Error(auth.GetUserFriendlyMessage(err))
		return
	}
	fmt.Println("WHOOP account connected. Session saved to", authDir)
}

// callbackPort picks the port the callback server binds: the explicit
// override first, then the port of the configured redirect URI.
func callbackPort(cfg *config.Config, options *LoginOptions) (int, error) {
	if options.CallbackPort > 0 {
		return options.CallbackPort, nil
	}

	redirect, err := url.Parse(cfg.Whoop.RedirectURI)
	if err != nil {
		return 0, fmt.Errorf("invalid redirect URI %q: %w", cfg.Whoop.RedirectURI, err)
	}
	if portStr := redirect.Port(); portStr != "" {
		return strconv.Atoi(portStr)
	}
	if redirect.Scheme == "https" {
		return 443, nil
	}
	return 80, nil
}
