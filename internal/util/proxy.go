// Package util provides helper functions shared across the PulseBoard server,
// including outbound proxy configuration for the HTTP clients that talk to
// the WHOOP API.
package util

import (
	"context"
	"net"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"

	"github.com/pulseboard/pulseboard/internal/config"
)

// SetProxy configures the provided HTTP client with proxy settings from the
// configuration. SOCKS5, HTTP and HTTPS proxies are supported; anything else
// leaves the client untouched.
func SetProxy(cfg *config.Config, httpClient *http.Client) *http.Client {
	if cfg == nil || cfg.ProxyURL == "" {
		return httpClient
	}

	proxyURL, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		log.Errorf("invalid proxy-url %q: %v", cfg.ProxyURL, err)
		return httpClient
	}

	var transport *http.Transport
	switch proxyURL.Scheme {
	case "socks5":
		var proxyAuth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			proxyAuth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return httpClient
		}
		transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
		}
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	if transport != nil {
		httpClient.Transport = transport
	}
	return httpClient
}
