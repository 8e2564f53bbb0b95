// Package browser opens the WHOOP authorization URL in the user's default
// browser during terminal login.
package browser

import (
	"fmt"
	"os/exec"
	"runtime"

	log "github.com/sirupsen/logrus"
	"github.com/skratchdot/open-golang/open"
)

// linuxOpeners are tried in order when open-golang fails on Linux.
var linuxOpeners = []string{"xdg-open", "x-www-browser", "www-browser", "firefox", "chromium", "google-chrome"}

// OpenURL opens the URL in the default browser, falling back to
// platform-specific commands when the library route fails.
func OpenURL(url string) error {
	err := open.Run(url)
	if err == nil {
		return nil
	}
	log.Debugf("open-golang failed: %v, trying platform-specific commands", err)
	return openURLPlatformSpecific(url)
}

func openURLPlatformSpecific(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux":
		for _, opener := range linuxOpeners {
			if _, err := exec.LookPath(opener); err == nil {
				cmd = exec.Command(opener, url)
				break
			}
		}
		if cmd == nil {
			return fmt.Errorf("no suitable browser opener found")
		}
	default:
		return fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start browser command: %w", err)
	}
	return nil
}

// IsAvailable reports whether some way of opening a browser exists. Login mode
// prints the authorization URL instead of opening it when this is false.
func IsAvailable() bool {
	switch runtime.GOOS {
	case "darwin":
		_, err := exec.LookPath("open")
		return err == nil
	case "windows":
		_, err := exec.LookPath("rundll32")
		return err == nil
	case "linux":
		for _, opener := range linuxOpeners {
			if _, err := exec.LookPath(opener); err == nil {
				return true
			}
		}
		return false
	default:
		return false
	}
}
