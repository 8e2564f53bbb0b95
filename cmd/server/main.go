// Package main is the PulseBoard server entry point. It serves the dashboard
// API that connects a WHOOP account over OAuth and exposes recovery, strain
// and sleep data; the -login flag runs the authorization flow from the
// terminal instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pulseboard/pulseboard/internal/api"
	"github.com/pulseboard/pulseboard/internal/buildinfo"
	"github.com/pulseboard/pulseboard/internal/cmd"
	"github.com/pulseboard/pulseboard/internal/config"
	"github.com/pulseboard/pulseboard/internal/logging"
	"github.com/pulseboard/pulseboard/internal/store"
	"github.com/pulseboard/pulseboard/internal/watcher"
	"github.com/pulseboard/pulseboard/internal/whoop"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	fmt.Printf("PulseBoard Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)

	var login bool
	var noBrowser bool
	var callbackPort int
	var configPath string

	flag.BoolVar(&login, "login", false, "Connect a WHOOP account from the terminal")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.IntVar(&callbackPort, "callback-port", 0, "Override OAuth callback port (defaults to the redirect URI port)")
	flag.StringVar(&configPath, "config", "config.yaml", "Configure File Path")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}

	// Client credentials usually live in .env next to the binary.
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	if !filepath.IsAbs(configPath) {
		configPath = filepath.Join(wd, configPath)
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}
	if err = logging.ConfigureLogOutput(cfg); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		return
	}

	if login {
		cmd.DoWhoopLogin(cfg, &cmd.LoginOptions{
			NoBrowser:    noBrowser,
			CallbackPort: callbackPort,
		})
		return
	}

	runServer(cfg, configPath)
}

// runServer starts the dashboard API and the config watcher, stopping both on
// SIGINT/SIGTERM.
func runServer(cfg *config.Config, configPath string) {
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
	server := api.NewServer(cfg, client)

	configWatcher, err := watcher.NewWatcher(configPath, func(newCfg *config.Config) {
		server.UpdateConfig(newCfg)
	})
	if err != nil {
		log.Errorf("failed to create config watcher: %v", err)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Run(groupCtx)
	})
	group.Go(func() error {
		return configWatcher.Start(groupCtx)
	})

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("server exited with error: %v", err)
		return
	}
	log.Info("PulseBoard stopped")
}
