// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// foyer is a terminal Matrix chat client.
//
// On first run it prompts for homeserver credentials, logs in, and
// seals the resulting access token to disk under a passphrase. Later
// runs unseal the saved session and resume from the cached client
// state, so startup shows the last known rooms immediately while the
// first incremental sync catches up in the background.
//
// "foyer logout" invalidates the server-side session and removes the
// sealed session file and the state cache.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/foyer/chatui"
	"github.com/bureau-foundation/foyer/client"
	"github.com/bureau-foundation/foyer/lib/config"
	"github.com/bureau-foundation/foyer/lib/secret"
	"github.com/bureau-foundation/foyer/lib/tui"
	"github.com/bureau-foundation/foyer/lib/version"
	"github.com/bureau-foundation/foyer/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var homeserverURL string
	var dataDir string
	var username string
	var showVersion bool

	flagSet := pflag.NewFlagSet("foyer", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to config file (default: $FOYER_CONFIG)")
	flagSet.StringVar(&homeserverURL, "homeserver", "", "homeserver base URL (overrides config)")
	flagSet.StringVar(&dataDir, "data-dir", "", "session and cache directory (overrides config)")
	flagSet.StringVarP(&username, "user", "u", "", "username for first login")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if showVersion {
		fmt.Println("foyer " + version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if homeserverURL != "" {
		cfg.HomeserverURL = homeserverURL
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	args := flagSet.Args()
	switch {
	case len(args) == 0:
		return runChat(cfg, username)
	case args[0] == "logout" && len(args) == 1:
		return runLogout(cfg)
	default:
		return fmt.Errorf("unexpected argument: %s", args[0])
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// openLogger returns a logger writing JSON records to the configured
// log file. The TUI owns the terminal, so without a log file the
// records are discarded rather than scribbled over the display.
func openLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if cfg.LogFile == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), func() {}, nil
	}
	file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(file, nil))
	return logger, func() { file.Close() }, nil
}

func runChat(cfg *config.Config, username string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return err
	}

	logger, closeLogger, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()

	matrixClient, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	session, err := openSession(matrixClient, cfg, username)
	if err != nil {
		return err
	}
	defer session.Close()

	cache, err := client.NewCache(cfg.CachePath())
	if err != nil {
		return err
	}
	initial, err := cache.Load()
	if err != nil {
		// A corrupt or stale cache is recoverable: discard it and
		// resync from scratch.
		logger.Warn("discarding unreadable state cache", "error", err)
		if removeErr := cache.Remove(); removeErr != nil {
			return fmt.Errorf("removing unreadable cache: %w", removeErr)
		}
		initial = nil
	}

	syncer, err := client.NewSyncer(client.Config{
		Session:         session,
		Initial:         initial,
		SyncTimeout:     cfg.SyncTimeout,
		HistoryPageSize: cfg.HistoryPageSize,
		Cache:           cache,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	syncerDone := make(chan struct{})
	go func() {
		defer close(syncerDone)
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sync loop exited", "error", err)
		}
	}()

	program := tea.NewProgram(
		chatui.New(ctx, syncer, tui.DefaultTheme()),
		tea.WithAltScreen(),
	)
	_, runErr := program.Run()

	// Stop the syncer and wait for its final cache save.
	cancel()
	<-syncerDone
	return runErr
}

// openSession restores the sealed session from disk, or performs an
// interactive first login and seals the result.
func openSession(matrixClient *messaging.Client, cfg *config.Config, username string) (*messaging.DirectSession, error) {
	store := client.NewSessionStore(cfg.SessionPath())

	if store.Exists() {
		passphrase, err := secret.ReadPassword("session passphrase: ")
		if err != nil {
			return nil, err
		}
		defer passphrase.Close()
		session, _, err := store.Load(matrixClient, passphrase)
		if err != nil {
			return nil, fmt.Errorf("unsealing session (remove %s to log in again): %w", cfg.SessionPath(), err)
		}
		return session, nil
	}

	if username == "" {
		fmt.Fprintf(os.Stderr, "username on %s: ", cfg.HomeserverURL)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading username: %w", err)
		}
		username = strings.TrimSpace(line)
		if username == "" {
			return nil, fmt.Errorf("username is required for first login")
		}
	}

	password, err := secret.ReadPassword("password: ")
	if err != nil {
		return nil, err
	}
	defer password.Close()

	session, err := matrixClient.Login(context.Background(), username, password)
	if err != nil {
		return nil, err
	}

	passphrase, err := secret.ReadPassword("new session passphrase: ")
	if err != nil {
		session.Close()
		return nil, err
	}
	defer passphrase.Close()

	stored := client.StoredSession{
		UserID:        session.UserID(),
		AccessToken:   session.AccessToken(),
		DeviceID:      session.DeviceID(),
		HomeserverURL: cfg.HomeserverURL,
	}
	if err := store.Save(stored, passphrase); err != nil {
		session.Close()
		return nil, fmt.Errorf("saving session: %w", err)
	}
	return session, nil
}

func runLogout(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	store := client.NewSessionStore(cfg.SessionPath())
	if !store.Exists() {
		return fmt.Errorf("no saved session at %s", cfg.SessionPath())
	}

	matrixClient, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.HomeserverURL,
		Logger:        slog.New(slog.NewJSONHandler(io.Discard, nil)),
	})
	if err != nil {
		return err
	}

	passphrase, err := secret.ReadPassword("session passphrase: ")
	if err != nil {
		return err
	}
	defer passphrase.Close()

	session, _, err := store.Load(matrixClient, passphrase)
	if err != nil {
		return fmt.Errorf("unsealing session: %w", err)
	}
	defer session.Close()

	// Invalidate server-side first; the local files go regardless.
	if err := session.Logout(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "warning: server logout failed: %v\n", err)
	}
	if err := store.Remove(); err != nil {
		return err
	}
	cache, err := client.NewCache(cfg.CachePath())
	if err != nil {
		return err
	}
	if err := cache.Remove(); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `foyer — terminal Matrix chat client.

On first run, foyer prompts for credentials, logs in to the
homeserver, and seals the session to disk under a passphrase. Later
runs unseal the saved session and resume from the cached state.

Usage:
  foyer [flags]
  foyer logout

Flags:
%s
Configuration is read from $FOYER_CONFIG (or --config), a YAML file;
see lib/config for the schema. --homeserver and --data-dir override
the file.
`, flagSet.FlagUsages())
}
