package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/nhle/wardboard/internal/api"
	"github.com/nhle/wardboard/internal/credential"
	"github.com/nhle/wardboard/internal/dashboard"
	"github.com/nhle/wardboard/internal/logging"
	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/store"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "wardboard",
		Short:         "Real-time hospital ward dashboard",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", model.DefaultConfigPath(), "Path to the configuration file")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(syncCmd(&configPath))
	rootCmd.AddCommand(loginCmd(&configPath))
	rootCmd.AddCommand(logoutCmd(&configPath))
	rootCmd.AddCommand(prefsCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// env is everything a command needs, opened from the configuration.
type env struct {
	cfg    *model.AppConfig
	logger zerolog.Logger
	store  store.Store
	prefs  store.Prefs
	svc    *dashboard.Service

	closers []io.Closer
}

// openEnv loads the configuration and opens the store and the dashboard
// service. logger decides where logs go; the TUI passes a file logger.
func openEnv(ctx context.Context, configPath string, logger func(model.LogConfig) (zerolog.Logger, io.Closer, error)) (*env, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logger(cfg.Log)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: log}
	if logCloser != nil {
		e.closers = append(e.closers, logCloser)
	}

	st, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Backend, err)
	}
	e.store = st
	e.prefs = store.Prefs{Store: st}
	e.closers = append(e.closers, st)

	var tokens dashboard.TokenStore = credential.NewKeyring()
	if cfg.Auth.TokenBackend == "store" {
		tokens = e.prefs
	}

	client := api.NewClient(cfg.Server.BaseURL, cfg.Server.RequestTimeout)
	e.svc = dashboard.New(cfg, client, tokens, log, dashboard.WithPrefs(e.prefs))

	log.Debug().
		Str("base_url", cfg.Server.BaseURL).
		Str("storage", cfg.Storage.Backend).
		Str("token_backend", cfg.Auth.TokenBackend).
		Msg("environment opened")
	return e, nil
}

// Close ends the session without forgetting the token and releases the
// store and log file, most recently opened first.
func (e *env) Close() {
	if e.svc != nil {
		e.svc.Close()
	}
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i].Close()
	}
}

// stderrLogger logs to the terminal for the non-interactive commands.
func stderrLogger(cfg model.LogConfig) (zerolog.Logger, io.Closer, error) {
	return logging.New(os.Stderr, cfg), nil, nil
}
