package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/wardboard/internal/app"
	"github.com/nhle/wardboard/internal/dashboard"
	"github.com/nhle/wardboard/internal/logging"
	"github.com/nhle/wardboard/internal/store"
	wsync "github.com/nhle/wardboard/internal/sync"
	"github.com/nhle/wardboard/internal/theme"
)

func runCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath, logging.OpenFile)
			if err != nil {
				return err
			}
			defer e.Close()

			mode, err := e.prefs.ThemeMode(ctx, e.cfg.Display.Theme)
			if err != nil {
				e.logger.Warn().Err(err).Msg("loading theme")
			}
			theme.Apply(mode)

			m := app.New(e.svc, app.WithPrefs(e.prefs), app.WithLogger(logging.Component(e.logger, "ui")))
			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
			if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("running dashboard: %w", err)
			}
			return nil
		},
	}
}

func syncCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the saved snapshot once and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := openEnv(ctx, *configPath, stderrLogger)
			if err != nil {
				return err
			}
			defer e.Close()

			user, err := e.svc.Restore(ctx)
			if errors.Is(err, dashboard.ErrNotAuthenticated) {
				return errors.New("not signed in; run 'wardboard login' first")
			}
			if err != nil {
				return err
			}

			// The session's first refresh starts on its own; wait for it.
			res, err := firstResult(ctx, e.svc.Synchronizer(), timeout)
			if err != nil {
				return err
			}
			if res.Err != nil {
				return fmt.Errorf("sync failed: %w", res.Err)
			}

			st := e.svc.State()
			fmt.Printf("Synced for %s (%s) at %s\n", user.Name, user.Role, res.State.LastSync.Local().Format(time.RFC3339))
			fmt.Printf("  patients:      %d\n", len(st.ActivePatients))
			fmt.Printf("  tasks:         %d\n", len(st.Tasks))
			fmt.Printf("  medications:   %d\n", len(st.Medications))
			fmt.Printf("  resources:     %d\n", len(st.Resources))
			fmt.Printf("  appointments:  %d\n", len(st.Appointments))
			fmt.Printf("  notifications: %d (%d unread)\n", len(st.Notifications), e.svc.UnreadCount())
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "How long to wait for the refresh")
	return cmd
}

// firstResult waits for the synchronizer's next completed attempt.
func firstResult(ctx context.Context, s *wsync.Synchronizer, timeout time.Duration) (wsync.ResultMsg, error) {
	if s == nil {
		return wsync.ResultMsg{}, errors.New("no active session")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := s.WaitForResult()
	done := make(chan wsync.ResultMsg, 1)
	go func() {
		if res, ok := wait().(wsync.ResultMsg); ok {
			done <- res
		}
	}()

	select {
	case res := <-done:
		return res, nil
	case <-ctx.Done():
		return wsync.ResultMsg{}, fmt.Errorf("waiting for sync: %w", ctx.Err())
	}
}

func loginCmd(configPath *string) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath, stderrLogger)
			if err != nil {
				return err
			}
			defer e.Close()

			var password string
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().Title("Username").Value(&username),
					huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&password),
				),
			)
			if err := form.RunWithContext(ctx); err != nil {
				return fmt.Errorf("reading credentials: %w", err)
			}

			user, err := e.svc.Login(ctx, username, password)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s).\n", user.Name, user.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "Username to prefill")
	return cmd
}

func logoutCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath, stderrLogger)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.svc.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func prefsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect or change locally stored preferences",
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "List stored keys, or print one value",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath, stderrLogger)
			if err != nil {
				return err
			}
			defer e.Close()

			if len(args) == 0 {
				keys, err := e.store.Keys(ctx)
				if err != nil {
					return fmt.Errorf("listing keys: %w", err)
				}
				for _, k := range keys {
					fmt.Println(k)
				}
				return nil
			}

			if args[0] == store.KeyAuthToken {
				fmt.Println("(hidden)")
				return nil
			}
			var raw json.RawMessage
			if err := e.store.GetValue(ctx, args[0], &raw); err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			fmt.Println(string(raw))
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set the theme (theme dark|light) or a named setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := openEnv(ctx, *configPath, stderrLogger)
			if err != nil {
				return err
			}
			defer e.Close()

			name, value := args[0], args[1]
			switch name {
			case "theme", store.KeyThemeMode:
				err = e.prefs.SetThemeMode(ctx, value)
			case "show_completed":
				var prefs store.Preferences
				prefs, err = e.prefs.Preferences(ctx)
				if err == nil {
					prefs.ShowCompleted = value == "true"
					err = e.prefs.SetPreferences(ctx, prefs)
				}
			default:
				err = e.prefs.SetSetting(ctx, name, value)
			}
			if err != nil {
				return fmt.Errorf("saving %s: %w", name, err)
			}
			return nil
		},
	}

	cmd.AddCommand(getCmd)
	cmd.AddCommand(setCmd)
	return cmd
}
