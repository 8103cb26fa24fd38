package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"slotwatch/internal/app"
	"slotwatch/internal/config"
	"slotwatch/internal/domain"
	"slotwatch/internal/storage"
	logx "slotwatch/pkg/logx"
)

const maxErrorLen = 500

type rootFlags struct {
	config string
	dryRun bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// The token may sit in the environment before any config loaded.
		secrets := []string{os.Getenv("TG_TOKEN"), os.Getenv("REDIS_PASSWORD")}
		fmt.Fprintln(os.Stderr, "fatal:", logx.SafeError(err, maxErrorLen, secrets...))
		cancel()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:           "slotwatch",
		Short:         "Watch a booking calendar and alert a chat when slots open",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_, err := config.LoadDotEnv()
			return err
		},
	}
	root.PersistentFlags().StringVarP(&f.config, "config", "c", os.Getenv("SLOTWATCH_CONFIG"), "config file (.json, .yaml); env-only when empty")
	root.PersistentFlags().BoolVar(&f.dryRun, "dry-run", false, "keep state in memory and print alerts instead of sending them")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Process commands, scan the calendar and send alerts once",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
					_, err := a.RunOnce(ctx)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "schedule",
			Short: "Run on the configured schedule until stopped",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
					return a.Schedule(ctx)
				})
			},
		},
		&cobra.Command{
			Use:   "state",
			Short: "Print the durable state as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withApp(cmd, f, func(ctx context.Context, a *app.App) error {
					st, err := a.State(ctx)
					if err != nil {
						return err
					}
					return writeState(cmd.OutOrStdout(), st)
				})
			},
		},
	)
	return root
}

func withApp(cmd *cobra.Command, f *rootFlags, fn func(context.Context, *app.App) error) error {
	ctx := cmd.Context()
	a, err := app.New(ctx, config.NewConfigManager(f.config), app.Settings{DryRun: f.dryRun, Out: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	runErr := fn(ctx, a)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.Close(closeCtx); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return errors.New(logx.Redact(runErr.Error(), a.Secrets()...))
	}
	return nil
}

type stateView struct {
	Targets  []string                  `json:"target_dates"`
	Cursor   *int64                    `json:"inbound_cursor"`
	Counters map[string]domain.Counter `json:"notify_counters"`
	Dropped  []string                  `json:"dropped,omitempty"`
}

func writeState(w io.Writer, st storage.State) error {
	v := stateView{
		Targets:  []string{},
		Counters: map[string]domain.Counter{},
		Dropped:  st.Dropped,
	}
	if st.Targets != nil {
		v.Targets = st.Targets.Strings()
	}
	if st.Cursor.IsSet() {
		id := st.Cursor.ID()
		v.Cursor = &id
	}
	for k, c := range st.Counters {
		v.Counters[k] = c
	}
	sort.Strings(v.Dropped)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
