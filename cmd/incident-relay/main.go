package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bissquit/incident-relay/internal/app"
	"github.com/bissquit/incident-relay/internal/config"
	"github.com/bissquit/incident-relay/internal/relay"
	"github.com/bissquit/incident-relay/internal/version"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "incident-relay",
		Short: "Relay ServiceNow incidents to Status Dashboard",
		Long: `incident-relay receives incident insert/update triggers from ServiceNow,
builds the matching Status Dashboard event and posts it to the dashboard's
integration webhook, signed with the shared secret when one is configured.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_PATH"),
		"path to YAML config file (environment variables with prefix "+config.EnvPrefix+" override it)")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(previewCmd(&configPath))
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trigger API and metrics servers",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			application := app.New(*cfg)

			errCh := make(chan error, 1)
			go func() {
				errCh <- application.Run()
			}()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				slog.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := application.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return <-errCh
		},
	}
}

func previewCmd(configPath *string) *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the status event a trigger body would produce, without sending it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := app.NewLogger(cfg.Log, cmd.ErrOrStderr())

			in := cmd.InOrStdin()
			if inputPath != "" && inputPath != "-" {
				f, err := os.Open(inputPath)
				if err != nil {
					return fmt.Errorf("open input: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			var req relay.TriggerRequest
			if err := json.NewDecoder(in).Decode(&req); err != nil {
				return fmt.Errorf("decode trigger body: %w", err)
			}
			if req.Current.SysID == "" {
				return errors.New("trigger body has no current.sys_id")
			}

			service, querier := app.NewRelayService(*cfg, logger)
			event, err := service.Preview(cmd.Context(), req.ToRecord(querier))
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), event)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "file", "f", "-", "trigger body JSON file, - for stdin")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeJSON(cmd.OutOrStdout(), map[string]string{
				"version":    version.Version,
				"commit":     version.GitCommit,
				"build_date": version.BuildDate,
			})
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
