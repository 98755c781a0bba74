package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/punchamoorthee/invosafe/internal/auth"
	"github.com/punchamoorthee/invosafe/internal/client"
	"github.com/punchamoorthee/invosafe/internal/logger"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

var (
	apiURL   string
	apiToken string
	lenderID int64
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "invosafectl",
	Short: "Command-line client for the InvoSafe invoice service",
	Long: `invosafectl talks to a running InvoSafe API with a bearer token.

It runs bulk reconciliation files, exports invoices, inspects and buys
API credits, and looks up invoices across lenders.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logger.DefaultConfig()
		cfg.Level = logLevel
		cfg.Format = "console"
		cfg.Output = "stderr"
		return logger.Setup(cfg)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "url", envOr("INVOSAFE_URL", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("INVOSAFE_TOKEN"), "Bearer token (or INVOSAFE_TOKEN)")
	rootCmd.PersistentFlags().Int64Var(&lenderID, "lender", 0, "Lender to act for (admins only, required by bulk-update)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

func newClient() *client.Client {
	return client.New(apiURL, auth.NewTokenSession(apiToken))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
