package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/router-for-me/ErasureRelay/internal/app"
	"github.com/router-for-me/ErasureRelay/internal/config"
	"github.com/router-for-me/ErasureRelay/internal/erasure"
	"github.com/router-for-me/ErasureRelay/internal/security"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook and admin HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, config.AppConfig{ConfigPath: configPath})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(cmd.Context(), config.AppConfig{ConfigPath: configPath})
		},
	}
}

func checkPasswordCmd() *cobra.Command {
	var printHash bool
	cmd := &cobra.Command{
		Use:   "check-password [password]",
		Short: "Validate an admin password against the password policy",
		Long: `Validate an admin password against the password policy.

Passwords need more than eight characters and at least one symbol.
With --hash the bcrypt hash is printed so it can be stored in AUTH_PASSWORD.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := security.ValidatePasswordPolicy(args[0]); err != nil {
				return err
			}
			if !printHash {
				fmt.Fprintln(cmd.OutOrStdout(), "password ok")
				return nil
			}
			hash, err := security.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
	cmd.Flags().BoolVar(&printHash, "hash", false, "print the bcrypt hash instead of a confirmation")
	return cmd
}

func signCmd() *cobra.Command {
	var (
		secret    string
		timestamp int64
	)
	cmd := &cobra.Command{
		Use:   "sign [body-file]",
		Short: "Print a Roblox-Signature header for a webhook body",
		Long: `Print a Roblox-Signature header for a webhook body.

The body is read from the given file, or from stdin when no file is given.

Examples:
  erasure-relay sign --secret s3cret payload.json
  cat payload.json | erasure-relay sign --secret s3cret --timestamp 1700000000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret is required")
			}
			body, err := readBody(cmd, args)
			if err != nil {
				return err
			}
			ts := timestamp
			if ts == 0 {
				ts = time.Now().Unix()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", erasure.SignatureHeaderName, erasure.SignatureHeader(secret, ts, body))
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "webhook secret")
	cmd.Flags().Int64Var(&timestamp, "timestamp", 0, "unix timestamp to sign (defaults to now)")
	return cmd
}

func readBody(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 {
		return io.ReadAll(cmd.InOrStdin())
	}
	body, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
