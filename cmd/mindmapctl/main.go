// Package main provides mindmapctl, the operator CLI for the mindmap API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Hampusfredrik/mindmap/infrastructure/config"
	"github.com/Hampusfredrik/mindmap/infrastructure/di"
)

var rootCmd = &cobra.Command{
	Use:           "mindmapctl",
	Short:         "Operator tooling for the mindmap API",
	Long:          `mindmapctl mints development tokens and prepares storage backends. It reads the same environment and CONFIG_FILE as the API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a token for local editor use",
	Long:  `token signs with JWT_SECRET, or with JWT_PRIVATE_KEY when JWT_SIGNING_METHOD=RS256.`,
	RunE:  runToken,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the schema of the configured storage backend",
	RunE:  runMigrate,
}

var (
	tokenUser    string
	tokenEmail   string
	tokenExpiry  time.Duration
	migrateLimit time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User id to put in the token subject")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Optional email claim")
	tokenCmd.Flags().DurationVar(&tokenExpiry, "expiry", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")

	migrateCmd.Flags().DurationVar(&migrateLimit, "timeout", 3*time.Minute, "Give up after this long")

	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	generator, err := di.ProvideJWTGenerator(cfg, tokenExpiry)
	if err != nil {
		return fmt.Errorf("cannot mint tokens: %w", err)
	}
	token, err := generator.GenerateToken(tokenUser, tokenEmail)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), migrateLimit)
	defer cancel()

	storage, cleanup, err := di.ProvideStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := storage.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate %s: %w", storage.Backend, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s backend is ready\n", storage.Backend)
	return nil
}
