package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/SonianW/MetaPrompter/internal/auth"
	"github.com/SonianW/MetaPrompter/internal/config"
	"github.com/SonianW/MetaPrompter/internal/database"
	"github.com/SonianW/MetaPrompter/internal/llm"
	"github.com/SonianW/MetaPrompter/internal/prompt"
)

// app holds what PersistentPreRunE builds for the subcommands.
type app struct {
	factory   llm.Factory
	cfg       *config.Config
	lifecycle *prompt.Lifecycle
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	if err := newRootCmd(llm.NewChatModel).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(factory llm.Factory) *cobra.Command {
	a := &app{factory: factory}

	root := &cobra.Command{
		Use:           "promptctl",
		Short:         "MetaPrompter command line",
		Long:          "promptctl runs the prompt lifecycle operations against the configured LLM and manages the database schema.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			a.cfg = cfg
			a.lifecycle = prompt.NewLifecycle(prompt.NewRegistry(), llm.NewProvider(llm.ConfigFrom(cfg.LLM), a.factory))
			return nil
		},
	}

	root.AddCommand(
		a.migrateCmd(),
		a.tokenCmd(),
		a.templatesCmd(),
		a.generateCmd(),
		a.optimizeCmd(),
		a.evaluateCmd(),
		a.analyzeCmd(),
		a.compareCmd(),
	)
	return root
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Database.URL == "" {
				return fmt.Errorf("DATABASE_URL is not set")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			pool, err := database.NewPool(ctx, a.cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := database.RunMigrations(ctx, pool, database.Source(a.cfg.Database.MigrationsPath))
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
			}
			return nil
		},
	}
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		user  string
		email string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			id := uuid.New()
			if user != "" {
				parsed, err := uuid.Parse(user)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
				id = parsed
			}

			token, err := auth.IssueToken(a.cfg.Auth.JWTSecret, id, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user ID to embed (random when empty)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
