package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avvvet/rhoai-intent/internal/app"
	"github.com/avvvet/rhoai-intent/internal/audit"
	"github.com/avvvet/rhoai-intent/internal/config"
	"github.com/avvvet/rhoai-intent/internal/intent"
	"github.com/avvvet/rhoai-intent/internal/memory"
	"github.com/avvvet/rhoai-intent/internal/models"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rhoai-intent",
		Short:         "Natural-language operations for OpenShift AI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newParseCmd(), newServeCmd(), newSessionsCmd(), newAuditCmd())
	return root
}

func newParseCmd() *cobra.Command {
	var history []string
	cmd := &cobra.Command{
		Use:   "parse QUERY...",
		Short: "Parse a query offline and print the intent as JSON",
		Example: `  rhoai-intent parse "Scale sentiment-analysis to 5 replicas"
  rhoai-intent parse --context "The sentiment-analysis model is running with 2 replicas." "Scale it to 5 replicas"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd.OutOrStdout(), strings.Join(args, " "), history)
		},
	}
	cmd.Flags().StringArrayVar(&history, "context", nil, "prior assistant message, oldest first (repeatable)")
	return cmd
}

type parseOutput struct {
	Intent          *models.Intent `json:"intent"`
	ValidationError string         `json:"validation_error,omitempty"`
}

func runParse(out io.Writer, query string, prior []string) error {
	history := make([]models.ConversationMessage, 0, len(prior))
	for _, c := range prior {
		history = append(history, models.ConversationMessage{Role: memory.RoleAssistant, Content: c})
	}
	in, err := intent.NewParser().ParseIntent(query, history)
	if err != nil {
		return err
	}
	result := parseOutput{Intent: in}
	if err := intent.ValidateIntent(in); err != nil {
		result.ValidationError = err.Error()
	}
	return writeJSON(out, result)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and NATS service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(ctx)
		},
	}
}

// withSessions runs fn against the configured session store.
func withSessions(fn func(ctx context.Context, m *memory.Manager, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required: in-memory sessions only live inside the server")
		}
		m, _, err := app.OpenSessions(cfg, logger)
		if err != nil {
			return err
		}
		defer m.Close()
		return fn(cmd.Context(), m, args)
	}
}

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and maintain conversation sessions",
	}

	show := &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Print a session transcript",
		Args:  cobra.ExactArgs(1),
	}
	show.RunE = withSessions(func(ctx context.Context, m *memory.Manager, args []string) error {
		text, err := m.Transcript(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(show.OutOrStdout(), text)
		return nil
	})

	var idle time.Duration
	expire := &cobra.Command{
		Use:   "expire",
		Short: "Expire sessions idle for longer than --idle",
		Args:  cobra.NoArgs,
	}
	expire.Flags().DurationVar(&idle, "idle", 720*time.Hour, "inactivity before a session expires")
	expire.RunE = withSessions(func(ctx context.Context, m *memory.Manager, args []string) error {
		n, err := m.ExpireIdle(ctx, idle)
		if err != nil {
			return err
		}
		fmt.Fprintf(expire.OutOrStdout(), "expired %d sessions\n", n)
		return nil
	})

	del := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "Delete a session and its messages",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = withSessions(func(ctx context.Context, m *memory.Manager, args []string) error {
		return m.Delete(ctx, args[0])
	})

	cmd.AddCommand(show, expire, del)
	return cmd
}

// withAudit runs fn against the Postgres audit store.
func withAudit(fn func(ctx context.Context, r audit.Reader, args []string) ([]audit.Entry, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		store, closeStore, err := app.OpenAudit(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer closeStore()
		if store == nil {
			return errors.New("DATABASE_URL is required")
		}
		entries, err := fn(cmd.Context(), store, args)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	}
}

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the audit log",
	}
	var (
		since time.Duration
		limit int
	)
	cmd.PersistentFlags().DurationVar(&since, "since", 0, "only entries newer than this (0 means all)")
	cmd.PersistentFlags().IntVar(&limit, "limit", 0, "maximum entries (0 uses the default)")
	from := func() time.Time {
		if since <= 0 {
			return time.Time{}
		}
		return time.Now().Add(-since)
	}

	user := &cobra.Command{
		Use:   "user USER_ID",
		Short: "Show a user's activity, newest first",
		Args:  cobra.ExactArgs(1),
	}
	user.RunE = withAudit(func(ctx context.Context, r audit.Reader, args []string) ([]audit.Entry, error) {
		return r.UserActivity(ctx, args[0], from(), time.Time{}, limit)
	})

	session := &cobra.Command{
		Use:   "session SESSION_ID",
		Short: "Show a session's audit trail, oldest first",
		Args:  cobra.ExactArgs(1),
	}
	session.RunE = withAudit(func(ctx context.Context, r audit.Reader, args []string) ([]audit.Entry, error) {
		return r.SessionTrail(ctx, args[0])
	})

	failed := &cobra.Command{
		Use:   "failed",
		Short: "Show failed operations, newest first",
		Args:  cobra.NoArgs,
	}
	failed.RunE = withAudit(func(ctx context.Context, r audit.Reader, args []string) ([]audit.Entry, error) {
		return r.FailedOperations(ctx, from(), time.Time{}, limit)
	})

	cmd.AddCommand(user, session, failed)
	return cmd
}
