package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eldtechnologies/chatrix/internal/api/middleware"
	"github.com/eldtechnologies/chatrix/internal/config"
	"github.com/eldtechnologies/chatrix/internal/store"
)

func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Chatrix session token tools",
		Example: `  token secret
  token sign --user 6f1c... --ttl 24h
  token sign --create "Asha Verma" --email asha@example.com`,
	}

	cmd.AddCommand(newSecretCommand(), newSignCommand())
	return cmd
}

func newSecretCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "secret",
		Short: "Generate a random JWT_SECRET value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "JWT_SECRET=%s\n", base64.RawURLEncoding.EncodeToString(buf))
			return nil
		},
	}
}

type signOptions struct {
	userID string
	create string
	email  string
	ttl    time.Duration
}

func newSignCommand() *cobra.Command {
	var opts signOptions

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Mint a session token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if (opts.userID == "") == (opts.create == "") {
				return fmt.Errorf("exactly one of --user or --create is required")
			}

			var userID uuid.UUID
			if opts.userID != "" {
				userID, err = uuid.Parse(opts.userID)
				if err != nil {
					return fmt.Errorf("invalid --user: %w", err)
				}
			} else {
				userID, err = createUser(cmd.Context(), cfg, opts.create, opts.email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "created user %s\n", userID)
			}

			token, err := middleware.IssueToken([]byte(cfg.JWTSecret), userID, opts.ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.userID, "user", "", "Existing user ID")
	cmd.Flags().StringVar(&opts.create, "create", "", "Create a user with this full name first")
	cmd.Flags().StringVar(&opts.email, "email", "", "Email for --create")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 7*24*time.Hour, "Token lifetime")

	return cmd
}

func createUser(ctx context.Context, cfg *config.Config, name, email string) (uuid.UUID, error) {
	var users store.DataStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return uuid.Nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return uuid.Nil, err
		}
		users = pg
	} else {
		lite, err := store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return uuid.Nil, err
		}
		users = lite
	}
	defer users.Close()

	user, err := users.CreateUser(ctx, name, email, "")
	if err != nil {
		return uuid.Nil, err
	}
	return user.ID, nil
}

func main() {
	if err := NewTokenCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
