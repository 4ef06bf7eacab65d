package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inaumanmajeed/epicrealm-support/internal/app"
	"github.com/inaumanmajeed/epicrealm-support/internal/auth"
	"github.com/inaumanmajeed/epicrealm-support/internal/config"
	"github.com/inaumanmajeed/epicrealm-support/internal/store"
	"github.com/inaumanmajeed/epicrealm-support/internal/store/sqlite"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			st, err := sqlite.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info().Str("db_path", cfg.DatabasePath).Msg("schema applied")
			return nil
		},
	}
}

type accountOptions struct {
	name     string
	email    string
	password string
	staff    bool
}

func newAccountCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	var aopts accountOptions
	create := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account, optionally with staff privileges",
		Args:  cobra.ExactArgs(1),
		Example: `  epicrealm-support account create agent --staff --password s3cret!
  epicrealm-support account create jane --name "Jane Doe"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			account, err := createAccount(cmd.Context(), cfg.DatabasePath, args[0], aopts)
			if err != nil {
				return err
			}
			logger.Info().
				Int64("account_id", account.ID).
				Str("username", account.Username).
				Bool("staff", account.IsAdmin).
				Msg("account created")
			return nil
		},
	}
	create.Flags().StringVar(&aopts.name, "name", "", "display name")
	create.Flags().StringVar(&aopts.email, "email", "", "email address")
	create.Flags().StringVar(&aopts.password, "password", "", "password (hashed with bcrypt)")
	create.Flags().BoolVar(&aopts.staff, "staff", false, "grant staff privileges")

	cmd.AddCommand(create)
	return cmd
}

func createAccount(ctx context.Context, dbPath, username string, opts accountOptions) (*store.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("username is required")
	}

	account := &store.Account{
		Username: username,
		Name:     strings.TrimSpace(opts.name),
		Email:    strings.TrimSpace(opts.email),
		IsAdmin:  opts.staff,
	}
	if opts.password != "" {
		hash, err := auth.HashPassword(opts.password)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = hash
	}

	st, err := sqlite.New(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if err := st.CreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func mintToken(ctx context.Context, cfg *config.Config, username string) (string, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return "", err
	}
	defer st.Close()

	account, err := st.GetAccountByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("lookup %q: %w", username, err)
	}
	return auth.GenerateToken(app.JWTConfig(cfg), account.ID, account.Username)
}
