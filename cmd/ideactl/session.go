package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MegaGrindStone/idea-generator/internal/auth"
	"github.com/MegaGrindStone/idea-generator/internal/services"
	"github.com/spf13/cobra"
)

func newSessionCmd(a *app) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "session <user-id>",
		Short: "Mint a session token to sign in as a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.secret == "" {
				return errMissingSecret
			}

			return a.withStore(func(store services.BoltDB) error {
				logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
				identity := auth.NewIdentity(auth.NewIssuer([]byte(a.secret)), store, auth.Options{SessionTTL: ttl}, logger)

				token, err := identity.IssueSession(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("user %s: %w", args[0], err)
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "lifetime of the session token")

	return cmd
}
