package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MegaGrindStone/idea-generator/internal/models"
	"github.com/MegaGrindStone/idea-generator/internal/services"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(
		newUserAddCmd(a),
		newUserListCmd(a),
		newUserSubscribeCmd(a),
		newUserUnsubscribeCmd(a),
	)

	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required")
			}

			return a.withStore(func(store services.BoltDB) error {
				u, err := store.AddUser(cmd.Context(), models.User{Name: name})
				if err != nil {
					return err
				}

				green := color.New(color.FgGreen)
				_, _ = green.Fprintf(cmd.OutOrStdout(), "Created user %s\n", u.Name)
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), u.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name of the user")

	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(func(store services.BoltDB) error {
				users, err := store.Users(cmd.Context())
				if err != nil {
					return err
				}
				if len(users) == 0 {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No users")
					return nil
				}

				cyan := color.New(color.FgCyan)
				for _, u := range users {
					tier := string(u.Subscription())
					if tier == "" {
						tier = "-"
					}
					_, _ = cyan.Fprint(cmd.OutOrStdout(), u.ID)
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\t%s\t%s\t%s\n", u.Name, tier, metadataString(u.PublicMetadata))
				}
				return nil
			})
		},
	}
}

func newUserSubscribeCmd(a *app) *cobra.Command {
	var tier string

	cmd := &cobra.Command{
		Use:   "subscribe <user-id>",
		Short: "Set the subscription tier of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tier == "" {
				return fmt.Errorf("--tier must not be empty, use unsubscribe to remove a subscription")
			}

			return a.withStore(func(store services.BoltDB) error {
				u, err := store.SetSubscription(cmd.Context(), args[0], models.Tier(tier))
				if err != nil {
					return err
				}

				green := color.New(color.FgGreen)
				_, _ = green.Fprintf(cmd.OutOrStdout(), "%s is now on %s\n", u.Name, u.Subscription())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tier, "tier", string(models.TierPremium), "subscription tier to set")

	return cmd
}

func newUserUnsubscribeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <user-id>",
		Short: "Remove the subscription of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(func(store services.BoltDB) error {
				u, err := store.SetSubscription(cmd.Context(), args[0], "")
				if err != nil {
					return err
				}

				yellow := color.New(color.FgYellow)
				_, _ = yellow.Fprintf(cmd.OutOrStdout(), "%s has no subscription\n", u.Name)
				return nil
			})
		},
	}
}

func metadataString(md map[string]any) string {
	if len(md) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%v", k, md[k]))
	}
	return "{" + strings.Join(pairs, " ") + "}"
}
