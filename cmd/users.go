package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/heraldbot/herald/internal/store"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage accounts eligible for proactive scheduling",
	}
	cmd.AddCommand(usersListCmd())
	cmd.AddCommand(usersAddCmd())
	cmd.AddCommand(usersSetActiveCmd(true))
	cmd.AddCommand(usersSetActiveCmd(false))
	return cmd
}

func usersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				users, err := eng.stores.Users.ListActive(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME")
				for _, u := range users {
					fmt.Fprintf(w, "%s\t%s\n", u.ID, u.DisplayName)
				}
				return w.Flush()
			})
		},
	}
}

func usersAddCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <user-id>",
		Short: "Add or update a user (active by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				return eng.stores.Users.Upsert(ctx, store.User{
					ID:          args[0],
					DisplayName: name,
					Active:      true,
				})
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	return cmd
}

func usersSetActiveCmd(active bool) *cobra.Command {
	use, short := "activate <user-id>", "Include a user in proactive scheduling"
	if !active {
		use, short = "deactivate <user-id>", "Exclude a user from proactive scheduling"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				u, err := eng.stores.Users.Get(ctx, args[0])
				if err != nil {
					return err
				}
				u.Active = active
				return eng.stores.Users.Upsert(ctx, u)
			})
		},
	}
}
