package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/heraldbot/herald/internal/hooks"
)

func hooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Inspect and tune per-user proactive hook cooldowns",
	}
	cmd.AddCommand(hooksShowCmd())
	cmd.AddCommand(hooksSetCooldownCmd())
	return cmd
}

func hooksShowCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's hook run state and effective cooldowns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				defs := hooks.BuiltinDefinitions(nil, hooks.Clients{})
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "HOOK\tPRIORITY\tCOOLDOWN(MIN)\tENABLED\tLAST RUN")
				for _, def := range defs {
					state, err := eng.stores.HookState.Get(ctx, userID, def.Name, def.DefaultCooldownMinutes)
					if err != nil {
						return err
					}
					lastRun := "never"
					if state.LastRunAt != nil {
						lastRun = state.LastRunAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%s\t%d\t%d\t%t\t%s\n",
						def.Name, def.Priority, state.CooldownMinutes, state.Enabled(), lastRun)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func hooksSetCooldownCmd() *cobra.Command {
	var (
		userID, hookName string
		minutes          int
	)
	cmd := &cobra.Command{
		Use:   "set-cooldown",
		Short: "Override a hook's cooldown for one user (0 disables the hook)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				defs := hooks.BuiltinDefinitions(nil, hooks.Clients{})
				known := false
				for _, def := range defs {
					if def.Name == hookName {
						known = true
						break
					}
				}
				if !known {
					return fmt.Errorf("unknown hook %q", hookName)
				}
				if minutes < 0 {
					return fmt.Errorf("cooldown must be >= 0")
				}
				return eng.stores.HookState.SetCooldown(ctx, userID, hookName, minutes)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&hookName, "hook", "", "hook name (required)")
	cmd.Flags().IntVar(&minutes, "minutes", 0, "cooldown minutes, 0 disables")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("hook")
	return cmd
}
