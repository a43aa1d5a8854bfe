package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func fanoutCmd() *cobra.Command {
	var users []string
	cmd := &cobra.Command{
		Use:   "fanout",
		Short: "Run one proactive scheduling pass (operational testing)",
		Long: "Runs a single fan-out pass immediately instead of waiting for the serve " +
			"timer. With --users the pass covers exactly those ids; otherwise every active user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				if err := eng.fanout.RunOnce(ctx, users); err != nil {
					return fmt.Errorf("fanout pass had failures: %w", err)
				}
				eng.fanout.PollCron(ctx)
				fmt.Println("fanout pass complete")
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&users, "users", nil, "explicit user ids to pass over")
	return cmd
}
