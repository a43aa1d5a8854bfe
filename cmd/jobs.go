package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/heraldbot/herald/internal/config"
	"github.com/heraldbot/herald/internal/cronjobs"
	"github.com/heraldbot/herald/internal/store"
)

func cronJobParams(userID, conversationID string, isGroup bool, name, prompt, schedule, timezone, notify string) cronjobs.CreateParams {
	return cronjobs.CreateParams{
		UserID:         userID,
		ConversationID: conversationID,
		IsGroup:        isGroup,
		Name:           name,
		Prompt:         prompt,
		CronSchedule:   schedule,
		Timezone:       timezone,
		NotifyMode:     store.NotifyMode(notify),
	}
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage user-authored scheduled jobs",
	}
	cmd.AddCommand(jobsListCmd())
	cmd.AddCommand(jobsAddCmd())
	cmd.AddCommand(jobsEnableCmd(true))
	cmd.AddCommand(jobsEnableCmd(false))
	cmd.AddCommand(jobsRemoveCmd())
	return cmd
}

// withEngine loads config, wires the engine, runs fn, and cleans up.
func withEngine(fn func(ctx context.Context, eng *engine) error) error {
	setupLogging()
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	eng, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer eng.close()
	return fn(context.Background(), eng)
}

func jobsListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				jobs, err := eng.stores.Jobs.ListByUser(ctx, userID)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSCHEDULE\tTZ\tNOTIFY\tENABLED\tNEXT RUN")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%t\t%s\n",
						j.ID, j.Name, j.CronSchedule, j.Timezone, j.NotifyMode,
						j.Enabled, j.NextRunAt.Format(time.RFC3339))
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.MarkFlagRequired("user")
	return cmd
}

func jobsAddCmd() *cobra.Command {
	var (
		userID, conversationID, name, prompt, schedule, timezone, notify string
		isGroup                                                          bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a scheduled job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				if conversationID == "" {
					conversationID = userID
				}
				job, err := eng.cron.CreateJob(ctx, cronJobParams(
					userID, conversationID, isGroup, name, prompt, schedule, timezone, notify))
				if err != nil {
					return err
				}
				fmt.Printf("created job %s (%s), next run %s\n",
					job.ID, job.Name, job.NextRunAt.Format(time.RFC3339))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owning user id (required)")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "target conversation (default: user's DM)")
	cmd.Flags().BoolVar(&isGroup, "group", false, "target is a group conversation")
	cmd.Flags().StringVar(&name, "name", "", "job name, unique per user (required)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "instruction the agent runs (required)")
	cmd.Flags().StringVar(&schedule, "cron", "", "cron expression (required)")
	cmd.Flags().StringVar(&timezone, "tz", "UTC", "IANA timezone for the schedule")
	cmd.Flags().StringVar(&notify, "notify", "always", "notify mode: always or significant")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("prompt")
	cmd.MarkFlagRequired("cron")
	return cmd
}

func jobsEnableCmd(enable bool) *cobra.Command {
	use, short := "enable <job-id>", "Enable a scheduled job"
	if !enable {
		use, short = "disable <job-id>", "Disable a scheduled job"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				return eng.cron.SetEnabled(ctx, args[0], enable)
			})
		},
	}
}

func jobsRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Delete a scheduled job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, eng *engine) error {
				return eng.stores.Jobs.Delete(ctx, args[0])
			})
		},
	}
}
