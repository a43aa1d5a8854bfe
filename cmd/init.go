package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/heraldbot/herald/internal/bootstrap"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Seed a starter config file (never overwrites an existing one)",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			created, err := bootstrap.EnsureConfigFile(path)
			if err != nil {
				return fmt.Errorf("seed config: %w", err)
			}
			if created {
				fmt.Printf("wrote %s\n", path)
			} else {
				fmt.Printf("%s already exists, left untouched\n", path)
			}
			return nil
		},
	}
}
