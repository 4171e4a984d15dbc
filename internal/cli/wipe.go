package cli

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
)

func init() {
	rootCmd.AddCommand(newWipeCmd())
}

func newWipeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all tests, assignments, and events",
		Long: `Delete every test, assignment, and event, in memory and in storage.
This is the only operation that removes assignments.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				prompt := promptui.Prompt{
					Label:     "Wipe all experiment data",
					IsConfirm: true,
				}
				if _, err := prompt.Run(); err != nil {
					fmt.Println("Aborted.")
					return nil
				}
			}

			return withEngine(func(eng *engine.Engine) error {
				if err := eng.Wipe(context.Background()); err != nil {
					return fmt.Errorf("failed to wipe: %w", err)
				}
				fmt.Println("All experiment data wiped.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation")
	return cmd
}
