package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
)

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export [test]",
		Short: "Export test data for offline analysis",
		Long: `Export tests, assignments, and events as JSON. With a test argument
the payload is filtered to that test; completed tests include their final
results snapshot.

Examples:
  expstack export > all-tests.json
  expstack export feature-count --out feature-count.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(eng *engine.Engine) error {
				var testID string
				if len(args) == 1 {
					id, err := resolveTest(eng, args[0])
					if err != nil {
						return err
					}
					testID = id
				}

				blob, err := eng.ExportTestData(testID)
				if err != nil {
					return fmt.Errorf("failed to export: %w", err)
				}

				if outPath != "" {
					if err := os.WriteFile(outPath, []byte(blob), 0644); err != nil {
						return fmt.Errorf("failed to write %s: %w", outPath, err)
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", outPath)
					return nil
				}

				fmt.Fprintln(cmd.OutOrStdout(), blob)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	return cmd
}
