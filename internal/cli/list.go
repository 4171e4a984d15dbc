package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tests",
	Long:  `List all tests with their status, strategy, and target metric.`,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	return withEngine(func(eng *engine.Engine) error {
		tests := eng.ListAll()
		if len(tests) == 0 {
			fmt.Println("No tests yet.")
			fmt.Println()
			fmt.Println("Create one:")
			fmt.Println("  expstack create my-test --variants \"control:50,treatment:50\"")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tMETRIC\tSTRATEGY\tVARIANTS\tCREATED")

		for _, test := range tests {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				shortID(test.ID),
				test.Name,
				strings.ToUpper(string(test.Status)),
				test.TargetMetric,
				test.Allocation.Strategy,
				len(test.Variants),
				test.CreatedAt.Format("2006-01-02"),
			)
		}

		w.Flush()
		return nil
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
