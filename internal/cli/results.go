package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
)

var resultsCmd = &cobra.Command{
	Use:   "results <test>",
	Short: "Show detailed results for a test",
	Long: `Show per-variant metrics, participant counts, and the significance
estimate. Works on running tests as a live preview; the stored snapshot
is only written when the test is stopped.`,
	Args: cobra.ExactArgs(1),
	RunE: runResults,
}

func init() {
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	return withEngine(func(eng *engine.Engine) error {
		id, err := resolveTest(eng, args[0])
		if err != nil {
			return err
		}

		test, err := eng.GetTest(id)
		if err != nil {
			return err
		}

		// Completed tests carry their frozen snapshot; otherwise compute
		// an interim one.
		results := test.Results
		if results == nil {
			results, err = eng.ComputeResults(id)
			if err != nil {
				return fmt.Errorf("failed to compute results: %w", err)
			}
		}

		fmt.Printf("TEST: %s (%s)\n", test.Name, shortID(test.ID))
		fmt.Printf("STATUS: %s\n", test.Status)
		fmt.Printf("METRIC: %s\n", test.TargetMetric)
		fmt.Printf("CREATED: %s\n", test.CreatedAt.Format("2006-01-02"))
		fmt.Println()

		fmt.Println("VARIANT           USERS    ENGAGEMENT  CONVERSION  CLICKS   COMPLETIONS  ERRORS")
		fmt.Println(strings.Repeat("─", 78))

		for _, v := range test.Variants {
			r := results.Variants[v.ID]
			if r == nil {
				continue
			}

			indicator := ""
			if v.ID == results.Winner && len(test.Variants) > 1 {
				indicator = " ← LEADING"
			}

			// Truncate name if too long
			name := v.ID
			if len(name) > 16 {
				name = name[:13] + "..."
			}

			fmt.Printf("%-16s  %-7d  %-10.2f  %-10s  %-7d  %-11d  %d%s\n",
				name,
				r.Participants,
				r.Metrics.FeatureEngagement,
				formatPercent(r.Metrics.ConversionRate),
				r.Counts.FeatureClicks,
				r.Counts.SessionCompletions,
				r.Counts.Errors,
				indicator,
			)
		}

		fmt.Println()
		fmt.Printf("Total participants: %d\n", results.TotalParticipants)

		if len(test.Variants) > 1 && results.Winner != "" {
			confPct := results.StatisticalSignificance * 100
			switch {
			case results.StatisticalSignificance >= 0.95:
				fmt.Printf("Statistical significance: %.1f%% confident \"%s\" is the winner\n", confPct, results.Winner)
			case results.StatisticalSignificance > 0.5:
				fmt.Printf("Statistical significance: %.1f%% confident \"%s\" leads (not yet significant)\n", confPct, results.Winner)
			default:
				fmt.Println("Statistical significance: Not enough data to determine a winner")
			}
			fmt.Printf("95%% CI (winner conversion): [%.1f%%, %.1f%%]\n",
				results.ConfidenceInterval[0]*100, results.ConfidenceInterval[1]*100)
		}

		return nil
	})
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}
