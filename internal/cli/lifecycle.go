package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
)

func init() {
	rootCmd.AddCommand(startCmd, pauseCmd, resumeCmd, stopCmd)
}

var startCmd = &cobra.Command{
	Use:   "start <test>",
	Short: "Start a draft or paused test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(eng *engine.Engine) error {
			id, err := resolveTest(eng, args[0])
			if err != nil {
				return err
			}
			if err := eng.StartTest(id); err != nil {
				return err
			}
			fmt.Printf("Test %s is running.\n", shortID(id))
			return nil
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <test>",
	Short: "Pause a running test",
	Long: `Pause a running test. Paused tests hand out no new assignments and
accept no events; existing assignments are kept and apply again on resume.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(eng *engine.Engine) error {
			id, err := resolveTest(eng, args[0])
			if err != nil {
				return err
			}
			if err := eng.PauseTest(id); err != nil {
				return err
			}
			fmt.Printf("Test %s paused.\n", shortID(id))
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <test>",
	Short: "Resume a paused test",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(eng *engine.Engine) error {
			id, err := resolveTest(eng, args[0])
			if err != nil {
				return err
			}
			if err := eng.StartTest(id); err != nil {
				return err
			}
			fmt.Printf("Test %s is running again.\n", shortID(id))
			return nil
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <test>",
	Short: "Complete a running test and compute final results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(eng *engine.Engine) error {
			id, err := resolveTest(eng, args[0])
			if err != nil {
				return err
			}
			if err := eng.StopTest(id); err != nil {
				return err
			}

			test, err := eng.GetTest(id)
			if err != nil {
				return err
			}

			fmt.Printf("Test '%s' completed.\n", test.Name)
			if r := test.Results; r != nil {
				fmt.Printf("Participants: %d\n", r.TotalParticipants)
				if r.Winner != "" {
					fmt.Printf("Winner on %s: %s (%.1f%% confidence)\n",
						test.TargetMetric, r.Winner, r.StatisticalSignificance*100)
				}
			}
			fmt.Printf("\nRun 'expstack results %s' for the full breakdown.\n", shortID(id))
			return nil
		})
	},
}
