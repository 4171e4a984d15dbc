package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
)

func init() {
	rootCmd.AddCommand(newTrackCmd())
}

func newTrackCmd() *cobra.Command {
	var dataJSON string

	cmd := &cobra.Command{
		Use:   "track <test> <user-id> <event-type>",
		Short: "Record a domain event for a user",
		Long: `Record an experiment event against the user's assigned variant.

Event types: feature_interaction, context_override, session_completed,
conversion, error_occurred.

Examples:
  expstack track feature-count u-123 feature_interaction
  expstack track feature-count u-123 session_completed --data '{"duration_ms":5400}'`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data map[string]any
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
					return fmt.Errorf("invalid --data JSON: %w", err)
				}
			}

			return withEngine(func(eng *engine.Engine) error {
				id, err := resolveTest(eng, args[0])
				if err != nil {
					return err
				}
				userID := args[1]
				eventType := engine.EventType(args[2])

				variantID, ok := eng.GetOrAssign(id, userID)
				if !ok {
					return fmt.Errorf("test %s is not running", args[0])
				}

				if err := eng.Record(id, variantID, userID, eventType, data); err != nil {
					return fmt.Errorf("failed to record event: %w", err)
				}

				fmt.Printf("Recorded %s for %s (variant %s).\n", eventType, userID, variantID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dataJSON, "data", "", "JSON event payload")
	return cmd
}
