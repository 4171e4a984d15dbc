package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
)

var assignCmd = &cobra.Command{
	Use:   "assign <test> <user-id>",
	Short: "Resolve a user's variant (assigning one if needed)",
	Long: `Resolve the sticky variant for a user in a running test. The first
call allocates and records a variant_assigned event; later calls return
the same variant.`,
	Args: cobra.ExactArgs(2),
	RunE: runAssign,
}

func init() {
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	return withEngine(func(eng *engine.Engine) error {
		id, err := resolveTest(eng, args[0])
		if err != nil {
			return err
		}
		userID := args[1]

		variantID, ok := eng.GetOrAssign(id, userID)
		if !ok {
			fmt.Println("No experiment applies (test is not running).")
			return nil
		}

		fmt.Printf("%s\n", variantID)
		if config, ok := eng.VariantConfig(id, variantID); ok && len(config) > 0 {
			blob, err := json.Marshal(config)
			if err == nil {
				fmt.Printf("config: %s\n", blob)
			}
		}
		return nil
	})
}
