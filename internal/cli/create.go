package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/alloc"
	"github.com/expstack/expstack/internal/engine"
)

func init() {
	rootCmd.AddCommand(newCreateCmd())
}

func newCreateCmd() *cobra.Command {
	var (
		variants    string
		description string
		metric      string
		strategy    string
		seed        string
		minSample   int
		configJSON  string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new test",
		Long: `Create a new test with weighted variants. Weights are percentages
and must sum to 100. The test starts in draft; run 'start' to open it.

Omitting --metric or --strategy prompts interactively.

Examples:
  expstack create feature-count --variants "control:50,reduced:50" --metric feature_engagement --strategy hash_based
  expstack create threshold --variants "low:33.33,medium:33.33,high:33.34"
  expstack create feature-count --variants "control:50,reduced:50" \
    --config '{"control":{"maxFeatures":6},"reduced":{"maxFeatures":4}}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			variantList, err := parseVariants(variants)
			if err != nil {
				return err
			}

			if configJSON != "" {
				configs := make(map[string]map[string]any)
				if err := json.Unmarshal([]byte(configJSON), &configs); err != nil {
					return fmt.Errorf("invalid --config JSON: %w", err)
				}
				for i := range variantList {
					variantList[i].Config = configs[variantList[i].ID]
				}
			}

			if metric == "" {
				metric, err = promptMetric()
				if err != nil {
					return err
				}
			}
			if strategy == "" {
				strategy, err = promptStrategy()
				if err != nil {
					return err
				}
			}

			return withEngine(func(eng *engine.Engine) error {
				id, err := eng.CreateTest(engine.TestDef{
					Name:         name,
					Description:  description,
					TargetMetric: engine.TargetMetric(metric),
					Variants:     variantList,
					Allocation: engine.Allocation{
						Strategy: alloc.Strategy(strategy),
						Seed:     seed,
					},
					MinSampleSize: minSample,
				})
				if err != nil {
					return fmt.Errorf("failed to create test: %w", err)
				}

				fmt.Printf("Created test '%s' (%s) with %d variants:\n", name, id, len(variantList))
				for _, v := range variantList {
					fmt.Printf("  %s: %.2f%%\n", v.ID, v.Weight)
				}
				fmt.Printf("Target metric: %s, strategy: %s\n", metric, strategy)
				fmt.Printf("\nRun 'expstack start %s' to open it.\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated id:weight pairs (required)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "test description")
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "target metric (feature_engagement, context_accuracy, user_satisfaction, session_duration)")
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "allocation strategy (random or hash_based)")
	cmd.Flags().StringVar(&seed, "seed", "", "seed for hash_based allocation")
	cmd.Flags().IntVar(&minSample, "min-sample", 0, "minimum per-variant sample size before significance is declared")
	cmd.Flags().StringVar(&configJSON, "config", "", "JSON map of variant id to config payload")
	cmd.MarkFlagRequired("variants")

	return cmd
}

// parseVariants turns "control:50,treatment:50" into a variant list.
func parseVariants(spec string) ([]engine.Variant, error) {
	parts := strings.Split(spec, ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("need at least 2 variants. Example: --variants \"control:50,treatment:50\"")
	}

	out := make([]engine.Variant, 0, len(parts))
	for _, part := range parts {
		id, weightStr, found := strings.Cut(strings.TrimSpace(part), ":")
		if !found {
			return nil, fmt.Errorf("variant %q: want id:weight", part)
		}
		weight, err := strconv.ParseFloat(weightStr, 64)
		if err != nil {
			return nil, fmt.Errorf("variant %q: bad weight: %w", part, err)
		}
		out = append(out, engine.Variant{ID: id, Name: id, Weight: weight})
	}
	return out, nil
}

func promptMetric() (string, error) {
	metrics := []string{
		"feature_engagement",
		"context_accuracy",
		"user_satisfaction",
		"session_duration",
	}

	prompt := promptui.Select{
		Label: "Target metric",
		Items: metrics,
		Size:  4,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	return metrics[idx], nil
}

func promptStrategy() (string, error) {
	strategies := []string{
		"hash_based (deterministic, sticky across restarts)",
		"random (uniform draw per first assignment)",
	}

	prompt := promptui.Select{
		Label: "Allocation strategy",
		Items: strategies,
		Size:  2,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return "", err
	}
	if idx == 0 {
		return "hash_based", nil
	}
	return "random", nil
}
