package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/contracts"
	"github.com/wonny/dipscreener/internal/scoringparams"
)

// deepAnalyzeCmd represents the deep-analyze command
var deepAnalyzeCmd = &cobra.Command{
	Use:   "deep-analyze",
	Short: "Tier 3: score the top-N list with the 4-layer composite",
	Long: `Runs deep analysis over the latest top-N screening list.

Each symbol gets a quality gate, dip signal, reversal spark and risk
adjustment, then a grade and a recommendation. Work is committed per symbol:
an interrupted run (Ctrl+C) is resumed by the next invocation with the same
list and parameters.

Example:
  dipscreener deep-analyze --top 50
  dipscreener deep-analyze --top 50 --params experiments/aggressive.yaml`,
	RunE: runDeepAnalyze,
}

var (
	analyzeTop    int
	analyzeParams string
	analyzeShow   int
)

func init() {
	rootCmd.AddCommand(deepAnalyzeCmd)

	// Flags
	deepAnalyzeCmd.Flags().IntVar(&analyzeTop, "top", 0, "screening list size (default DEFAULT_TOP)")
	deepAnalyzeCmd.Flags().StringVar(&analyzeParams, "params", "", "scoring parameter file for this run")
	deepAnalyzeCmd.Flags().IntVar(&analyzeShow, "show", 20, "records to print")
}

func runDeepAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var params *scoringparams.Params
	if analyzeParams != "" {
		params, _, err = scoringparams.Load(analyzeParams)
		if err != nil {
			return fmt.Errorf("load params %s: %w", analyzeParams, err)
		}
	}

	top := a.top(analyzeTop)
	PrintHeader(fmt.Sprintf("Tier 3 · Deep Analysis (top %d)", top))

	summary, o, err := a.orchestrator.DeepAnalyze(ctx, top, params)
	if err != nil {
		return err
	}
	printSummary(summary)
	fmt.Println()

	records, err := a.orchestrator.Records(ctx, analyzeShow)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}
	printRecords(records)

	PrintSeparator()
	switch {
	case summary.Interrupted:
		PrintWarning(fmt.Sprintf("Interrupted with %d symbols pending; rerun to resume", summary.Pending))
	case o == contracts.OutcomeFailed:
		return errors.New("every symbol failed to fetch; check that the data provider is reachable")
	case o == contracts.OutcomePartial:
		PrintWarning(fmt.Sprintf("%d failed, %d with data issues", summary.Failed, summary.DataIssues))
	default:
		PrintSuccess(fmt.Sprintf("%d symbols scored", summary.Scored))
	}

	finish(o)
	return nil
}
