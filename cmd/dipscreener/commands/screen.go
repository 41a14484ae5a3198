package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/contracts"
)

// screenCmd represents the screen command
var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Tier 2: rank the master list into a top-N screening list",
	Long: `Ranks the latest master list by how far each stock trades below its
52-week high, weighted with its basic quality score, and keeps the top N.

A list of the same size built from the same master list within the Tier 2
TTL is reused (exit 3) unless --force is given.

Example:
  dipscreener screen --top 50
  dipscreener screen --top 100 --force`,
	RunE: runScreen,
}

var (
	screenTop   int
	screenForce bool
)

func init() {
	rootCmd.AddCommand(screenCmd)

	// Flags
	screenCmd.Flags().IntVar(&screenTop, "top", 0, "list size (default DEFAULT_TOP)")
	screenCmd.Flags().BoolVar(&screenForce, "force", false, "regenerate even when the list is fresh")
}

func runScreen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	top := a.top(screenTop)
	PrintHeader(fmt.Sprintf("Tier 2 · Screening (top %d)", top))

	v, o, err := a.orchestrator.Screen(ctx, top, screenForce)
	if err != nil {
		return err
	}

	PrintKeyValue("Version", v.VersionID.String(), 10)
	PrintKeyValue("Master", v.MasterVersionID.String(), 10)
	PrintKeyValue("Generated", v.GeneratedAt.Format("2006-01-02 15:04:05"), 10)
	PrintKeyValue("Entries", fmt.Sprintf("%d", len(v.Entries)), 10)
	fmt.Println()

	widths := []int{4, 8, 10, 8, 9}
	PrintTableHeader([]string{"#", "SYMBOL", "EXCHANGE", "BELOW%", "SCORE"}, widths)
	for _, e := range v.Entries {
		PrintTableRow([]string{
			fmt.Sprintf("%d", e.Rank),
			e.Ticker,
			e.Exchange,
			optional(e.PercentBelowHigh, "%.1f"),
			fmt.Sprintf("%.2f", e.ScreeningScore),
		}, widths)
	}

	PrintSeparator()
	switch o {
	case contracts.OutcomeFresh:
		PrintInfo(fmt.Sprintf("Screening list is fresh (age %s); use --force to regenerate", age(v.Age(a.clock.Now()))))
	case contracts.OutcomePartial:
		PrintWarning("Some candles could not be fetched; those symbols ranked without a dip")
	default:
		PrintSuccess(fmt.Sprintf("Screening list generated with %d entries", len(v.Entries)))
	}

	finish(o)
	return nil
}
