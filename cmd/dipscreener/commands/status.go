package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/brain"
	"github.com/wonny/dipscreener/internal/contracts"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tier freshness, the last run and the next action",
	Long: `Shows every tier snapshot with its age against its TTL, the last deep
analysis run, the cache size and unsupported symbols, and the command to
run next.

Example:
  dipscreener status
  dipscreener status --top 100 --json`,
	RunE: runStatus,
}

var (
	statusTop  int
	statusJSON bool
)

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().IntVar(&statusTop, "top", 0, "funnel size the next action is computed for (default DEFAULT_TOP)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the report as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.orchestrator.Status(ctx, a.top(statusTop))
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printStatus(report)
	return nil
}

func printStatus(r *brain.StatusReport) {
	PrintHeader("dipscreener status")
	PrintKeyValue("Parameters", fmt.Sprintf("%s (%s)", r.ParamsName, r.ParamsHash), 12)
	PrintKeyValue("Generated", r.GeneratedAt.Format("2006-01-02 15:04:05"), 12)

	fmt.Println()
	fmt.Println("📋 Tiers")
	widths := []int{13, 6, 8, 10, 10, 8}
	PrintTableHeader([]string{"TIER", "SIZE", "ENTRIES", "AGE", "TTL", "STATE"}, widths)
	printTier(r.Master, widths)
	for _, ts := range r.Screening {
		printTier(ts, widths)
	}

	fmt.Println()
	fmt.Println("🔬 Last run")
	if r.LastRun == nil {
		fmt.Println("   none")
	} else {
		PrintKeyValue("Run", r.LastRun.RunID.String(), 12)
		PrintKeyValue("Status", string(r.LastRun.Status), 12)
		PrintKeyValue("Started", r.LastRun.StartedAt.Format("2006-01-02 15:04:05"), 12)
		if r.LastRun.Summary != nil {
			printSummary(r.LastRun.Summary)
		}
	}

	fmt.Println()
	fmt.Println("💾 Cache")
	PrintKeyValue("Entries", fmt.Sprintf("%d", r.Cache.Entries), 12)
	PrintKeyValue("Symbols", fmt.Sprintf("%d", r.Cache.Symbols), 12)
	PrintKeyValue("Unsupported", fmt.Sprintf("%d", r.Cache.Unsupported), 12)
	for _, u := range r.Unsupported {
		fmt.Printf("     %-8s %s\n", u.Symbol, u.Reason)
	}

	PrintSeparator()
	fmt.Printf("➡️  Next: %s\n", r.NextAction)
}

func printTier(ts brain.TierStatus, widths []int) {
	if !ts.Present {
		PrintTableRow([]string{ts.Tier, "", "", "", age(ts.TTL), "missing"}, widths)
		return
	}

	state := "fresh"
	switch {
	case !ts.Fresh:
		state = "stale"
	case ts.Tier != string(contracts.StageMaster) && !ts.Current:
		state = "outdated"
	}

	size := ""
	if ts.Size > 0 {
		size = fmt.Sprintf("%d", ts.Size)
	}
	PrintTableRow([]string{ts.Tier, size, fmt.Sprintf("%d", ts.Entries), age(ts.Age), age(ts.TTL), state}, widths)
}
