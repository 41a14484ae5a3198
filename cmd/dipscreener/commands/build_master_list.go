package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/brain"
	"github.com/wonny/dipscreener/internal/contracts"
)

// buildMasterListCmd represents the build-master-list command
var buildMasterListCmd = &cobra.Command{
	Use:   "build-master-list",
	Short: "Tier 1: build the filtered master list",
	Long: `Builds the Tier 1 master list from the exchange listing.

Each symbol needs a cached or fetched profile and quote. Symbols are kept
when they pass the market cap, price, volume and exchange filters, and the
list is ordered by basic quality score.

A master list younger than its TTL is reused (exit 3) unless --force is given.
With --offline no calls are made and symbols without cached data are skipped.

Example:
  dipscreener build-master-list
  dipscreener build-master-list --force
  dipscreener build-master-list --universe-file tickers.csv`,
	RunE: runBuildMasterList,
}

var (
	buildForce        bool
	buildOffline      bool
	buildUniverseFile string
)

func init() {
	rootCmd.AddCommand(buildMasterListCmd)

	// Flags
	buildMasterListCmd.Flags().BoolVar(&buildForce, "force", false, "rebuild even when the master list is fresh")
	buildMasterListCmd.Flags().BoolVar(&buildOffline, "offline", false, "use cached data only; make no API calls")
	buildMasterListCmd.Flags().StringVar(&buildUniverseFile, "universe-file", "", "CSV or text file of tickers instead of the exchange listing")
}

func runBuildMasterList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	PrintHeader("Tier 1 · Master List")

	v, o, err := a.orchestrator.BuildMasterList(ctx, brain.BuildRequest{
		Force:        buildForce,
		Offline:      buildOffline,
		UniverseFile: buildUniverseFile,
	})
	if err != nil {
		return err
	}

	PrintKeyValue("Version", v.VersionID.String(), 10)
	PrintKeyValue("Built", v.BuiltAt.Format("2006-01-02 15:04:05"), 10)
	PrintKeyValue("Universe", fmt.Sprintf("%d", v.UniverseSize), 10)
	PrintKeyValue("Entries", fmt.Sprintf("%d", v.Count()), 10)

	if len(v.Excluded) > 0 {
		reasons := make([]string, 0, len(v.Excluded))
		for reason := range v.Excluded {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		fmt.Println("   Excluded:")
		for _, reason := range reasons {
			fmt.Printf("     %-20s %d\n", reason, v.Excluded[reason])
		}
	}

	PrintSeparator()
	switch o {
	case contracts.OutcomeFresh:
		PrintInfo(fmt.Sprintf("Master list is fresh (age %s); use --force to rebuild", age(v.Age(a.clock.Now()))))
	case contracts.OutcomePartial:
		PrintWarning("Some symbols could not be fetched; rerun to retry them")
	default:
		PrintSuccess(fmt.Sprintf("Master list built with %d entries", v.Count()))
	}

	finish(o)
	return nil
}
