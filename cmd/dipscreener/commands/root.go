package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/contracts"
)

var (
	// Global flags
	env     string
	verbose bool

	// outcome is set by the command that ran and becomes the exit code
	outcome = contracts.OutcomeSuccess
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dipscreener",
	Short: "Buy-the-dip stock screening funnel",
	Long: `dipscreener ranks quality stocks trading well below their highs.

Three tiers, each cached and versioned:
  Tier 1  build-master-list   exchange listing -> filtered master list
  Tier 2  screen              master list -> top-N by dip and basic quality
  Tier 3  deep-analyze        top-N -> 4-layer composite score, grade, action

Exit codes:
  0  success
  3  nothing to do (tier is fresh)
  2  partial success (failed symbols or data issues)
  1  failure (collaborator unreachable, bad configuration, missing tier)

Examples:
  dipscreener build-master-list
  dipscreener screen --top 50
  dipscreener deep-analyze --top 50
  dipscreener status`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// config.Load reads the environment, so flags are applied there
		if cmd.Flags().Changed("env") {
			os.Setenv("ENV", env)
		}
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
	},
}

// Execute runs the command line and returns the process exit code.
// SIGINT and SIGTERM cancel the command context; work committed before
// the signal is kept and the next run resumes from it.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(err.Error())
		return contracts.OutcomeFailed.ExitCode()
	}
	return outcome.ExitCode()
}

// finish records the stage outcome for the exit code
func finish(o contracts.Outcome) {
	outcome = o
	if o != contracts.OutcomeSuccess {
		fmt.Printf("Outcome: %s (exit %d)\n", o, o.ExitCode())
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
