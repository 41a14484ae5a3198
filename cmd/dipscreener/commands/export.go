package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wonny/dipscreener/internal/contracts"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the ranked records to a CSV file",
	Long: `Writes the current ranked Tier 3 records to CSV: rank, symbol, score,
grade, recommendation, layer scores and key metrics. Excluded symbols follow
the ranked ones with their exclusion reason.

Example:
  dipscreener export --top 50
  dipscreener export --out picks.csv`,
	RunE: runExport,
}

var (
	exportTop int
	exportOut string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	// Flags
	exportCmd.Flags().IntVar(&exportTop, "top", 0, "records to write (0 = all)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default EXPORT_DIR/dip-records-<date>.csv)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	path := exportOut
	if path == "" {
		path = filepath.Join(a.cfg.Pipeline.ExportDir, fmt.Sprintf("dip-records-%s.csv", a.clock.Now().Format("2006-01-02")))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	n, err := a.orchestrator.Export(ctx, f, exportTop)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("export records: %w", err)
	}

	if n == 0 {
		PrintWarning("No records yet; run deep-analyze first")
		finish(contracts.OutcomeFresh)
		return nil
	}

	PrintSuccess(fmt.Sprintf("Exported %d records to %s", n, path))
	return nil
}
