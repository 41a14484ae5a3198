package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/dipscreener/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// Every command prints through these so the output looks the same
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a titled block header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// optional formats an optional number, "-" when unknown
func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

// age renders a duration in days and hours
func age(d time.Duration) string {
	if d < time.Hour {
		return d.Round(time.Minute).String()
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	if days == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dd %dh", days, hours)
}

// printRecords prints the ranked records table
func printRecords(records []contracts.EnhancedRecord) {
	widths := []int{4, 8, 7, 5, 11, 8, 8, 8, 8, 20}
	PrintTableHeader([]string{"#", "SYMBOL", "SCORE", "GRADE", "ACTION", "BELOW%", "QUAL", "DIP", "SPARK", "NOTE"}, widths)

	rank := 0
	for _, r := range records {
		score, ok := r.Result.Value()
		if !ok {
			PrintTableRow([]string{"", r.Ticker, "-", "-", "-", optional(r.Metrics.PercentBelowHigh, "%.1f"), "", "", "", string(r.Result.Reason)}, widths)
			continue
		}

		rank++
		note := ""
		if r.HasDataIssues() {
			note = fmt.Sprintf("%d data issue(s)", len(r.DataIssues))
		}
		PrintTableRow([]string{
			fmt.Sprintf("%d", rank),
			r.Ticker,
			fmt.Sprintf("%.1f", score),
			r.Grade,
			string(r.Recommendation),
			optional(r.Metrics.PercentBelowHigh, "%.1f"),
			fmt.Sprintf("%.1f", r.Layers.QualityGate),
			fmt.Sprintf("%.1f", r.Layers.DipSignal),
			fmt.Sprintf("%.1f", r.Layers.ReversalSpark),
			note,
		}, widths)
	}
}

// printSummary prints a Tier 3 run summary
func printSummary(s *contracts.RunSummary) {
	PrintKeyValue("Run", s.RunID.String(), 12)
	if s.Resumed {
		PrintKeyValue("Resumed", "yes", 12)
	}
	PrintKeyValue("Symbols", fmt.Sprintf("%d", s.Total), 12)
	PrintKeyValue("Scored", fmt.Sprintf("%d", s.Scored), 12)
	PrintKeyValue("Gate", fmt.Sprintf("%d excluded", s.ExcludedGate), 12)
	PrintKeyValue("Blackout", fmt.Sprintf("%d excluded", s.ExcludedBlackout), 12)
	PrintKeyValue("Unsupported", fmt.Sprintf("%d excluded", s.ExcludedUnsupported), 12)
	PrintKeyValue("Failed", fmt.Sprintf("%d", s.Failed), 12)
	PrintKeyValue("Data issues", fmt.Sprintf("%d", s.DataIssues), 12)
	if s.Interrupted {
		PrintKeyValue("Pending", fmt.Sprintf("%d (interrupted)", s.Pending), 12)
	}
	PrintKeyValue("API calls", fmt.Sprintf("%d", s.Calls), 12)
}
