package s3_analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wonny/dipscreener/internal/contracts"
)

var exportHeader = []string{
	"rank", "symbol", "exchange", "name", "sector", "status", "score", "grade", "recommendation", "reason",
	"quality_gate", "dip_signal", "reversal_spark", "risk_adjustment",
	"price", "percent_below_high", "rsi_14", "volume_ratio", "pe", "roe", "debt_to_ebitda", "market_cap",
	"triggers", "failed_checks", "data_issues",
}

// WriteCSV writes records in the order given; callers pass them ranked.
// Excluded records carry an empty rank and score.
func WriteCSV(w io.Writer, records []contracts.EnhancedRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rank := 0
	for _, rec := range records {
		rankCell, scoreCell := "", ""
		if score, ok := rec.Result.Value(); ok {
			rank++
			rankCell = strconv.Itoa(rank)
			scoreCell = num(score)
		}
		m := rec.Metrics

		row := []string{
			rankCell, rec.Ticker, rec.Exchange, m.Name, m.Sector,
			string(rec.Result.Status), scoreCell, rec.Grade, string(rec.Recommendation), string(rec.Result.Reason),
			num(rec.Layers.QualityGate), num(rec.Layers.DipSignal), num(rec.Layers.ReversalSpark), num(rec.Layers.RiskAdjustment),
			num(m.Price), optNum(m.PercentBelowHigh), optNum(m.RSI14), optNum(m.VolumeRatio), optNum(m.PE), optNum(m.ROE), optNum(m.DebtToEBITDA),
			strconv.FormatFloat(m.MarketCap, 'f', 0, 64),
			strings.Join(rec.Layers.Triggers, ";"),
			strings.Join(rec.Layers.FailedChecks, ";"),
			strings.Join(rec.DataIssues, ";"),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", rec.Ticker, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optNum(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}
