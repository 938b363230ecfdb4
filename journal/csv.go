// journal/csv.go
package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ExportTradesCSV writes realized trades to a CSV file.
func ExportTradesCSV(path string, trades []RealizedTrade) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"trade_id", "instrument", "time", "avg_entry_price", "exit_price", "units", "cost_basis", "realized_pnl", "realized_pnl_pct", "reason"}); err != nil {
		return err
	}

	for _, t := range trades {
		err := w.Write([]string{
			t.TradeID,
			t.Instrument,
			t.Time.Format(time.RFC3339),
			f(t.AvgEntryPrice),
			f(t.ExitPrice),
			f(t.Units),
			f(t.CostBasis),
			f(t.RealizedPnL),
			f(t.RealizedPnLPct),
			t.Reason,
		})
		if err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// ExportEquityCSV writes an equity curve to a CSV file.
func ExportEquityCSV(path string, samples []EquitySample) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"time", "cash", "position_value", "total_equity", "invested_pct", "drawdown_pct"}); err != nil {
		return err
	}

	for _, s := range samples {
		err := w.Write([]string{
			s.Time.Format(time.RFC3339),
			f(s.Cash),
			f(s.PositionValue),
			f(s.TotalEquity),
			f(s.InvestedPct),
			f(s.DrawdownPct),
		})
		if err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
