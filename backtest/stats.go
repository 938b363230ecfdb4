package backtest

import (
	"math"

	"github.com/rmeyers/lotbot/journal"
)

// DefaultAnnualization assumes daily-equivalent bars.
const DefaultAnnualization = 252

// Stats summarizes a completed run.
type Stats struct {
	PnL         float64
	Sharpe      float64
	Sortino     float64
	MaxDrawdown float64 // percent, from the running high-water mark
	Trades      int
}

func computeStats(curve []journal.EquitySample, initial, annualization float64, trades int) Stats {
	if len(curve) == 0 {
		return Stats{}
	}
	if annualization <= 0 {
		annualization = DefaultAnnualization
	}

	st := Stats{
		PnL:    curve[len(curve)-1].TotalEquity - initial,
		Trades: trades,
	}

	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].TotalEquity
		if prev != 0 {
			returns = append(returns, curve[i].TotalEquity/prev-1)
		}
	}

	scale := math.Sqrt(annualization)
	if mean, std := meanStd(returns); std > 0 {
		st.Sharpe = mean / std * scale

		var downside []float64
		for _, r := range returns {
			if r < 0 {
				downside = append(downside, r)
			}
		}
		if _, dstd := meanStd(downside); dstd > 0 {
			st.Sortino = mean / dstd * scale
		}
	}

	for _, s := range curve {
		if s.DrawdownPct > st.MaxDrawdown {
			st.MaxDrawdown = s.DrawdownPct
		}
	}
	return st
}

// meanStd returns the mean and population standard deviation.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		d := x - mean
		variance += d * d
	}
	variance /= float64(len(xs))
	return mean, math.Sqrt(variance)
}
