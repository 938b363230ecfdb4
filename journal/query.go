package journal

import (
	"context"
	"time"
)

// ListEquityBetween returns equity samples with time in [start, end).
func (j *SQLite) ListEquityBetween(ctx context.Context, instrument string, start, end time.Time) ([]EquitySample, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT time, cash, position_value, total_equity, invested_pct, drawdown_pct
		FROM equity
		WHERE instrument = ? AND time >= ? AND time < ?
		ORDER BY time ASC`, instrument, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EquitySample
	for rows.Next() {
		var s EquitySample
		if err := rows.Scan(
			&s.Time,
			&s.Cash,
			&s.PositionValue,
			&s.TotalEquity,
			&s.InvestedPct,
			&s.DrawdownPct,
		); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
