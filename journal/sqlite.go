package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rmeyers/lotbot/ledger"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// WAL so the coordinator's reads don't block reconciliation writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) LoadState(ctx context.Context, instrument string) (State, error) {
	st := NewState()

	rows, err := j.db.QueryContext(ctx, `
		SELECT entry_price, units, opened_at
		FROM lots
		WHERE instrument = ?
		ORDER BY seq ASC`, instrument)
	if err != nil {
		return State{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var lot ledger.Lot
		if err := rows.Scan(&lot.EntryPrice, &lot.Units, &lot.OpenedAt); err != nil {
			return State{}, err
		}
		st.Lots = append(st.Lots, lot)
	}
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	ids, err := j.db.QueryContext(ctx, `
		SELECT fill_id FROM processed_fills WHERE instrument = ?`, instrument)
	if err != nil {
		return State{}, err
	}
	defer ids.Close()

	for ids.Next() {
		var id string
		if err := ids.Scan(&id); err != nil {
			return State{}, err
		}
		st.ProcessedIDs[id] = true
	}
	return st, ids.Err()
}

// SaveState persists the ledger snapshot, the processed fill ids and any
// new realized trades as a single transaction.
func (j *SQLite) SaveState(ctx context.Context, instrument string, st State, trades []RealizedTrade) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lots WHERE instrument = ?`, instrument); err != nil {
		return err
	}
	for seq, lot := range st.Lots {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lots (instrument, seq, entry_price, units, opened_at)
			VALUES (?, ?, ?, ?, ?)`,
			instrument, seq, lot.EntryPrice, lot.Units, lot.OpenedAt)
		if err != nil {
			return err
		}
	}

	for id := range st.ProcessedIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO processed_fills (instrument, fill_id)
			VALUES (?, ?)`, instrument, id)
		if err != nil {
			return err
		}
	}

	for _, t := range trades {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO realized_trades
			(trade_id, instrument, time, avg_entry_price, exit_price, units, cost_basis, realized_pnl, realized_pnl_pct, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.TradeID, t.Instrument, t.Time, t.AvgEntryPrice, t.ExitPrice,
			t.Units, t.CostBasis, t.RealizedPnL, t.RealizedPnLPct, t.Reason)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (j *SQLite) RecordEquity(ctx context.Context, instrument string, s EquitySample) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO equity
		(instrument, time, cash, position_value, total_equity, invested_pct, drawdown_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		instrument, s.Time, s.Cash, s.PositionValue, s.TotalEquity, s.InvestedPct, s.DrawdownPct)
	return err
}

func (j *SQLite) ListTrades(ctx context.Context, instrument string) ([]RealizedTrade, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT trade_id, instrument, time, avg_entry_price, exit_price, units, cost_basis, realized_pnl, realized_pnl_pct, reason
		FROM realized_trades
		WHERE instrument = ?
		ORDER BY time ASC, trade_id ASC`, instrument)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RealizedTrade
	for rows.Next() {
		var t RealizedTrade
		if err := rows.Scan(
			&t.TradeID,
			&t.Instrument,
			&t.Time,
			&t.AvgEntryPrice,
			&t.ExitPrice,
			&t.Units,
			&t.CostBasis,
			&t.RealizedPnL,
			&t.RealizedPnLPct,
			&t.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
