package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// ListOrders returns orders placed within [start, end), oldest first.
func (j *SQLite) ListOrders(start, end time.Time) ([]OrderRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, ticket, time, symbol, side, volume, price, stop, target, confidence, rationale
		FROM orders
		WHERE time >= ? AND time < ?
		ORDER BY time ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(
			&o.ID, &o.Ticket, &o.Time, &o.Symbol, &o.Side, &o.Volume,
			&o.Price, &o.Stop, &o.Target, &o.Confidence, &o.Rationale,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LastEquity returns the most recent equity snapshot.
func (j *SQLite) LastEquity() (EquitySnapshot, error) {
	var e EquitySnapshot
	err := j.db.QueryRow(`
		SELECT time, balance, equity, profit, open_positions
		FROM equity
		ORDER BY time DESC
		LIMIT 1`).Scan(&e.Time, &e.Balance, &e.Equity, &e.Profit, &e.OpenPositions)
	if err == sql.ErrNoRows {
		return EquitySnapshot{}, fmt.Errorf("no equity snapshots")
	}
	return e, err
}

// RecentNotes returns up to limit notes, newest first.
func (j *SQLite) RecentNotes(limit int) ([]Note, error) {
	rows, err := j.db.Query(`
		SELECT time, message FROM notes
		ORDER BY time DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.Time, &n.Message); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
