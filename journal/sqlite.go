package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

var _ Journal = (*SQLite)(nil)

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// one writer; the bot and the HTTP handlers share this handle
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(id, ticket, time, symbol, side, volume, price, stop, target, confidence, rationale)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Ticket, o.Time.UTC(), o.Symbol, o.Side, o.Volume,
		o.Price, o.Stop, o.Target, o.Confidence, o.Rationale,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity
		(time, balance, equity, profit, open_positions)
		VALUES (?, ?, ?, ?, ?)`,
		e.Time.UTC(), e.Balance, e.Equity, e.Profit, e.OpenPositions,
	)
	return err
}

func (j *SQLite) RecordNote(n Note) error {
	_, err := j.db.Exec(`INSERT INTO notes (time, message) VALUES (?, ?)`, n.Time.UTC(), n.Message)
	return err
}

func dayKey(day time.Time) string {
	return day.Format("2006-01-02") + " " + day.Location().String()
}

// LoadBaseline returns the equity stored for the trading day that starts at day.
func (j *SQLite) LoadBaseline(day time.Time) (float64, bool, error) {
	var eq float64
	err := j.db.QueryRow(`SELECT equity FROM day_baseline WHERE day = ?`, dayKey(day)).Scan(&eq)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return eq, true, nil
}

func (j *SQLite) SaveBaseline(day time.Time, equity float64) error {
	_, err := j.db.Exec(`
		INSERT INTO day_baseline (day, equity) VALUES (?, ?)
		ON CONFLICT(day) DO UPDATE SET equity = excluded.equity`,
		dayKey(day), equity,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
