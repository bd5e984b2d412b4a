package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var candleHeader = []string{"time", "open", "high", "low", "close", "volume"}

// WriteCandlesCSV writes candles with a header row. Times are RFC3339 UTC.
func WriteCandlesCSV(w io.Writer, candles []Candle) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(candleHeader); err != nil {
		return err
	}
	for _, c := range candles {
		rec := []string{
			c.Time.UTC().Format(time.RFC3339),
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCandlesCSV reads time,open,high,low,close[,volume] rows, oldest
// first. A header row is detected by "time" in the first column.
func ReadCandlesCSV(r io.Reader) ([]Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Candle
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "time") {
			continue
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: want at least 5 fields, got %d", line, len(rec))
		}

		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: time: %w", line, err)
		}
		var v [5]float64
		for i := 1; i < len(rec) && i <= 5; i++ {
			v[i-1], err = strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: field %s: %w", line, candleHeader[i], err)
			}
		}
		c := Candle{Time: t.UTC(), Open: v[0], High: v[1], Low: v[2], Close: v[3], Volume: v[4]}
		if c.High < c.Low {
			return nil, fmt.Errorf("line %d: high %.5f below low %.5f", line, c.High, c.Low)
		}
		if n := len(out); n > 0 && !out[n-1].Time.Before(c.Time) {
			return nil, fmt.Errorf("line %d: time %s not after previous bar", line, c.Time.Format(time.RFC3339))
		}
		out = append(out, c)
	}
	return out, nil
}
