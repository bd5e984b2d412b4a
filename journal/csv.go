package journal

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

var orderHeader = []string{"id", "ticket", "time", "symbol", "side", "volume", "price", "stop", "target", "confidence", "rationale"}

// WriteOrdersCSV writes orders with a header row.
func WriteOrdersCSV(w io.Writer, orders []OrderRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(orderHeader); err != nil {
		return err
	}
	for _, o := range orders {
		if err := cw.Write([]string{
			o.ID,
			o.Ticket,
			o.Time.UTC().Format(time.RFC3339),
			o.Symbol,
			o.Side,
			f(o.Volume),
			f(o.Price),
			f(o.Stop),
			f(o.Target),
			f(o.Confidence),
			o.Rationale,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
