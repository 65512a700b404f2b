package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// csvHeader is the column order of the CSV export.
var csvHeader = []string{"name", "date", "quantity", "price", "state"}

// WriteCSV writes one row per offer. A leading "#" comment names the
// interval and each item's rows are followed by a "# Total profit: N"
// comment and a blank line.
func WriteCSV(w io.Writer, trades Trades) error {
	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)

	if _, err := fmt.Fprintf(bw, "# Displaying trades for selected time interval: %s\n", trades.Interval); err != nil {
		return fmt.Errorf("write csv header comment: %w", err)
	}
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, s := range trades.sections() {
		for _, o := range s.offers {
			record := []string{
				s.item.ItemName,
				formatDate(o.Time),
				strconv.Itoa(o.CurrentQuantityInTrade),
				strconv.Itoa(o.Price),
				string(o.State),
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv row for %s: %w", s.item.ItemName, err)
			}
		}
		// Comments bypass the csv writer so they are never quoted.
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush csv: %w", err)
		}
		if _, err := fmt.Fprintf(bw, "# Total profit: %d\n\n", s.profit); err != nil {
			return fmt.Errorf("write csv profit comment: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return bw.Flush()
}
