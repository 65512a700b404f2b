package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet that holds the XLSX export.
const SheetName = "Trades"

// WriteXLSX writes a single-sheet workbook with the CSV columns. Each
// item's rows are followed by a "Total profit" row and an empty row.
func WriteXLSX(w io.Writer, trades Trades) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	row := 1
	put := func(values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(SheetName, cell, &values)
	}

	if err := put("Displaying trades for selected time interval: " + trades.Interval); err != nil {
		return fmt.Errorf("write title row: %w", err)
	}
	header := make([]any, len(csvHeader))
	for i, h := range csvHeader {
		header[i] = h
	}
	if err := put(header...); err != nil {
		return fmt.Errorf("write header row: %w", err)
	}

	for _, s := range trades.sections() {
		for _, o := range s.offers {
			if err := put(s.item.ItemName, formatDate(o.Time), o.CurrentQuantityInTrade, o.Price, string(o.State)); err != nil {
				return fmt.Errorf("write row for %s: %w", s.item.ItemName, err)
			}
		}
		if err := put("Total profit", "", "", s.profit); err != nil {
			return fmt.Errorf("write profit row for %s: %w", s.item.ItemName, err)
		}
		row++
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
