package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Datos"

func WriteXLSX(w io.Writer, t Table) error {
	if err := t.validate(); err != nil {
		return err
	}
	file := excelize.NewFile()
	defer func() { _ = file.Close() }()

	if err := file.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := file.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}
	bold, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
	if err != nil {
		return err
	}
	if err := file.SetCellStyle(sheetName, "A1", last, bold); err != nil {
		return err
	}

	for r, row := range t.Rows {
		values := make([]any, len(t.Columns))
		for i := range t.Columns {
			values[i] = t.cell(row, i)
		}
		start, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := file.SetSheetRow(sheetName, start, &values); err != nil {
			return fmt.Errorf("write row %d: %w", r+1, err)
		}
	}
	return file.Write(w)
}
