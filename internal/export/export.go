// Package export renders list views as CSV, XLSX and PDF downloads.
package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var ErrEmpty = errors.New("No hay datos para exportar")

// Table is one exported list: a header row and the rows under it in the
// same column order.
type Table struct {
	Name      string
	Title     string
	Columns   []string
	Rows      [][]string
	Filters   []string
	Landscape bool
}

func (t Table) validate() error {
	if len(t.Rows) == 0 {
		return ErrEmpty
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("export %s: no columns", t.Name)
	}
	return nil
}

func (t Table) cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// FileName is "<name>_YYYY-MM-DD.<ext>".
func FileName(name, ext string, now time.Time) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "datos"
	}
	return fmt.Sprintf("%s_%s.%s", name, now.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

// ContentType maps a supported extension to its MIME type.
func ContentType(ext string) (string, bool) {
	switch strings.TrimPrefix(ext, ".") {
	case "csv":
		return "text/csv; charset=utf-8", true
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", true
	case "pdf":
		return "application/pdf", true
	}
	return "", false
}

// Write renders t in the format named by ext.
func Write(w io.Writer, ext string, t Table, now time.Time) error {
	switch strings.TrimPrefix(ext, ".") {
	case "csv":
		return WriteCSV(w, t)
	case "xlsx":
		return WriteXLSX(w, t)
	case "pdf":
		return WritePDF(w, t, now)
	}
	return fmt.Errorf("export: unsupported format %q", ext)
}

// WriteCSV writes the header as is and every value double-quoted, one
// record per line.
func WriteCSV(w io.Writer, t Table) error {
	if err := t.validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(t.Columns, ",")); err != nil {
		return err
	}
	for _, row := range t.Rows {
		values := make([]string, len(t.Columns))
		for i := range t.Columns {
			values[i] = `"` + strings.ReplaceAll(t.cell(row, i), `"`, `""`) + `"`
		}
		if _, err := bw.WriteString("\n" + strings.Join(values, ",")); err != nil {
			return err
		}
	}
	return bw.Flush()
}
