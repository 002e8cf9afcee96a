// Package importer reads prospect lists from uploaded .xlsx and .xls sheets.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

const maxRows = 100000

var (
	ErrNoWorksheet    = errors.New("no se encontró ninguna hoja")
	ErrEmptyWorksheet = errors.New("la hoja está vacía")
)

// ReadRows returns every row of the single sheet in the upload. The file
// name extension picks the reader; anything other than .xls is opened as
// xlsx.
func ReadRows(reader io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("abrir xls: %w", err)
		}
		if workbook.NumSheets() == 0 {
			return nil, ErrNoWorksheet
		}
		if workbook.NumSheets() > 1 {
			return nil, errors.New("el archivo tiene varias hojas; suba un archivo con una sola hoja")
		}
		rows := workbook.ReadAllCells(maxRows)
		if len(rows) == 0 {
			return nil, ErrEmptyWorksheet
		}
		return rows, nil
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("abrir xlsx: %w", err)
		}
		defer func() { _ = file.Close() }()

		sheet := file.GetSheetName(0)
		if sheet == "" {
			return nil, ErrNoWorksheet
		}
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			return nil, ErrEmptyWorksheet
		}
		return rows, nil
	}
}

// Prospect is one importable sheet row. Line is the 1-based sheet row.
type Prospect struct {
	Line     int
	Nombre   string
	Apellido string
	Celular  string
}

type Skipped struct {
	Line   int
	Reason string
}

var headerAliases = map[string][]string{
	"nombre":   {"nombre", "nombres", "name", "first name"},
	"apellido": {"apellido", "apellidos", "last name"},
	"celular":  {"celular", "telefono", "teléfono", "phone", "cel"},
}

func normalizeHeader(header string) string {
	return strings.ToLower(strings.TrimSpace(header))
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func columnIndex(headers map[string]int, field string) (int, bool) {
	for _, alias := range headerAliases[field] {
		if idx, ok := headers[alias]; ok {
			return idx, true
		}
	}
	return -1, false
}

// NormalizePhone strips formatting from a phone cell. Spreadsheet programs
// sometimes store numbers as floats, so "7.1234567e+07" becomes "71234567".
func NormalizePhone(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil && f == math.Trunc(f) && f > 0 {
		return strconv.FormatFloat(f, 'f', 0, 64)
	}
	var b strings.Builder
	for i, r := range value {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseProspects maps the header row and validates every data row. Rows with
// all three cells empty are ignored without being reported.
func ParseProspects(rows [][]string) ([]Prospect, []Skipped, error) {
	if len(rows) == 0 {
		return nil, nil, ErrEmptyWorksheet
	}
	headers := map[string]int{}
	for i, h := range rows[0] {
		headers[normalizeHeader(h)] = i
	}
	idx := map[string]int{}
	for _, field := range []string{"nombre", "apellido", "celular"} {
		i, ok := columnIndex(headers, field)
		if !ok {
			return nil, nil, fmt.Errorf("falta la columna requerida: %s", field)
		}
		idx[field] = i
	}

	var (
		out     []Prospect
		skipped []Skipped
		seen    = map[string]int{}
	)
	for n, row := range rows[1:] {
		line := n + 2
		p := Prospect{
			Line:     line,
			Nombre:   cellValue(row, idx["nombre"]),
			Apellido: cellValue(row, idx["apellido"]),
			Celular:  NormalizePhone(cellValue(row, idx["celular"])),
		}
		switch {
		case p.Nombre == "" && p.Apellido == "" && p.Celular == "":
			continue
		case p.Nombre == "" || p.Apellido == "":
			skipped = append(skipped, Skipped{Line: line, Reason: "nombre y apellido son requeridos"})
			continue
		case len(strings.TrimPrefix(p.Celular, "+")) < 7:
			skipped = append(skipped, Skipped{Line: line, Reason: "celular inválido"})
			continue
		}
		if first, dup := seen[p.Celular]; dup {
			skipped = append(skipped, Skipped{Line: line, Reason: fmt.Sprintf("celular repetido (fila %d)", first)})
			continue
		}
		seen[p.Celular] = line
		out = append(out, p)
	}
	return out, skipped, nil
}
