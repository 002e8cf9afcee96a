package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2026, 3, 9, 15, 4, 0, 0, time.UTC)

func sampleTable() Table {
	return Table{
		Name:    "prospectos",
		Title:   "Reporte de Prospectos",
		Columns: []string{"Nombre", "Celular", "Proyecto"},
		Rows: [][]string{
			{"Ana \"Anita\" Ruiz", "999111222", "Los Álamos"},
			{"Beto", "", "Las Lomas"},
			{"Short"},
		},
		Filters: []string{"Proyecto: Los Álamos"},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "reservas_2026-03-09.csv", FileName("reservas", "csv", fixedNow))
	assert.Equal(t, "datos_2026-03-09.pdf", FileName("  ", ".pdf", fixedNow))
}

func TestContentType(t *testing.T) {
	ct, ok := ContentType("xlsx")
	assert.True(t, ok)
	assert.Contains(t, ct, "spreadsheetml")
	_, ok = ContentType("doc")
	assert.False(t, ok)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	want := strings.Join([]string{
		"Nombre,Celular,Proyecto",
		`"Ana ""Anita"" Ruiz","999111222","Los Álamos"`,
		`"Beto","","Las Lomas"`,
		`"Short","",""`,
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestEmptyTableIsRejected(t *testing.T) {
	empty := Table{Name: "x", Columns: []string{"a"}}
	for _, ext := range []string{"csv", "xlsx", "pdf"} {
		var buf bytes.Buffer
		err := Write(&buf, ext, empty, fixedNow)
		assert.ErrorIs(t, err, ErrEmpty, ext)
		assert.Zero(t, buf.Len(), ext)
	}
}

func TestWriteUnsupported(t *testing.T) {
	err := Write(&bytes.Buffer{}, "doc", sampleTable(), fixedNow)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, sampleTable()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Nombre", "Celular", "Proyecto"}, rows[0])
	assert.Equal(t, []string{"Ana \"Anita\" Ruiz", "999111222", "Los Álamos"}, rows[1])
	assert.Equal(t, "Short", rows[3][0])
}

func TestWritePDF(t *testing.T) {
	table := sampleTable()
	table.Landscape = true
	for i := 0; i < 80; i++ {
		table.Rows = append(table.Rows, []string{"Cliente con un nombre muy largo que no entra en la celda", "900000000", "Proyecto"})
	}
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, table, fixedNow))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Greater(t, bytes.Count(buf.Bytes(), []byte("/Type /Page\n")), 1)
}
