package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// ResultsCSV is a curated result file with the headers spelled the way the
// spreadsheets are usually exported. Its six graded rows are three correct
// and three partial.
const ResultsCSV = "ID Teste,Temperatura,Top P,Pergunta,Valor Extraído,Status,Observação,Data\n" +
	"T1,0.2,0.9,Nome do cliente,Maria Silva,correto,,2024-03-01\n" +
	"T1,0.2,0.9,CPF,123.456.789-00,parcial,faltou dígito,2024-03-01\n" +
	"T2,0.7,1,Nome do cliente,João Souza,correto,,2024-03-02\n" +
	"T2,0.7,1,CPF,987.654.321-00,Parcialmente correto,,2024-03-02\n" +
	"T3,1.0,0.5,Nome do cliente,Ana Lima,correto,,2024-03-03\n" +
	"T3,1.0,0.5,CPF,,não extraído,campo vazio,2024-03-03\n"

// ResultsHeader is the header row of ResultsCSV as workbook cells.
var ResultsHeader = []any{"ID Teste", "Temperatura", "Top P", "Pergunta", "Valor Extraído", "Status", "Observação", "Data"}

// WriteFile writes content to dir/name and returns the path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// Sheet is one named worksheet of a fixture workbook.
type Sheet struct {
	Name string
	Rows [][]any
}

// BuildWorkbook renders sheets, in order, as an xlsx file.
func BuildWorkbook(t *testing.T, sheets ...Sheet) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet.Name))
		} else {
			_, err := f.NewSheet(sheet.Name)
			require.NoError(t, err)
		}
		for r, row := range sheet.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(sheet.Name, cell, &row))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

// ResultsWorkbook is ResultsCSV as a single-sheet workbook with numeric
// temperature and top-p cells.
func ResultsWorkbook(t *testing.T) []byte {
	t.Helper()
	return BuildWorkbook(t, Sheet{Name: "Resultados", Rows: [][]any{
		ResultsHeader,
		{"T1", 0.2, 0.9, "Nome do cliente", "Maria Silva", "correto", "", "2024-03-01"},
		{"T1", 0.2, 0.9, "CPF", "123.456.789-00", "parcial", "faltou dígito", "2024-03-01"},
		{"T2", 0.7, 1, "Nome do cliente", "João Souza", "correto", "", "2024-03-02"},
		{"T2", 0.7, 1, "CPF", "987.654.321-00", "Parcialmente correto", "", "2024-03-02"},
		{"T3", 1.0, 0.5, "Nome do cliente", "Ana Lima", "correto", "", "2024-03-03"},
		{"T3", 1.0, 0.5, "CPF", "", "não extraído", "campo vazio", "2024-03-03"},
	}})
}
