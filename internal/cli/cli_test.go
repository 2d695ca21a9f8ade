package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrdash/internal/dataprocessing"
	"ocrdash/internal/shared/testutil"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), args, &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func fixture(t *testing.T) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "resultados.csv", testutil.ResultsCSV)
}

func TestShow(t *testing.T) {
	path := fixture(t)

	tests := []struct {
		name     string
		args     []string
		code     int
		contains []string
		excludes []string
	}{
		{
			name:     "all records",
			args:     []string{"show", path},
			contains: []string{"Maria Silva", "Ana Lima", "resultados.csv: 6 of 6 records", "correct       3"},
		},
		{
			name:     "status filter",
			args:     []string{"show", path, "--status", "parcial"},
			contains: []string{"123.456.789-00", "1 of 6 records"},
			excludes: []string{"Ana Lima"},
		},
		{
			name:     "selected columns",
			args:     []string{"show", path, "--columns", "question,status"},
			contains: []string{"question", "status"},
			excludes: []string{"Maria Silva"},
		},
		{
			name:     "empty view",
			args:     []string{"show", path, "--test-id", "T9"},
			contains: []string{"No records match the current filters."},
			excludes: []string{"Maria Silva"},
		},
		{
			name: "unknown column",
			args: []string{"show", path, "--columns", "bogus"},
			code: ExitFailure,
		},
		{
			name: "invalid filter",
			args: []string{"show", path, "--temp-min", "warm"},
			code: ExitFailure,
		},
		{
			name: "missing argument",
			args: []string{"show"},
			code: ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.args...)
			require.Equal(t, tt.code, res.code, res.stderr)
			for _, s := range tt.contains {
				assert.Contains(t, res.stdout, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, res.stdout, s)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	noStatus := testutil.WriteFile(t, dir, "no_status.csv", "Pergunta,Valor\nCPF,123\n")
	wrongType := testutil.WriteFile(t, dir, "results.txt", testutil.ResultsCSV)
	notWorkbook := testutil.WriteFile(t, dir, "results.xlsx", "plain text")

	tests := []struct {
		name     string
		path     string
		code     int
		contains string
	}{
		{"missing file", filepath.Join(dir, "nope.csv"), ExitLoadError, "cannot read the result file"},
		{"unsupported extension", wrongType, ExitLoadError, "cannot read the result file"},
		{"malformed workbook", notWorkbook, ExitLoadError, "cannot read the result file"},
		{"missing column", noStatus, ExitSchemaError, "missing required columns: status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, "summary", tt.path)
			assert.Equal(t, tt.code, res.code)
			assert.Contains(t, res.stderr, tt.contains)
			assert.Empty(t, res.stdout)
		})
	}
}

func TestFieldIssuesAreWarnings(t *testing.T) {
	path := testutil.WriteFile(t, t.TempDir(), "issues.csv",
		"Pergunta,Status,Temperatura\nCPF,correto,quente\nNome,parcial,0.5\n")

	res := run(t, "summary", path)
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "warning: row 2: temperature \"quente\"")
	assert.Contains(t, res.stdout, "records       2")
}

func TestSummary(t *testing.T) {
	path := fixture(t)

	t.Run("json", func(t *testing.T) {
		res := run(t, "summary", path, "--json", "--group-by", "question")
		require.Equal(t, ExitOK, res.code, res.stderr)

		var out struct {
			Source  string `json:"source"`
			Summary struct {
				Summary struct {
					Total   int     `json:"total"`
					Correct int     `json:"correct"`
					Rate    float64 `json:"correct_rate"`
				} `json:"summary"`
			} `json:"summary"`
			Groups struct {
				Groups []struct {
					Value string `json:"value"`
				} `json:"groups"`
			} `json:"groups"`
		}
		require.NoError(t, json.Unmarshal([]byte(res.stdout), &out))
		assert.Equal(t, "resultados.csv", out.Source)
		assert.Equal(t, 6, out.Summary.Summary.Total)
		assert.Equal(t, 3, out.Summary.Summary.Correct)
		assert.InDelta(t, 0.5, out.Summary.Summary.Rate, 1e-9)
		require.Len(t, out.Groups.Groups, 2)
		assert.Equal(t, "Nome do cliente", out.Groups.Groups[0].Value)
	})

	t.Run("sorted groups", func(t *testing.T) {
		res := run(t, "summary", path, "--group-by", "question", "--sorted")
		require.Equal(t, ExitOK, res.code, res.stderr)
		assert.Less(t, strings.Index(res.stdout, "CPF"), strings.Index(res.stdout, "Nome do cliente"))
	})

	t.Run("unknown group field", func(t *testing.T) {
		res := run(t, "summary", path, "--group-by", "colour")
		assert.Equal(t, ExitFailure, res.code)
	})

	t.Run("empty view", func(t *testing.T) {
		res := run(t, "summary", path, "--test-id", "T9")
		require.Equal(t, ExitOK, res.code)
		assert.Contains(t, res.stdout, "No records match the current filters.")
		assert.Contains(t, res.stdout, "(n/a)")
	})
}

func TestSummaryOut(t *testing.T) {
	path := fixture(t)
	out := filepath.Join(t.TempDir(), "reports", "summary.csv")

	require.Equal(t, ExitOK, run(t, "summary", path, "--out", out).code)
	require.Equal(t, ExitOK, run(t, "summary", path, "--test-id", "T1", "--out", out, "--append").code)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "generated_at", rows[0][0])
	assert.Equal(t, "6", rows[1][3])
	assert.Equal(t, "test_id=T1", rows[2][2])
	assert.Equal(t, "2", rows[2][3])
}

func TestSummaryOut_ExportsDir(t *testing.T) {
	path := fixture(t)
	exports := t.TempDir()
	t.Setenv("OCRDASH_PATHS_EXPORTS_DIR", exports)

	res := run(t, "summary", path, "--out", "summary.csv")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.FileExists(t, filepath.Join(exports, "summary.csv"))
	assert.Contains(t, res.stderr, filepath.Join(exports, "summary.csv"))
}

func TestExport(t *testing.T) {
	path := fixture(t)

	t.Run("csv", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "t1.csv")
		res := run(t, "export", path, "--test-id", "T1", "--out", out)
		require.Equal(t, ExitOK, res.code, res.stderr)
		assert.Contains(t, res.stdout, "exported 2 records")

		loaded, err := dataprocessing.LoadFile(context.Background(), out, dataprocessing.DefaultLoadOptions())
		require.NoError(t, err)
		require.Equal(t, 2, loaded.Set.Len())
		assert.Equal(t, "Maria Silva", loaded.Set.At(0).ExtractedValue)
	})

	t.Run("xlsx with columns", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.xlsx")
		res := run(t, "export", path, "--out", out, "--columns", "question,status,extracted_value", "--highlight")
		require.Equal(t, ExitOK, res.code, res.stderr)

		loaded, err := dataprocessing.LoadFile(context.Background(), out, dataprocessing.DefaultLoadOptions())
		require.NoError(t, err)
		assert.Equal(t, 6, loaded.Set.Len())
		assert.Empty(t, loaded.Set.At(0).TestID)
	})

	t.Run("format flag overrides extension", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.data")
		res := run(t, "export", path, "--out", out, "--format", "csv", "--bom")
		require.Equal(t, ExitOK, res.code, res.stderr)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))
	})

	t.Run("empty view writes nothing", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "none.csv")
		res := run(t, "export", path, "--test-id", "T9", "--out", out)
		require.Equal(t, ExitOK, res.code)
		assert.Contains(t, res.stdout, "No records match the current filters.")
		assert.NoFileExists(t, out)
	})

	t.Run("unknown extension", func(t *testing.T) {
		res := run(t, "export", path, "--out", filepath.Join(t.TempDir(), "out.data"))
		assert.Equal(t, ExitFailure, res.code)
		assert.Contains(t, res.stderr, "--format")
	})

	t.Run("bare name lands in the exports directory", func(t *testing.T) {
		exports := t.TempDir()
		t.Setenv("OCRDASH_PATHS_EXPORTS_DIR", exports)

		res := run(t, "export", path, "--test-id", "T1", "--out", "t1.xlsx")
		require.Equal(t, ExitOK, res.code, res.stderr)
		want := filepath.Join(exports, "t1.xlsx")
		assert.Contains(t, res.stdout, want)

		loaded, err := dataprocessing.LoadFile(context.Background(), want, dataprocessing.DefaultLoadOptions())
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.Set.Len())
	})

	t.Run("out naming a directory is rejected before loading", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "taken.csv")
		require.NoError(t, os.Mkdir(dir, 0o755))

		res := run(t, "export", path, "--out", dir)
		assert.Equal(t, ExitFailure, res.code)
		assert.Contains(t, res.stderr, "invalid --out")
	})

	t.Run("out is required", func(t *testing.T) {
		res := run(t, "export", path)
		assert.Equal(t, ExitFailure, res.code)
	})
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{
			name: "schema",
			err:  &dataprocessing.SchemaError{Missing: nil, Headers: []string{"Pergunta"}},
			code: ExitSchemaError,
			msg:  "headers found: Pergunta",
		},
		{
			name: "load",
			err:  &dataprocessing.LoadError{Reason: dataprocessing.ReasonEmptyFile},
			code: ExitLoadError,
			msg:  "empty file",
		},
		{
			name: "other",
			err:  dataprocessing.ErrInvalidFilter,
			code: ExitFailure,
			msg:  "error: invalid filter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := describe(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, msg, tt.msg)
		})
	}
}
