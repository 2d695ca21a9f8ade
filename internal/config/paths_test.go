package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(t.TempDir(), "exports")

	tests := []struct {
		name string
		cfg  PathsConfig
		want Paths
	}{
		{
			name: "defaults",
			cfg:  PathsConfig{},
			want: Paths{
				BaseDir:    base,
				DataDir:    filepath.Join(base, "data"),
				ExportsDir: filepath.Join(base, "data", "exports"),
				LogsDir:    filepath.Join(base, "logs"),
			},
		},
		{
			name: "absolute entries are kept",
			cfg:  PathsConfig{DataDir: "d", ExportsDir: abs, LogsDir: "l"},
			want: Paths{
				BaseDir:    base,
				DataDir:    filepath.Join(base, "d"),
				ExportsDir: abs,
				LogsDir:    filepath.Join(base, "l"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePaths(base, tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestResolvePaths_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	got, err := ResolvePaths("", Default().Paths)
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	gotBase, err := filepath.EvalSymlinks(got.BaseDir)
	require.NoError(t, err)
	assert.Equal(t, want, gotBase)
}

func TestEnsureDirectories(t *testing.T) {
	paths, err := ResolvePaths(t.TempDir(), Default().Paths)
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DataDir, paths.ExportsDir, paths.LogsDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// Idempotent
	assert.NoError(t, paths.EnsureDirectories())
}

func TestGetExportPath(t *testing.T) {
	base := t.TempDir()
	paths, err := ResolvePaths(base, Default().Paths)
	require.NoError(t, err)

	abs := filepath.Join(base, "x", "out.csv")
	assert.Equal(t, abs, paths.GetExportPath(abs))
	assert.Equal(t, filepath.Join(paths.ExportsDir, "out.csv"), paths.GetExportPath("out.csv"))
	assert.Equal(t, filepath.Join(base, "reports", "out.csv"), paths.GetExportPath("reports/out.csv"))
}
