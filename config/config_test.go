package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useTempPath(t *testing.T) string {
	t.Helper()
	prev := Path()
	path := filepath.Join(t.TempDir(), "jichitai.yaml")
	SetPath(path)
	t.Cleanup(func() { SetPath(prev) })
	for _, k := range []string{"JICHITAI_DATA_DIR", "JICHITAI_ADDR", "JICHITAI_LOG_LEVEL", "JICHITAI_CSV_ENCODING"} {
		t.Setenv(k, "")
	}
	return path
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	useTempPath(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, cfg, GetConfig())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	useTempPath(t)

	want := DefaultConfig()
	want.DataDir = "/srv/jichitai"
	want.Sources.MyNumber = "mynumber/latest.xlsx"
	want.Fetch.Targets = []FetchTarget{{
		Name:     "population",
		PageURL:  "https://example.jp/population",
		LinkText: "市区町村別.*xlsx",
		Dest:     "population/r06_municipal_population.xlsx",
	}}
	require.NoError(t, SaveConfig(want))

	got, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEnvOverrides(t *testing.T) {
	useTempPath(t)
	t.Setenv("JICHITAI_DATA_DIR", "/data")
	t.Setenv("JICHITAI_ADDR", ":9090")
	t.Setenv("JICHITAI_LOG_LEVEL", "DEBUG")
	t.Setenv("JICHITAI_CSV_ENCODING", "Shift_JIS")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.DataDir)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "shift_jis", cfg.CSVEncoding)
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := useTempPath(t)
	require.NoError(t, writeFile(path, "data_dir: ./testdata\nserver:\n  addr: \"\"\n"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "./testdata", cfg.DataDir)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DefaultConfig().Sources, cfg.Sources)
}

func TestInvalidYAML(t *testing.T) {
	path := useTempPath(t)
	require.NoError(t, writeFile(path, "data_dir: [unclosed"))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestSourcePath(t *testing.T) {
	c := Config{DataDir: "data"}
	assert.Equal(t, filepath.Join("data", "codes.xlsx"), c.SourcePath("codes.xlsx"))
	assert.Equal(t, "", c.SourcePath(""))
	abs := filepath.Join(t.TempDir(), "x.xlsx")
	assert.Equal(t, abs, c.SourcePath(abs))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
