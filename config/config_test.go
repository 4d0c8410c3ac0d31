package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()

	input := filepath.Join(t.TempDir(), "input.zz")
	require.NoError(t, os.WriteFile(input, []byte{0x78, 0x9c}, 0644))

	toml := &TOML{}
	require.NoError(t, setTOMLDefaults(toml))

	return &Config{
		CLI: &CLI{
			Input:  input,
			Output: StdioPath,
		},
		TOML: toml,
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, Validate(validConfig(t)))
}

func TestValidateNilConfig(t *testing.T) {
	assert.Error(t, Validate(nil))
}

func TestValidateMissingInput(t *testing.T) {
	cfg := validConfig(t)
	cfg.CLI.Input = filepath.Join(t.TempDir(), "nope.zz")
	assert.Error(t, Validate(cfg))
}

func TestValidateInputIsDirectory(t *testing.T) {
	cfg := validConfig(t)
	cfg.CLI.Input = t.TempDir()
	assert.Error(t, Validate(cfg))
}

func TestValidateExistingOutputNeedsOverwrite(t *testing.T) {
	cfg := validConfig(t)

	out := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, os.WriteFile(out, []byte("x"), 0644))
	cfg.CLI.Output = out
	assert.Error(t, Validate(cfg))

	cfg.CLI.Overwrite = true
	assert.NoError(t, Validate(cfg))
}

func TestValidateChunkSizeBounds(t *testing.T) {
	cfg := validConfig(t)

	cfg.TOML.IO.ChunkSize = 0
	assert.Error(t, Validate(cfg))

	cfg.TOML.IO.ChunkSize = MaxChunkSize + 1
	assert.Error(t, Validate(cfg))

	cfg.TOML.IO.ChunkSize = MinChunkSize
	assert.NoError(t, Validate(cfg))
}

func TestValidateReportIntervalBounds(t *testing.T) {
	cfg := validConfig(t)

	cfg.TOML.Report.Interval = duration(1 * time.Millisecond)
	assert.Error(t, Validate(cfg))

	cfg.TOML.Report.Interval = duration(2 * time.Hour)
	assert.Error(t, Validate(cfg))
}

func TestSetTOMLDefaults(t *testing.T) {
	toml := &TOML{}
	require.NoError(t, setTOMLDefaults(toml))

	assert.Equal(t, DefaultChunkSize, toml.IO.ChunkSize)
	assert.Equal(t, time.Duration(DefaultReportInterval), toml.Interval())
}

func TestReadTOML(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	body := `
[io]
chunk_size = 1024

[report]
interval = "250ms"
`
	require.NoError(t, os.WriteFile(file, []byte(body), 0644))

	toml, err := readTOML(file)
	require.NoError(t, err)
	assert.Equal(t, 1024, toml.IO.ChunkSize)
	assert.Equal(t, 250*time.Millisecond, toml.Interval())
}

func TestReadTOMLBadInterval(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.toml")
	body := `
[report]
interval = "50ms"
`
	require.NoError(t, os.WriteFile(file, []byte(body), 0644))

	_, err := readTOML(file)
	assert.Error(t, err)
}

func TestReadTOMLMissingFile(t *testing.T) {
	_, err := readTOML(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
