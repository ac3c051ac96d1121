package ldf

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigurationFillsDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	assert.NoError(t, err)
	_, err = f.WriteString(`{"input_files": ["run0001.ldf"]}`)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	cfg, err := LoadConfiguration(f.Name())
	assert.NoError(t, err)
	assert.Equal(t, []string{"run0001.ldf"}, cfg.InputFiles)
	assert.Equal(t, 16, cfg.NumConcurrentSpills)
}

func TestLoadConfigurationOverridesDefaults(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.json")
	assert.NoError(t, err)
	_, err = f.WriteString(`{"num_concurrent_spills": 4, "verbosity": 2}`)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())

	cfg, err := LoadConfiguration(f.Name())
	assert.NoError(t, err)
	assert.Equal(t, 4, cfg.NumConcurrentSpills)
	assert.Equal(t, 2, cfg.Verbosity)
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	_, err := LoadConfiguration("/nonexistent/path/config.json")
	assert.Error(t, err)
}
