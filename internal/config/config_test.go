package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	assert.Empty(t, Default().Validate())
}

func TestValidateCollectsAllViolations(t *testing.T) {
	cfg := Default()
	cfg.TargetLang = ""
	cfg.MaxChunkTokens = 0
	cfg.SoftLimitRatio = 1.5
	cfg.MaxRetries = 0

	errs := cfg.Validate()
	require.Len(t, errs, 4)
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
		assert.NotEmpty(t, e.Error())
	}
	assert.ElementsMatch(t, []string{"TargetLang", "MaxChunkTokens", "SoftLimitRatio", "MaxRetries"}, fields)
}

func TestValidateWindowBounds(t *testing.T) {
	cfg := Default()
	cfg.InitialWindow = 8192
	cfg.MaxWindow = 4096
	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "MaxWindow", errs[0].Field)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := Default()
	cfg.TargetLang = "de"
	cfg.MaxChunkTokens = 900
	cfg.StrictValidation = true
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"target_lang":"ja"}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ja", cfg.TargetLang)
	assert.Equal(t, Default().MaxChunkTokens, cfg.MaxChunkTokens)
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"max_retries": -1}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
