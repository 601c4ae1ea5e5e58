package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "typst", cfg.TypstBin)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.NotEmpty(t, cfg.UserAgent)
	assert.Positive(t, cfg.MaxResourceSize)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TYPST_PREPROCESS_LOG_LEVEL", "debug")
	t.Setenv("TYPST_PREPROCESS_LOG_FORMAT", "json")
	t.Setenv("TYPST_PREPROCESS_TYPST_BIN", "/opt/typst/typst")
	t.Setenv("TYPST_PREPROCESS_HTTP_TIMEOUT", "90s")
	t.Setenv("TYPST_PREPROCESS_MAX_RESOURCE_SIZE", "1024")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/opt/typst/typst", cfg.TypstBin)
	assert.Equal(t, 90*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, int64(1024), cfg.MaxResourceSize)
}

func TestLoadInvalidFormat(t *testing.T) {
	t.Setenv("TYPST_PREPROCESS_LOG_FORMAT", "xml")

	_, err := Load()
	assert.ErrorContains(t, err, "invalid log format")
}

func TestLoadUnparsableValuesFallBack(t *testing.T) {
	t.Setenv("TYPST_PREPROCESS_HTTP_TIMEOUT", "soon")
	t.Setenv("TYPST_PREPROCESS_MAX_RESOURCE_SIZE", "lots")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, int64(256<<20), cfg.MaxResourceSize)
}
