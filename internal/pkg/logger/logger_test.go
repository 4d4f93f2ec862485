package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"lendmark/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		App: config.AppConfig{AppName: "lendmark", Environment: "test"},
		Log: config.LogConfig{Level: "debug", Format: "json"},
	}

	l := Component(NewWithWriter(cfg, &buf), "offers")
	l.Info().Str("offer_id", "abc").Msg("offer created")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "lendmark", line["app"])
	assert.Equal(t, "offers", line["component"])
	assert.Equal(t, "abc", line["offer_id"])
	assert.Equal(t, "offer created", line["message"])
}

func TestNewWithWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{Log: config.LogConfig{Level: "warn"}}

	l := NewWithWriter(cfg, &buf)
	l.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
