package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RUTUPARNk/script-db/internal/config"
)

func TestNew_JSONRecords(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("backup captured", "script", "foo")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "backup captured", rec["msg"])
	assert.Equal(t, "foo", rec["script"])
	assert.Equal(t, "INFO", rec["level"])
}

func TestNew_AutoFallsBackToJSONOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(config.LoggingConfig{Format: "auto"}, &buf)
	require.NoError(t, err)

	log.Warn("pending", "count", 2)
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestNew_RejectsUnknownSettings(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(config.LoggingConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
