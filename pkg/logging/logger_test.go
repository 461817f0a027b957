package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf)
	logger.Info().Str("swath", "IW2").Msg("assembling annotation")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "IW2", event["swath"])
	assert.Equal(t, "assembling annotation", event["message"])
}

func TestSetDefault(t *testing.T) {
	original := *Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(New(&buf))
	Default().Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestNopDiscards(t *testing.T) {
	assert.Equal(t, zerolog.Disabled, Nop.GetLevel())
}
