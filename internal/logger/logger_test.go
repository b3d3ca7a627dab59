package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityField(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "production", "")
	l.Warn().Str("user_id", "7").Msg("low quota")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["severity"])
	assert.Equal(t, "7", line["user_id"])
}

func TestDefaultLevelDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "production", "")
	l.Debug().Msg("hidden")
	assert.Zero(t, buf.Len())

	buf.Reset()
	l = NewWithWriter(&buf, "production", "debug")
	l.Debug().Msg("shown")
	assert.NotZero(t, buf.Len())
}
