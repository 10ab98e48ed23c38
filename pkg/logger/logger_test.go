package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_BeforeInitPanics(t *testing.T) {
	Reset()
	assert.Panics(t, func() { Get() })
}

func TestInit_JSONWithServiceAndComponent(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	var buf bytes.Buffer

	Init(Options{Level: "debug", Service: "accounts-api", Output: &buf})
	log := Component("mail")
	log.Debug().Str("to", "a@x.com").Msg("queued")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "accounts-api", line["service"])
	assert.Equal(t, "mail", line["component"])
	assert.Equal(t, "queued", line["message"])
	assert.Equal(t, "debug", line["level"])
}

func TestInit_OnlyFirstCallApplies(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	var first, second bytes.Buffer

	Init(Options{Level: "error", Output: &first})
	Init(Options{Level: "debug", Output: &second})
	log := Get()
	log.Error().Msg("boom")
	log.Info().Msg("filtered")

	assert.Contains(t, first.String(), "boom")
	assert.NotContains(t, first.String(), "filtered")
	assert.Empty(t, second.String())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		" DEBUG ": zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
