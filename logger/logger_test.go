package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMessage = "test message"

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		out = append(out, line)
	}
	return out
}

func TestNewWithWriterLevels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "debug", level: "debug", wantDebug: true, wantInfo: true},
		{name: "info", level: "info", wantDebug: false, wantInfo: true},
		{name: "error", level: "error", wantDebug: false, wantInfo: false},
		{name: "invalid defaults to info", level: "nope", wantDebug: false, wantInfo: true},
		{name: "empty defaults to info", level: "", wantDebug: false, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&buf, tt.level, nil)

			log.Debug().Msg("debug line")
			log.Info().Msg("info line")

			lines := decodeLines(t, &buf)
			var gotDebug, gotInfo bool
			for _, l := range lines {
				switch l["level"] {
				case "debug":
					gotDebug = true
				case "info":
					gotInfo = true
				}
			}
			assert.Equal(t, tt.wantDebug, gotDebug)
			assert.Equal(t, tt.wantInfo, gotInfo)
		})
	}
}

func TestLogEventFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug", nil)

	log.Info().
		Str("method", "GET").
		Int("status", 200).
		Int64("call_count", 7).
		Bytes("body_preview", []byte(`{"ok":true}`)).
		Dur("elapsed", 150*time.Millisecond).
		Err(errors.New("boom")).
		Msg(testMessage)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, testMessage, line["message"])
	assert.Equal(t, "GET", line["method"])
	assert.Equal(t, float64(200), line["status"])
	assert.Equal(t, float64(7), line["call_count"])
	assert.Equal(t, `{"ok":true}`, line["body_preview"])
	assert.Equal(t, "boom", line["error"])
	assert.Contains(t, line, "elapsed")
	assert.Contains(t, line, "caller")
}

func TestSensitiveFieldsMasked(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", nil)

	headers := http.Header{}
	headers.Set("Authorization", "Bearer abc")
	headers.Set("X-Org-Key", "org-secret")
	headers.Set("Accept", "application/json")

	log.Info().
		Str("access_token", "abc").
		Str("url", "https://api.example.com/auth/me").
		Interface("headers", map[string][]string(headers)).
		Msg("request done")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, DefaultMaskValue, line["access_token"])
	assert.Equal(t, "https://api.example.com/auth/me", line["url"])
	assert.Equal(t, "request done", line["message"])

	h, ok := line["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{DefaultMaskValue}, h["Authorization"])
	assert.Equal(t, []any{DefaultMaskValue}, h["X-Org-Key"])
	assert.Equal(t, []any{"application/json"}, h["Accept"])
}

func TestWithFieldsFiltersSensitiveValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", nil).WithFields(map[string]any{
		"component":     "httpclient",
		"refresh_token": "r-1",
	})

	log.Info().Msg(testMessage)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "httpclient", lines[0]["component"])
	assert.Equal(t, DefaultMaskValue, lines[0]["refresh_token"])
}

func TestWithContext(t *testing.T) {
	var base bytes.Buffer
	log := NewWithWriter(&base, "info", nil)

	t.Run("context without logger returns receiver", func(t *testing.T) {
		assert.Same(t, log, log.WithContext(context.Background()))
	})

	t.Run("context logger is used", func(t *testing.T) {
		var ctxBuf bytes.Buffer
		zl := zerolog.New(&ctxBuf)
		ctx := zl.WithContext(context.Background())

		log.WithContext(ctx).Info().Msg("from ctx")

		assert.Contains(t, ctxBuf.String(), "from ctx")
		assert.NotContains(t, base.String(), "from ctx")
	})
}

func TestNop(t *testing.T) {
	log := Nop()
	assert.NotPanics(t, func() {
		log.Info().Str("k", "v").Int("n", 1).Msg("ignored")
		log.Debug().Interface("h", map[string]string{"token": "x"}).Msg("ignored")
	})
}
