package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf)

	l.Info("prediction complete",
		String("direction", "UP"),
		Int("confidence", 84),
		Float64("price", 9138.9),
		Bool("busy", false),
		Duration("took", 2*time.Second),
		Strings("models", []string{"svm", "hybrid"}),
		Error(errors.New("boom")),
	)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	m := lines[0]
	assert.Equal(t, "info", m["level"])
	assert.Equal(t, "prediction complete", m["message"])
	assert.Equal(t, "UP", m["direction"])
	assert.Equal(t, 84.0, m["confidence"])
	assert.Equal(t, 9138.9, m["price"])
	assert.Equal(t, false, m["busy"])
	assert.Equal(t, "boom", m["error"])
	assert.Equal(t, "svm, hybrid", m["models"])
	assert.Equal(t, 2000.0, m["took"])
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf).With(String("component", "broadcaster"))

	l.Warn("subscriber dropped", String("subscriber", "abc"))
	l.Error("encode failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	for _, m := range lines {
		assert.Equal(t, "broadcaster", m["component"])
	}
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestNew(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "warn", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("hidden")
	l.Warn("shown")
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().With(Any("k", 1)).Debug("nothing")
	})
}
