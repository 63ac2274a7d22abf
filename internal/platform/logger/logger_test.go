package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   Debug,
		"":        Info,
		"INFO":    Info,
		"warning": Warn,
		" error ": Error,
		"verbose": Info,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("console"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func TestJSONLogger_WritesFieldsAndApp(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Info, Format: FormatJSON, App: "clinic", Output: &buf})

	l.With(map[string]any{"request_id": "r-1"}).Info("authorized", map[string]any{
		"resource": "pet",
		"err":      errors.New("boom"),
		"":         "ignored",
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "authorized", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "clinic", entry["app"])
	assert.Equal(t, "r-1", entry["request_id"])
	assert.Equal(t, "pet", entry["resource"])
	assert.Equal(t, "boom", entry["err"])
	assert.NotContains(t, entry, "")
}

func TestLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: Warn, Format: FormatText, Output: &buf})

	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	l.Warn("shown", map[string]any{"k": 1})

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Equal(t, 1, strings.Count(out, "shown"))
}

func TestFromContext(t *testing.T) {
	fallback := Nop()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))

	scoped := Nop().With(map[string]any{"a": 1})
	ctx := WithContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}
