package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelInfo)

	ctx := AppendCtx(context.Background(), slog.String("run", "abc"))
	ctx = AppendCtx(ctx, slog.Int("component", 2))
	log.InfoContext(ctx, "solved", slog.Float64("objective", 1.5))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "solved", rec["msg"])
	assert.Equal(t, "abc", rec["run"])
	assert.Equal(t, float64(2), rec["component"])
	assert.Equal(t, 1.5, rec["objective"])
}

func TestAppendCtxDoesNotLeak(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("a", "1"))
	_ = AppendCtx(parent, slog.String("b", "2"))

	var buf bytes.Buffer
	Logger(&buf, false, slog.LevelInfo).InfoContext(parent, "msg")
	assert.Contains(t, buf.String(), "a=1")
	assert.NotContains(t, buf.String(), "b=2")
}

func TestLoggerLevel(t *testing.T) {
	tests := []struct {
		name  string
		level slog.Level
		lines int
	}{
		{"Debug", slog.LevelDebug, 3},
		{"Info", slog.LevelInfo, 2},
		{"Error", slog.LevelError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := Logger(&buf, false, tt.level)
			log.Debug("d")
			log.Info("i")
			log.Error("e")
			assert.Equal(t, tt.lines, strings.Count(buf.String(), "\n"))
		})
	}
}

func TestWithAttrsKeepsContext(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelInfo).With(slog.String("pkg", "recon")).WithGroup("g")
	log.InfoContext(AppendCtx(context.Background(), slog.String("run", "x")), "msg", slog.Int("n", 1))
	out := buf.String()
	assert.Contains(t, out, "pkg=recon")
	assert.Contains(t, out, "g.n=1")
	assert.Contains(t, out, "run=x")
}

func TestRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dejpeg.log")
	w := RotatingFile(path, 1, 2)
	Logger(w, true, slog.LevelInfo).Info("hello")
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
