package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiHandler(t *testing.T) {
	var jsonBuf, textBuf bytes.Buffer
	logger := slog.New(&multiHandler{
		handlers: []slog.Handler{
			slog.NewJSONHandler(&jsonBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
			slog.NewTextHandler(&textBuf, &slog.HandlerOptions{Level: slog.LevelWarn}),
		},
	})

	logger.With("component", "judge").Debug("judge request", "op", "run")
	logger.Warn("judge request failed", "op", "submit")

	assert.Equal(t, 2, strings.Count(jsonBuf.String(), "\n"), "json handler records")
	assert.Contains(t, jsonBuf.String(), `"component":"judge"`)
	assert.Equal(t, 1, strings.Count(textBuf.String(), "\n"), "text handler records")
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}
