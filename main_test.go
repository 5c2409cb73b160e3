package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basjoofan/core/load"
	"github.com/basjoofan/core/parser"
)

func TestRunTestsContinuesPastFailures(t *testing.T) {
	// The shared top level fails to compile, so every block errors;
	// each failure is reported and the loop still visits all of them.
	program, err := parser.ParseFile(`
		let a = boom
		test first { a }
		test second { a }
	`)
	require.NoError(t, err)

	var errs bytes.Buffer
	opts := load.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	runTests(context.Background(), program, opts, &errs)

	assert.Equal(t, 2, strings.Count(errs.String(), "undefined name: boom"))
}

func TestRunOneReportsMissingTest(t *testing.T) {
	program, err := parser.ParseFile("test only { 1 }")
	require.NoError(t, err)

	opts := load.Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	err = runOne(context.Background(), program, "nope", opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "test not found: nope")
}

func TestReadScript(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.fan"), []byte("let a = 1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.fan"), []byte("let b = 2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0o644))

	text, err := readScript(dir)
	require.NoError(t, err)
	assert.Contains(t, text, "let a = 1")
	assert.Contains(t, text, "let b = 2")
	assert.NotContains(t, text, "skip me")

	text, err = readScript(filepath.Join(dir, "a.fan"))
	require.NoError(t, err)
	assert.Equal(t, "let a = 1", text)

	empty := t.TempDir()
	_, err = readScript(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .fan files under")
}

func TestNewLogger(t *testing.T) {
	logger := newLogger("debug", "text")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = newLogger("error", "json")
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}
