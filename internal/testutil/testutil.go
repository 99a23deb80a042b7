// Package testutil provides shared test helpers for frame stores and loggers.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/specmon/internal/storage"
)

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// PairStore creates a temporary directory with a pair-layout frame store.
func PairStore(t *testing.T) (string, *storage.Pair) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewPair(dir, storage.DefaultDescriptorName, storage.DefaultPayloadName)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteFrame stores a width×height frame, failing the test on error.
func WriteFrame(t *testing.T, w storage.Writer, width, height int, samples []float32) {
	t.Helper()
	if err := w.Store(width, height, samples); err != nil {
		t.Fatal(err)
	}
}

// Ramp returns n samples 1, 2, ..., n.
func Ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
