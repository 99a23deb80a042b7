package internal

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/specmon/internal/storage"
	"github.com/starford/specmon/internal/testutil"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Store.Dir = filepath.Join(dir, "frames")
	cfg.Snapshots.Dir = filepath.Join(dir, "snaps")
	cfg.History.Path = filepath.Join(dir, "history.db")
	cfg.Render.Period = 20 * time.Millisecond
	return cfg
}

func TestRun_RequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("expected error without config")
	}
}

func TestRun_UnknownMode(t *testing.T) {
	err := Run(context.Background(), WithConfig(testConfig(t)), WithMode("kiosk"))
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("err = %v", err)
	}
}

func TestSnapshot_NoFrame(t *testing.T) {
	_, err := Snapshot(context.Background(), WithConfig(testConfig(t)))
	if !errors.Is(err, ErrNoFrame) {
		t.Fatalf("err = %v, want ErrNoFrame", err)
	}
}

func TestSnapshot_WritesPNG(t *testing.T) {
	cfg := testConfig(t)
	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		t.Fatal(err)
	}
	pair, err := storage.NewPair(cfg.Store.Dir, "", "")
	if err != nil {
		t.Fatal(err)
	}
	testutil.WriteFrame(t, pair, 16, 4, testutil.Ramp(64))

	snap, err := Snapshot(context.Background(), WithConfig(cfg))
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(snap.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Error("snapshot is not a PNG")
	}
	if filepath.Dir(snap.Path) != cfg.Snapshots.Dir {
		t.Errorf("snapshot saved to %s", snap.Path)
	}
}

func TestProduce_WritesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Producer.Period = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Produce(ctx, WithConfig(cfg)) }()

	testutil.Eventually(t, 2*time.Second, 10*time.Millisecond, func() bool {
		_, err := os.Stat(filepath.Join(cfg.Store.Dir, storage.DefaultPayloadName))
		return err == nil
	}, "producer wrote no payload")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Produce: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Produce did not stop")
	}
}

func TestRun_MCPStopsOnEOF(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false

	done := make(chan error, 1)
	go func() {
		done <- Run(context.Background(),
			WithConfig(cfg),
			WithMode(ModeMCP),
			WithStdio(strings.NewReader(""), io.Discard))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after stdin closed")
	}
}
