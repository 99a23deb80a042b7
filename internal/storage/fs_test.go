package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/parser"
)

func tempPair(t *testing.T) (*Pair, string) {
	t.Helper()
	dir := t.TempDir()
	p, err := NewPair(dir, "", "")
	if err != nil {
		t.Fatalf("NewPair: %v", err)
	}
	return p, dir
}

func TestPair_StoreAndLoad(t *testing.T) {
	p, dir := tempPair(t)
	if err := p.Store(4, 2, []float32{1, 2, 3, 4, 10, 20, 30, 40}); err != nil {
		t.Fatalf("Store: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, DefaultDescriptorName))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "4 2\n" {
		t.Errorf("descriptor = %q", raw)
	}

	snap, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(snap.Descriptor) != "4 2\n" {
		t.Errorf("descriptor = %q", snap.Descriptor)
	}
	if len(snap.Payload) != 32 {
		t.Errorf("payload = %d bytes, want 32", len(snap.Payload))
	}
}

func TestPair_MissingArtifacts(t *testing.T) {
	p, dir := tempPair(t)

	if _, err := p.Load(); !errors.Is(err, apperr.ErrMissingArtifact) {
		t.Fatalf("err = %v, want ErrMissingArtifact", err)
	}

	// Descriptor present, payload absent.
	_ = os.WriteFile(filepath.Join(dir, DefaultDescriptorName), []byte("4 2"), 0o644)
	if _, err := p.Load(); !errors.Is(err, apperr.ErrMissingArtifact) {
		t.Fatalf("err = %v, want ErrMissingArtifact", err)
	}
}

func TestPair_IndependentWrites(t *testing.T) {
	p, _ := tempPair(t)
	if err := p.StoreDescriptor(3, 1); err != nil {
		t.Fatal(err)
	}
	if err := p.StorePayload([]float32{1, 2}); err != nil {
		t.Fatal(err)
	}
	snap, err := p.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// The store does not validate; a torn pair is surfaced as-is.
	if string(snap.Descriptor) != "3 1\n" || len(snap.Payload) != 8 {
		t.Errorf("snapshot = %q / %d bytes", snap.Descriptor, len(snap.Payload))
	}
}

func TestPair_RejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewPair(dir, "../escape.dim", ""); err == nil {
		t.Error("expected error for traversal")
	}
	if _, err := NewPair(dir, "sub/array.dim", ""); err == nil {
		t.Error("expected error for nested path")
	}
	if _, err := NewPair(dir, "same", "same"); err == nil {
		t.Error("expected error for identical names")
	}
}

func TestPair_NoTempLeftovers(t *testing.T) {
	p, dir := tempPair(t)
	for i := 0; i < 3; i++ {
		if err := p.Store(2, 1, []float32{float32(i), 1}); err != nil {
			t.Fatal(err)
		}
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want only the two artifacts", names)
	}
}

func TestWriteAtomic_Replaces(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.png")
	for _, content := range []string{"first", "second"} {
		if err := WriteAtomic(path, []byte(content)); err != nil {
			t.Fatalf("WriteAtomic: %v", err)
		}
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "second" {
		t.Fatalf("content = %q, %v", got, err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("dir has %d entries, want 1", len(entries))
	}
}

func TestWriteAtomic_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.png")
	if err := WriteAtomic(path, []byte("x")); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}

func TestEnvelope_StoreAndLoad(t *testing.T) {
	dir := t.TempDir()
	e, err := NewEnvelope(dir, "")
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if err := e.Store(2, 2, []float32{1, 2, 3, 4}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	snap, err := e.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	d, err := parser.ParseDescriptor(snap.Descriptor)
	if err != nil {
		t.Fatal(err)
	}
	if d.Width != 2 || d.Height != 2 || len(snap.Payload) != 16 {
		t.Errorf("descriptor = %+v, payload = %d bytes", d, len(snap.Payload))
	}
}

func TestEnvelope_Truncated(t *testing.T) {
	dir := t.TempDir()
	e, _ := NewEnvelope(dir, "")
	data := parser.EncodeEnvelope(2, 2, []float32{1, 2, 3, 4})
	_ = os.WriteFile(filepath.Join(dir, DefaultEnvelopeName), data[:len(data)-2], 0o644)
	if _, err := e.Load(); !errors.Is(err, apperr.ErrSizeMismatch) {
		t.Fatalf("err = %v, want ErrSizeMismatch", err)
	}
}

func TestOpen_Layouts(t *testing.T) {
	dir := t.TempDir()
	if s, err := Open(Options{Dir: dir}); err != nil || len(s.Paths()) != 2 {
		t.Errorf("pair: %v", err)
	}
	if s, err := Open(Options{Dir: dir, Layout: LayoutEnvelope}); err != nil || len(s.Paths()) != 1 {
		t.Errorf("envelope: %v", err)
	}
	if _, err := Open(Options{Dir: dir, Layout: "bogus"}); err == nil {
		t.Error("expected error for unknown layout")
	}
	if _, err := Open(Options{Dir: filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing dir")
	}
}
