package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/parser"
)

// Default artifact names, matching the producer's conventional paths.
const (
	DefaultDescriptorName = "array.dim"
	DefaultPayloadName    = "array.bin"
	DefaultEnvelopeName   = "array.frame"
)

// Options selects a FrameStore layout and artifact names.
type Options struct {
	Dir        string
	Layout     string
	Descriptor string
	Payload    string
	Envelope   string
}

// Open returns the FrameStore described by opts.
func Open(opts Options) (Store, error) {
	switch opts.Layout {
	case "", LayoutPair:
		p, err := NewPair(opts.Dir, opts.Descriptor, opts.Payload)
		if err != nil {
			return nil, err
		}
		return p, nil
	case LayoutEnvelope:
		e, err := NewEnvelope(opts.Dir, opts.Envelope)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("storage: unknown layout %q", opts.Layout)
	}
}

// Pair implements Store as two independently written files: a text
// descriptor and a raw float32 payload.
type Pair struct {
	root       string // absolute path to the exchange directory
	descriptor string
	payload    string
}

// NewPair creates a pair store in dir. The directory must already exist.
// Empty names fall back to the defaults.
func NewPair(dir, descriptorName, payloadName string) (*Pair, error) {
	root, err := resolveRoot(dir)
	if err != nil {
		return nil, err
	}
	if descriptorName == "" {
		descriptorName = DefaultDescriptorName
	}
	if payloadName == "" {
		payloadName = DefaultPayloadName
	}
	p := &Pair{root: root}
	if p.descriptor, err = safePath(root, descriptorName); err != nil {
		return nil, err
	}
	if p.payload, err = safePath(root, payloadName); err != nil {
		return nil, err
	}
	if p.descriptor == p.payload {
		return nil, fmt.Errorf("storage: descriptor and payload must differ: %s", descriptorName)
	}
	return p, nil
}

// Load reads the descriptor, then the payload. The two reads are not atomic
// with respect to the producer.
func (p *Pair) Load() (*Snapshot, error) {
	desc, err := readArtifact(p.descriptor)
	if err != nil {
		return nil, err
	}
	payload, err := readArtifact(p.payload)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Descriptor: desc, Payload: payload}, nil
}

// Paths returns the descriptor and payload paths.
func (p *Pair) Paths() []string {
	return []string{p.descriptor, p.payload}
}

// Store writes the descriptor, then the payload, each atomically.
func (p *Pair) Store(width, height int, samples []float32) error {
	if err := WriteAtomic(p.descriptor, parser.FormatDescriptor(width, height)); err != nil {
		return err
	}
	return WriteAtomic(p.payload, parser.EncodePayload(samples))
}

// StoreDescriptor writes only the descriptor. Producers that update the two
// artifacts at different times use it together with StorePayload.
func (p *Pair) StoreDescriptor(width, height int) error {
	return WriteAtomic(p.descriptor, parser.FormatDescriptor(width, height))
}

// StorePayload writes only the payload.
func (p *Pair) StorePayload(samples []float32) error {
	return WriteAtomic(p.payload, parser.EncodePayload(samples))
}

// Envelope implements Store as a single framed file replaced by rename, so a
// reader always sees a consistent header and payload.
type Envelope struct {
	root string
	path string
}

// NewEnvelope creates an envelope store in dir.
func NewEnvelope(dir, name string) (*Envelope, error) {
	root, err := resolveRoot(dir)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = DefaultEnvelopeName
	}
	path, err := safePath(root, name)
	if err != nil {
		return nil, err
	}
	return &Envelope{root: root, path: path}, nil
}

// Load reads the envelope and splits it into descriptor text and payload.
func (e *Envelope) Load() (*Snapshot, error) {
	data, err := readArtifact(e.path)
	if err != nil {
		return nil, err
	}
	env, err := parser.ParseEnvelope(data)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Descriptor: parser.FormatDescriptor(env.Descriptor.Width, env.Descriptor.Height),
		Payload:    env.Payload,
	}, nil
}

// Paths returns the envelope path.
func (e *Envelope) Paths() []string {
	return []string{e.path}
}

// Store writes the whole frame in one atomic rename.
func (e *Envelope) Store(width, height int, samples []float32) error {
	return WriteAtomic(e.path, parser.EncodeEnvelope(width, height, samples))
}

func resolveRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("storage: resolve dir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("storage: stat dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("storage: not a directory: %s", abs)
	}
	return abs, nil
}

// safePath resolves an artifact name against root and rejects anything that
// is not a plain file name directly inside it.
func safePath(root, name string) (string, error) {
	cleaned := filepath.Clean(name)
	if filepath.IsAbs(cleaned) || cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("storage: artifact name must be a plain file name: %s", name)
	}
	abs := filepath.Join(root, cleaned)
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("storage: artifact escapes exchange dir: %s", name)
	}
	return abs, nil
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrMissingArtifact, filepath.Base(path))
		}
		return nil, fmt.Errorf("%w: read %s: %v", apperr.ErrMissingArtifact, filepath.Base(path), err)
	}
	return data, nil
}

// WriteAtomic replaces abs with content via a temp file in the same
// directory, fsync and rename. Readers see either the old or the new file.
func WriteAtomic(abs string, content []byte) error {
	dir := filepath.Dir(abs)
	tmp, err := os.CreateTemp(dir, ".specmon-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
