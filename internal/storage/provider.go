// Package storage implements the FrameStore: the shared artifacts an external
// producer overwrites and the monitor reads.
package storage

// Layout names.
const (
	LayoutPair     = "pair"
	LayoutEnvelope = "envelope"
)

// Snapshot is the raw content of one read of the artifacts. Descriptor and
// Payload may come from different producer generations (torn read).
type Snapshot struct {
	Descriptor []byte
	Payload    []byte
}

// Provider is the read side of a FrameStore.
type Provider interface {
	// Load reads the descriptor and payload. Absent artifacts yield an
	// error wrapping apperr.ErrMissingArtifact.
	Load() (*Snapshot, error)
	// Paths lists the artifact files this provider reads.
	Paths() []string
}

// Writer is the producer side of a FrameStore.
type Writer interface {
	// Store publishes a width×height row-major frame.
	Store(width, height int, samples []float32) error
}

// Store is a FrameStore that can be both read and written.
type Store interface {
	Provider
	Writer
}
