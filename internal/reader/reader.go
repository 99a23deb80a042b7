// Package reader turns FrameStore snapshots into validated Frames.
//
// The producer rewrites the descriptor and payload without coordination, so a
// read may pair a new descriptor with an old payload or the reverse. The size
// check in Read is the only defense; a mismatch is a normal, transient result
// and the next poll simply retries.
package reader

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/checksum"
	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/parser"
	"github.com/starford/specmon/internal/storage"
)

// Stats are cumulative reader counters.
type Stats struct {
	Reads               uint64 `json:"reads"`
	Frames              uint64 `json:"frames"`
	MissingArtifact     uint64 `json:"missing_artifact"`
	MalformedDescriptor uint64 `json:"malformed_descriptor"`
	SizeMismatch        uint64 `json:"size_mismatch"`
}

// Reader reads Frames from a storage.Provider. Read and Poll are meant to be
// called from a single goroutine; Stats may be called from any.
type Reader struct {
	store  storage.Provider
	logger *slog.Logger
	now    func() time.Time

	seq        uint64
	lastReason error

	reads, frames                atomic.Uint64
	missing, malformed, mismatch atomic.Uint64
}

// New creates a Reader over store.
func New(store storage.Provider, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{store: store, logger: logger, now: time.Now}
}

// Read loads the artifacts and returns a validated Frame. Every failure wraps
// one of apperr.ErrMissingArtifact, apperr.ErrMalformedDescriptor or
// apperr.ErrSizeMismatch; no partial frame is ever returned.
func (r *Reader) Read() (*models.Frame, error) {
	snap, err := r.store.Load()
	if err != nil {
		if !errors.Is(err, apperr.ErrNotAvailable) {
			err = fmt.Errorf("%w: %w", apperr.ErrMissingArtifact, err)
		}
		return nil, err
	}

	desc, err := parser.ParseDescriptor(snap.Descriptor)
	if err != nil {
		return nil, err
	}

	samples, err := parser.DecodePayload(snap.Payload)
	if err != nil {
		return nil, err
	}
	if len(samples) != desc.Count() {
		return nil, fmt.Errorf("%w: descriptor %dx%d wants %d samples, payload has %d",
			apperr.ErrSizeMismatch, desc.Width, desc.Height, desc.Count(), len(samples))
	}

	frame, err := models.NewFrame(desc.Width, desc.Height, samples)
	if err != nil {
		return nil, err
	}
	r.seq++
	frame.Seq = r.seq
	frame.ReadAt = r.now()
	frame.Checksum = checksum.Frame(desc.Width, desc.Height, snap.Payload)
	return frame, nil
}

// Poll is Read reduced to "frame available or not". It never fails; reasons
// are counted and logged.
func (r *Reader) Poll() (*models.Frame, bool) {
	r.reads.Add(1)
	frame, err := r.Read()
	if err != nil {
		r.note(err)
		return nil, false
	}
	if r.lastReason != nil {
		r.logger.Info("reader: frames available again",
			slog.Int("width", frame.Width()),
			slog.Int("height", frame.Height()))
		r.lastReason = nil
	}
	r.frames.Add(1)
	return frame, true
}

// note records a failed read. Size mismatches are expected under concurrent
// writes and only ever reach DEBUG; other reasons are raised to WARN once
// per change of reason.
func (r *Reader) note(err error) {
	var reason error
	switch {
	case errors.Is(err, apperr.ErrSizeMismatch):
		r.mismatch.Add(1)
		r.logger.Debug("reader: size mismatch, retrying next poll", slog.String("error", err.Error()))
		return
	case errors.Is(err, apperr.ErrMalformedDescriptor):
		r.malformed.Add(1)
		reason = apperr.ErrMalformedDescriptor
	default:
		r.missing.Add(1)
		reason = apperr.ErrMissingArtifact
	}

	if reason == r.lastReason {
		r.logger.Debug("reader: frame not available", slog.String("error", err.Error()))
		return
	}
	r.lastReason = reason
	r.logger.Warn("reader: frame not available", slog.String("error", err.Error()))
}

// Stats returns a copy of the counters.
func (r *Reader) Stats() Stats {
	return Stats{
		Reads:               r.reads.Load(),
		Frames:              r.frames.Load(),
		MissingArtifact:     r.missing.Load(),
		MalformedDescriptor: r.malformed.Load(),
		SizeMismatch:        r.mismatch.Load(),
	}
}
