package history

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/starford/specmon/internal/scheduler"
)

const (
	recorderBuffer = 64
	// pruneEvery is how many inserts happen between retention passes.
	pruneEvery = 50
)

// Recorder is a scheduler display that stores every fresh render. Show never
// blocks the render loop: rows are written by Run, and dropped (and counted)
// when the buffer is full.
type Recorder struct {
	store   Store
	session string
	retain  int
	logger  *slog.Logger

	ch      chan Row
	dropped atomic.Uint64
	written atomic.Uint64
}

// NewRecorder creates a recorder writing rows tagged with session. retain
// bounds the table size; 0 keeps everything.
func NewRecorder(store Store, session string, retain int, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		session: session,
		retain:  retain,
		logger:  logger,
		ch:      make(chan Row, recorderBuffer),
	}
}

// Session returns the session id rows are tagged with.
func (r *Recorder) Session() string { return r.session }

// Show implements scheduler.Display.
func (r *Recorder) Show(out *scheduler.Output) {
	if !out.Fresh {
		return
	}
	select {
	case r.ch <- FromOutput(r.session, out):
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("history: buffer full, dropping rows")
		}
	}
}

// Run writes queued rows until ctx is cancelled, then flushes what is left.
func (r *Recorder) Run(ctx context.Context) error {
	r.logger.Info("history: recorder started", slog.String("session", r.session))
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case row := <-r.ch:
					r.write(row)
				default:
					r.logger.Info("history: recorder stopped",
						slog.Uint64("written", r.written.Load()),
						slog.Uint64("dropped", r.dropped.Load()))
					return nil
				}
			}
		case row := <-r.ch:
			r.write(row)
		}
	}
}

// Written returns how many rows were stored.
func (r *Recorder) Written() uint64 { return r.written.Load() }

func (r *Recorder) write(row Row) {
	if err := r.store.Insert(row); err != nil {
		r.logger.Warn("history: insert failed", slog.Uint64("seq", row.Seq), slog.String("error", err.Error()))
		return
	}
	n := r.written.Add(1)
	if r.retain > 0 && n%pruneEvery == 0 {
		deleted, err := r.store.Prune(r.retain)
		if err != nil {
			r.logger.Warn("history: prune failed", slog.String("error", err.Error()))
			return
		}
		if deleted > 0 {
			r.logger.Debug("history: pruned", slog.Int64("rows", deleted))
		}
	}
}

// FromOutput builds the history row of a render.
func FromOutput(session string, out *scheduler.Output) Row {
	return Row{
		Session:    session,
		Seq:        out.Seq,
		Tick:       out.Tick,
		Mode:       string(out.Mode),
		Width:      out.Width,
		Height:     out.Height,
		FrameSeq:   out.FrameSeq,
		Checksum:   out.FrameChecksum,
		Gain:       out.Params.Gain,
		Offset:     out.Params.Offset,
		Low:        out.Low,
		High:       out.High,
		Degenerate: out.Degenerate,
		Histogram:  out.Histogram,
		RenderedAt: out.RenderedAt,
	}
}
