// Package scheduler drives the fixed-period render loop and owns the
// published render state.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/normalize"
	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/trace"
)

// Mode selects how frames are rendered.
type Mode string

const (
	ModeHeatmap Mode = "heatmap"
	ModeTrace   Mode = "trace"
)

// State is the scheduler's lifecycle state.
type State int

const (
	// Idle: no frame rendered yet, the placeholder is shown.
	Idle State = iota
	// Live: at least one frame rendered.
	Live
)

func (s State) String() string {
	if s == Live {
		return "live"
	}
	return "idle"
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

const (
	DefaultPeriod         = 500 * time.Millisecond
	DefaultFallbackWidth  = 64
	DefaultFallbackHeight = 20
)

// Config holds scheduler settings fixed at startup.
type Config struct {
	Mode           Mode
	Period         time.Duration
	MaxTraces      int
	FallbackWidth  int
	FallbackHeight int
}

func (c *Config) withDefaults() {
	if c.Mode == "" {
		c.Mode = ModeHeatmap
	}
	if c.Period <= 0 {
		c.Period = DefaultPeriod
	}
	if c.MaxTraces <= 0 {
		c.MaxTraces = trace.DefaultMaxTraces
	}
	if c.FallbackWidth <= 0 {
		c.FallbackWidth = DefaultFallbackWidth
	}
	if c.FallbackHeight <= 0 {
		c.FallbackHeight = DefaultFallbackHeight
	}
}

// Output is one published render state. It is immutable once published;
// Matrix and Traces are shared between successive outputs that re-emit the
// same render.
type Output struct {
	// Tick counts completed ticks; 0 is the initial placeholder.
	Tick uint64
	// Seq counts fresh renders; 0 is the placeholder.
	Seq   uint64
	State State
	Mode  Mode
	// Fresh is set when this tick rendered a new frame.
	Fresh bool

	Width, Height int

	// Matrix and Histogram are set in heatmap mode, Traces in trace mode.
	Matrix    *models.DisplayMatrix
	Histogram models.Histogram
	Traces    []models.Trace

	Params     params.Params
	Low, High  float64
	Degenerate bool

	FrameSeq      uint64
	FrameChecksum string
	RenderedAt    time.Time
}

// FrameSource yields the next frame or reports that none is available.
type FrameSource interface {
	Poll() (*models.Frame, bool)
}

// Display receives every tick's output, exactly once per tick.
type Display interface {
	Show(*Output)
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(*Output)

// Show implements Display.
func (f DisplayFunc) Show(o *Output) { f(o) }

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDisplay registers display collaborators.
func WithDisplay(d ...Display) Option {
	return func(s *Scheduler) {
		s.displays = append(s.displays, d...)
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// Scheduler renders frames from a FrameSource at a fixed period.
type Scheduler struct {
	cfg    Config
	src    FrameSource
	params params.Source
	logger *slog.Logger
	now    func() time.Time

	mu       sync.Mutex
	displays []Display

	// tickMu keeps ticks single-flight when Tick is driven from outside Run.
	tickMu sync.Mutex
	state  atomic.Pointer[Output]
}

// New creates a scheduler and publishes the Idle placeholder state.
func New(cfg Config, src FrameSource, p params.Source, opts ...Option) *Scheduler {
	cfg.withDefaults()
	s := &Scheduler{
		cfg:    cfg,
		src:    src,
		params: p,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(s.placeholder())
	return s
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config { return s.cfg }

// Attach registers an additional display. It takes effect from the next tick.
func (s *Scheduler) Attach(d Display) {
	s.mu.Lock()
	s.displays = append(s.displays, d)
	s.mu.Unlock()
}

// State returns the latest published output. Safe for concurrent use.
func (s *Scheduler) State() *Output {
	return s.state.Load()
}

func (s *Scheduler) placeholder() *Output {
	out := &Output{
		State:  Idle,
		Mode:   s.cfg.Mode,
		Width:  s.cfg.FallbackWidth,
		Height: s.cfg.FallbackHeight,
		Params: s.params.Snapshot(),
	}
	if s.cfg.Mode == ModeTrace {
		out.Traces = trace.Hidden(s.cfg.MaxTraces)
	} else {
		out.Matrix = models.NewDisplayMatrix(s.cfg.FallbackWidth, s.cfg.FallbackHeight)
		out.Histogram = normalize.Histogram(out.Matrix.Values)
	}
	return out
}

// Tick runs one read → render → publish → signal step and returns the
// output handed to the displays. When no frame is available the previous
// render is re-emitted unchanged with Fresh unset.
func (s *Scheduler) Tick() *Output {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	p := s.params.Snapshot()
	prev := s.state.Load()

	var out *Output
	if f, ok := s.src.Poll(); ok {
		out = s.render(f, p)
		out.Seq = prev.Seq + 1
	} else {
		next := *prev
		next.Fresh = false
		out = &next
	}
	out.Tick = prev.Tick + 1

	s.state.Store(out)

	s.mu.Lock()
	displays := s.displays
	s.mu.Unlock()
	for _, d := range displays {
		d.Show(out)
	}
	return out
}

func (s *Scheduler) render(f *models.Frame, p params.Params) *Output {
	out := &Output{
		State:         Live,
		Mode:          s.cfg.Mode,
		Fresh:         true,
		Width:         f.Width(),
		Height:        f.Height(),
		Params:        p,
		FrameSeq:      f.Seq,
		FrameChecksum: f.Checksum,
		RenderedAt:    s.now(),
	}

	if s.cfg.Mode == ModeTrace {
		out.Traces = trace.Project(f, s.cfg.MaxTraces)
		return out
	}

	res := normalize.Apply(f, p.Gain, p.Offset)
	out.Matrix = res.Matrix
	out.Histogram = res.Histogram
	out.Low, out.High = res.Low, res.High
	out.Degenerate = res.Degenerate

	if res.Degenerate {
		s.logger.Debug("scheduler: output zeroed",
			slog.String("reason", apperr.ErrDegenerateFrame.Error()),
			slog.Uint64("frame_seq", f.Seq))
	}
	s.logger.Debug("scheduler: histogram",
		slog.Uint64("frame_seq", f.Seq),
		slog.String("counts", FormatHistogram(res.Histogram)))
	return out
}

// Run ticks every period until ctx is cancelled, starting immediately. A
// tick that overruns the period delays the next one, which then starts as
// soon as the slow one returns. Ticks never overlap and none are dropped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler: started",
		slog.String("mode", string(s.cfg.Mode)),
		slog.Duration("period", s.cfg.Period))

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	next := time.Now()
	for {
		if wait := time.Until(next); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler: stopped")
				return nil
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			s.logger.Info("scheduler: stopped")
			return nil
		}

		start := time.Now()
		s.Tick()
		next = start.Add(s.cfg.Period)
		if elapsed := time.Since(start); elapsed > s.cfg.Period {
			s.logger.Debug("scheduler: tick overran period",
				slog.Duration("elapsed", elapsed),
				slog.Duration("period", s.cfg.Period))
		}
	}
}

// FormatHistogram renders counts as "[c0 c1 ... c19]".
func FormatHistogram(h models.Histogram) string {
	return fmt.Sprint(h[:])
}
