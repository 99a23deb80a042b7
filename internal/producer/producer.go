// Package producer writes synthetic spectra to a FrameStore. It stands in for
// the external signal source in demos and tests.
package producer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/starford/specmon/internal/storage"
)

const (
	DefaultWidth  = 256
	DefaultHeight = 8
	DefaultPeriod = 200 * time.Millisecond
)

// Config controls the synthetic signal and how it is written.
type Config struct {
	Width  int
	Height int
	Period time.Duration
	// TornDelay, when positive, writes the descriptor and the payload of the
	// pair layout separately with this pause in between.
	TornDelay time.Duration
	// VaryShape alternates the row count between Height and Height-1 so torn
	// writes actually disagree in size.
	VaryShape bool
	Seed      int64
}

// splitWriter is implemented by layouts whose artifacts can be written apart.
type splitWriter interface {
	StoreDescriptor(width, height int) error
	StorePayload(samples []float32) error
}

// Producer generates and stores frames.
type Producer struct {
	w      storage.Writer
	cfg    Config
	logger *slog.Logger
	rng    *rand.Rand
	gen    uint64
}

// New creates a Producer writing to w.
func New(w storage.Writer, cfg Config, logger *slog.Logger) *Producer {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		w:      w,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Shape returns the dimensions of generation gen.
func (p *Producer) Shape(gen uint64) (int, int) {
	h := p.cfg.Height
	if p.cfg.VaryShape && h > 1 && gen%2 == 1 {
		h--
	}
	return p.cfg.Width, h
}

// Frame returns a width×height magnitude spectrum: a noise floor around 1e-3
// with one Gaussian peak per row whose position drifts with phase.
func (p *Producer) Frame(width, height int, phase float64) []float32 {
	out := make([]float32, width*height)
	sigma := math.Max(float64(width)/40, 1)
	for i := 0; i < height; i++ {
		center := (0.5 + 0.4*math.Sin(phase+float64(i)*0.7)) * float64(width-1)
		amp := math.Pow(10, 1+float64(i%4))
		row := out[i*width : (i+1)*width]
		for j := range row {
			d := (float64(j) - center) / sigma
			noise := 1e-3 * (0.5 + p.rng.Float64())
			row[j] = float32(noise + amp*math.Exp(-0.5*d*d))
		}
	}
	return out
}

// Step generates and stores the next frame.
func (p *Producer) Step() error {
	gen := p.gen
	p.gen++

	w, h := p.Shape(gen)
	samples := p.Frame(w, h, float64(gen)*0.15)

	split, ok := p.w.(splitWriter)
	if p.cfg.TornDelay <= 0 || !ok {
		if err := p.w.Store(w, h, samples); err != nil {
			return fmt.Errorf("producer: store frame %d: %w", gen, err)
		}
		return nil
	}

	if err := split.StoreDescriptor(w, h); err != nil {
		return fmt.Errorf("producer: store descriptor %d: %w", gen, err)
	}
	time.Sleep(p.cfg.TornDelay)
	if err := split.StorePayload(samples); err != nil {
		return fmt.Errorf("producer: store payload %d: %w", gen, err)
	}
	return nil
}

// Generations returns how many frames were written.
func (p *Producer) Generations() uint64 { return p.gen }

// Run writes a frame every period until ctx is cancelled. Write errors are
// logged and the loop carries on.
func (p *Producer) Run(ctx context.Context) error {
	p.logger.Info("producer: started",
		slog.Int("width", p.cfg.Width),
		slog.Int("height", p.cfg.Height),
		slog.Duration("period", p.cfg.Period),
		slog.Duration("torn_delay", p.cfg.TornDelay))

	ticker := time.NewTicker(p.cfg.Period)
	defer ticker.Stop()

	for {
		if err := p.Step(); err != nil {
			p.logger.Warn("producer: write failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			p.logger.Info("producer: stopped", slog.Uint64("frames", p.gen))
			return nil
		case <-ticker.C:
		}
	}
}
