// Package params holds the live gain/offset pair read by the render loop.
package params

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Conventional control ranges. The normalization core accepts any value;
// only the Controller clamps.
const (
	MinGain   = 0.1
	MaxGain   = 10.0
	MinOffset = -100.0
	MaxOffset = 100.0

	DefaultGain   = 1.0
	DefaultOffset = 0.0
)

// Params is one consistent snapshot of the contrast controls.
type Params struct {
	Gain   float64 `json:"gain" yaml:"gain"`
	Offset float64 `json:"offset" yaml:"offset"`
}

// Default returns the startup parameters.
func Default() Params {
	return Params{Gain: DefaultGain, Offset: DefaultOffset}
}

var errNotFinite = errors.New("must be a finite number")

func finite(value any) error {
	v, _ := value.(float64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errNotFinite
	}
	return nil
}

// Validate rejects non-finite values. Out-of-range values are valid; the
// Controller clamps them.
func (p Params) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Gain, validation.By(finite)),
		validation.Field(&p.Offset, validation.By(finite)),
	)
}

// Clamp limits p to the conventional ranges.
func (p Params) Clamp() Params {
	return Params{
		Gain:   clamp(p.Gain, MinGain, MaxGain, DefaultGain),
		Offset: clamp(p.Offset, MinOffset, MaxOffset, DefaultOffset),
	}
}

func clamp(v, lo, hi, fallback float64) float64 {
	switch {
	case math.IsNaN(v):
		return fallback
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// Source is read once per render tick.
type Source interface {
	Snapshot() Params
}

// Fixed is a Source that never changes.
type Fixed Params

// Snapshot implements Source.
func (f Fixed) Snapshot() Params { return Params(f) }

// ChangeFunc is notified after every applied change.
type ChangeFunc func(Params)

// Controller is the writable Source. Reads are lock-free; writes are
// serialized so Nudge never loses an update.
type Controller struct {
	cur      atomic.Pointer[Params]
	initial  Params
	mu       sync.Mutex
	watchers []ChangeFunc
}

// NewController returns a controller starting at initial (clamped).
func NewController(initial Params) *Controller {
	c := &Controller{initial: initial.Clamp()}
	p := c.initial
	c.cur.Store(&p)
	return c
}

// Snapshot implements Source.
func (c *Controller) Snapshot() Params {
	return *c.cur.Load()
}

// Set applies p clamped to the conventional ranges and returns what was applied.
func (c *Controller) Set(p Params) Params {
	c.mu.Lock()
	applied := c.store(p.Clamp())
	c.mu.Unlock()
	c.notify(applied)
	return applied
}

// Nudge adds the deltas to the current values.
func (c *Controller) Nudge(dGain, dOffset float64) Params {
	c.mu.Lock()
	cur := c.Snapshot()
	applied := c.store(Params{
		// Rounded so repeated ±0.1 steps land on clean values.
		Gain:   math.Round((cur.Gain+dGain)*1000) / 1000,
		Offset: cur.Offset + dOffset,
	}.Clamp())
	c.mu.Unlock()
	c.notify(applied)
	return applied
}

// Reset restores the startup parameters.
func (c *Controller) Reset() Params {
	return c.Set(c.initial)
}

// OnChange registers fn; it runs synchronously on the writer's goroutine.
func (c *Controller) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}

func (c *Controller) store(p Params) Params {
	c.cur.Store(&p)
	return p
}

func (c *Controller) notify(p Params) {
	c.mu.Lock()
	watchers := c.watchers
	c.mu.Unlock()
	for _, fn := range watchers {
		fn(p)
	}
}
