// Package viewservice exposes the published render state, parameters,
// history and snapshots to the HTTP and MCP surfaces.
package viewservice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/process"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/history"
	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/reader"
	"github.com/starford/specmon/internal/render"
	"github.com/starford/specmon/internal/scheduler"
	"github.com/starford/specmon/internal/storage"
)

// ErrWrongMode is returned when a view does not exist in the configured
// render mode (the matrix in trace mode, for example).
var ErrWrongMode = errors.New("not available in current render mode")

// StateSource yields the latest published render state.
type StateSource interface {
	State() *scheduler.Output
}

// StatsSource reports reader counters.
type StatsSource interface {
	Stats() reader.Stats
}

// Options wires the service. History and Stats are optional.
type Options struct {
	State       StateSource
	Params      *params.Controller
	Renderer    *render.Renderer
	History     history.Store
	Stats       StatsSource
	Session     string
	SnapshotDir string
}

// Service answers read queries against the render loop and applies
// parameter changes.
type Service struct {
	state    StateSource
	params   *params.Controller
	renderer *render.Renderer
	history  history.Store
	stats    StatsSource
	session  string
	snapDir  string
	started  time.Time
}

// New creates a Service.
func New(opts Options) *Service {
	return &Service{
		state:    opts.State,
		params:   opts.Params,
		renderer: opts.Renderer,
		history:  opts.History,
		stats:    opts.Stats,
		session:  opts.Session,
		snapDir:  opts.SnapshotDir,
		started:  time.Now(),
	}
}

// StateView summarizes one render state.
type StateView struct {
	Seq           uint64           `json:"seq"`
	Tick          uint64           `json:"tick"`
	State         string           `json:"state"`
	Mode          string           `json:"mode"`
	Fresh         bool             `json:"fresh"`
	Width         int              `json:"width"`
	Height        int              `json:"height"`
	Params        params.Params    `json:"params"`
	Low           float64          `json:"low"`
	High          float64          `json:"high"`
	Degenerate    bool             `json:"degenerate"`
	Histogram     models.Histogram `json:"histogram"`
	VisibleTraces int              `json:"visible_traces"`
	FrameSeq      uint64           `json:"frame_seq"`
	FrameChecksum string           `json:"frame_checksum"`
	RenderedAt    *time.Time       `json:"rendered_at,omitempty"`
}

// State returns the current render state summary.
func (s *Service) State(_ context.Context) *StateView {
	return ViewOf(s.state.State())
}

// ViewOf summarizes out.
func ViewOf(out *scheduler.Output) *StateView {
	v := &StateView{
		Seq:           out.Seq,
		Tick:          out.Tick,
		State:         out.State.String(),
		Mode:          string(out.Mode),
		Fresh:         out.Fresh,
		Width:         out.Width,
		Height:        out.Height,
		Params:        out.Params,
		Low:           finite(out.Low),
		High:          finite(out.High),
		Degenerate:    out.Degenerate,
		Histogram:     out.Histogram,
		FrameSeq:      out.FrameSeq,
		FrameChecksum: out.FrameChecksum,
	}
	for _, t := range out.Traces {
		if t.Visible {
			v.VisibleTraces++
		}
	}
	if !out.RenderedAt.IsZero() {
		at := out.RenderedAt
		v.RenderedAt = &at
	}
	return v
}

// Image renders the current state as PNG at width pixels (0 selects the
// configured width). The returned ETag changes whenever the bytes would.
func (s *Service) Image(_ context.Context, width int) ([]byte, string, error) {
	out := s.state.State()
	data, err := s.renderer.PNGWidth(out, width)
	if err != nil {
		return nil, "", err
	}
	return data, ETag(out, width), nil
}

// ETag identifies the rendered image of out at width.
func ETag(out *scheduler.Output, width int) string {
	cs := out.FrameChecksum
	if len(cs) > 12 {
		cs = cs[:12]
	}
	if cs == "" {
		cs = "idle"
	}
	return fmt.Sprintf(`"%s-%d-%s-g%g-o%g-w%d"`, cs, out.Seq, out.Mode, out.Params.Gain, out.Params.Offset, width)
}

// Matrix returns the current display matrix (heatmap mode only).
func (s *Service) Matrix(_ context.Context) (*models.DisplayMatrix, error) {
	out := s.state.State()
	if out.Matrix == nil {
		return nil, fmt.Errorf("matrix: %w", ErrWrongMode)
	}
	return out.Matrix, nil
}

// TraceView is a trace with JSON-safe values: non-finite samples become 0.
type TraceView struct {
	X       []int     `json:"x"`
	Y       []float64 `json:"y"`
	Visible bool      `json:"visible"`
}

// Traces returns the current trace set (trace mode only).
func (s *Service) Traces(_ context.Context) ([]TraceView, error) {
	out := s.state.State()
	if out.Mode != scheduler.ModeTrace {
		return nil, fmt.Errorf("traces: %w", ErrWrongMode)
	}
	views := make([]TraceView, len(out.Traces))
	for i, t := range out.Traces {
		ys := make([]float64, len(t.Y))
		for k, y := range t.Y {
			ys[k] = finite(float64(y))
		}
		views[i] = TraceView{X: t.X, Y: ys, Visible: t.Visible}
	}
	return views, nil
}

// Params returns the live parameters.
func (s *Service) Params(_ context.Context) params.Params {
	return s.params.Snapshot()
}

// SetParams validates p and applies it clamped; the applied value is
// returned. Non-finite values wrap apperr.ErrInvalidParams.
func (s *Service) SetParams(_ context.Context, p params.Params) (params.Params, error) {
	if err := p.Validate(); err != nil {
		return params.Params{}, fmt.Errorf("%w: %w", apperr.ErrInvalidParams, err)
	}
	return s.params.Set(p), nil
}

// History returns up to limit recent renders of this session, newest first.
func (s *Service) History(_ context.Context, limit int) ([]history.Row, error) {
	if s.history == nil {
		return []history.Row{}, nil
	}
	rows, err := s.history.Recent(s.session, limit)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []history.Row{}
	}
	return rows, nil
}

// HistoryEntry returns one render of this session by seq.
func (s *Service) HistoryEntry(_ context.Context, seq uint64) (*history.Row, error) {
	if s.history == nil {
		return nil, fmt.Errorf("history disabled: %w", apperr.ErrNotFound)
	}
	return s.history.Get(s.session, seq)
}

// ProcessView holds resource usage of this process.
type ProcessView struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	NumThreads int32   `json:"num_threads"`
}

// StatusView describes the running monitor.
type StatusView struct {
	Session         string       `json:"session"`
	StartedAt       time.Time    `json:"started_at"`
	UptimeSeconds   float64      `json:"uptime_seconds"`
	State           string       `json:"state"`
	Tick            uint64       `json:"tick"`
	LastFreshRender *time.Time   `json:"last_fresh_render,omitempty"`
	Reader          reader.Stats `json:"reader"`
	Process         *ProcessView `json:"process,omitempty"`
}

// Status reports session, uptime, reader counters and process usage.
// Process usage is omitted when it cannot be sampled.
func (s *Service) Status(_ context.Context) *StatusView {
	out := s.state.State()
	v := &StatusView{
		Session:       s.session,
		StartedAt:     s.started,
		UptimeSeconds: time.Since(s.started).Seconds(),
		State:         out.State.String(),
		Tick:          out.Tick,
		Process:       processView(),
	}
	if s.stats != nil {
		v.Reader = s.stats.Stats()
	}
	if !out.RenderedAt.IsZero() {
		at := out.RenderedAt
		v.LastFreshRender = &at
	}
	return v
}

func processView() *ProcessView {
	pid := int32(os.Getpid())
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	v := &ProcessView{PID: pid}
	if mem, err := p.MemoryInfo(); err == nil {
		v.RSSBytes = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		v.CPUPercent = cpu
	}
	if n, err := p.NumThreads(); err == nil {
		v.NumThreads = n
	}
	return v
}

// Snapshot describes a saved PNG.
type Snapshot struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Seq      uint64 `json:"seq"`
	URL      string `json:"url"`
}

// SaveSnapshot renders the current state and writes it to the snapshot
// directory under a unique name.
func (s *Service) SaveSnapshot(_ context.Context) (*Snapshot, error) {
	out := s.state.State()
	data, err := s.renderer.PNG(out)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	if err := os.MkdirAll(s.snapDir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create dir: %w", err)
	}

	name := fmt.Sprintf("snapshot-%06d-%s.png", out.Seq, uuid.NewString()[:8])
	abs := filepath.Join(s.snapDir, name)
	if err := storage.WriteAtomic(abs, data); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return &Snapshot{
		Filename: name,
		Path:     abs,
		Size:     int64(len(data)),
		Seq:      out.Seq,
		URL:      "/api/snapshots/" + name,
	}, nil
}

// SnapshotPath resolves a snapshot file name. Names with path components are
// rejected; missing files wrap apperr.ErrNotFound.
func (s *Service) SnapshotPath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") || !strings.HasSuffix(name, ".png") {
		return "", fmt.Errorf("%w: invalid snapshot name %q", apperr.ErrInvalidParams, name)
	}
	abs := filepath.Join(s.snapDir, name)
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("snapshot %s: %w", name, apperr.ErrNotFound)
		}
		return "", err
	}
	return abs, nil
}

// writeFile writes data via a temp file and rename.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
