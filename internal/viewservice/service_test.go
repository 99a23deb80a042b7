package viewservice

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/specmon/internal/apperr"
	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/reader"
	"github.com/starford/specmon/internal/render"
	"github.com/starford/specmon/internal/scheduler"
	"github.com/starford/specmon/internal/testutil"
)

type frames struct{ f *models.Frame }

func (s *frames) Poll() (*models.Frame, bool) { return s.f, s.f != nil }

type fixedStats reader.Stats

func (s fixedStats) Stats() reader.Stats { return reader.Stats(s) }

func testService(t *testing.T, mode scheduler.Mode) (*Service, *scheduler.Scheduler, *frames) {
	t.Helper()
	src := &frames{}
	ctrl := params.NewController(params.Default())
	sched := scheduler.New(scheduler.Config{Mode: mode, FallbackWidth: 8, FallbackHeight: 4}, src, ctrl,
		scheduler.WithLogger(testutil.Logger()))
	rend, err := render.New(render.Options{Width: 200})
	if err != nil {
		t.Fatal(err)
	}
	svc := New(Options{
		State:       sched,
		Params:      ctrl,
		Renderer:    rend,
		Stats:       fixedStats{Reads: 3, Frames: 1},
		Session:     "sess",
		SnapshotDir: filepath.Join(t.TempDir(), "snaps"),
	})
	return svc, sched, src
}

func setFrame(t *testing.T, src *frames) {
	t.Helper()
	f, err := models.NewFrame(4, 2, []float32{1, 2, 3, 4, 10, 20, 30, float32(math.Inf(1))})
	if err != nil {
		t.Fatal(err)
	}
	f.Checksum = "0123456789abcdef"
	src.f = f
}

func TestState_PlaceholderThenLive(t *testing.T) {
	svc, sched, src := testService(t, scheduler.ModeHeatmap)
	ctx := context.Background()

	v := svc.State(ctx)
	if v.State != "idle" || v.Width != 8 || v.Height != 4 || v.RenderedAt != nil {
		t.Fatalf("unexpected placeholder %+v", v)
	}
	if v.Histogram.Total() != 32 {
		t.Errorf("placeholder histogram total = %d", v.Histogram.Total())
	}

	setFrame(t, src)
	sched.Tick()
	v = svc.State(ctx)
	if v.State != "live" || !v.Fresh || v.Width != 4 || v.Seq != 1 || v.RenderedAt == nil {
		t.Fatalf("unexpected live state %+v", v)
	}
}

func TestImage_ETagTracksRenderAndParams(t *testing.T) {
	svc, sched, src := testService(t, scheduler.ModeHeatmap)
	ctx := context.Background()

	data, idle, err := svc.Image(ctx, 0)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty png")
	}

	setFrame(t, src)
	sched.Tick()
	_, live, _ := svc.Image(ctx, 0)
	if live == idle {
		t.Error("etag must change after a fresh render")
	}

	if _, err := svc.SetParams(ctx, params.Params{Gain: 2, Offset: 0}); err != nil {
		t.Fatal(err)
	}
	sched.Tick()
	_, tuned, _ := svc.Image(ctx, 0)
	if tuned == live {
		t.Error("etag must change with params")
	}
	_, wide, _ := svc.Image(ctx, 400)
	if wide == tuned {
		t.Error("etag must change with width")
	}
}

func TestMatrixAndTraces_ByMode(t *testing.T) {
	ctx := context.Background()

	heat, _, _ := testService(t, scheduler.ModeHeatmap)
	if _, err := heat.Matrix(ctx); err != nil {
		t.Errorf("Matrix: %v", err)
	}
	if _, err := heat.Traces(ctx); !errors.Is(err, ErrWrongMode) {
		t.Errorf("Traces in heatmap mode: err = %v", err)
	}

	tr, sched, src := testService(t, scheduler.ModeTrace)
	if _, err := tr.Matrix(ctx); !errors.Is(err, ErrWrongMode) {
		t.Errorf("Matrix in trace mode: err = %v", err)
	}
	setFrame(t, src)
	sched.Tick()
	traces, err := tr.Traces(ctx)
	if err != nil {
		t.Fatalf("Traces: %v", err)
	}
	if !traces[1].Visible || traces[1].Y[3] != 0 {
		t.Errorf("non-finite sample not sanitized: %+v", traces[1])
	}
	if traces[2].Visible {
		t.Error("trace 2 must be hidden")
	}
}

func TestSetParams(t *testing.T) {
	svc, _, _ := testService(t, scheduler.ModeHeatmap)
	ctx := context.Background()

	got, err := svc.SetParams(ctx, params.Params{Gain: 99, Offset: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got.Gain != params.MaxGain || svc.Params(ctx) != got {
		t.Errorf("applied = %+v", got)
	}

	if _, err := svc.SetParams(ctx, params.Params{Gain: math.NaN()}); !errors.Is(err, apperr.ErrInvalidParams) {
		t.Errorf("err = %v, want ErrInvalidParams", err)
	}
}

func TestHistory_Disabled(t *testing.T) {
	svc, _, _ := testService(t, scheduler.ModeHeatmap)
	ctx := context.Background()

	rows, err := svc.History(ctx, 10)
	if err != nil || rows == nil || len(rows) != 0 {
		t.Fatalf("rows = %v, err = %v", rows, err)
	}
	if _, err := svc.HistoryEntry(ctx, 1); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStatus(t *testing.T) {
	svc, _, _ := testService(t, scheduler.ModeHeatmap)
	v := svc.Status(context.Background())
	if v.Session != "sess" || v.Reader.Reads != 3 || v.State != "idle" {
		t.Fatalf("unexpected status %+v", v)
	}
	if v.Process == nil || v.Process.PID != int32(os.Getpid()) {
		t.Errorf("process info missing: %+v", v.Process)
	}
}

func TestSnapshots(t *testing.T) {
	svc, sched, src := testService(t, scheduler.ModeHeatmap)
	ctx := context.Background()
	setFrame(t, src)
	sched.Tick()

	snap, err := svc.SaveSnapshot(ctx)
	if err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	info, err := os.Stat(snap.Path)
	if err != nil || info.Size() != snap.Size {
		t.Fatalf("snapshot file: %v", err)
	}
	// The temp file used for the atomic write is gone.
	entries, err := os.ReadDir(filepath.Dir(snap.Path))
	if err != nil || len(entries) != 1 {
		t.Errorf("snapshot dir has %d entries (%v), want 1", len(entries), err)
	}

	abs, err := svc.SnapshotPath(snap.Filename)
	if err != nil || abs != snap.Path {
		t.Errorf("SnapshotPath = %q, %v", abs, err)
	}
	if _, err := svc.SnapshotPath("../etc/passwd.png"); !errors.Is(err, apperr.ErrInvalidParams) {
		t.Errorf("traversal: err = %v", err)
	}
	if _, err := svc.SnapshotPath("missing.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v", err)
	}
}
