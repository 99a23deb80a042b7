// Package tui draws the live render state in a terminal and maps keys onto
// the parameter controller.
package tui

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/specmon/internal/params"
	"github.com/starford/specmon/internal/render"
	"github.com/starford/specmon/internal/scheduler"
)

const (
	// GainStep and OffsetStep are the per-keypress parameter increments.
	GainStep   = 0.1
	OffsetStep = 1.0

	footerLines = 2
)

// FrameMsg carries a published render state into the program.
type FrameMsg struct {
	Out *scheduler.Output
}

var (
	liveStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("2")).Padding(0, 1)
	idleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("8")).Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	helpStyle  = lipgloss.NewStyle().Faint(true)
)

// Model is the bubbletea model of the monitor.
type Model struct {
	rend *render.Renderer
	ctrl *params.Controller

	out    *scheduler.Output
	canvas []string
	err    error

	width  int
	height int
}

// New returns a model showing initial until the first FrameMsg arrives.
func New(rend *render.Renderer, ctrl *params.Controller, initial *scheduler.Output) Model {
	return Model{rend: rend, ctrl: ctrl, out: initial}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.redraw()
	case FrameMsg:
		if msg.Out == nil {
			return m, nil
		}
		// Stale ticks keep the canvas; only the footer counters move.
		needDraw := msg.Out.Fresh || m.out == nil || msg.Out.Seq != m.out.Seq
		m.out = msg.Out
		if needDraw {
			m.redraw()
		}
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		m.ctrl.Nudge(GainStep, 0)
	case "down", "j":
		m.ctrl.Nudge(-GainStep, 0)
	case "left", "h":
		m.ctrl.Nudge(0, -OffsetStep)
	case "right", "l":
		m.ctrl.Nudge(0, OffsetStep)
	case "r":
		m.ctrl.Reset()
	}
	return m, nil
}

func (m *Model) redraw() {
	cols, rows := m.width, m.height-footerLines
	if m.out == nil || cols <= 0 || rows <= 0 {
		m.canvas = nil
		return
	}
	img, err := m.image(cols, rows)
	if err != nil {
		m.err = err
		m.canvas = nil
		return
	}
	m.err = nil
	m.canvas = render.HalfBlock(img, cols, rows)
}

func (m *Model) image(cols, rows int) (image.Image, error) {
	if m.out.Mode == scheduler.ModeTrace {
		// Charts need more pixels than cells to keep their labels legible.
		data, err := render.TraceChart(m.out.Traces, max(cols*4, 320), max(rows*8, 160))
		if err != nil {
			return nil, err
		}
		return png.Decode(bytes.NewReader(data))
	}
	img := m.rend.Image(m.out)
	if img == nil {
		return nil, fmt.Errorf("tui: render %d has no matrix", m.out.Seq)
	}
	return img, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 {
		return "starting…"
	}
	var b strings.Builder
	if m.err != nil {
		b.WriteString(warnStyle.Render("render failed: " + m.err.Error()))
		b.WriteByte('\n')
	}
	for _, line := range m.canvas {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) footer() string {
	out := m.out
	badge := idleStyle.Render(out.State.String())
	if out.State == scheduler.Live {
		badge = liveStyle.Render(out.State.String())
	}
	p := m.ctrl.Snapshot()

	fields := []string{
		badge,
		field("mode", string(out.Mode)),
		field("shape", fmt.Sprintf("%dx%d", out.Width, out.Height)),
		field("gain", fmt.Sprintf("%.2f", p.Gain)),
		field("offset", fmt.Sprintf("%+.1f", p.Offset)),
		field("render", fmt.Sprintf("#%d", out.Seq)),
		field("tick", fmt.Sprintf("%d", out.Tick)),
	}
	if out.Mode == scheduler.ModeHeatmap {
		fields = append(fields, field("p5..p95", fmt.Sprintf("%.2f..%.2f", out.Low, out.High)))
	}
	if out.Degenerate {
		fields = append(fields, warnStyle.Render("flat frame"))
	}
	status := lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(fields, "  "))
	help := helpStyle.MaxWidth(m.width).Render("↑/↓ gain  ←/→ offset  r reset  q quit")
	return status + "\n" + help
}

func field(label, value string) string {
	return labelStyle.Render(label+" ") + valueStyle.Render(value)
}
