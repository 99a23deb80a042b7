package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/starford/specmon/internal/scheduler"
)

// Sender matches *tea.Program's Send method.
type Sender interface {
	Send(msg tea.Msg)
}

// Display hands render states to a running program. Show never blocks:
// when the program falls behind, only the newest state is kept.
type Display struct {
	ch chan *scheduler.Output
}

// NewDisplay creates an empty Display.
func NewDisplay() *Display {
	return &Display{ch: make(chan *scheduler.Output, 1)}
}

// Show implements scheduler.Display.
func (d *Display) Show(out *scheduler.Output) {
	for {
		select {
		case d.ch <- out:
			return
		default:
		}
		select {
		case <-d.ch:
		default:
		}
	}
}

// Pump forwards shown states to s until ctx is done.
func (d *Display) Pump(ctx context.Context, s Sender) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-d.ch:
			s.Send(FrameMsg{Out: out})
		}
	}
}

// Run starts the program on the alternate screen and blocks until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, m Model, d *Display) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	go d.Pump(ctx, p)

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
