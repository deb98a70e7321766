package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"nutribot/internal/domain"
)

// Run drives the terminal UI until the user quits or ctx is done. Every
// session event triggers a redraw.
func Run(ctx context.Context, session Session, events <-chan domain.Event, opts ...Option) error {
	p := tea.NewProgram(New(ctx, session, opts...), tea.WithAltScreen(), tea.WithContext(ctx))

	go func() {
		for e := range events {
			p.Send(SessionChangedMsg{Event: e})
		}
	}()

	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "run terminal ui")
	}
	return nil
}
