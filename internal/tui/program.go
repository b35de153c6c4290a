package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/relay/internal/orchestrator"
)

// RunFunc executes a run under ctx and reports its outcome.
type RunFunc func(ctx context.Context) *orchestrator.RunOutcome

// Run shows the live view for a run. Every event on bus is forwarded to the
// program, run is started on its own goroutine, and y/n answers go to
// resolve. It returns the outcome once the user exits the view; the run is
// cancelled first if it is still going.
func Run(ctx context.Context, prompt string, bus *orchestrator.EventBus, resolve ResolveFunc, run RunFunc, opts ...tea.ProgramOption) (*orchestrator.RunOutcome, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := NewRunModel(prompt, resolve, cancel)
	p := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)...)

	unsubscribe := bus.SubscribeAll(func(e orchestrator.Event) {
		p.Send(EventMsg{Event: e})
	})
	defer unsubscribe()

	done := make(chan *orchestrator.RunOutcome, 1)
	go func() {
		outcome := run(ctx)
		done <- outcome
		p.Send(DoneMsg{Outcome: outcome})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("run tui: %w", err)
	}

	// The view may exit before the run does; wait for it to wind down.
	cancel()
	return <-done, nil
}
