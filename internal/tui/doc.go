// Package tui provides the live terminal view for relay's run command.
//
// The view lists each task with its status, shows the tail of streamed
// backend output and prompts for pending tool requests. Only the oldest
// request is prompted at a time: y allows it, n denies it.
//
// Usage:
//
//	outcome, err := tui.Run(ctx, prompt, orch.Events(), orch.Approvals().Resolve,
//	    func(ctx context.Context) *orchestrator.RunOutcome {
//	        return orch.Run(ctx, prompt)
//	    })
//
// q or Ctrl+C cancels a run in progress; the view closes once the run
// returns. After the run ends, q closes the view.
package tui
