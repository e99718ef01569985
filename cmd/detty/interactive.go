package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dettyhq/detty/internal/orchestrator"
	"github.com/dettyhq/detty/internal/tui"
)

// runInteractive launches the chat TUI against the live stack.
func runInteractive(user string) error {
	if user == "" {
		user = "guest"
	}

	var program *tea.Program
	a, err := buildApp(func(ev orchestrator.Event) {
		if program == nil {
			return
		}
		if text := activityText(ev); text != "" {
			program.Send(tui.ActivityMsg{Text: text})
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	send := func(ctx context.Context, message string) (string, error) {
		res, err := a.orch.HandleTurn(ctx, user, message)
		if err != nil {
			return "", err
		}
		return res.Response, nil
	}

	program, _ = tui.NewChatProgram(user, send)
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat session: %w", err)
	}
	return nil
}

// activityText turns orchestrator events into status-line text. Events
// with no user-facing phrasing return "".
func activityText(ev orchestrator.Event) string {
	switch ev.Type {
	case orchestrator.EventRouted:
		return "planning your answer"
	case orchestrator.EventToolInvoked:
		return "checking live data (" + ev.Tool + ")"
	case orchestrator.EventDelegationStarted:
		return "consulting the " + string(ev.Role) + " specialist"
	case orchestrator.EventConsolidated:
		return "putting it together"
	default:
		return ""
	}
}
