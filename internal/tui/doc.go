// Package tui provides the interactive chat surface for detty.
//
// The chat model renders the running conversation in a scrollable
// viewport with a bordered input line underneath. While a turn is in
// flight the input is disabled and a spinner shows next to the status
// line; tool and delegation activity surfaced by the orchestrator's
// events appears there as it happens.
//
// Usage:
//
//	program, app := tui.NewChatProgram(userID, send)
//	go forwardEvents(program)
//	program.Run()
//
// Users quit with Ctrl+C or by typing /quit.
package tui
