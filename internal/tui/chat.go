package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SendFunc runs one conversation turn and returns the reply.
type SendFunc func(ctx context.Context, message string) (string, error)

// TurnResultMsg carries a finished turn back into the model.
type TurnResultMsg struct {
	Reply string
	Err   error
}

// ActivityMsg is a transient status line (routing, tool calls,
// delegations) shown while a turn is in flight.
type ActivityMsg struct {
	Text string
}

// chatLine is one rendered transcript entry.
type chatLine struct {
	speaker string
	text    string
}

// ChatApp is the bubbletea model for interactive chat.
type ChatApp struct {
	userID   string
	send     SendFunc
	input    textinput.Model
	view     viewport.Model
	spin     spinner.Model
	lines    []chatLine
	activity string
	busy     bool
	quitting bool
	width    int
	height   int
	ready    bool
}

// NewChatApp creates the chat model.
func NewChatApp(userID string, send SendFunc) *ChatApp {
	ti := textinput.New()
	ti.Placeholder = "Ask about Lagos and press Enter... (/quit to exit)"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	a := &ChatApp{
		userID: userID,
		send:   send,
		input:  ti,
		spin:   sp,
	}
	a.lines = append(a.lines, chatLine{
		speaker: "detty",
		text: "Welcome to Detty! I'm your Lagos December guide - attractions, " +
			"safety, food, lodging, the lot. What are you planning?",
	})
	return a
}

// Init implements tea.Model.
func (a *ChatApp) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (a *ChatApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			a.quitting = true
			return a, tea.Quit

		case "enter":
			if a.busy {
				return a, nil
			}
			text := strings.TrimSpace(a.input.Value())
			if text == "" {
				return a, nil
			}
			if text == "/quit" || text == "/exit" {
				a.quitting = true
				return a, tea.Quit
			}
			a.input.Reset()
			a.lines = append(a.lines, chatLine{speaker: "you", text: text})
			a.busy = true
			a.activity = "thinking"
			a.refreshViewport()
			return a, tea.Batch(a.spin.Tick, a.runTurn(text))

		case "up", "down", "pgup", "pgdown":
			var cmd tea.Cmd
			a.view, cmd = a.view.Update(msg)
			return a, cmd
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateSizes()
		return a, nil

	case TurnResultMsg:
		a.busy = false
		a.activity = ""
		if msg.Err != nil {
			a.lines = append(a.lines, chatLine{
				speaker: "detty",
				text:    "Something went wrong on my end: " + msg.Err.Error(),
			})
		} else {
			a.lines = append(a.lines, chatLine{speaker: "detty", text: msg.Reply})
		}
		a.refreshViewport()
		return a, nil

	case ActivityMsg:
		if a.busy {
			a.activity = msg.Text
		}
		return a, nil

	case spinner.TickMsg:
		if !a.busy {
			return a, nil
		}
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd
	}

	if !a.busy {
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}
	return a, nil
}

// runTurn executes the turn off the update loop.
func (a *ChatApp) runTurn(message string) tea.Cmd {
	return func() tea.Msg {
		reply, err := a.send(context.Background(), message)
		return TurnResultMsg{Reply: reply, Err: err}
	}
}

// updateSizes resizes the viewport around the fixed chrome: one header
// line, the status line, and the 3-line input box.
func (a *ChatApp) updateSizes() {
	contentHeight := a.height - 5
	if contentHeight < 3 {
		contentHeight = 3
	}
	if !a.ready {
		a.view = viewport.New(a.width, contentHeight)
		a.ready = true
	} else {
		a.view.Width = a.width
		a.view.Height = contentHeight
	}
	a.input.Width = a.width - 4
	a.refreshViewport()
}

// refreshViewport re-renders the transcript and pins to the bottom.
func (a *ChatApp) refreshViewport() {
	if !a.ready {
		return
	}
	a.view.SetContent(a.renderTranscript())
	a.view.GotoBottom()
}

func (a *ChatApp) renderTranscript() string {
	width := a.width
	if width <= 0 {
		width = 80
	}
	wrap := lipgloss.NewStyle().Width(width - 2)

	var b strings.Builder
	for i, line := range a.lines {
		if i > 0 {
			b.WriteString("\n")
		}
		label := assistantLabelStyle.Render(line.speaker)
		if line.speaker == "you" {
			label = userLabelStyle.Render(line.speaker)
		}
		b.WriteString(label + "\n")
		b.WriteString(wrap.Render(line.text) + "\n")
	}
	return b.String()
}

// View implements tea.Model.
func (a *ChatApp) View() string {
	if a.quitting {
		return "O dabo! Enjoy Lagos.\n"
	}
	if !a.ready {
		return "starting..."
	}

	header := headerStyle.Render(fmt.Sprintf(" detty · %s ", a.userID))

	status := ""
	if a.busy {
		status = a.spin.View() + " " + statusStyle.Render(a.activity+"...")
	}

	inputBox := inputBoxStyle.Width(a.width - 2).Render(
		promptStyle.Render("> ") + a.input.View())

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.view.View(),
		status,
		inputBox,
	)
}

// Transcript returns the rendered conversation so far. Used by tests
// and the one-shot chat command.
func (a *ChatApp) Transcript() []string {
	out := make([]string, 0, len(a.lines))
	for _, line := range a.lines {
		out = append(out, line.speaker+": "+line.text)
	}
	return out
}

// Busy reports whether a turn is in flight.
func (a *ChatApp) Busy() bool { return a.busy }

// NewChatProgram creates a bubbletea program for the chat surface.
func NewChatProgram(userID string, send SendFunc) (*tea.Program, *ChatApp) {
	app := NewChatApp(userID, send)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
