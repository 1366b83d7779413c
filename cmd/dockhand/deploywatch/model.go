// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package deploywatch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/junegunn/fzf/src/util"

	"github.com/bureau-foundation/dockhand/console"
)

// streamEventMsg carries one decoded SSE event from the stream
// goroutine into the update loop.
type streamEventMsg struct {
	event console.StreamEvent
}

// streamDoneMsg reports that the stream goroutine returned. A nil
// error means the stream delivered its complete event first.
type streamDoneMsg struct {
	err error
}

// Model is the bubbletea model for the deploy log viewer: a viewport
// over the buffered log, a fuzzy filter, and a status bar showing the
// project, build state, and stream offset.
type Model struct {
	project string
	keys    KeyMap
	theme   Theme

	viewport viewport.Model
	spinner  spinner.Model
	filter   FilterModel

	width  int
	height int
	ready  bool

	// Log buffer. lines holds completed lines; partial holds the tail
	// of a chunk that did not end in a newline. The buffer is bounded
	// in practice by the gateway's output cap on the deploy command.
	lines   []string
	partial string

	// visible counts the lines the current filter lets through.
	visible int

	offset   int64
	running  bool
	complete bool
	timedOut bool
	quit     bool

	// streamErr is the last backend error, shown in the status bar.
	// Transient poll errors land here and clear on the next chunk;
	// failed marks the stream goroutine exiting with an error, which
	// is terminal.
	streamErr string
	failed    bool

	// follow pins the viewport to the bottom as new lines arrive.
	// Scrolling up releases it; G or scrolling back to the bottom
	// re-engages it.
	follow bool

	slab     *util.Slab
	messages <-chan tea.Msg
}

// newModel creates the viewer in its initial state: empty buffer,
// follow engaged, build assumed running until the stream says
// otherwise.
func newModel(project string, messages <-chan tea.Msg) Model {
	theme := DefaultTheme
	indicator := spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(lipgloss.NewStyle().
			Foreground(theme.RunningAccent).
			Background(theme.BarBackground)),
	)
	return Model{
		project:  project,
		keys:     DefaultKeyMap,
		theme:    theme,
		spinner:  indicator,
		running:  true,
		follow:   true,
		slab:     util.MakeSlab(slabChars, slabInts),
		messages: messages,
	}
}

// listenForStream blocks on the message channel and hands the next
// stream message to the update loop. Re-armed after every message.
func listenForStream(messages <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		message, ok := <-messages
		if !ok {
			return nil
		}
		return message
	}
}

// Init starts the stream listener and the spinner.
func (model Model) Init() tea.Cmd {
	return tea.Batch(listenForStream(model.messages), model.spinner.Tick)
}

// Update handles incoming messages and returns the updated model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
		model.refreshContent()
		return model, nil

	case tea.KeyMsg:
		if model.filter.Active {
			return model.handleFilterKeys(message)
		}
		return model.handleKeys(message)

	case tea.MouseMsg:
		var command tea.Cmd
		model.viewport, command = model.viewport.Update(message)
		model.follow = model.viewport.AtBottom()
		return model, command

	case spinner.TickMsg:
		if !model.running {
			return model, nil
		}
		var command tea.Cmd
		model.spinner, command = model.spinner.Update(message)
		return model, command

	case streamEventMsg:
		model.applyEvent(message.event)
		return model, listenForStream(model.messages)

	case streamDoneMsg:
		if message.err != nil && !model.complete {
			model.streamErr = message.err.Error()
			model.failed = true
		}
		model.running = false
		return model, nil
	}

	return model, nil
}

// handleKeys processes keystrokes while the viewport has focus.
func (model Model) handleKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		model.quit = true
		return model, tea.Quit

	case key.Matches(message, model.keys.FilterActivate):
		model.filter.Active = true
		model.layout()
		return model, nil

	case key.Matches(message, model.keys.FilterClear):
		if model.filter.Input != "" {
			model.filter.Clear()
			model.layout()
			model.refreshContent()
		}
		return model, nil

	case key.Matches(message, model.keys.Top):
		model.viewport.GotoTop()
		model.follow = false
		return model, nil

	case key.Matches(message, model.keys.Bottom):
		model.viewport.GotoBottom()
		model.follow = true
		return model, nil
	}

	// Everything else (arrows, pgup/pgdown, u/d) is the viewport's.
	var command tea.Cmd
	model.viewport, command = model.viewport.Update(message)
	model.follow = model.viewport.AtBottom()
	return model, command
}

// handleFilterKeys processes keystrokes when the filter input has
// focus.
func (model Model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		// ctrl+c always quits, even in filter mode.
		if message.Type == tea.KeyCtrlC {
			model.quit = true
			return model, tea.Quit
		}
		// 'q' is a regular character in filter mode.
		model.filter.HandleRune('q')
		model.refreshContent()
		return model, nil

	case key.Matches(message, model.keys.FilterClear):
		// Esc: if there's filter text, clear it; if already empty,
		// exit filter mode.
		if model.filter.Input != "" {
			model.filter.Clear()
			model.layout()
			model.refreshContent()
		} else {
			model.filter.Active = false
			model.layout()
		}
		return model, nil

	case message.Type == tea.KeyEnter:
		// Confirm filter and return focus to the viewport.
		model.filter.Active = false
		model.layout()
		return model, nil

	case message.Type == tea.KeyBackspace:
		if model.filter.HandleBackspace() {
			model.refreshContent()
		}
		return model, nil

	case message.Type == tea.KeyRunes || message.Type == tea.KeySpace:
		for _, character := range message.Runes {
			model.filter.HandleRune(character)
		}
		model.refreshContent()
		return model, nil
	}

	return model, nil
}

// applyEvent folds one stream event into the model state.
func (model *Model) applyEvent(event console.StreamEvent) {
	switch {
	case event.Log != nil:
		model.streamErr = ""
		model.appendChunk(event.Log.Content)
		model.refreshContent()

	case event.Status != nil:
		model.offset = event.Status.Offset
		model.running = event.Status.Running

	case event.Error != nil:
		// Transient backend failure; the stream keeps polling.
		model.streamErr = event.Error.Error

	case event.Complete != nil:
		model.streamErr = ""
		model.running = false
		model.complete = true
		model.timedOut = event.Complete.TimedOut
		if event.Complete.TotalBytes > 0 {
			model.offset = event.Complete.TotalBytes
		}
	}
}

// appendChunk splits newly streamed bytes into buffered lines. ANSI
// sequences are stripped: build tools emit color and cursor movement
// that the viewport must not replay. A trailing fragment without a
// newline is held in partial until the next chunk completes it.
func (model *Model) appendChunk(content string) {
	if content == "" {
		return
	}
	text := model.partial + ansi.Strip(content)
	pieces := strings.Split(text, "\n")
	model.partial = pieces[len(pieces)-1]
	for _, line := range pieces[:len(pieces)-1] {
		model.lines = append(model.lines, strings.TrimSuffix(line, "\r"))
	}
}

// layout recomputes the viewport dimensions from the window size and
// the chrome currently shown below it.
func (model *Model) layout() {
	chrome := 1 // status bar
	if model.filter.Active || model.filter.Input != "" {
		chrome++
	}
	model.viewport.Width = model.width
	model.viewport.Height = max(1, model.height-chrome)
}

// refreshContent rebuilds the viewport content from the buffer and the
// current filter. When follow is engaged the viewport stays pinned to
// the bottom.
func (model *Model) refreshContent() {
	matches := model.filter.Apply(model.lines, model.slab)
	model.visible = len(matches)

	highlight := lipgloss.NewStyle().Background(model.theme.MatchBackground)
	rendered := make([]string, 0, len(matches)+1)
	for _, match := range matches {
		line := model.lines[match.index]
		if len(match.positions) > 0 {
			line = highlightMatches(line, match.positions, highlight)
		}
		rendered = append(rendered, line)
	}
	// The unterminated tail is display-only; it joins the buffer once
	// its newline arrives.
	if model.partial != "" && model.filter.Input == "" {
		rendered = append(rendered, model.partial)
	}

	model.viewport.SetContent(strings.Join(rendered, "\n"))
	if model.follow {
		model.viewport.GotoBottom()
	}
}

// highlightMatches re-renders line with the matched rune positions
// tinted. Contiguous runs share one escape sequence. fzf emits
// positions in reverse order, so membership goes through a set.
func highlightMatches(line string, positions []int, style lipgloss.Style) string {
	matched := make(map[int]bool, len(positions))
	for _, position := range positions {
		matched[position] = true
	}

	runes := []rune(line)
	var out strings.Builder
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && matched[j] == matched[i] {
			j++
		}
		segment := string(runes[i:j])
		if matched[i] {
			segment = style.Render(segment)
		}
		out.WriteString(segment)
		i = j
	}
	return out.String()
}

// View renders the viewport with the filter bar and status bar below
// it.
func (model Model) View() string {
	if !model.ready {
		return "connecting to deploy stream..."
	}

	sections := []string{model.viewport.View()}
	if filterBar := model.filter.View(model.theme, model.width); filterBar != "" {
		sections = append(sections, filterBar)
	}
	sections = append(sections, model.statusBar())
	return strings.Join(sections, "\n")
}

// statusBar renders the bottom bar: project, build state, line counts,
// stream offset, and scroll position.
func (model Model) statusBar() string {
	theme := model.theme
	base := lipgloss.NewStyle().Background(theme.BarBackground)
	text := base.Foreground(theme.BarForeground)
	faint := base.Foreground(theme.FaintText)

	var state string
	switch {
	case model.streamErr != "":
		state = base.Foreground(theme.ErrorAccent).Bold(true).Render("stream error")
	case model.timedOut:
		state = base.Foreground(theme.TimedOutAccent).Bold(true).Render("timed out")
	case model.complete:
		state = base.Foreground(theme.CompleteAccent).Bold(true).Render("complete")
	case model.running:
		state = model.spinner.View() + base.Foreground(theme.RunningAccent).Render(" building")
	default:
		state = faint.Render("stopped")
	}

	counts := fmt.Sprintf(" %d lines ", len(model.lines))
	if model.filter.Input != "" {
		counts = fmt.Sprintf(" %d/%d lines ", model.visible, len(model.lines))
	}

	left := text.Bold(true).Render(" "+model.project+" ") + state + faint.Render(counts)
	if model.streamErr != "" {
		left += faint.Render(truncate(model.streamErr, max(0, model.width/3)) + " ")
	}

	right := faint.Render(fmt.Sprintf(" %s  %3.0f%% ",
		humanize.IBytes(uint64(max(0, model.offset))),
		model.viewport.ScrollPercent()*100))

	gap := model.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + base.Render(strings.Repeat(" ", gap)) + right
}

// truncate caps a string at limit runes, marking the cut with an
// ellipsis.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}
