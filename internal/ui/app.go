// Package ui is the terminal keyboard host: an editable text field, four
// mode buttons, a max-token slider and a spinner while a request runs.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"allora/internal/commands"
	"allora/internal/completion"
	"allora/internal/logging"
	"allora/internal/prompt"
	"allora/internal/session"
	"allora/internal/splice"
)

// chunkMsg carries one chunk from a request's channel into Update.
type chunkMsg struct {
	req   *session.Request
	chunk completion.Chunk
	ok    bool
}

func waitForChunk(r *session.Request) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-r.Events()
		return chunkMsg{req: r, chunk: chunk, ok: ok}
	}
}

type Options struct {
	Context context.Context
	History HistoryLister
	Log     logrus.FieldLogger
}

type Model struct {
	width, height int
	ready         bool

	ctx     context.Context
	sess    *session.Session
	buf     *splice.TextBuffer
	store   HistoryLister
	log     logrus.FieldLogger
	spinner spinner.Model

	active  *session.Request
	mode    prompt.Mode
	started time.Time

	view    ViewMode
	history *HistoryState

	status    string
	statusErr bool
}

func New(sess *session.Session, buf *splice.TextBuffer, opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = StatusWarn

	return Model{
		ctx:     opts.Context,
		sess:    sess,
		buf:     buf,
		store:   opts.History,
		log:     opts.Log,
		spinner: sp,
		history: NewHistoryState(),
		status:  "F1 for help",
	}
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctx context.Context, m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.history.SetMaxHeight(msg.Height)
		return m, nil

	case chunkMsg:
		return m.handleChunk(msg)

	case spinner.TickMsg:
		if m.active == nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.sess.Close()
		return m, tea.Quit
	}

	switch m.view {
	case ViewHelp:
		if k := msg.String(); k == "esc" || k == "f1" || k == "q" {
			m.view = ViewNormal
		}
		return m, nil
	case ViewHistory:
		return m.handleHistoryKey(msg)
	}

	switch msg.String() {
	case "f1":
		m.view = ViewHelp
		return m, nil
	case "alt+h":
		return m.openHistory()
	case "esc":
		if m.active != nil {
			m.active.Cancel()
			m.setStatus("Cancelling...", false)
		}
		return m, nil
	case "f2":
		return m.start(prompt.SendBoth)
	case "f3":
		return m.start(prompt.SendTextOnly)
	case "f4":
		return m.start(prompt.ContinueClipboard)
	case "f5":
		return m.start(prompt.ContinueText)
	case "shift+left":
		return m.adjustTokens(-1), nil
	case "shift+right":
		return m.adjustTokens(1), nil
	case "pgdown":
		return m.adjustTokens(-10), nil
	case "pgup":
		return m.adjustTokens(10), nil
	}

	// The field is read-only while a completion is being spliced in.
	if m.active != nil {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyRunes:
		m.buf.InsertText(string(msg.Runes))
	case tea.KeySpace:
		m.buf.InsertText(" ")
	case tea.KeyBackspace:
		m.buf.DeleteBackward()
	case tea.KeyLeft:
		m.buf.MoveLeft()
	case tea.KeyRight:
		m.buf.MoveRight()
	case tea.KeyHome, tea.KeyCtrlA:
		m.buf.MoveToStart()
	case tea.KeyEnd, tea.KeyCtrlE:
		m.buf.MoveToEnd()
	case tea.KeyEnter:
		return m.enter()
	}
	return m, nil
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		m.view = ViewNormal
	case "up", "k":
		m.history.Up()
	case "down", "j":
		m.history.Down()
	case "enter":
		if rec := m.history.Selected(); rec != nil && rec.Completion != "" && m.active == nil {
			m.buf.InsertText(rec.Completion)
			m.setStatus("Inserted completion from "+modeLabel(rec.Mode), false)
		}
		m.view = ViewNormal
	}
	return m, nil
}

// enter runs the current line as a command when it starts with "/".
func (m Model) enter() (tea.Model, tea.Cmd) {
	line := currentLine(m.buf)
	cmd := commands.Parse(line)
	if cmd == nil {
		m.buf.InsertText("\n")
		return m, nil
	}
	for range []rune(line) {
		m.buf.DeleteBackward()
	}
	return m.runCommand(cmd)
}

func (m Model) runCommand(cmd commands.Command) (tea.Model, tea.Cmd) {
	switch c := cmd.(type) {
	case commands.Help:
		m.view = ViewHelp
	case commands.Send:
		return m.start(c.Mode)
	case commands.SetTokens:
		cfg := m.sess.Config()
		cfg.MaxTokens = c.N
		m.sess.SetConfig(cfg)
		m.setStatus(fmt.Sprintf("Max tokens set to %d", c.N), false)
	case commands.SetTemperature:
		cfg := m.sess.Config()
		cfg.Temperature = c.Value
		m.sess.SetConfig(cfg)
		m.setStatus(fmt.Sprintf("Temperature set to %.2f", c.Value), false)
	case commands.SetStream:
		cfg := m.sess.Config()
		if c.On && cfg.API == completion.APILegacy {
			m.setStatus("The legacy endpoint cannot stream", true)
			return m, nil
		}
		cfg.Stream = c.On
		m.sess.SetConfig(cfg)
		m.setStatus("Streaming "+onOff(c.On), false)
	case commands.SetReplace:
		m.sess.SetReplacePolicy(c.Policy)
		m.setStatus("Replace policy: "+c.Policy, false)
	case commands.Cancel:
		if m.active != nil {
			m.active.Cancel()
			m.setStatus("Cancelling...", false)
		}
	case commands.Clear:
		if m.active == nil {
			m.buf.Clear()
		}
	case commands.ShowHistory:
		return m.openHistory()
	case commands.ParseError:
		m.setStatus(c.Message, true)
	}
	return m, nil
}

func (m Model) openHistory() (tea.Model, tea.Cmd) {
	if err := m.history.Load(m.store); err != nil {
		m.setStatus("History: "+err.Error(), true)
		return m, nil
	}
	m.view = ViewHistory
	return m, nil
}

func (m Model) start(mode prompt.Mode) (tea.Model, tea.Cmd) {
	r, err := m.sess.Start(m.ctx, mode)
	if err != nil {
		m.setStatus(describeError(err), true)
		return m, nil
	}
	m.active = r
	m.mode = mode
	m.started = time.Now()
	m.setStatus(mode.Label(), false)
	return m, tea.Batch(waitForChunk(r), m.spinner.Tick)
}

func (m Model) handleChunk(msg chunkMsg) (tea.Model, tea.Cmd) {
	if msg.req == nil || msg.req != m.active {
		return m, nil
	}

	var done bool
	var err error
	if msg.ok {
		done, err = msg.req.Handle(msg.chunk)
	} else {
		done, err = true, msg.req.HandleClosed()
	}
	if !done {
		return m, waitForChunk(msg.req)
	}

	elapsed := formatElapsedTime(time.Since(m.started))
	m.active = nil
	if err != nil {
		m.log.WithError(err).Debug("request ended with error")
		m.setStatus(describeError(err), !errors.Is(err, context.Canceled))
		return m, nil
	}
	m.setStatus(fmt.Sprintf("%s done in %s (%d chars)", m.mode.Label(), elapsed, len([]rune(msg.req.Text()))), false)
	return m, nil
}

func (m Model) adjustTokens(delta int) Model {
	cfg := m.sess.Config()
	cfg.MaxTokens = min(max(cfg.MaxTokens+delta, completion.MinMaxTokens), completion.MaxMaxTokens)
	m.sess.SetConfig(cfg)
	return m
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	switch m.view {
	case ViewHelp:
		return m.renderHelp()
	case ViewHistory:
		return m.history.Render(m.width, m.height)
	}

	cfg := m.sess.Config()
	transport := "blocking"
	if cfg.Stream {
		transport = "streaming"
	}
	header := TitleStyle.Render("ALLORA") + "  " +
		DimStyle.Render(fmt.Sprintf("%s · %s · temp %.2f · replace %s", cfg.Endpoint, transport, cfg.Temperature, m.sess.ReplacePolicy()))

	var status string
	switch {
	case m.active != nil:
		wait := "receiving"
		if m.active.Waiting() {
			wait = "waiting"
		}
		status = m.spinner.View() + " " + StatusWarn.Render(m.status) + DimStyle.Render(fmt.Sprintf(" %s %s · Esc to cancel", wait, formatElapsedTime(time.Since(m.started))))
	case m.statusErr:
		status = ErrorStyle.Render(m.status)
	default:
		status = StatusOK.Render(m.status)
	}

	footer := DimStyle.Render("F1 help · F2-F5 send · Shift+←/→ tokens · Alt+H history · Ctrl+C quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		renderField(m.buf, m.width, m.active != nil),
		renderButtons(m.mode, m.active != nil),
		renderSlider(cfg.MaxTokens),
		"",
		status,
		footer,
	)
}

func describeError(err error) string {
	var ce *completion.ConfigError
	var te *completion.TransportError
	var pe *completion.ParseError
	switch {
	case errors.Is(err, session.ErrBusy):
		return "A request is already running"
	case errors.Is(err, context.Canceled):
		return "Cancelled"
	case errors.As(err, &ce):
		return "Check your config: " + ce.Error()
	case errors.As(err, &pe):
		return "Unreadable response: " + pe.Error()
	case errors.As(err, &te):
		return "Request failed: " + te.Error()
	default:
		return strings.TrimSpace(err.Error())
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
