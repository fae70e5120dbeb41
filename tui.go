package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voicechat/session"
	"voicechat/transcript"
)

// controls is the part of the session controller the views drive.
type controls interface {
	BeginCapture()
	EndCapture(ctx context.Context)
	Cancel()
	State() session.State
}

// TUI message types
type stateMsg struct {
	State session.State
	Err   *session.SessionError
}
type levelMsg float64
type chatMsg transcript.Message
type silenceMsg SilenceEvent
type metricsMsg []string
type copiedMsg struct {
	Text string
	Err  error
}
type tickMsg time.Time

const levelBarWidth = 24

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	busyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	youStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle = helpStyle.Bold(true)
	meterOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	meterOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

type tuiModel struct {
	ctrl controls
	ctx  context.Context
	copy func() (string, error)

	state    session.State
	err      *session.SessionError
	level    float64
	started  time.Time
	now      time.Time
	noVoice  bool
	messages []transcript.Message
	metrics  []string
	notice   string

	modeLine   string
	deviceLine string
	hotkeyHelp string

	width, height int
}

func newTUIModel(ctx context.Context, ctrl controls, history []transcript.Message, copyFn func() (string, error)) tuiModel {
	return tuiModel{
		ctx:      ctx,
		ctrl:     ctrl,
		copy:     copyFn,
		state:    session.StateIdle,
		messages: append([]transcript.Message(nil), history...),
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// Controller calls run as commands so the event loop never waits on
// the controller lock or an upload.
func (m tuiModel) toggle() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		if ctrl.State() == session.StateRecording {
			ctrl.EndCapture(context.WithoutCancel(ctx))
		} else {
			ctrl.BeginCapture()
		}
		return nil
	}
}

func (m tuiModel) cancel() tea.Cmd {
	if m.ctrl == nil {
		return nil
	}
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Cancel()
		return nil
	}
}

func (m tuiModel) copyLast() tea.Cmd {
	if m.copy == nil {
		return nil
	}
	fn := m.copy
	return func() tea.Msg {
		text, err := fn()
		return copiedMsg{Text: text, Err: err}
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "r":
			m.notice = ""
			return m, m.toggle()
		case "esc":
			return m, m.cancel()
		case "ctrl+y":
			return m, m.copyLast()
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case stateMsg:
		if msg.State == session.StateRecording && m.state != session.StateRecording {
			m.started = time.Now()
			m.noVoice = false
		}
		if msg.State != session.StateRecording {
			m.level = 0
		}
		m.state = msg.State
		m.err = msg.Err

	case levelMsg:
		if m.state == session.StateRecording {
			m.level = m.level*0.6 + float64(msg)*0.4
		}

	case silenceMsg:
		switch SilenceEvent(msg) {
		case SilenceWarn, SilenceRepeat:
			m.noVoice = true
		case SilenceWarnClear:
			m.noVoice = false
		case SilenceAutoClose:
			m.noVoice = false
			m.notice = "stopped after 30s of silence"
		}

	case chatMsg:
		m.messages = append(m.messages, transcript.Message(msg))

	case metricsMsg:
		m.metrics = msg

	case copiedMsg:
		if msg.Err != nil {
			m.notice = "copy failed: " + msg.Err.Error()
		} else {
			m.notice = "copied last reply to clipboard"
		}
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case session.StateRecording:
		dur := 0.0
		if !m.started.IsZero() && m.now.After(m.started) {
			dur = m.now.Sub(m.started).Seconds()
		}
		line := recStyle.Render(fmt.Sprintf("● REC %.1fs ", dur)) + levelBar(m.level, levelBarWidth)
		if m.noVoice {
			line += warnStyle.Render("  ⚠ no voice detected")
		}
		return line
	case session.StateProcessing:
		return busyStyle.Render("◌ waiting for reply...")
	case session.StateError:
		msg := "error"
		if m.err != nil {
			msg = m.err.Message
		}
		return errStyle.Render("✖ " + msg)
	default:
		return idleStyle.Render("○ READY")
	}
}

func levelBar(level float64, width int) string {
	n := int(level * 10 * float64(width))
	n = max(0, min(n, width))
	return meterOn.Render(strings.Repeat("▮", n)) + meterOff.Render(strings.Repeat("▯", width-n))
}

func (m tuiModel) conversation(width, height int) []string {
	var lines []string
	for _, msg := range m.messages {
		who, style := "bot: ", botStyle
		if msg.IsUser {
			who, style = "you: ", youStyle
		}
		wrapped := wrapText(msg.Text, width-len(who))
		for i, l := range wrapped {
			prefix := strings.Repeat(" ", len(who))
			if i == 0 {
				prefix = who
			}
			lines = append(lines, dimStyle.Render(prefix)+style.Render(l))
		}
	}
	if len(lines) == 0 {
		lines = append(lines, idleStyle.Render("No messages yet"))
	}
	if height > 0 && len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return lines
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var header []string
	header = append(header, m.statusLine())
	if m.modeLine != "" {
		header = append(header, dimStyle.Render(m.modeLine))
	}
	if m.deviceLine != "" {
		header = append(header, idleStyle.Render(m.deviceLine))
	}
	header = append(header, "")

	var footer []string
	if len(m.metrics) > 0 {
		footer = append(footer, "")
		for _, l := range m.metrics {
			footer = append(footer, dimStyle.Render(l))
		}
	}
	footer = append(footer, "")
	if m.notice != "" {
		footer = append(footer, warnStyle.Render(m.notice))
	}
	hk := m.hotkeyHelp
	if hk == "" {
		hk = "Ctrl+Shift+Space"
	}
	footer = append(footer,
		helpKeyStyle.Render(hk)+helpStyle.Render(" or ")+helpKeyStyle.Render("r")+helpStyle.Render(" to talk  ")+
			helpKeyStyle.Render("esc")+helpStyle.Render(" cancel  ")+
			helpKeyStyle.Render("ctrl+y")+helpStyle.Render(" copy reply  ")+
			helpKeyStyle.Render("ctrl+c")+helpStyle.Render(" quit"))
	footer = append(footer, helpStyle.Render("voicechat "+version))

	room := m.height - len(header) - len(footer)
	body := m.conversation(max(20, m.width-2), room)

	all := append(append(header, body...), footer...)
	return lipgloss.NewStyle().Width(m.width).PaddingLeft(1).Render(strings.Join(all, "\n"))
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for _, para := range strings.Split(text, "\n") {
		r := []rune(para)
		for len(r) > width {
			splitAt := width
			for i := width; i > 0; i-- {
				if r[i] == ' ' {
					splitAt = i
					break
				}
			}
			lines = append(lines, string(r[:splitAt]))
			r = []rune(strings.TrimLeft(string(r[splitAt:]), " "))
		}
		lines = append(lines, string(r))
	}
	return lines
}

// tuiSink forwards controller events and transcript appends into the
// Bubble Tea program.
type tuiSink struct {
	send func(tea.Msg)
}

func (s tuiSink) StateChanged(state session.State, err *session.SessionError) {
	s.send(stateMsg{State: state, Err: err})
}

func (s tuiSink) Amplitude(level float64) {
	s.send(levelMsg(level))
}

func (s tuiSink) Message(m transcript.Message) {
	s.send(chatMsg(m))
}
