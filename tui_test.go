package main

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicechat/session"
	"voicechat/transcript"
)

type fakeControls struct {
	mu    sync.Mutex
	state session.State
	calls []string
}

func (f *fakeControls) BeginCapture() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "begin")
	f.state = session.StateRecording
}

func (f *fakeControls) EndCapture(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "end")
	f.state = session.StateIdle
}

func (f *fakeControls) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "cancel")
	f.state = session.StateIdle
}

func (f *fakeControls) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+y":
		return tea.KeyMsg{Type: tea.KeyCtrlY}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m tuiModel, msg tea.Msg) (tuiModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(tuiModel)
	require.True(t, ok)
	return out, cmd
}

func TestTUIKeyToggles(t *testing.T) {
	ctrl := &fakeControls{state: session.StateIdle}
	m := newTUIModel(context.Background(), ctrl, nil, nil)

	m, cmd := update(t, m, key("r"))
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())

	_, cmd = update(t, m, key("r"))
	require.NotNil(t, cmd)
	cmd()

	_, cmd = update(t, m, key("esc"))
	require.NotNil(t, cmd)
	cmd()

	assert.Equal(t, []string{"begin", "end", "cancel"}, ctrl.calls)
}

func TestTUIQuit(t *testing.T) {
	m := newTUIModel(context.Background(), &fakeControls{}, nil, nil)
	_, cmd := update(t, m, key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTUIStateAndLevel(t *testing.T) {
	m := newTUIModel(context.Background(), nil, nil, nil)

	m, _ = update(t, m, levelMsg(0.5))
	assert.Zero(t, m.level, "level ignored outside recording")

	m, _ = update(t, m, stateMsg{State: session.StateRecording})
	m, _ = update(t, m, levelMsg(0.5))
	assert.InDelta(t, 0.2, m.level, 1e-9)

	m, _ = update(t, m, stateMsg{State: session.StateProcessing})
	assert.Zero(t, m.level)
	assert.Contains(t, m.statusLine(), "waiting for reply")

	m, _ = update(t, m, stateMsg{State: session.StateError, Err: &session.SessionError{Message: "API Error: boom"}})
	assert.Contains(t, m.statusLine(), "API Error: boom")
}

func TestTUISilenceWarning(t *testing.T) {
	m := newTUIModel(context.Background(), nil, nil, nil)
	m, _ = update(t, m, stateMsg{State: session.StateRecording})
	m, _ = update(t, m, silenceMsg(SilenceWarn))
	assert.Contains(t, m.statusLine(), "no voice detected")

	m, _ = update(t, m, silenceMsg(SilenceWarnClear))
	assert.NotContains(t, m.statusLine(), "no voice detected")

	m, _ = update(t, m, stateMsg{State: session.StateIdle})
	m, _ = update(t, m, stateMsg{State: session.StateRecording})
	assert.False(t, m.noVoice)
}

func TestTUIConversation(t *testing.T) {
	history := []transcript.Message{{Text: "earlier question", IsUser: true}, {Text: "earlier answer"}}
	m := newTUIModel(context.Background(), nil, history, nil)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = update(t, m, chatMsg{Text: session.ProcessingPlaceholder, IsUser: true})
	m, _ = update(t, m, chatMsg{Text: "hello there"})

	view := m.View()
	assert.Contains(t, view, "earlier question")
	assert.Contains(t, view, "hello there")
	assert.Contains(t, view, "Processing audio")
	assert.Len(t, m.messages, 4)
}

func TestTUIConversationKeepsNewest(t *testing.T) {
	m := newTUIModel(context.Background(), nil, nil, nil)
	for i := 0; i < 50; i++ {
		m, _ = update(t, m, chatMsg{Text: "line"})
	}
	m, _ = update(t, m, chatMsg{Text: "newest"})
	lines := m.conversation(40, 5)
	require.Len(t, lines, 5)
	assert.Contains(t, lines[4], "newest")
}

func TestTUICopy(t *testing.T) {
	m := newTUIModel(context.Background(), nil, nil, func() (string, error) { return "reply", nil })
	_, cmd := update(t, m, key("ctrl+y"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.Equal(t, "copied last reply to clipboard", m.notice)

	m = newTUIModel(context.Background(), nil, nil, func() (string, error) { return "", errors.New("no reply yet") })
	_, cmd = update(t, m, key("ctrl+y"))
	m, _ = update(t, m, cmd())
	assert.Contains(t, m.notice, "no reply yet")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, []string{""}, wrapText("", 10))
	assert.Equal(t, []string{"hello", "world"}, wrapText("hello world", 7))
	assert.Equal(t, []string{"abcdef", "ghij"}, wrapText("abcdefghij", 6))
	assert.Equal(t, []string{"one", "two"}, wrapText("one\ntwo", 10))
}

func TestLevelBar(t *testing.T) {
	assert.Equal(t, levelBar(0, 4), levelBar(-1, 4))
	assert.Equal(t, levelBar(1, 4), levelBar(5, 4))
}
