package history

import (
	"path/filepath"
	"testing"
	"time"

	"voicechat/transcript"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndRecent(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"q1", "a1", "q2", "a2"} {
		m := transcript.Message{Text: text, IsUser: i%2 == 0, Attempt: i/2 + 1, At: base.Add(time.Duration(i) * time.Second)}
		if err := s.Save(m); err != nil {
			t.Fatalf("Save(%q): %v", text, err)
		}
	}

	got, err := s.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	want := []string{"a1", "q2", "a2"}
	for i, m := range got {
		if m.Text != want[i] {
			t.Errorf("message %d = %q, want %q", i, m.Text, want[i])
		}
	}
	if !got[1].IsUser || got[2].IsUser {
		t.Errorf("IsUser not preserved: %+v", got)
	}
	if d := got[2].At.Sub(base.Add(3 * time.Second)); d > time.Millisecond || d < -time.Millisecond {
		t.Errorf("At = %v, want %v", got[2].At, base.Add(3*time.Second))
	}
}

func TestRecentEmpty(t *testing.T) {
	s := openTestStore(t)
	got, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages from empty store", len(got))
	}
}

func TestReopenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.sqlite")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Save(transcript.Message{Text: "persisted", IsUser: true}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	n, err := s.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}
