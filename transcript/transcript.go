// Package transcript holds the ordered chat log shown to the user.
package transcript

import (
	"sync"
	"time"
)

// Message is one chat turn. Values are never modified after Append.
type Message struct {
	Text    string
	IsUser  bool
	Attempt int // recording attempt that produced this turn, 0 for restored history
	At      time.Time
}

// Store is an append-only message log. Subscribers see every appended
// message, synchronously and in append order.
type Store struct {
	mu       sync.Mutex
	messages []Message
	subs     map[int]func(Message)
	order    []int
	nextID   int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(Message))}
}

func (s *Store) Append(m Message) {
	if m.At.IsZero() {
		m.At = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	for _, id := range s.order {
		s.subs[id](m)
	}
}

// Messages returns a copy of the log.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Subscribe registers fn for future appends. fn runs with the store
// locked and must not call back into it.
func (s *Store) Subscribe(fn func(Message)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}
