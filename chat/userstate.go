package chat

import (
	"strings"
	"sync"
	"time"
)

// UserState tracks per-user pipeline state.
type UserState struct {
	Username           string
	FirstSeen          time.Time
	LastMessage        time.Time
	LastMessageContent string
	IsSubscriber       bool
	WarningCount       int
	Greeted            bool
}

// UserStore holds user state keyed by lowercased username.
type UserStore struct {
	mu    sync.Mutex
	users map[string]*UserState
	now   func() time.Time
}

// NewUserStore builds an empty store.
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*UserState),
		now:   time.Now,
	}
}

// Touch records a message for the user, creating state on first contact.
// It returns true exactly once per user, on the message that should
// trigger a greeting.
func (s *UserStore) Touch(msg *Message) (firstContact bool) {
	key := strings.ToLower(msg.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[key]
	if !ok {
		st = &UserState{Username: key, FirstSeen: s.now()}
		s.users[key] = st
	}
	st.LastMessage = s.now()
	st.LastMessageContent = msg.Content
	st.IsSubscriber = msg.IsSubscriber

	if !st.Greeted {
		st.Greeted = true
		return true
	}
	return false
}

// Get returns a copy of the user's state.
func (s *UserStore) Get(username string) (UserState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[strings.ToLower(username)]
	if !ok {
		return UserState{}, false
	}
	return *st, true
}

// AddWarning increments the user's warning count and returns the new value.
func (s *UserStore) AddWarning(username string) int {
	key := strings.ToLower(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[key]
	if !ok {
		st = &UserState{Username: key, FirstSeen: s.now()}
		s.users[key] = st
	}
	st.WarningCount++
	return st.WarningCount
}

// LastContents returns the most recent message content of every tracked
// user, for the repeat-spam check.
func (s *UserStore) LastContents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.users))
	for _, st := range s.users {
		if st.LastMessageContent != "" {
			out = append(out, st.LastMessageContent)
		}
	}
	return out
}

// Len returns the number of tracked users.
func (s *UserStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
