// Package memory provides conversation history storage.
package memory

import (
	"sync"
	"time"
)

// Message represents a conversation message. Messages are immutable once
// appended; the store only ever hands out copies.
type Message struct {
	Role      string    `json:"role"` // system, user, assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the state of a single conversation.
type Session struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store manages per-session conversation history.
//
// The configured maximum bounds the number of non-system messages per
// session: when exceeded, the oldest non-system messages are evicted
// first, and leading system messages (the persona prompt) are always
// retained. History only ever changes by appending or by an explicit
// Reset — past entries are never mutated.
type Store struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	maxMessages int // non-system messages per session

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewStore creates a store that keeps at most maxMessages non-system
// messages per session.
func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 50
	}
	return &Store{
		sessions:    make(map[string]*Session),
		maxMessages: maxMessages,
		locks:       make(map[string]*sync.Mutex),
	}
}

// Lock returns the mutual-exclusion handle for a session. Callers hold it
// for the duration of one full turn so that appends from concurrent
// requests to the same session never interleave. Different sessions get
// independent locks and proceed in parallel.
func (s *Store) Lock(sessionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// Append adds a message to a session, creating the session on first use,
// and trims history per the eviction policy.
func (s *Store) Append(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{
			ID:        sessionID,
			CreatedAt: time.Now(),
		}
		s.sessions[sessionID] = sess
	}

	sess.Messages = append(sess.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	sess.UpdatedAt = time.Now()

	sess.Messages = trim(sess.Messages, s.maxMessages)
}

// trim evicts the oldest non-system messages until at most max remain.
// Leading system messages are preserved.
func trim(messages []Message, max int) []Message {
	lead := 0
	for lead < len(messages) && messages[lead].Role == "system" {
		lead++
	}

	rest := messages[lead:]
	if len(rest) <= max {
		return messages
	}

	trimmed := make([]Message, 0, lead+max)
	trimmed = append(trimmed, messages[:lead]...)
	trimmed = append(trimmed, rest[len(rest)-max:]...)
	return trimmed
}

// History returns the current, trimmed history in chronological order.
// This is the exact context sent to the completion backend. Returns an
// empty slice for unknown sessions.
func (s *Store) History(sessionID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return []Message{}
	}

	msgs := make([]Message, len(sess.Messages))
	copy(msgs, sess.Messages)
	return msgs
}

// Session returns a copy of a session, or nil if it does not exist.
func (s *Store) Session(sessionID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	return sess.copy()
}

// Reset clears a session's history, used on explicit "new conversation"
// requests. The session itself (and its lock) survives.
func (s *Store) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	sess.Messages = nil
	sess.UpdatedAt = time.Now()
}

// Remove destroys a session's history. Callers use this when a session is
// explicitly closed or has exceeded its idle timeout.
//
// The lock registry entry is kept: a turn may still be holding the lock
// when Remove runs, and dropping the entry would let the next Lock call
// mint a second mutex for the same id, allowing two turns to interleave.
// A session id maps to the same mutex for the life of the process.
func (s *Store) Remove(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Sessions returns the ids of all live sessions, in no particular order.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Stats returns store statistics for diagnostics.
func (s *Store) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totalMessages := 0
	for _, sess := range s.sessions {
		totalMessages += len(sess.Messages)
	}

	return map[string]any{
		"sessions":        len(s.sessions),
		"messages":        totalMessages,
		"max_per_session": s.maxMessages,
	}
}

func (sess *Session) copy() *Session {
	msgs := make([]Message, len(sess.Messages))
	copy(msgs, sess.Messages)
	return &Session{
		ID:        sess.ID,
		Messages:  msgs,
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt,
	}
}
