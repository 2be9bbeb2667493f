package session

import (
	"sync"
	"time"

	"github.com/tidemind/tidemind/schema"
)

// timestampLayout is the per-message timestamp format. The consolidation
// transcript keeps its first 16 characters ("2006-01-02 15:04").
const timestampLayout = "2006-01-02 15:04:05"

// Session holds one conversation's messages and metadata.
//
// The message list is owned by the enclosing agent; the memory consolidator
// only reads it and advances lastConsolidated (the index where the
// not-yet-archived tail begins).
type Session struct {
	Key              string
	Messages         schema.Messages
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Metadata         map[string]any
	lastConsolidated int

	mu sync.Mutex
}

// New returns an empty session for key.
func New(key string) *Session {
	return &Session{
		Key:       key,
		Messages:  schema.NewMessages(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  map[string]any{},
	}
}

// newSession constructs a Session with all fields set, including the
// unexported lastConsolidated cursor. Used only by the manager when loading
// from disk.
func newSession(key string, messages schema.Messages, createdAt, updatedAt time.Time, meta map[string]any, lastConsolidated int) *Session {
	return &Session{
		Key:              key,
		Messages:         messages,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
		Metadata:         meta,
		lastConsolidated: lastConsolidated,
	}
}

// NewArchivedSession creates a temporary session with pre-populated messages
// and no consolidation history. Used for archive-all consolidation of an old
// snapshot after a session reset.
func NewArchivedSession(key string, messages schema.Messages) *Session {
	return &Session{
		Key:      key,
		Messages: messages,
	}
}

// AddUser appends a user message stamped with the current time.
func (s *Session) AddUser(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages.Add(schema.Message{
		Role:      "user",
		Content:   content,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	})
	s.UpdatedAt = time.Now()
}

// AddAssistant appends an assistant message with the tools it used this turn.
func (s *Session) AddAssistant(content string, toolsUsed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := content
	s.Messages.Add(schema.Message{
		Role:      "assistant",
		Content:   &c,
		ToolsUsed: toolsUsed,
		Timestamp: time.Now().UTC().Format(timestampLayout),
	})
	s.UpdatedAt = time.Now()
}

// GetHistory returns the last maxMessages messages for the LLM.
func (s *Session) GetHistory(maxMessages int) schema.Messages {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Messages.Messages
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}

	out := schema.NewMessages()
	out.Messages = append(out.Messages, msgs...)
	return out
}

// Len returns the number of messages in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Messages.Messages)
}

// Compact drops messages that have already been consolidated, keeping only
// the tail of length keepCount. The cursor is reset to 0 because the
// retained messages are the new beginning of the in-memory slice.
// Owned by the enclosing agent; the consolidator never calls it.
// Callers must not hold the session lock.
func (s *Session) Compact(keepCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.Messages.Messages
	if keepCount <= 0 || len(msgs) <= keepCount {
		return
	}
	tail := make([]schema.Message, keepCount)
	copy(tail, msgs[len(msgs)-keepCount:])
	s.Messages.Messages = tail
	s.lastConsolidated = 0
	s.UpdatedAt = time.Now()
}

// Clear resets messages and the consolidation cursor.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = schema.NewMessages()
	s.lastConsolidated = 0
	s.UpdatedAt = time.Now()
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// CopyMessages returns a snapshot of the current message list.
// Caller must hold the session lock.
func (s *Session) CopyMessages() schema.Messages {
	return s.Messages.Clone()
}

// LastConsolidated returns the consolidation cursor.
// Caller must hold the session lock.
func (s *Session) LastConsolidated() int {
	return s.lastConsolidated
}

// SetLastConsolidated updates the consolidation cursor.
// Caller must hold the session lock.
func (s *Session) SetLastConsolidated(n int) {
	s.lastConsolidated = n
}
