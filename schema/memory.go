package schema

import "context"

// ConsolidatableSession is the subset of session.Session required by the
// memory consolidator. Defined here to avoid an import cycle (session
// imports schema, so schema cannot import session).
//
// The consolidator reads the message sequence and advances the
// last-consolidated cursor; it never mutates the messages themselves.
type ConsolidatableSession interface {
	Lock()
	Unlock()
	CopyMessages() Messages    // snapshot of the current message list
	LastConsolidated() int     // current cursor (caller must hold lock)
	SetLastConsolidated(n int) // advances the cursor (caller must hold lock)
}

// SessionSaver persists a session after consolidation advances its cursor.
type SessionSaver interface {
	SaveConsolidated(s ConsolidatableSession) error
}

// MemoryStore manages the long-term profile and history log.
type MemoryStore interface {
	ReadLongTerm() string
	WriteLongTerm(content string) error
	AppendHistory(entry string) error
	MemoryContext() string
}

// FactStore receives atomic facts extracted during consolidation.
// AddMemory is best-effort: implementations log and swallow failures.
type FactStore interface {
	AddMemory(ctx context.Context, userID int64, content string)
}
