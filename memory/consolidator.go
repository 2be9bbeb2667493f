package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/tidemind/tidemind/schema"
)

// Per-session consolidation states used by Schedule.
const (
	consolidRunning uint8 = 1 // goroutine is actively consolidating
	consolidQueued  uint8 = 2 // goroutine is running AND another run is pending
)

// Options selects the behaviour of one consolidation run.
//
// ArchiveAll processes every message and resets the cursor to 0 (end-of-
// session flush); otherwise only the slice between the cursor and the kept
// tail is processed. UserID attributes extracted facts to a user; when it is
// 0 (or no fact store is configured) fact persistence is silently skipped.
type Options struct {
	ArchiveAll bool
	UserID     int64
}

// Consolidator summarises old session messages into the profile, the
// history log, and per-user atomic facts via a single LLM tool call.
//
// Consolidate is safe to call concurrently for different sessions; calls for
// the same session must be serialised by the caller — Schedule does exactly
// that and is the preferred entry point for background work.
type Consolidator struct {
	store    schema.MemoryStore
	facts    schema.FactStore    // nil disables fact persistence
	saver    schema.SessionSaver // nil disables cursor persistence
	provider schema.LLMProvider
	model    string
	window   int

	// Per-session consolidation state (idle=absent, running=1, queued=2).
	consolidating map[string]uint8
	mu            sync.Mutex
	idle          *sync.Cond // broadcast when a key returns to idle
}

// NewConsolidator wires a Consolidator. model falls back to the provider's
// default; window falls back to 50 when non-positive.
func NewConsolidator(store schema.MemoryStore, facts schema.FactStore, saver schema.SessionSaver,
	provider schema.LLMProvider, model string, window int) *Consolidator {
	if model == "" && provider != nil {
		model = provider.DefaultModel()
	}
	if window <= 0 {
		window = 50
	}
	c := &Consolidator{
		store:         store,
		facts:         facts,
		saver:         saver,
		provider:      provider,
		model:         model,
		window:        window,
		consolidating: make(map[string]uint8),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Window returns the configured consolidation window.
func (c *Consolidator) Window() int { return c.window }

// Schedule is the entry point for background consolidation work.
// It enforces at most one active goroutine per key with one pending slot.
//
// State machine per key:
//
//	absent          → consolidRunning  launch goroutine
//	consolidRunning → consolidQueued   mark pending, goroutine will re-run
//	consolidQueued  → consolidQueued   already queued, nothing to do
func (c *Consolidator) Schedule(key string, s schema.ConsolidatableSession, opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.consolidating[key] {
	case consolidRunning:
		c.consolidating[key] = consolidQueued
		return
	case consolidQueued:
		return
	}

	// idle → launch goroutine
	c.consolidating[key] = consolidRunning
	go c.runFor(context.Background(), key, s, opts)
}

// ConsolidateNow runs one consolidation for key inline, under the same
// per-session serialisation as Schedule: it waits for any in-flight run on
// the key to finish before starting its own. Used for shutdown flushes,
// where the caller needs the result and must not race a background run.
func (c *Consolidator) ConsolidateNow(ctx context.Context, key string, s schema.ConsolidatableSession, opts Options) bool {
	c.mu.Lock()
	for c.consolidating[key] != 0 {
		c.idle.Wait()
	}
	c.consolidating[key] = consolidRunning
	c.mu.Unlock()

	return c.runFor(ctx, key, s, opts)
}

// runFor consolidates key until its pending slot is clear, then releases the
// key and wakes waiters. The caller must have marked key as running.
// Returns the result of the final run.
func (c *Consolidator) runFor(ctx context.Context, key string, s schema.ConsolidatableSession, opts Options) bool {
	for {
		ok := c.Consolidate(ctx, s, opts)
		if !ok {
			slog.Error("memory consolidation failed", "key", key)
		}

		c.mu.Lock()
		if c.consolidating[key] == consolidQueued {
			c.consolidating[key] = consolidRunning
			c.mu.Unlock()
			continue
		}
		delete(c.consolidating, key)
		c.idle.Broadcast()
		c.mu.Unlock()
		return ok
	}
}

// Consolidate archives the eligible slice of s into the three memory tiers.
//
// It returns true on success, including the no-op cases (nothing eligible to
// archive). It returns false when the LLM does not call save_memory, when
// the tool arguments are malformed, or when a history/profile write fails;
// in every failure case the cursor is left untouched, so the unarchived
// window simply grows until the next successful run.
//
// Writes already performed before a late failure are not rolled back: the
// history log is append-only and tolerates a duplicate block on retry, and
// the profile overwrite is idempotent by byte comparison.
func (c *Consolidator) Consolidate(ctx context.Context, s schema.ConsolidatableSession, opts Options) bool {
	s.Lock()
	snapshot := s.CopyMessages()
	lastConsolidated := s.LastConsolidated()
	s.Unlock()

	msgs := snapshot.Messages

	var oldMessages []schema.Message
	var keepCount int

	if opts.ArchiveAll {
		oldMessages = msgs
		keepCount = 0
		if len(oldMessages) == 0 {
			return true
		}
		slog.Info("memory consolidation (archive_all)", "messages", len(msgs))
	} else {
		keepCount = c.window / 2
		if len(msgs) <= keepCount {
			return true
		}
		if len(msgs)-lastConsolidated <= 0 {
			return true
		}
		end := len(msgs) - keepCount
		if end <= lastConsolidated {
			return true
		}
		oldMessages = msgs[lastConsolidated:end]
		slog.Info("memory consolidation", "to_consolidate", len(oldMessages), "keep", keepCount)
	}

	currentMemory := c.store.ReadLongTerm()

	resp, err := c.provider.Chat(ctx,
		consolidationMessages(currentMemory, oldMessages),
		saveMemoryTool,
		schema.NewChatOptions(c.model, 4096, 0.3),
	)
	if err != nil {
		slog.Error("memory consolidation: LLM call failed", "err", err)
		return false
	}

	if !resp.HasToolCalls() {
		slog.Warn("memory consolidation: LLM did not call save_memory, skipping")
		return false
	}

	args, ok := DecodeToolArguments(resp.ToolCalls[0].Arguments)
	if !ok {
		slog.Warn("memory consolidation: malformed tool arguments",
			"type", fmt.Sprintf("%T", resp.ToolCalls[0].Arguments))
		return false
	}

	// Stage all three outputs before touching storage.
	entry := stringOrJSON(args["history_entry"])
	update := stringOrJSON(args["memory_update"])
	facts := collectFacts(args["facts"])

	// Writes run history → profile → facts → cursor, so a failure at any
	// point leaves the cursor behind its true state, never ahead.
	if entry != "" {
		if err := c.store.AppendHistory(entry); err != nil {
			slog.Error("memory consolidation: history append failed", "err", err)
			return false
		}
	}

	if update != "" && update != currentMemory {
		if err := c.store.WriteLongTerm(update); err != nil {
			slog.Error("memory consolidation: profile write failed", "err", err)
			return false
		}
	}

	// Facts are independent best-effort inserts: per-fact embedding or
	// storage failures are absorbed by the fact store and do not fail the
	// consolidation. Skipped entirely without a user id or fact store.
	if opts.UserID > 0 && c.facts != nil {
		for _, fact := range facts {
			c.facts.AddMemory(ctx, opts.UserID, fact)
		}
	}

	// Cursor advance is the final step. Use the snapshot length, not the
	// live message list, which may have grown during the LLM call.
	s.Lock()
	if opts.ArchiveAll {
		s.SetLastConsolidated(0)
	} else {
		s.SetLastConsolidated(len(msgs) - keepCount)
	}
	cursor := s.LastConsolidated()
	s.Unlock()

	// Persist the updated cursor immediately so it survives a restart.
	if c.saver != nil {
		if err := c.saver.SaveConsolidated(s); err != nil {
			slog.Warn("memory consolidation: failed to persist session cursor", "err", err)
		}
	}

	slog.Info("memory consolidation done", "messages", len(msgs), "last_consolidated", cursor)
	return true
}

// consolidationMessages builds the two-message request for the LLM.
func consolidationMessages(currentMemory string, old []schema.Message) schema.Messages {
	memory := currentMemory
	if memory == "" {
		memory = "(empty)"
	}

	prompt := fmt.Sprintf(
		"Process this conversation and call the save_memory tool with your consolidation.\n\n"+
			"Extract:\n"+
			"1. A brief summary for the history log.\n"+
			"2. Updates to the core user profile (MEMORY.md). Keep this section small and focused on critical facts.\n"+
			"3. A list of NEW atomic, self-contained facts or user preferences to store in a vector database for later retrieval.\n\n"+
			"## Current Core Profile (MEMORY.md)\n%s\n\n"+
			"## Conversation to Process\n%s",
		memory,
		formatTranscript(old),
	)

	return schema.NewMessages(
		schema.NewSystemMessage("You are a memory consolidation agent. Call the save_memory tool with your consolidation of the conversation."),
		schema.NewUserMessage(prompt),
	)
}

// formatTranscript renders messages as labelled lines for the consolidation
// prompt. Messages without textual content are dropped from the transcript
// but still count as part of the archived slice.
func formatTranscript(msgs []schema.Message) string {
	var lines []string
	for _, msg := range msgs {
		content := msg.Text()
		if content == "" {
			continue
		}
		ts := msg.Timestamp
		if ts == "" {
			ts = "?"
		}
		if len(ts) > 16 {
			ts = ts[:16]
		}
		toolsStr := ""
		if len(msg.ToolsUsed) > 0 {
			toolsStr = " [tools: " + strings.Join(msg.ToolsUsed, ", ") + "]"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s%s: %s", ts, strings.ToUpper(msg.Role), toolsStr, content))
	}
	return strings.Join(lines, "\n")
}
