package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidemind/tidemind/schema"
)

// fakeProvider returns a scripted LLMResponse and records what it was sent.
type fakeProvider struct {
	mu    sync.Mutex
	resp  schema.LLMResponse
	err   error
	calls int

	gotMessages schema.Messages
	gotTools    []map[string]any

	block chan struct{} // when non-nil, Chat waits until the channel is closed
}

func (f *fakeProvider) Chat(ctx context.Context, messages schema.Messages, tools []map[string]any, opts schema.ChatOptions) (schema.LLMResponse, error) {
	f.mu.Lock()
	f.calls++
	f.gotMessages = messages
	f.gotTools = tools
	block := f.block
	f.mu.Unlock()

	if block != nil {
		<-block
	}
	return f.resp, f.err
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// saveMemoryResponse builds an LLMResponse invoking save_memory with args.
func saveMemoryResponse(args any) schema.LLMResponse {
	return schema.LLMResponse{
		ToolCalls: []schema.ToolCallResponse{
			{ID: "call_1", Name: "save_memory", Arguments: args},
		},
	}
}

// recordingStore is an in-memory schema.MemoryStore that counts writes.
type recordingStore struct {
	mu        sync.Mutex
	longTerm  string
	history   []string
	writes    int
	appendErr error
	writeErr  error
}

func (r *recordingStore) ReadLongTerm() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.longTerm
}

func (r *recordingStore) WriteLongTerm(content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.longTerm = content
	r.writes++
	return nil
}

func (r *recordingStore) AppendHistory(entry string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.history = append(r.history, entry)
	return nil
}

func (r *recordingStore) MemoryContext() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.longTerm == "" {
		return ""
	}
	return "## Long-term Memory\n" + r.longTerm
}

// recordingFacts captures facts forwarded by the consolidator.
type recordingFacts struct {
	mu    sync.Mutex
	added []string
	users []int64
}

func (r *recordingFacts) AddMemory(_ context.Context, userID int64, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, content)
	r.users = append(r.users, userID)
}

func (r *recordingFacts) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.added))
	copy(out, r.added)
	return out
}

// fakeSession is a minimal schema.ConsolidatableSession.
type fakeSession struct {
	mu     sync.Mutex
	msgs   schema.Messages
	cursor int
}

func newFakeSession(n int) *fakeSession {
	s := &fakeSession{msgs: schema.NewMessages()}
	for i := 0; i < n; i++ {
		s.msgs.Add(schema.Message{
			Role:      "user",
			Content:   fmt.Sprintf("message %d", i),
			Timestamp: "2024-01-01 10:00:00",
		})
	}
	return s
}

func (s *fakeSession) Lock()   { s.mu.Lock() }
func (s *fakeSession) Unlock() { s.mu.Unlock() }

func (s *fakeSession) CopyMessages() schema.Messages {
	return s.msgs.Clone()
}

func (s *fakeSession) LastConsolidated() int {
	return s.cursor
}

func (s *fakeSession) SetLastConsolidated(n int) {
	s.cursor = n
}

func (s *fakeSession) cursorValue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}
