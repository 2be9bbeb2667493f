package memory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/tidemind/tidemind/store"
)

// stubEmbedder maps known texts to fixed vectors.
type stubEmbedder struct {
	vectors map[string][]float64
	err     error
	calls   atomic.Int64
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if v, ok := s.vectors[text]; ok {
		return v, nil
	}
	return []float64{0, 0, 1}, nil
}

func (s *stubEmbedder) Model() string   { return "stub" }
func (s *stubEmbedder) Dimensions() int { return 3 }

func testVectorStore(t *testing.T, embedder *stubEmbedder) (*VectorStore, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewVectorStore(db, embedder), db
}

func TestAddAndSearchMemories(t *testing.T) {
	embedder := &stubEmbedder{vectors: map[string][]float64{
		"User has a dog named Rex": {1, 0, 0},
		"User lives in Paris":      {0, 1, 0},
		"pets":                     {0.9, 0.1, 0},
	}}
	vs, db := testVectorStore(t, embedder)
	ctx := context.Background()

	userID, ok := db.GetOrCreateUserID(ctx, "telegram", "42")
	if !ok {
		t.Fatal("resolve user")
	}

	vs.AddMemory(ctx, userID, "User has a dog named Rex")
	vs.AddMemory(ctx, userID, "User lives in Paris")

	got := vs.SearchMemories(ctx, userID, "pets", 5)
	if len(got) != 2 {
		t.Fatalf("results = %v, want 2", got)
	}
	if got[0] != "User has a dog named Rex" {
		t.Fatalf("closest = %q, want the dog fact", got[0])
	}
}

func TestSearchMemories_DefaultLimit(t *testing.T) {
	embedder := &stubEmbedder{}
	vs, db := testVectorStore(t, embedder)
	ctx := context.Background()

	userID, _ := db.GetOrCreateUserID(ctx, "cli", "me")
	for i := 0; i < 8; i++ {
		vs.AddMemory(ctx, userID, "fact")
	}

	if got := vs.SearchMemories(ctx, userID, "query", 0); len(got) != 5 {
		t.Fatalf("results = %d, want default limit 5", len(got))
	}
}

func TestAddMemory_EmbeddingFailureDropsFact(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("quota exceeded")}
	vs, db := testVectorStore(t, embedder)
	ctx := context.Background()

	userID, _ := db.GetOrCreateUserID(ctx, "cli", "me")
	vs.AddMemory(ctx, userID, "User has a dog named Rex")

	n, err := db.CountMemories(ctx, userID)
	if err != nil {
		t.Fatalf("CountMemories: %v", err)
	}
	if n != 0 {
		t.Fatalf("rows = %d, want 0 when embedding fails", n)
	}
}

func TestSearchMemories_EmbeddingFailureIsEmpty(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("transport down")}
	vs, _ := testVectorStore(t, embedder)

	if got := vs.SearchMemories(context.Background(), 1, "query", 5); len(got) != 0 {
		t.Fatalf("results = %v, want empty", got)
	}
}

func TestVectorStore_DisabledIsNoOp(t *testing.T) {
	// nil db and nil embedder: every operation degrades silently.
	vs := NewVectorStore(nil, nil)
	ctx := context.Background()

	if vs.Enabled() {
		t.Fatal("expected disabled store")
	}
	vs.AddMemory(ctx, 1, "fact") // must not panic
	if got := vs.SearchMemories(ctx, 1, "query", 5); len(got) != 0 {
		t.Fatalf("results = %v, want empty", got)
	}
	if vec := vs.Embed(ctx, "text"); vec != nil {
		t.Fatalf("Embed = %v, want nil", vec)
	}
}
