package memory

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/tidemind/tidemind/embedding"
	"github.com/tidemind/tidemind/store"
)

// VectorStore persists atomic facts with their embeddings per user and
// answers nearest-neighbour queries over them.
//
// Every method degrades instead of failing: a disabled database, a missing
// embedding provider, or any transport error is logged and converted to a
// no-op (or an empty result). Callers never see an error from this type.
type VectorStore struct {
	db       *store.DB
	embedder embedding.Provider

	group singleflight.Group
}

// NewVectorStore creates a VectorStore over db and embedder.
// Either may be nil; the store then degrades to a no-op.
func NewVectorStore(db *store.DB, embedder embedding.Provider) *VectorStore {
	return &VectorStore{db: db, embedder: embedder}
}

// Enabled reports whether facts can currently be persisted and searched.
func (v *VectorStore) Enabled() bool {
	return v.db != nil && v.db.Enabled() && v.embedder != nil
}

// Embed returns the embedding vector for text, or nil when the provider is
// unconfigured or the call fails. Concurrent requests for identical text are
// collapsed into one provider call.
func (v *VectorStore) Embed(ctx context.Context, text string) []float64 {
	if v.embedder == nil {
		return nil
	}

	res, err, _ := v.group.Do(text, func() (any, error) {
		return v.embedder.Embed(ctx, text)
	})
	if err != nil {
		slog.Error("vector memory: embedding failed", "model", v.embedder.Model(), "err", err)
		return nil
	}
	return res.([]float64)
}

// AddMemory embeds content and inserts one fact row for userID.
// No-op when the store is disabled or the embedding fails; the fact is
// dropped, not queued.
func (v *VectorStore) AddMemory(ctx context.Context, userID int64, content string) {
	if !v.Enabled() {
		return
	}

	emb := v.Embed(ctx, content)
	if emb == nil {
		return
	}

	if err := v.db.InsertMemory(ctx, userID, content, emb); err != nil {
		slog.Error("vector memory: insert failed", "userID", userID, "err", err)
		return
	}
	slog.Info("vector memory: added", "userID", userID, "content", truncate(content, 50))
}

// SearchMemories returns up to limit fact strings for userID, closest first
// by cosine distance to the query. Empty when the store is disabled or the
// query cannot be embedded.
func (v *VectorStore) SearchMemories(ctx context.Context, userID int64, query string, limit int) []string {
	if !v.Enabled() {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	emb := v.Embed(ctx, query)
	if emb == nil {
		return nil
	}

	results, err := v.db.SearchByVector(ctx, userID, emb, limit)
	if err != nil {
		slog.Error("vector memory: search failed", "userID", userID, "err", err)
		return nil
	}
	return results
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
