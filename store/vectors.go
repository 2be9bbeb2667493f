package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"
)

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// InsertMemory stores one atomic fact with its embedding for a user.
func (d *DB) InsertMemory(ctx context.Context, userID int64, content string, embedding []float64) error {
	c := d.conn()
	if c == nil {
		return fmt.Errorf("store disabled")
	}

	_, err := c.ExecContext(ctx,
		"INSERT INTO vector_memories (user_id, content, embedding, created_at) VALUES (?, ?, ?, ?)",
		userID, content, encodeEmbedding(embedding), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// SearchByVector returns up to limit fact contents for a user, ordered by
// ascending cosine distance to the query vector (closest first).
func (d *DB) SearchByVector(ctx context.Context, userID int64, query []float64, limit int) ([]string, error) {
	c := d.conn()
	if c == nil {
		return nil, fmt.Errorf("store disabled")
	}

	rows, err := c.QueryContext(ctx,
		"SELECT content, embedding FROM vector_memories WHERE user_id = ?",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	type scored struct {
		content  string
		distance float64
	}
	var results []scored
	for rows.Next() {
		var content string
		var blob []byte
		if err := rows.Scan(&content, &blob); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		results = append(results, scored{
			content:  content,
			distance: CosineDistance(query, decodeEmbedding(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].distance < results[j].distance
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.content
	}
	return out, nil
}

// CountMemories returns the number of fact rows stored for a user.
func (d *DB) CountMemories(ctx context.Context, userID int64) (int, error) {
	c := d.conn()
	if c == nil {
		return 0, fmt.Errorf("store disabled")
	}
	var n int
	err := c.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM vector_memories WHERE user_id = ?", userID,
	).Scan(&n)
	return n, err
}

// CosineDistance returns 1 - cosine similarity between two vectors.
// Mismatched or empty vectors yield the maximum distance.
func CosineDistance(a, b []float64) float64 {
	return 1 - cosineSimilarity(a, b)
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
