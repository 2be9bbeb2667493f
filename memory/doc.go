// Package memory consolidates conversation history into durable knowledge.
//
// Three tiers are maintained per workspace:
//
//   - MEMORY.md: a single curated profile, fully replaced on update
//   - HISTORY.md: an append-only, grep-searchable log of consolidation
//     summaries, one block per run separated by a blank line
//   - vector memories: atomic facts stored with embeddings, partitioned by
//     user id and retrieved by cosine-distance similarity search
//
// The Consolidator drives all three from a single save_memory tool call
// against the configured LLM provider. See Consolidator.Consolidate for the
// window-selection and failure semantics.
package memory
