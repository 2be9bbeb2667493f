// Package dependency wires the memory-layer services using go.uber.org/dig.
//
// Every stateful object (connection pool included) is constructed here and
// owned by the Container; nothing holds hidden package-level state.
package dependency

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/tidemind/tidemind/config"
	"github.com/tidemind/tidemind/embedding"
	"github.com/tidemind/tidemind/memory"
	"github.com/tidemind/tidemind/schema"
	"github.com/tidemind/tidemind/session"
	"github.com/tidemind/tidemind/store"
)

// Container holds the resolved memory-layer singletons.
// Callers use the typed getter methods; they never need to import dig.
type Container struct {
	db           *store.DB
	vectorStore  *memory.VectorStore
	fileStore    *memory.FileStore
	sessions     *session.Manager
	consolidator *memory.Consolidator
	sweeper      *memory.Sweeper
}

func (c *Container) DB() *store.DB                       { return c.db }
func (c *Container) VectorStore() *memory.VectorStore    { return c.vectorStore }
func (c *Container) FileStore() *memory.FileStore        { return c.fileStore }
func (c *Container) Sessions() *session.Manager          { return c.sessions }
func (c *Container) Consolidator() *memory.Consolidator  { return c.consolidator }
func (c *Container) Sweeper() *memory.Sweeper            { return c.sweeper }

// New builds and wires all memory services from cfg. provider is the
// enclosing agent's LLM backend; it is consumed as a black box.
//
// The database connection is attempted once here; a failure disables the
// vector/identity tier but does not fail construction (the file-backed
// tiers keep working).
func New(cfg *config.Config, provider schema.LLMProvider) (*Container, error) {
	d := dig.New()

	constructors := []any{
		func() *config.Config { return cfg },
		func() schema.LLMProvider { return provider },
		newDatabase,
		newEmbedder,
		newVectorStore,
		newFileStore,
		newSessionManager,
		newConsolidator,
		newSweeper,
	}
	for _, ctor := range constructors {
		if err := d.Provide(ctor); err != nil {
			return nil, fmt.Errorf("wire services: %w", err)
		}
	}

	var out Container
	err := d.Invoke(func(
		db *store.DB,
		vs *memory.VectorStore,
		fs *memory.FileStore,
		sm *session.Manager,
		cons *memory.Consolidator,
		sw *memory.Sweeper,
	) {
		out = Container{
			db:           db,
			vectorStore:  vs,
			fileStore:    fs,
			sessions:     sm,
			consolidator: cons,
			sweeper:      sw,
		}
	})
	if err != nil {
		return nil, fmt.Errorf("resolve services: %w", err)
	}
	return &out, nil
}

// Close releases the Container's owned resources.
func (c *Container) Close() error {
	c.sweeper.Stop()
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func newDatabase(cfg *config.Config) *store.DB {
	db := store.New(cfg.Database)
	// Connect marks the store disabled on failure; degraded, not fatal.
	_ = db.Connect()
	return db
}

func newEmbedder(cfg *config.Config) embedding.Provider {
	return embedding.NewClient(cfg.Embedding)
}

func newVectorStore(db *store.DB, embedder embedding.Provider) *memory.VectorStore {
	return memory.NewVectorStore(db, embedder)
}

func newFileStore(cfg *config.Config) (*memory.FileStore, error) {
	return memory.NewFileStore(cfg.WorkspacePath())
}

func newSessionManager(cfg *config.Config) (*session.Manager, error) {
	return session.NewManager(cfg.WorkspacePath())
}

func newConsolidator(cfg *config.Config, fs *memory.FileStore, vs *memory.VectorStore,
	sm *session.Manager, provider schema.LLMProvider) *memory.Consolidator {
	return memory.NewConsolidator(fs, vs, sm, provider,
		cfg.Agents.Defaults.Model, cfg.Agents.Defaults.MemoryWindow)
}

func newSweeper(cfg *config.Config, cons *memory.Consolidator) *memory.Sweeper {
	return memory.NewSweeper(cons, cfg.Memory.SweepSchedule)
}
