package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/tidemind/tidemind/schema"
)

// Sweeper periodically consolidates registered sessions in the background so
// long-running conversations are archived even when the enclosing agent
// never triggers consolidation itself.
type Sweeper struct {
	consolidator *Consolidator
	schedule     string // cron spec; "" disables the sweep loop

	cron *cron.Cron

	mu      sync.Mutex
	targets map[string]sweepTarget
}

type sweepTarget struct {
	sess   schema.ConsolidatableSession
	userID int64
}

// NewSweeper creates a Sweeper over c. schedule is a cron spec such as
// "@every 30m"; empty disables periodic sweeping (FlushAll still works).
func NewSweeper(c *Consolidator, schedule string) *Sweeper {
	return &Sweeper{
		consolidator: c,
		schedule:     schedule,
		targets:      make(map[string]sweepTarget),
	}
}

// Register adds a session to the sweep set, replacing any previous entry for
// key. userID may be 0 when facts should not be attributed.
func (s *Sweeper) Register(key string, sess schema.ConsolidatableSession, userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[key] = sweepTarget{sess: sess, userID: userID}
}

// Deregister removes a session from the sweep set.
func (s *Sweeper) Deregister(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, key)
}

// Start arms the cron schedule. No-op when the schedule is empty.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" || s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return fmt.Errorf("sweeper schedule %q: %w", s.schedule, err)
	}
	c.Start()
	s.cron = c
	slog.Info("sweeper: started", "schedule", s.schedule)
	return nil
}

// Stop halts the sweep loop. Safe when never started.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	slog.Info("sweeper: stopped")
}

// sweep queues a windowed consolidation for every registered session.
// Schedule already serialises runs per session, so a tick that overlaps a
// slow run only marks the pending slot.
func (s *Sweeper) sweep() {
	s.mu.Lock()
	targets := make(map[string]sweepTarget, len(s.targets))
	for k, t := range s.targets {
		targets[k] = t
	}
	s.mu.Unlock()

	for key, t := range targets {
		s.consolidator.Schedule(key, t.sess, Options{UserID: t.userID})
	}
}

// FlushAll archives every registered session in full (archive-all), in
// parallel, and waits for completion. Intended for shutdown. Each flush
// goes through ConsolidateNow, so a sweep-triggered run already in flight
// for a session finishes before its flush starts. A session whose
// consolidation fails is reported in the joined error; the others still run
// to completion.
func (s *Sweeper) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	targets := make(map[string]sweepTarget, len(s.targets))
	for k, t := range s.targets {
		targets[k] = t
	}
	s.mu.Unlock()

	// Plain Group, not WithContext: one session failing to flush must not
	// cancel the in-flight flushes of the others.
	var g errgroup.Group
	for key, t := range targets {
		key, t := key, t
		g.Go(func() error {
			if !s.consolidator.ConsolidateNow(ctx, key, t.sess, Options{ArchiveAll: true, UserID: t.userID}) {
				return fmt.Errorf("flush session %s", key)
			}
			return nil
		})
	}
	return g.Wait()
}
