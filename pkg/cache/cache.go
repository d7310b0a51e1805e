// Package cache is the per-process bounded recent-window cache for
// time-series, commands, and triggers, with event-driven invalidation.
// A mutex-guarded map keyed by channel, generalized to track "samples,
// commands, triggers within a covered window" rather than a single id.
// Rolling-window refreshes fan the three backing-store reads out with
// errgroup.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hausbrain/core/pkg/commandlog"
	"github.com/hausbrain/core/pkg/model"
	"github.com/hausbrain/core/pkg/timestore"
	"github.com/hausbrain/core/pkg/triggerlog"
)

// Window is the range a cache currently covers. A cache "covers" a queried
// range iff both endpoints lie within Window; partial overlaps force a
// database read.
type Window struct {
	T0, T1 time.Time
}

func (w Window) Covers(t0, t1 time.Time) bool {
	return !t0.Before(w.T0) && !t1.After(w.T1)
}

// Cache is a read-through cache over the time store, command log, and
// trigger log. It is populated lazily: the first query for a tag or target
// within the covered window fetches the whole window once and retains it;
// subsequent queries for the same key within the window are served from
// memory until invalidated or the rolling window advances.
type Cache struct {
	mu     sync.RWMutex
	window Window
	// rollingSince is non-zero for a rolling cache: the window is always
	// [now-rollingSince, now], advanced by calling Advance.
	rollingSince time.Duration

	samples  map[int64]model.Frame
	commands map[model.CommandTarget][]model.CommandExecution
	triggers map[model.TriggerTarget][]model.TriggerRecord

	ts *timestore.Store
	cl *commandlog.Store
	tl *triggerlog.Store
}

// NewRolling creates a cache covering [now-d, now], auto-advanced by
// calling Advance on a timer.
func NewRolling(d time.Duration, now time.Time, ts *timestore.Store, cl *commandlog.Store, tl *triggerlog.Store) *Cache {
	return &Cache{
		window:       Window{T0: now.Add(-d), T1: now},
		rollingSince: d,
		samples:      make(map[int64]model.Frame),
		commands:     make(map[model.CommandTarget][]model.CommandExecution),
		triggers:     make(map[model.TriggerTarget][]model.TriggerRecord),
		ts:           ts, cl: cl, tl: tl,
	}
}

// NewFixed creates a cache covering exactly [t0,t1], for ad-hoc historical
// queries. It never advances.
func NewFixed(t0, t1 time.Time, ts *timestore.Store, cl *commandlog.Store, tl *triggerlog.Store) *Cache {
	return &Cache{
		window:   Window{T0: t0, T1: t1},
		samples:  make(map[int64]model.Frame),
		commands: make(map[model.CommandTarget][]model.CommandExecution),
		triggers: make(map[model.TriggerTarget][]model.TriggerRecord),
		ts:       ts, cl: cl, tl: tl,
	}
}

// Advance moves a rolling cache's trailing edge to now and drops samples
// now outside the new window. No-op on a fixed cache.
func (c *Cache) Advance(now time.Time) {
	if c.rollingSince == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window = Window{T0: now.Add(-c.rollingSince), T1: now}
	for tagID, frame := range c.samples {
		c.samples[tagID] = restrictFrame(frame, c.window.T0, c.window.T1)
	}
	for target, execs := range c.commands {
		c.commands[target] = restrictExecutions(execs, c.window.T0, c.window.T1)
	}
	for target, trigs := range c.triggers {
		c.triggers[target] = restrictTriggers(trigs, c.window.T0, c.window.T1)
	}
}

// RefreshTracked re-fetches every currently-tracked tag, command target, and
// trigger target from the backing stores in parallel, aborting the whole
// refresh on the first error (the next tick simply tries again — this is
// the "first error aborts this refresh" semantics errgroup.Group gives,
// deliberately different from the planner's fan-out, which must not cancel
// sibling tasks on one failure).
func (c *Cache) RefreshTracked(ctx context.Context) error {
	c.mu.RLock()
	tagIDs := make([]int64, 0, len(c.samples))
	for id := range c.samples {
		tagIDs = append(tagIDs, id)
	}
	cmdTargets := make([]model.CommandTarget, 0, len(c.commands))
	for t := range c.commands {
		cmdTargets = append(cmdTargets, t)
	}
	trigTargets := make([]model.TriggerTarget, 0, len(c.triggers))
	for t := range c.triggers {
		trigTargets = append(trigTargets, t)
	}
	window := c.window
	c.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.refreshSamples(gctx, tagIDs, window) })
	g.Go(func() error { return c.refreshCommands(gctx, cmdTargets, window) })
	g.Go(func() error { return c.refreshTriggers(gctx, trigTargets, window) })
	return g.Wait()
}

func (c *Cache) refreshSamples(ctx context.Context, tagIDs []int64, w Window) error {
	fresh := make(map[int64]model.Frame, len(tagIDs))
	for _, id := range tagIDs {
		frame, err := c.ts.Frame(ctx, id, w.T0, w.T1)
		if err != nil {
			return fmt.Errorf("cache: refresh tag %d: %w", id, err)
		}
		fresh[id] = frame
	}
	c.mu.Lock()
	for id, frame := range fresh {
		c.samples[id] = frame
	}
	c.mu.Unlock()
	return nil
}

func (c *Cache) refreshCommands(ctx context.Context, targets []model.CommandTarget, w Window) error {
	fresh := make(map[model.CommandTarget][]model.CommandExecution, len(targets))
	for _, t := range targets {
		target := t
		execs, err := c.cl.Query(ctx, &target, w.T0, w.T1)
		if err != nil {
			return fmt.Errorf("cache: refresh commands %s: %w", t, err)
		}
		fresh[t] = execs
	}
	c.mu.Lock()
	for t, execs := range fresh {
		c.commands[t] = execs
	}
	c.mu.Unlock()
	return nil
}

func (c *Cache) refreshTriggers(ctx context.Context, targets []model.TriggerTarget, w Window) error {
	fresh := make(map[model.TriggerTarget][]model.TriggerRecord, len(targets))
	for _, t := range targets {
		recs, err := c.tl.Query(ctx, t, w.T0, w.T1)
		if err != nil {
			return fmt.Errorf("cache: refresh triggers %v: %w", t, err)
		}
		fresh[t] = recs
	}
	c.mu.Lock()
	for t, recs := range fresh {
		c.triggers[t] = recs
	}
	c.mu.Unlock()
	return nil
}

// GetDataframe returns the frame for tagID restricted to [t0,t1]. If the
// cache covers the range it is served from memory (fetching once, lazily,
// on first access); otherwise it delegates straight to the time store.
func (c *Cache) GetDataframe(ctx context.Context, tagID int64, t0, t1 time.Time) (model.Frame, error) {
	c.mu.RLock()
	covers := c.window.Covers(t0, t1)
	frame, cached := c.samples[tagID]
	window := c.window
	c.mu.RUnlock()

	if !covers {
		return c.ts.Frame(ctx, tagID, t0, t1)
	}
	if cached {
		return restrictFrame(frame, t0, t1), nil
	}

	frame, err := c.ts.Frame(ctx, tagID, window.T0, window.T1)
	if err != nil {
		return model.Frame{}, err
	}
	c.mu.Lock()
	c.samples[tagID] = frame
	c.mu.Unlock()
	return restrictFrame(frame, t0, t1), nil
}

// GetCommands is GetDataframe's analogue over the command log.
func (c *Cache) GetCommands(ctx context.Context, target model.CommandTarget, t0, t1 time.Time) ([]model.CommandExecution, error) {
	c.mu.RLock()
	covers := c.window.Covers(t0, t1)
	execs, cached := c.commands[target]
	window := c.window
	c.mu.RUnlock()

	if !covers {
		return c.cl.Query(ctx, &target, t0, t1)
	}
	if cached {
		return restrictExecutions(execs, t0, t1), nil
	}

	execs, err := c.cl.Query(ctx, &target, window.T0, window.T1)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.commands[target] = execs
	c.mu.Unlock()
	return restrictExecutions(execs, t0, t1), nil
}

// GetTriggers is GetDataframe's analogue over the trigger log.
func (c *Cache) GetTriggers(ctx context.Context, target model.TriggerTarget, t0, t1 time.Time) ([]model.TriggerRecord, error) {
	c.mu.RLock()
	covers := c.window.Covers(t0, t1)
	recs, cached := c.triggers[target]
	window := c.window
	c.mu.RUnlock()

	if !covers {
		return c.tl.Query(ctx, target, t0, t1)
	}
	if cached {
		return restrictTriggers(recs, t0, t1), nil
	}

	recs, err := c.tl.Query(ctx, target, window.T0, window.T1)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.triggers[target] = recs
	c.mu.Unlock()
	return restrictTriggers(recs, t0, t1), nil
}

func (c *Cache) InvalidateTag(tagID int64) {
	c.mu.Lock()
	delete(c.samples, tagID)
	c.mu.Unlock()
}

func (c *Cache) InvalidateCommandTarget(target model.CommandTarget) {
	c.mu.Lock()
	delete(c.commands, target)
	c.mu.Unlock()
}

func (c *Cache) InvalidateTriggerTarget(target model.TriggerTarget) {
	c.mu.Lock()
	delete(c.triggers, target)
	c.mu.Unlock()
}

func restrictFrame(f model.Frame, t0, t1 time.Time) model.Frame {
	all := f.All()
	out := model.Frame{TagID: f.TagID}
	for i := range all {
		s := all[i]
		switch {
		case s.Timestamp.Before(t0):
			anchor := s
			out.AnchorBefore = &anchor
		case !s.Timestamp.After(t1):
			out.Samples = append(out.Samples, s)
		default:
			if out.AnchorAfter == nil {
				anchor := s
				out.AnchorAfter = &anchor
			}
		}
	}
	return out
}

func restrictExecutions(execs []model.CommandExecution, t0, t1 time.Time) []model.CommandExecution {
	out := make([]model.CommandExecution, 0, len(execs))
	for _, e := range execs {
		if !e.CreatedAt.Before(t0) && !e.CreatedAt.After(t1) {
			out = append(out, e)
		}
	}
	return out
}

func restrictTriggers(recs []model.TriggerRecord, t0, t1 time.Time) []model.TriggerRecord {
	out := make([]model.TriggerRecord, 0, len(recs))
	for _, r := range recs {
		if !r.Timestamp.Before(t0) && !r.Timestamp.After(t1) {
			out = append(out, r)
		}
	}
	return out
}
