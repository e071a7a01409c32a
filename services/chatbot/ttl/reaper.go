// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ttl runs the background reaper that evicts expired chat
// sessions from the store.
package ttl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

// CycleResult summarizes one reaper pass.
type CycleResult struct {
	Scanned int
	Evicted int
}

// Reaper periodically scans the session store and tears down sessions
// that have exceeded the inactivity timeout. It uses the same
// remove-and-teardown sequence as an explicit client close, so racing a
// concurrent close is harmless: whoever removes the id from the store
// performs the single teardown.
//
// # Thread Safety
//
// All public methods are thread-safe; a mutex protects the running state.
type Reaper struct {
	store    *session.Store
	interval time.Duration

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// NewReaper creates a reaper that scans store every interval.
func NewReaper(store *session.Store, interval time.Duration) *Reaper {
	return &Reaper{
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start launches the reaper goroutine. It runs one cycle immediately,
// then on every tick, until Stop is called or ctx is cancelled. Starting
// an already-running reaper is an error.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reaper is already running")
	}
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	slog.Info("session reaper starting", "interval", r.interval.String())
	go r.runLoop(ctx)
	return nil
}

// Stop signals the reaper to exit. Safe to call multiple times.
func (r *Reaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	slog.Info("session reaper stopping")
	close(r.done)
	r.running = false
}

// RunNow performs a single eviction cycle immediately, independent of the
// schedule. Used by tests and operational tooling.
func (r *Reaper) RunNow(ctx context.Context) CycleResult {
	return r.runCycle(ctx)
}

func (r *Reaper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("session reaper stopped (context cancelled)")
			return
		case <-r.done:
			slog.Info("session reaper stopped (stop requested)")
			return
		case <-ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle snapshots expired ids and evicts each one that is still
// expired when its shard lock is taken. Ids that vanished in the meantime
// (explicit close, concurrent GetActive eviction) are skipped silently.
func (r *Reaper) runCycle(ctx context.Context) CycleResult {
	ids := r.store.ExpiredIDs()
	result := CycleResult{Scanned: len(ids)}

	for _, id := range ids {
		if ctx.Err() != nil {
			return result
		}
		sess, ok := r.store.RemoveIfExpired(id)
		if !ok {
			continue
		}
		r.store.Teardown(ctx, sess, "expired")
		result.Evicted++
	}

	if result.Evicted > 0 {
		slog.Info("reaper cycle completed", "scanned", result.Scanned, "evicted", result.Evicted)
	} else {
		slog.Debug("reaper cycle completed (no expired sessions)")
	}
	return result
}
