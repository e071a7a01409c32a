// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/document"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/observability"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/r2r"
)

// ErrNotFound is returned for session ids that are absent from the Store
// or discovered expired on access.
var ErrNotFound = errors.New("session not found or expired")

// shardCount spreads key locks so unrelated sessions never contend.
// Power of two, sized well above any realistic handler parallelism.
const shardCount = 32

type shard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Store maps session ids to Sessions. Membership in the Store is the sole
// authority for "session exists": every mutating operation on one id
// (create, expiry-eviction inside GetActive, remove) is serialized by the
// id's shard lock, so an expired session is torn down exactly once no
// matter how many callers race the expiry boundary.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type Store struct {
	timeout time.Duration
	shards  [shardCount]shard

	// now is replaceable in tests to cross expiry boundaries without sleeping.
	now func() time.Time
}

// NewStore creates a Store whose sessions expire after timeout of
// inactivity.
func NewStore(timeout time.Duration) *Store {
	st := &Store{timeout: timeout, now: time.Now}
	for i := range st.shards {
		st.shards[i].sessions = make(map[string]*Session)
	}
	return st
}

func (st *Store) shardFor(id string) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &st.shards[h.Sum32()%shardCount]
}

// Create builds a Session for owner around its exclusively-owned backend
// client and inserts it under a fresh id. uuid v4 gives 122 random bits,
// so ids are never reused within a process lifetime.
func (st *Store) Create(owner string, backend *r2r.Client, documentID, documentPath string) *Session {
	now := st.now()
	sess := &Session{
		ID:           uuid.NewString(),
		Owner:        owner,
		Backend:      backend,
		DocumentID:   documentID,
		DocumentPath: documentPath,
		CreatedAt:    now,
		lastActivity: now,
	}

	sh := st.shardFor(sess.ID)
	sh.mu.Lock()
	sh.sessions[sess.ID] = sess
	sh.mu.Unlock()

	if m := observability.DefaultMetrics; m != nil {
		m.SessionsCreatedTotal.Inc()
		m.SessionsActive.Inc()
	}
	slog.Info("session created", "session_id", sess.ID, "user_id", owner, "document_id", documentID)
	return sess
}

// GetActive resolves an id to its Session, refreshing the activity
// timestamp. Expiry is checked and acted on under the shard lock: if the
// session has gone stale it is evicted here, through the same
// remove-and-teardown sequence the reaper uses, and NotFound is returned.
// The teardown itself runs off the request path.
func (st *Store) GetActive(ctx context.Context, id string) (*Session, error) {
	sh := st.shardFor(id)
	sh.mu.Lock()
	sess, ok := sh.sessions[id]
	if !ok {
		sh.mu.Unlock()
		return nil, ErrNotFound
	}
	if sess.expired(st.now(), st.timeout) {
		delete(sh.sessions, id)
		sh.mu.Unlock()
		go st.Teardown(context.WithoutCancel(ctx), sess, "expired")
		return nil, ErrNotFound
	}
	sess.touch(st.now())
	sh.mu.Unlock()
	return sess, nil
}

// Remove evicts a session unconditionally and returns it for teardown.
// Removing an absent id reports ok=false and has no effect, which makes
// explicit closes racing the reaper harmless.
func (st *Store) Remove(id string) (*Session, bool) {
	sh := st.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok {
		return nil, false
	}
	delete(sh.sessions, id)
	return sess, true
}

// RemoveIfExpired evicts the session only if it is still expired at the
// moment the shard lock is held. The reaper uses this so a session touched
// between snapshot and eviction survives.
func (st *Store) RemoveIfExpired(id string) (*Session, bool) {
	sh := st.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sess, ok := sh.sessions[id]
	if !ok || !sess.expired(st.now(), st.timeout) {
		return nil, false
	}
	delete(sh.sessions, id)
	return sess, true
}

// ExpiredIDs snapshots the ids of sessions that look expired right now.
// The snapshot is advisory; callers must re-check via RemoveIfExpired.
func (st *Store) ExpiredIDs() []string {
	now := st.now()
	var ids []string
	for i := range st.shards {
		sh := &st.shards[i]
		sh.mu.Lock()
		for id, sess := range sh.sessions {
			if sess.expired(now, st.timeout) {
				ids = append(ids, id)
			}
		}
		sh.mu.Unlock()
	}
	return ids
}

// Count returns the number of live sessions, for diagnostics.
func (st *Store) Count() int {
	total := 0
	for i := range st.shards {
		sh := &st.shards[i]
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}

// Teardown releases a removed session's resources: the backend-held
// document and the local artifact. Both are best-effort — a wedged remote
// delete is logged and swallowed, never allowed to resurrect the session
// or block the caller's shutdown path. Exactly-once invocation is
// guaranteed by map removal, not by anything here.
func (st *Store) Teardown(ctx context.Context, sess *Session, reason string) {
	if err := sess.Backend.DeleteDocument(ctx, sess.DocumentID); err != nil {
		slog.Error("failed to delete backend document during teardown",
			"session_id", sess.ID,
			"document_id", sess.DocumentID,
			"error", err,
		)
		if m := observability.DefaultMetrics; m != nil {
			m.BackendErrorsTotal.WithLabelValues("delete_document").Inc()
		}
	}
	document.Remove(sess.DocumentPath)

	if m := observability.DefaultMetrics; m != nil {
		m.SessionsActive.Dec()
		m.SessionsClosedTotal.WithLabelValues(reason).Inc()
	}
	slog.Info("session torn down", "session_id", sess.ID, "reason", reason)
}
