// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session holds the in-memory chat session state: the Session
// entity and the sharded Store that is the single authority for which
// sessions exist. Sessions live only for the process lifetime.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/r2r"
)

// Session is one bounded-lifetime conversational context tied to one owner
// and one backend-held document. The Backend client is exclusively owned
// by this session; once the session leaves the Store no further operation
// may use it.
type Session struct {
	ID           string
	Owner        string
	Backend      *r2r.Client
	DocumentID   string
	DocumentPath string
	CreatedAt    time.Time

	// activityMu guards lastActivity. Store refreshes it under the shard
	// lock on every successful GetActive; the reaper reads it lock-free of
	// the shard via LastActivity.
	activityMu   sync.Mutex
	lastActivity time.Time

	// convMu serializes lazy conversation creation so two concurrent first
	// messages cannot each open a distinct backend conversation.
	convMu         sync.Mutex
	conversationID string
}

// LastActivity returns the time of the most recent successful access.
func (s *Session) LastActivity() time.Time {
	s.activityMu.Lock()
	defer s.activityMu.Unlock()
	return s.lastActivity
}

// touch refreshes the activity timestamp.
func (s *Session) touch(now time.Time) {
	s.activityMu.Lock()
	s.lastActivity = now
	s.activityMu.Unlock()
}

// expired reports whether the session has been idle for at least timeout.
func (s *Session) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity()) >= timeout
}

// ConversationID returns the backend conversation id, or "" before the
// first message.
func (s *Session) ConversationID() string {
	s.convMu.Lock()
	defer s.convMu.Unlock()
	return s.conversationID
}

// EnsureConversation returns the session's backend conversation id,
// creating the conversation on first use. Creation happens at most once
// per session; concurrent callers block until the winner has an id.
func (s *Session) EnsureConversation(ctx context.Context) (string, error) {
	s.convMu.Lock()
	defer s.convMu.Unlock()

	if s.conversationID != "" {
		return s.conversationID, nil
	}
	id, err := s.Backend.CreateConversation(ctx)
	if err != nil {
		return "", err
	}
	s.conversationID = id
	return id, nil
}
