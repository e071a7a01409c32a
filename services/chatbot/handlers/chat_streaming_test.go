// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/config"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/datatypes"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/r2r"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

// fakeBackend is a minimal R2R stand-in covering the endpoints the
// handlers exercise.
type fakeBackend struct {
	srv *httptest.Server

	agentReply  string
	agentStatus int
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{agentReply: "Hi there friend", agentStatus: http.StatusOK}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v3/conversations", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": map[string]any{"id": "conv-1"}})
	})
	mux.HandleFunc("POST /v3/retrieval/agent", func(w http.ResponseWriter, r *http.Request) {
		if fb.agentStatus != http.StatusOK {
			w.WriteHeader(fb.agentStatus)
			w.Write([]byte(`{"detail": "backend failure"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": map[string]any{
				"messages": []map[string]string{{"role": "assistant", "content": fb.agentReply}},
			},
		})
	})
	mux.HandleFunc("POST /v3/documents", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"results": map[string]any{"document_id": "doc-1"}})
	})
	mux.HandleFunc("DELETE /v3/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /v3/documents/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"results": map[string]any{"id": r.PathValue("id"), "ingestion_status": "success"},
		})
	})

	fb.srv = httptest.NewServer(mux)
	t.Cleanup(fb.srv.Close)
	return fb
}

func (fb *fakeBackend) client(t *testing.T) *r2r.Client {
	t.Helper()
	client, err := r2r.NewClient(fb.srv.URL, "")
	require.NoError(t, err)
	return client
}

func testConfig(fb *fakeBackend) config.Config {
	return config.Config{
		R2RBaseURL:     fb.srv.URL,
		SessionTimeout: 30 * time.Minute,
		StreamPacing:   0,
		DocsDir:        "",
		RAGModel:       "gpt-4o-mini",
		RAGTemperature: 0.1,
		RAGMaxTokens:   4000,
		RAGSearchLimit: 25,
	}
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseChunks decodes every SSE event in an /send-message response body.
func parseChunks(t *testing.T, body string) []datatypes.StreamChunk {
	t.Helper()
	var chunks []datatypes.StreamChunk
	for _, block := range strings.Split(body, "\n\n") {
		for _, line := range strings.Split(block, "\n") {
			if data, ok := strings.CutPrefix(line, "data: "); ok {
				var chunk datatypes.StreamChunk
				require.NoError(t, json.Unmarshal([]byte(data), &chunk))
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks
}

func newStreamingRouter(store *session.Store, cfg config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/send-message", HandleSendMessage(store, cfg))
	router.POST("/send-message/sync", HandleSendMessageSync(store, cfg))
	return router
}

func TestHandleSendMessage_StreamsWordChunks(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	sess := store.Create("user-1", fb.client(t), "doc-1", "")
	router := newStreamingRouter(store, cfg)

	w := postJSON(t, router, "/send-message", datatypes.SendMessageRequest{
		SessionID: sess.ID,
		Message:   "hello",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	chunks := parseChunks(t, w.Body.String())
	require.Len(t, chunks, 4)

	var words []string
	for _, chunk := range chunks[:3] {
		assert.Equal(t, datatypes.ChunkTypeContent, chunk.Type)
		assert.NotEmpty(t, chunk.Id)
		assert.NotZero(t, chunk.CreatedAt)
		words = append(words, chunk.Data.(string))
	}
	assert.Equal(t, []string{"Hi ", "there ", "friend "}, words)
	assert.False(t, chunks[0].IsFinal)
	assert.False(t, chunks[1].IsFinal)
	assert.True(t, chunks[2].IsFinal, "last content chunk must be final")

	terminal := chunks[3]
	assert.Equal(t, datatypes.ChunkTypeMetadata, terminal.Type)
	assert.True(t, terminal.IsFinal)
	meta := terminal.Data.(map[string]any)
	assert.Equal(t, "conv-1", meta["conversation_id"])
	assert.Equal(t, "doc-1", meta["document_id"])
	assert.Equal(t, sess.ID, meta["session_id"])
}

func TestHandleSendMessage_UnknownSession(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	router := newStreamingRouter(store, cfg)

	w := postJSON(t, router, "/send-message", datatypes.SendMessageRequest{
		SessionID: "ghost",
		Message:   "hello",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "data: ", "no chunks may be emitted for an unknown session")
}

func TestHandleSendMessage_ValidationFailures(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	router := newStreamingRouter(store, cfg)

	t.Run("missing message", func(t *testing.T) {
		w := postJSON(t, router, "/send-message", map[string]string{"session_id": "s"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("oversized message", func(t *testing.T) {
		w := postJSON(t, router, "/send-message", datatypes.SendMessageRequest{
			SessionID: "s",
			Message:   strings.Repeat("a", datatypes.MaxMessageContentBytes+1),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleSendMessage_BackendFailure_SingleErrorChunk(t *testing.T) {
	fb := newFakeBackend(t)
	fb.agentStatus = http.StatusInternalServerError
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	sess := store.Create("user-1", fb.client(t), "doc-1", "")
	router := newStreamingRouter(store, cfg)

	w := postJSON(t, router, "/send-message", datatypes.SendMessageRequest{
		SessionID: sess.ID,
		Message:   "hello",
	})

	require.Equal(t, http.StatusOK, w.Code)
	chunks := parseChunks(t, w.Body.String())
	require.Len(t, chunks, 1, "a failed exchange must produce exactly one chunk")
	assert.Equal(t, datatypes.ChunkTypeError, chunks[0].Type)
	assert.True(t, chunks[0].IsFinal)
	assert.Equal(t, clientErrorMessage, chunks[0].Data.(string))
	assert.NotContains(t, chunks[0].Data.(string), "backend failure",
		"backend diagnostics must not leak to the client")
}

func TestHandleSendMessage_ReusesConversation(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	sess := store.Create("user-1", fb.client(t), "doc-1", "")
	router := newStreamingRouter(store, cfg)

	for i := 0; i < 2; i++ {
		w := postJSON(t, router, "/send-message", datatypes.SendMessageRequest{
			SessionID: sess.ID,
			Message:   "hello again",
		})
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, "conv-1", sess.ConversationID())
}

func TestHandleSendMessageSync(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	sess := store.Create("user-1", fb.client(t), "doc-1", "")
	router := newStreamingRouter(store, cfg)

	t.Run("success", func(t *testing.T) {
		w := postJSON(t, router, "/send-message/sync", datatypes.SendMessageRequest{
			SessionID: sess.ID,
			Message:   "hello",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.SendMessageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Hi there friend", resp.Response)
		assert.Equal(t, "conv-1", resp.ConversationID)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := postJSON(t, router, "/send-message/sync", datatypes.SendMessageRequest{
			SessionID: "ghost",
			Message:   "hello",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("backend failure", func(t *testing.T) {
		fb.agentStatus = http.StatusInternalServerError
		defer func() { fb.agentStatus = http.StatusOK }()

		w := postJSON(t, router, "/send-message/sync", datatypes.SendMessageRequest{
			SessionID: sess.ID,
			Message:   "hello",
		})
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestStreamReply_Pacing(t *testing.T) {
	// With pacing enabled a three-word reply sleeps twice (never after the
	// final word).
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	cfg.StreamPacing = 20 * time.Millisecond
	store := session.NewStore(cfg.SessionTimeout)
	sess := store.Create("user-1", fb.client(t), "doc-1", "")
	router := newStreamingRouter(store, cfg)

	start := time.Now()
	w := postJSON(t, router, "/send-message", datatypes.SendMessageRequest{
		SessionID: sess.ID,
		Message:   "hello",
	})
	elapsed := time.Since(start)

	require.Equal(t, http.StatusOK, w.Code)
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}
