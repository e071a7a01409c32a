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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/config"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/datatypes"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

func newLifecycleRouter(store *session.Store, cfg config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/initialize-chat", HandleInitializeChat(store, cfg))
	router.POST("/close-chat", HandleCloseChat(store))
	router.GET("/session-status/:sessionId", HandleSessionStatus(store))
	router.GET("/health", HealthCheck(store))
	return router
}

func initBody(userID any) map[string]any {
	return map[string]any{
		"user_id": userID,
		"applications_data": map[string]any{
			"items": []map[string]any{
				{
					"applicationId":  7,
					"jobTitle":       "Robotics Engineer",
					"companyName":    "Acme",
					"status":         "interviewing",
					"stage":          "onsite",
					"submissionDate": "2025-05-01",
					"company":        map[string]any{"name": "Acme", "location": "Berlin"},
				},
			},
			"totalPages": 1,
		},
		"questions_data": map[string]any{
			"items": []map[string]any{
				{"applicationId": 7, "question1": "Why Acme?", "answer": "Robots.", "createdAt": "2025-05-02T10:00:00Z"},
			},
			"totalCount": 1,
		},
	}
}

func TestHandleInitializeChat(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	cfg.DocsDir = t.TempDir()
	store := session.NewStore(cfg.SessionTimeout)
	router := newLifecycleRouter(store, cfg)

	t.Run("happy path", func(t *testing.T) {
		w := postJSON(t, router, "/initialize-chat", initBody(42))
		require.Equal(t, http.StatusOK, w.Code)

		var resp datatypes.InitializeChatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "success", resp.Status)
		assert.NotEmpty(t, resp.SessionID)
		assert.Equal(t, "doc-1", resp.DocumentID)
		assert.Equal(t, 1, store.Count())

		// The local artifact is written alongside the backend upload.
		assert.FileExists(t, filepath.Join(cfg.DocsDir, "job_applications_user_42.md"))
	})

	t.Run("string user id", func(t *testing.T) {
		w := postJSON(t, router, "/initialize-chat", initBody("alice"))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing user id", func(t *testing.T) {
		body := initBody(1)
		delete(body, "user_id")
		w := postJSON(t, router, "/initialize-chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("backend unconfigured", func(t *testing.T) {
		badCfg := cfg
		badCfg.R2RBaseURL = ""
		badRouter := newLifecycleRouter(store, badCfg)

		w := postJSON(t, badRouter, "/initialize-chat", initBody(1))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("upload failure leaves no session behind", func(t *testing.T) {
		deadCfg := cfg
		deadCfg.R2RBaseURL = "http://127.0.0.1:1"
		deadRouter := newLifecycleRouter(store, deadCfg)

		before := store.Count()
		w := postJSON(t, deadRouter, "/initialize-chat", initBody(99))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, before, store.Count())
		assert.NoFileExists(t, filepath.Join(cfg.DocsDir, "job_applications_user_99.md"))
	})
}

func TestHandleCloseChat(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	sess := store.Create("user-1", fb.client(t), "doc-1", "")
	router := newLifecycleRouter(store, cfg)

	w := postJSON(t, router, "/close-chat", datatypes.CloseChatRequest{SessionID: sess.ID})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.Count())

	// Double close: the session is gone, so the second call is a 404.
	w = postJSON(t, router, "/close-chat", datatypes.CloseChatRequest{SessionID: sess.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSessionStatus(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	sess := store.Create("user-1", fb.client(t), "doc-1", "")
	router := newLifecycleRouter(store, cfg)

	t.Run("active session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session-status/"+sess.ID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp datatypes.SessionStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "active", resp.Status)
		assert.Equal(t, "user-1", resp.UserID)
		assert.Equal(t, "doc-1", resp.DocumentID)
		assert.Equal(t, "success", resp.IngestionStatus)
		assert.NotEmpty(t, resp.CreatedAt)
		assert.NotEmpty(t, resp.LastActivity)
	})

	t.Run("unknown session reports not_found with 200", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session-status/ghost", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp datatypes.SessionStatusResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "not_found", resp.Status)
	})
}

func TestHealthCheck(t *testing.T) {
	fb := newFakeBackend(t)
	cfg := testConfig(fb)
	store := session.NewStore(cfg.SessionTimeout)
	store.Create("user-1", fb.client(t), "doc-1", "")
	router := newLifecycleRouter(store, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp datatypes.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.ActiveSessions)
	assert.NotEmpty(t, resp.Timestamp)
}
