// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers contains the gin HTTP handlers for the chatbot
// service: session lifecycle, message exchange (streaming and sync) and
// operational endpoints.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/config"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/datatypes"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/document"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/observability"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/r2r"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

var tracer = otel.Tracer("portfolio.chatbot.handlers")

// HandleInitializeChat creates a chat session: renders the caller's
// application records into a markdown document, uploads it to the R2R
// backend for ingestion, and registers the session in the store.
//
// # Inputs
//
//   - store: The session store.
//   - cfg: Service configuration (backend address, docs directory).
//
// # Outputs
//
//   - 200 with session_id and document_id on success.
//   - 400 on a malformed or invalid request body.
//   - 500 when the backend is unreachable or the upload fails.
func HandleInitializeChat(store *session.Store, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.InitializeChat")
		defer span.End()

		var req datatypes.InitializeChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed: " + err.Error()})
			return
		}
		owner := string(req.UserID)
		span.SetAttributes(attribute.String("chat.user_id", owner))

		backend, err := r2r.NewClient(cfg.R2RBaseURL, cfg.R2RAPIKey)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("cannot initialize chat, backend not configured", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "chat backend is unavailable"})
			return
		}

		content := document.Render(req.ApplicationsData, req.QuestionsData)
		docPath := document.Path(cfg.DocsDir, owner)
		if err := document.Write(docPath, content); err != nil {
			// The local artifact is informational; the backend copy is what
			// retrieval runs against.
			slog.Warn("failed to write local document artifact", "path", docPath, "error", err)
			docPath = ""
		}

		documentID, err := backend.CreateDocument(ctx, content, map[string]string{
			"user_id": owner,
			"source":  "portfolio-chat",
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if m := observability.DefaultMetrics; m != nil {
				m.BackendErrorsTotal.WithLabelValues("create_document").Inc()
			}
			slog.Error("document upload failed during chat initialization", "user_id", owner, "error", err)
			document.Remove(docPath)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare chat document"})
			return
		}

		sess := store.Create(owner, backend, documentID, docPath)
		span.SetAttributes(attribute.String("chat.session_id", sess.ID))

		c.JSON(http.StatusOK, datatypes.InitializeChatResponse{
			SessionID:  sess.ID,
			Status:     "success",
			Message:    "Chat session initialized successfully",
			DocumentID: documentID,
		})
	}
}

// HandleCloseChat tears down a session explicitly. Closing an unknown or
// already-closed session returns 404; the double close is harmless.
func HandleCloseChat(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.CloseChat")
		defer span.End()

		var req datatypes.CloseChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed: " + err.Error()})
			return
		}
		span.SetAttributes(attribute.String("chat.session_id", req.SessionID))

		sess, ok := store.Remove(req.SessionID)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		store.Teardown(ctx, sess, "client_close")

		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "Chat session closed successfully",
		})
	}
}

// HandleSessionStatus reports one session's lifecycle state. An unknown or
// expired id yields 200 with status "not_found" rather than a 404, so
// pollers can distinguish "session gone" from "endpoint gone".
func HandleSessionStatus(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.SessionStatus")
		defer span.End()

		sessionID := c.Param("sessionId")
		span.SetAttributes(attribute.String("chat.session_id", sessionID))

		sess, err := store.GetActive(ctx, sessionID)
		if err != nil {
			c.JSON(http.StatusOK, datatypes.SessionStatusResponse{
				Status:  "not_found",
				Message: "Session not found or expired",
			})
			return
		}

		resp := datatypes.SessionStatusResponse{
			Status:         "active",
			UserID:         sess.Owner,
			CreatedAt:      sess.CreatedAt.UTC().Format(time.RFC3339),
			LastActivity:   sess.LastActivity().UTC().Format(time.RFC3339),
			DocumentID:     sess.DocumentID,
			ConversationID: sess.ConversationID(),
		}

		// Ingestion status is best-effort decoration; a backend hiccup must
		// not turn a healthy session report into an error.
		if info, err := sess.Backend.DocumentOverview(ctx, sess.DocumentID); err == nil {
			resp.IngestionStatus = info.IngestionStatus
		} else {
			slog.Debug("document overview unavailable for status report",
				"session_id", sessionID, "error", err)
		}

		c.JSON(http.StatusOK, resp)
	}
}
