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
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/config"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/datatypes"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/observability"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/r2r"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

// clientErrorMessage is the only error text ever streamed to a client.
// Backend details stay in the logs.
const clientErrorMessage = "Sorry, I could not generate a response. Please try again."

// HandleSendMessage exchanges one message with a session's backend and
// streams the reply to the client as SSE word chunks.
//
// The backend call is synchronous; streaming is synthesized locally by
// splitting the complete reply on whitespace and emitting one chunk per
// word, paced by cfg.StreamPacing. The stream is terminated by exactly one
// metadata chunk on success or one error chunk on failure. Errors after
// headers are sent can only be reported in-stream, hence the ordering:
// resolve the session and obtain the full reply first, send SSE headers
// only when there is something to stream or a failure to report.
func HandleSendMessage(store *session.Store, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.SendMessage")
		defer span.End()
		start := time.Now()

		var req datatypes.SendMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed: " + err.Error()})
			return
		}
		span.SetAttributes(attribute.String("chat.session_id", req.SessionID))

		sess, err := store.GetActive(ctx, req.SessionID)
		if err != nil {
			observeStream("not_found", start)
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired"})
			return
		}

		reply, conversationID, err := exchangeMessage(ctx, sess, req.Message, cfg)

		writer, werr := NewChunkWriter(c.Writer)
		if werr != nil {
			span.RecordError(werr)
			span.SetStatus(codes.Error, werr.Error())
			observeStream("error", start)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming is not supported"})
			return
		}
		SetSSEHeaders(c.Writer)
		c.Status(http.StatusOK)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("message exchange failed",
				"session_id", sess.ID,
				"conversation_id", conversationID,
				"error", err,
			)
			if werr := writer.WriteError(clientErrorMessage); werr != nil {
				slog.Warn("failed to deliver error chunk", "session_id", sess.ID, "error", werr)
			}
			observeStream("error", start)
			return
		}

		status := streamReply(c.Request.Context(), writer, reply, cfg.StreamPacing)
		if status == "success" {
			meta := datatypes.ChunkMetadata{
				ConversationID: conversationID,
				DocumentID:     sess.DocumentID,
				SessionID:      sess.ID,
			}
			if werr := writer.WriteMetadata(meta); werr != nil {
				slog.Warn("failed to deliver metadata chunk", "session_id", sess.ID, "error", werr)
				status = "disconnect"
			}
		}
		span.SetAttributes(attribute.String("chat.stream_status", status))
		observeStream(status, start)
	}
}

// exchangeMessage runs the backend round trip for one message: lazy
// conversation creation, then the agent call. It is detached from the
// client's cancellation so a disconnect mid-call cannot leave the backend
// conversation in a half-created state.
func exchangeMessage(ctx context.Context, sess *session.Session, message string, cfg config.Config) (reply, conversationID string, err error) {
	backendCtx := context.WithoutCancel(ctx)

	conversationID, err = sess.EnsureConversation(backendCtx)
	if err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.BackendErrorsTotal.WithLabelValues("create_conversation").Inc()
		}
		return "", "", err
	}

	reply, err = sess.Backend.SendAgentMessage(backendCtx, conversationID, sess.DocumentID, message, r2r.GenerationOptions{
		Model:       cfg.RAGModel,
		Temperature: cfg.RAGTemperature,
		MaxTokens:   cfg.RAGMaxTokens,
		SearchLimit: cfg.RAGSearchLimit,
	})
	if err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.BackendErrorsTotal.WithLabelValues("agent_message").Inc()
		}
		return "", conversationID, err
	}
	return reply, conversationID, nil
}

// streamReply emits the reply word by word, each word carrying a trailing
// space, with is_final set on the last word. Pacing sleeps between chunks
// but never after the last one. Returns the terminal status: "success",
// or "disconnect" when the client went away mid-stream.
func streamReply(ctx context.Context, writer ChunkWriter, reply string, pacing time.Duration) string {
	words := strings.Fields(reply)
	for i, word := range words {
		final := i == len(words)-1
		if err := writer.WriteContent(word+" ", final); err != nil {
			slog.Debug("client disconnected mid-stream", "error", err)
			return "disconnect"
		}
		if final || pacing <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return "disconnect"
		case <-time.After(pacing):
		}
	}
	return "success"
}

func observeStream(status string, start time.Time) {
	if m := observability.DefaultMetrics; m != nil {
		m.StreamRequestsTotal.WithLabelValues(status).Inc()
		m.StreamDurationSeconds.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
