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
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/config"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/datatypes"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

// HandleSendMessageSync is the non-streaming variant of send-message: the
// same backend exchange as HandleSendMessage, delivered as one JSON body.
// Intended for clients that cannot consume SSE.
func HandleSendMessageSync(store *session.Store, cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "handlers.SendMessageSync")
		defer span.End()

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
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found or expired"})
			return
		}

		reply, conversationID, err := exchangeMessage(ctx, sess, req.Message, cfg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			slog.Error("message exchange failed",
				"session_id", sess.ID,
				"conversation_id", conversationID,
				"error", err,
			)
			c.JSON(http.StatusBadGateway, gin.H{"error": clientErrorMessage})
			return
		}

		c.JSON(http.StatusOK, datatypes.SendMessageResponse{
			Response:       reply,
			ConversationID: conversationID,
		})
	}
}
