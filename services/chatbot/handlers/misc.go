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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jinterlante1206/portfolio-chat/services/chatbot/datatypes"
	"github.com/jinterlante1206/portfolio-chat/services/chatbot/session"
)

// HealthCheck reports liveness and the current session count.
func HealthCheck(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.HealthResponse{
			Status:         "healthy",
			ActiveSessions: store.Count(),
			Timestamp:      time.Now().UTC().Format(time.RFC3339),
		})
	}
}
